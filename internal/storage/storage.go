// Package storage provides storage operations for the EVM secrets engine.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/vault/sdk/logical"

	"github.com/ABT-Tech-Limited/evmkit/account"
	"github.com/ABT-Tech-Limited/evmkit/internal/model"
	"github.com/ABT-Tech-Limited/evmkit/signer"
	"github.com/ABT-Tech-Limited/evmkit/types"
)

const (
	// keyPrefix is the storage prefix for key records, keyed by name.
	keyPrefix = "keys/"
	// indexAddressPrefix maps a lowercase hex address to a key name.
	indexAddressPrefix = "index/address/"
)

var (
	// ErrNameExists is returned when saving a key under a taken name.
	ErrNameExists = errors.New("key name already exists")
	// ErrAddressExists is returned when the account is already stored under another name.
	ErrAddressExists = errors.New("address already exists")
)

// KeyStorage stores key records in Vault. It also satisfies
// account.KeyStorage, addressing records by their account address.
type KeyStorage struct {
	storage logical.Storage
	now     func() time.Time
}

var _ account.KeyStorage = (*KeyStorage)(nil)

// NewKeyStorage creates a new KeyStorage instance.
func NewKeyStorage(s logical.Storage) *KeyStorage {
	return &KeyStorage{storage: s, now: time.Now}
}

// SaveKey saves a key and its address index.
// Returns an error if the name or address already belongs to a different key.
func (ks *KeyStorage) SaveKey(ctx context.Context, key *model.Key) error {
	if key.Name == "" {
		return errors.New("key name is required")
	}

	existing, err := ks.GetByName(ctx, key.Name)
	if err != nil {
		return fmt.Errorf("failed to check name uniqueness: %w", err)
	}
	if existing != nil && existing.Address != key.Address {
		return fmt.Errorf("%w: %q", ErrNameExists, key.Name)
	}

	byAddr, err := ks.GetByAddress(ctx, key.Address)
	if err != nil {
		return fmt.Errorf("failed to check address uniqueness: %w", err)
	}
	if byAddr != nil && byAddr.Name != key.Name {
		return fmt.Errorf("%w: %s is stored as %q", ErrAddressExists, key.Address.Checksum(), byAddr.Name)
	}

	data, err := json.Marshal(key)
	if err != nil {
		return fmt.Errorf("failed to marshal key: %w", err)
	}

	// Store key with SealWrap enabled
	entry := &logical.StorageEntry{
		Key:      keyPrefix + key.Name,
		Value:    data,
		SealWrap: true,
	}
	if err := ks.storage.Put(ctx, entry); err != nil {
		return fmt.Errorf("failed to store key: %w", err)
	}

	indexEntry := &logical.StorageEntry{
		Key:   indexAddressPrefix + addressKey(key.Address),
		Value: []byte(key.Name),
	}
	if err := ks.storage.Put(ctx, indexEntry); err != nil {
		return fmt.Errorf("failed to create address index: %w", err)
	}
	return nil
}

// GetByName retrieves a key by its name.
// Returns nil if the key is not found.
func (ks *KeyStorage) GetByName(ctx context.Context, name string) (*model.Key, error) {
	entry, err := ks.storage.Get(ctx, keyPrefix+name)
	if err != nil {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}
	if entry == nil {
		return nil, nil
	}

	var key model.Key
	if err := json.Unmarshal(entry.Value, &key); err != nil {
		return nil, fmt.Errorf("failed to unmarshal key: %w", err)
	}
	return &key, nil
}

// GetByAddress retrieves a key by its account address.
// Returns nil if not found.
func (ks *KeyStorage) GetByAddress(ctx context.Context, addr types.Address) (*model.Key, error) {
	entry, err := ks.storage.Get(ctx, indexAddressPrefix+addressKey(addr))
	if err != nil {
		return nil, fmt.Errorf("failed to read address index: %w", err)
	}
	if entry == nil {
		return nil, nil
	}
	return ks.GetByName(ctx, string(entry.Value))
}

// ListKeys returns the names of all keys.
func (ks *KeyStorage) ListKeys(ctx context.Context) ([]string, error) {
	entries, err := ks.storage.List(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	return entries, nil
}

// DeleteKey removes the key stored under name and its index.
// Deleting a missing key is not an error.
func (ks *KeyStorage) DeleteKey(ctx context.Context, name string) error {
	key, err := ks.GetByName(ctx, name)
	if err != nil {
		return err
	}
	if key == nil {
		return nil
	}
	defer signer.ZeroBytes(key.PrivateKey)
	if err := ks.storage.Delete(ctx, indexAddressPrefix+addressKey(key.Address)); err != nil {
		return fmt.Errorf("failed to delete address index: %w", err)
	}
	if err := ks.storage.Delete(ctx, keyPrefix+name); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

// Load implements account.KeyStorage.
func (ks *KeyStorage) Load(ctx context.Context, addr types.Address) ([]byte, error) {
	key, err := ks.GetByAddress(ctx, addr)
	if err != nil {
		return nil, err
	}
	if key == nil || len(key.PrivateKey) == 0 {
		return nil, account.ErrKeyNotFound
	}
	return key.PrivateKey, nil
}

// Store implements account.KeyStorage. An existing record for addr keeps
// its name; otherwise the record is named after the address.
func (ks *KeyStorage) Store(ctx context.Context, addr types.Address, key []byte) error {
	name := addressKey(addr)
	if rec, err := ks.GetByAddress(ctx, addr); err != nil {
		return err
	} else if rec != nil {
		name = rec.Name
		signer.ZeroBytes(rec.PrivateKey)
	}
	return ks.Named(name, model.SourceImported, nil).Store(ctx, addr, key)
}

// Delete implements account.KeyStorage.
func (ks *KeyStorage) Delete(ctx context.Context, addr types.Address) error {
	key, err := ks.GetByAddress(ctx, addr)
	if err != nil {
		return err
	}
	if key == nil {
		return account.ErrKeyNotFound
	}
	signer.ZeroBytes(key.PrivateKey)
	return ks.DeleteKey(ctx, key.Name)
}

// ListAddresses implements account.KeyStorage.
func (ks *KeyStorage) ListAddresses(ctx context.Context) ([]types.Address, error) {
	entries, err := ks.storage.List(ctx, indexAddressPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	out := make([]types.Address, 0, len(entries))
	for _, e := range entries {
		addr, err := types.ParseAddress(e)
		if err != nil {
			return nil, fmt.Errorf("corrupt address index %q: %w", e, err)
		}
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hex() < out[j].Hex() })
	return out, nil
}

// Named returns an account.KeyStorage whose Store saves new records under
// name with the given source and metadata. It lets account.Create and
// account.Import write into a named slot.
func (ks *KeyStorage) Named(name string, source model.Source, metadata map[string]string) *NamedStorage {
	return &NamedStorage{KeyStorage: ks, name: name, source: source, metadata: metadata}
}

// NamedStorage is returned by KeyStorage.Named.
type NamedStorage struct {
	*KeyStorage
	name     string
	source   model.Source
	metadata map[string]string
}

// Store implements account.KeyStorage.
func (n *NamedStorage) Store(ctx context.Context, addr types.Address, key []byte) error {
	rec, err := n.GetByAddress(ctx, addr)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &model.Key{
			Name:      n.name,
			Address:   addr,
			Source:    n.source,
			CreatedAt: n.now().UTC(),
			Metadata:  n.metadata,
		}
	} else {
		signer.ZeroBytes(rec.PrivateKey)
		if rec.Name != n.name {
			return fmt.Errorf("%w: %s is stored as %q", ErrAddressExists, addr.Checksum(), rec.Name)
		}
	}
	rec.PrivateKey = append([]byte(nil), key...)
	defer signer.ZeroBytes(rec.PrivateKey)
	return n.SaveKey(ctx, rec)
}

func addressKey(addr types.Address) string {
	return strings.TrimPrefix(addr.Hex(), "0x")
}
