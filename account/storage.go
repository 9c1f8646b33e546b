package account

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/ABT-Tech-Limited/evmkit/signer"
	"github.com/ABT-Tech-Limited/evmkit/types"
)

var (
	// ErrKeyNotFound is returned by KeyStorage.Load and Delete when no key
	// is held for the address.
	ErrKeyNotFound = errors.New("account: key not found")
	// ErrFailedToSave is returned by KeyStorage.Store when the key could not
	// be persisted.
	ErrFailedToSave = errors.New("account: failed to save key")
)

// KeyStorage holds raw private keys by address. Implementations must
// return a copy from Load; the caller zeroes it after use.
type KeyStorage interface {
	Load(ctx context.Context, addr types.Address) ([]byte, error)
	Store(ctx context.Context, addr types.Address, key []byte) error
	Delete(ctx context.Context, addr types.Address) error
	ListAddresses(ctx context.Context) ([]types.Address, error)
}

// SingleKeyStorage holds one key. Load ignores the address it is given,
// which suits callers that only ever sign for a single account.
type SingleKeyStorage struct {
	mu   sync.Mutex
	addr types.Address
	key  []byte
}

// NewSingleKeyStorage returns an empty SingleKeyStorage.
func NewSingleKeyStorage() *SingleKeyStorage {
	return &SingleKeyStorage{}
}

func (s *SingleKeyStorage) Load(_ context.Context, _ types.Address) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key == nil {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), s.key...), nil
}

// Store replaces any key already held.
func (s *SingleKeyStorage) Store(_ context.Context, addr types.Address, key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	signer.ZeroBytes(s.key)
	s.addr = addr
	s.key = append([]byte(nil), key...)
	return nil
}

func (s *SingleKeyStorage) Delete(_ context.Context, addr types.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key == nil || s.addr != addr {
		return ErrKeyNotFound
	}
	signer.ZeroBytes(s.key)
	s.key = nil
	s.addr = types.Address{}
	return nil
}

func (s *SingleKeyStorage) ListAddresses(_ context.Context) ([]types.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key == nil {
		return nil, nil
	}
	return []types.Address{s.addr}, nil
}

// MultiKeyStorage holds any number of keys in memory.
type MultiKeyStorage struct {
	mu   sync.RWMutex
	keys map[types.Address][]byte
}

// NewMultiKeyStorage returns an empty MultiKeyStorage.
func NewMultiKeyStorage() *MultiKeyStorage {
	return &MultiKeyStorage{keys: make(map[types.Address][]byte)}
}

func (m *MultiKeyStorage) Load(_ context.Context, addr types.Address) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key, ok := m.keys[addr]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), key...), nil
}

func (m *MultiKeyStorage) Store(_ context.Context, addr types.Address, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	signer.ZeroBytes(m.keys[addr])
	m.keys[addr] = append([]byte(nil), key...)
	return nil
}

func (m *MultiKeyStorage) Delete(_ context.Context, addr types.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.keys[addr]
	if !ok {
		return ErrKeyNotFound
	}
	signer.ZeroBytes(key)
	delete(m.keys, addr)
	return nil
}

// ListAddresses returns the held addresses in byte order.
func (m *MultiKeyStorage) ListAddresses(_ context.Context) ([]types.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Address, 0, len(m.keys))
	for addr := range m.keys {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hex() < out[j].Hex() })
	return out, nil
}
