// Package account binds an address to a KeyStorage and signs on its behalf.
//
// An Account never keeps key material between calls: every signing
// operation loads the key from storage, uses it, and zeroes the copy before
// returning.
package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/ABT-Tech-Limited/evmkit/eip712"
	"github.com/ABT-Tech-Limited/evmkit/signer"
	"github.com/ABT-Tech-Limited/evmkit/tx"
	"github.com/ABT-Tech-Limited/evmkit/types"
)

// ErrWrongSender is returned when a transaction names a sender other than
// the signing account.
var ErrWrongSender = errors.New("account: transaction sender does not match account")

// Account signs with the key stored for its address.
type Account struct {
	address types.Address
	storage KeyStorage
}

// Create generates a fresh key, stores it and returns its account.
func Create(ctx context.Context, storage KeyStorage) (*Account, error) {
	key, err := signer.GenerateKey()
	if err != nil {
		return nil, err
	}
	defer signer.ZeroBytes(key)
	return Import(ctx, storage, key)
}

// Import stores an existing raw private key and returns its account.
func Import(ctx context.Context, storage KeyStorage, key []byte) (*Account, error) {
	addr, err := signer.PrivateKeyToAddress(key)
	if err != nil {
		return nil, err
	}
	if err := storage.Store(ctx, addr, key); err != nil {
		if errors.Is(err, ErrFailedToSave) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrFailedToSave, err)
	}
	return &Account{address: addr, storage: storage}, nil
}

// Open returns the account for a key already held by storage.
func Open(ctx context.Context, storage KeyStorage, addr types.Address) (*Account, error) {
	a := &Account{address: addr, storage: storage}
	err := a.withKey(ctx, func(key []byte) error {
		got, err := signer.PrivateKeyToAddress(key)
		if err != nil {
			return err
		}
		if got != addr {
			return fmt.Errorf("%w: stored key belongs to %s", ErrKeyNotFound, got)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Address returns the account address.
func (a *Account) Address() types.Address {
	return a.address
}

func (a *Account) withKey(ctx context.Context, fn func(key []byte) error) error {
	key, err := a.storage.Load(ctx, a.address)
	if err != nil {
		return err
	}
	defer signer.ZeroBytes(key)
	return fn(key)
}

// SignHash signs a 32-byte digest. V is the recovery id.
func (a *Account) SignHash(ctx context.Context, hash []byte) (signer.Signature, error) {
	var sig signer.Signature
	err := a.withKey(ctx, func(key []byte) error {
		var err error
		sig, err = signer.Sign(hash, key)
		return err
	})
	return sig, err
}

// SignMessage signs msg as an EIP-191 personal message. V is 27 or 28.
func (a *Account) SignMessage(ctx context.Context, msg []byte) (signer.Signature, error) {
	sig, err := a.SignHash(ctx, signer.TextHash(msg))
	if err != nil {
		return signer.Signature{}, err
	}
	return sig.WithV(uint64(sig.V) + 27)
}

// SignTypedData signs an EIP-712 payload. V is 27 or 28, as returned by
// eth_signTypedData_v4.
func (a *Account) SignTypedData(ctx context.Context, td *eip712.TypedData) (signer.Signature, error) {
	hash, err := td.Hash()
	if err != nil {
		return signer.Signature{}, err
	}
	sig, err := a.SignHash(ctx, hash[:])
	if err != nil {
		return signer.Signature{}, err
	}
	return sig.WithV(uint64(sig.V) + 27)
}

// SignTransaction signs t and returns the envelope. A nil From is filled
// with the account address on a copy; t itself is not modified.
func (a *Account) SignTransaction(ctx context.Context, t *tx.Transaction) (*tx.Signed, error) {
	cp := *t
	switch {
	case cp.From == nil:
		from := a.address
		cp.From = &from
	case *cp.From != a.address:
		return nil, fmt.Errorf("%w: %s", ErrWrongSender, cp.From)
	}
	var signed *tx.Signed
	err := a.withKey(ctx, func(key []byte) error {
		var err error
		signed, err = cp.Sign(key)
		return err
	})
	return signed, err
}

// Recover returns the address that signed hash.
func Recover(hash []byte, sig signer.Signature) (types.Address, error) {
	return signer.Recover(hash, sig.Bytes())
}

// RecoverMessage returns the address that signed msg as an EIP-191
// personal message.
func RecoverMessage(msg []byte, sig signer.Signature) (types.Address, error) {
	return signer.Recover(signer.TextHash(msg), sig.Bytes())
}
