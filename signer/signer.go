// Package signer provides secp256k1 signing and public key recovery for
// Ethereum, plus the helpers around it: signature forms, address
// derivation and EIP-191 message hashing.
package signer

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/ABT-Tech-Limited/evmkit/keccak"
	"github.com/ABT-Tech-Limited/evmkit/types"
)

var (
	// ErrInvalidPrivateKey is returned for keys that are not 32 bytes or
	// not in [1, n-1].
	ErrInvalidPrivateKey = errors.New("signer: invalid private key")
	// ErrBadArguments is returned when a hash is not 32 bytes or a
	// signature is not 65 bytes.
	ErrBadArguments = errors.New("signer: bad arguments")
	// ErrRecoveryFailed is returned when no public key can be recovered.
	ErrRecoveryFailed = errors.New("signer: public key recovery failed")
	// ErrInvalidRecoveryID is returned for V values outside every known
	// encoding.
	ErrInvalidRecoveryID = errors.New("signer: invalid recovery id")
)

const (
	// PrivateKeyLength is the size of a raw secp256k1 private key.
	PrivateKeyLength = 32
	// HashLength is the size of the digests this package signs.
	HashLength = 32
)

// ParsePrivateKey validates raw key bytes and returns the parsed key. The
// caller owns the returned key and should Zero it when done.
func ParsePrivateKey(key []byte) (*secp256k1.PrivateKey, error) {
	if len(key) != PrivateKeyLength {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPrivateKey, PrivateKeyLength, len(key))
	}
	// PrivKeyFromBytes reduces modulo n, so reject overflow and zero first.
	var scalar secp256k1.ModNScalar
	overflow := scalar.SetByteSlice(key)
	zero := scalar.IsZero()
	scalar.Zero()
	if overflow || zero {
		return nil, fmt.Errorf("%w: out of range", ErrInvalidPrivateKey)
	}
	return secp256k1.PrivKeyFromBytes(key), nil
}

// WithPrivateKey parses key, passes it to fn and zeroes the parsed key
// before returning, whether or not fn succeeds.
func WithPrivateKey(key []byte, fn func(*secp256k1.PrivateKey) error) error {
	priv, err := ParsePrivateKey(key)
	if err != nil {
		return err
	}
	defer priv.Zero()
	return fn(priv)
}

// GenerateKey returns 32 random bytes forming a valid private key.
func GenerateKey() ([]byte, error) {
	for {
		key := make([]byte, PrivateKeyLength)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate random bytes: %w", err)
		}
		if _, err := ParsePrivateKey(key); err == nil {
			return key, nil
		}
		// Out of range keys are astronomically unlikely; draw again.
		ZeroBytes(key)
	}
}

// Sign signs a 32-byte hash with a raw private key. Signatures are
// deterministic (RFC 6979) and in lower-S form; V is the recovery id, 0 or 1.
func Sign(hash []byte, key []byte) (Signature, error) {
	if len(hash) != HashLength {
		return Signature{}, fmt.Errorf("%w: hash must be %d bytes, got %d", ErrBadArguments, HashLength, len(hash))
	}
	var sig Signature
	err := WithPrivateKey(key, func(priv *secp256k1.PrivateKey) error {
		sig = SignWithKey(hash, priv)
		return nil
	})
	return sig, err
}

// SignWithKey signs a 32-byte hash with an already parsed key.
func SignWithKey(hash []byte, priv *secp256k1.PrivateKey) Signature {
	// Compact format: [27 + recovery id] || R (32 bytes) || S (32 bytes)
	compact := ecdsa.SignCompact(priv, hash, false)

	var sig Signature
	copy(sig.R[:], compact[1:33])
	copy(sig.S[:], compact[33:65])
	sig.V = compact[0] - 27
	return sig
}

// RecoverPublicKey returns the 65-byte uncompressed public key that produced
// sig (r || s || v, any V encoding NormalizeV accepts) over hash.
func RecoverPublicKey(hash, sig []byte) ([]byte, error) {
	if len(hash) != HashLength || len(sig) != SignatureLength {
		return nil, fmt.Errorf("%w: hash %d bytes, signature %d bytes", ErrBadArguments, len(hash), len(sig))
	}
	v, err := NormalizeV(uint64(sig[64]))
	if err != nil {
		return nil, err
	}

	compact := make([]byte, 65)
	compact[0] = 27 + v
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecoveryFailed, err)
	}
	return pub.SerializeUncompressed(), nil
}

// Recover returns the address that produced sig over hash.
func Recover(hash, sig []byte) (types.Address, error) {
	pub, err := RecoverPublicKey(hash, sig)
	if err != nil {
		return types.Address{}, err
	}
	return PublicKeyToAddress(pub)
}

// PublicKeyToAddress derives the Ethereum address from a 65-byte
// uncompressed public key: the last 20 bytes of keccak256(X || Y).
func PublicKeyToAddress(pub []byte) (types.Address, error) {
	if len(pub) != 65 || pub[0] != 0x04 {
		return types.Address{}, fmt.Errorf("%w: expected 65-byte uncompressed public key", ErrBadArguments)
	}
	return types.BytesToAddress(keccak.Sum256(pub[1:])[12:]), nil
}

// PublicKey returns the uncompressed public key for a raw private key.
func PublicKey(key []byte) ([]byte, error) {
	var pub []byte
	err := WithPrivateKey(key, func(priv *secp256k1.PrivateKey) error {
		pub = priv.PubKey().SerializeUncompressed()
		return nil
	})
	return pub, err
}

// PrivateKeyToAddress derives the address of a raw private key.
func PrivateKeyToAddress(key []byte) (types.Address, error) {
	pub, err := PublicKey(key)
	if err != nil {
		return types.Address{}, err
	}
	return PublicKeyToAddress(pub)
}
