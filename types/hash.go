package types

import (
	"encoding/hex"
	"fmt"

	"github.com/ABT-Tech-Limited/evmkit/hexutil"
	"github.com/ABT-Tech-Limited/evmkit/keccak"
)

// Hash is a 32-byte Keccak-256 digest.
type Hash [HashLength]byte

// BytesToHash returns the hash formed by the last 32 bytes of b,
// left-padded with zeros if b is shorter.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// HexToHash parses a hex string into a Hash, returning the zero hash for
// malformed input.
func HexToHash(s string) Hash {
	b, err := hexutil.DecodePadded(s)
	if err != nil {
		return Hash{}
	}
	return BytesToHash(b)
}

// Keccak256Hash hashes the concatenated inputs.
func Keccak256Hash(data ...[]byte) Hash {
	return BytesToHash(keccak.Sum256(data...))
}

// Bytes returns a copy of the hash bytes.
func (h Hash) Bytes() []byte {
	out := make([]byte, HashLength)
	copy(out, h[:])
	return out
}

// Hex returns the 0x-prefixed lowercase form.
func (h Hash) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

// String implements fmt.Stringer.
func (h Hash) String() string {
	return h.Hex()
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(input []byte) error {
	b, err := hexutil.Decode(string(input))
	if err != nil {
		return err
	}
	if len(b) != HashLength {
		return fmt.Errorf("%w: hash must be %d bytes, got %d", hexutil.ErrMalformedHex, HashLength, len(b))
	}
	copy(h[:], b)
	return nil
}
