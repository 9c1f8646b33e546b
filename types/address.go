// Package types defines the fixed-size Ethereum value types shared by the
// codecs: Address and Hash.
package types

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ABT-Tech-Limited/evmkit/hexutil"
	"github.com/ABT-Tech-Limited/evmkit/keccak"
)

const (
	// AddressLength is the byte length of an Ethereum address.
	AddressLength = 20
	// HashLength is the byte length of a Keccak-256 hash.
	HashLength = 32
)

// ErrInvalidAddress is returned when a string does not denote a 20-byte address.
var ErrInvalidAddress = errors.New("invalid address")

// Address is a 20-byte Ethereum account address.
// Two addresses are equal iff their bytes are equal, regardless of the
// textual casing they were parsed from.
type Address [AddressLength]byte

// ParseAddress parses a hex address with or without the 0x prefix.
// Shorter inputs are left-padded with zeros. Longer inputs are accepted
// only when the excess leading bytes are zero, as in a 32-byte ABI word.
func ParseAddress(s string) (Address, error) {
	b, err := hexutil.DecodePadded(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(b) == 0 {
		return Address{}, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	if len(b) > AddressLength {
		for _, c := range b[:len(b)-AddressLength] {
			if c != 0 {
				return Address{}, fmt.Errorf("%w: %d bytes", ErrInvalidAddress, len(b))
			}
		}
	}
	return BytesToAddress(b), nil
}

// HexToAddress is like ParseAddress but returns the zero address for
// malformed input.
func HexToAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		return Address{}
	}
	return addr
}

// BytesToAddress returns the address formed by the last 20 bytes of b,
// left-padded with zeros if b is shorter.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// Bytes returns a copy of the address bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a[:])
	return out
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Hex returns the lowercase 0x-prefixed form.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Checksum returns the EIP-55 mixed-case form.
func (a Address) Checksum() string {
	return "0x" + toChecksum(hex.EncodeToString(a[:]))
}

// String implements fmt.Stringer using the checksum form.
func (a Address) String() string {
	return a.Checksum()
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Checksum()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(input []byte) error {
	addr, err := ParseAddress(string(input))
	if err != nil {
		return err
	}
	*a = addr
	return nil
}

// IsChecksumValid reports whether s is a 40-digit hex address whose casing
// matches EIP-55. All-lowercase and all-uppercase inputs carry no checksum
// and are reported valid.
func IsChecksumValid(s string) bool {
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(digits) != 2*AddressLength {
		return false
	}
	if _, err := hex.DecodeString(digits); err != nil {
		return false
	}
	if digits == strings.ToLower(digits) || digits == strings.ToUpper(digits) {
		return true
	}
	return toChecksum(digits) == digits
}

// toChecksum applies EIP-55 casing to a 40-digit hex address: a letter is
// uppercased iff the matching nibble of keccak256(lowercase) is >= 8.
func toChecksum(address string) string {
	address = strings.ToLower(address)
	hash := keccak.Sum256([]byte(address))
	result := make([]byte, len(address))
	for i := 0; i < len(address); i++ {
		c := address[i]
		if c < 'a' {
			result[i] = c
			continue
		}
		nibble := hash[i/2] & 0x0f
		if i%2 == 0 {
			nibble = hash[i/2] >> 4
		}
		if nibble >= 8 {
			c -= 'a' - 'A'
		}
		result[i] = c
	}
	return string(result)
}
