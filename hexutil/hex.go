// Package hexutil converts between 0x-prefixed hex strings, byte slices and
// arbitrary-precision integers.
package hexutil

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrMalformedHex is returned when a string is not valid hex.
var ErrMalformedHex = errors.New("malformed hex")

// Has0xPrefix reports whether s starts with "0x" or "0X".
func Has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

func trim0x(s string) string {
	if Has0xPrefix(s) {
		return s[2:]
	}
	return s
}

// Decode decodes a hex string with or without the 0x prefix.
// An odd number of digits is an error.
func Decode(s string) ([]byte, error) {
	digits := trim0x(s)
	if len(digits)%2 != 0 {
		return nil, fmt.Errorf("%w: odd length %d", ErrMalformedHex, len(digits))
	}
	b, err := hex.DecodeString(digits)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHex, err)
	}
	return b, nil
}

// DecodePadded decodes a hex string, left-padding an odd digit count with a
// single zero.
func DecodePadded(s string) ([]byte, error) {
	digits := trim0x(s)
	if len(digits)%2 != 0 {
		digits = "0" + digits
	}
	return Decode(digits)
}

// MustDecode is like Decode but panics on error.
// Use it only for constants and tests.
func MustDecode(s string) []byte {
	b, err := Decode(s)
	if err != nil {
		panic(err)
	}
	return b
}

// Encode returns the lowercase 0x-prefixed hex encoding of b.
func Encode(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// EncodeBig returns the 0x-prefixed hex encoding of a non-negative integer
// without leading zeros, as used for JSON-RPC quantities.
func EncodeBig(x *big.Int) string {
	if x == nil || x.Sign() == 0 {
		return "0x0"
	}
	if x.Sign() < 0 {
		return "-0x" + x.Text(16)[1:]
	}
	return "0x" + x.Text(16)
}

// EncodeUint64 returns the 0x-prefixed quantity encoding of v.
func EncodeUint64(v uint64) string {
	return EncodeBig(new(big.Int).SetUint64(v))
}

// DecodeBig parses a 0x-prefixed hex quantity.
func DecodeBig(s string) (*big.Int, error) {
	if !Has0xPrefix(s) {
		return nil, fmt.Errorf("%w: missing 0x prefix", ErrMalformedHex)
	}
	digits := s[2:]
	if digits == "" {
		return nil, fmt.Errorf("%w: empty quantity", ErrMalformedHex)
	}
	x, ok := new(big.Int).SetString(strings.ToLower(digits), 16)
	if !ok {
		return nil, fmt.Errorf("%w: invalid quantity %q", ErrMalformedHex, s)
	}
	return x, nil
}

// DecodeUint64 parses a 0x-prefixed hex quantity that must fit in 64 bits.
func DecodeUint64(s string) (uint64, error) {
	x, err := DecodeBig(s)
	if err != nil {
		return 0, err
	}
	if !x.IsUint64() {
		return 0, fmt.Errorf("%w: quantity %s exceeds 64 bits", ErrMalformedHex, s)
	}
	return x.Uint64(), nil
}
