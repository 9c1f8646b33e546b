// Package rlp implements Recursive Length Prefix serialization.
//
// Items are typed explicitly: a caller chooses String for literal text and
// Hex for hex-encoded bytes, so "0x..." text is never guessed at.
package rlp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/ABT-Tech-Limited/evmkit/hexutil"
)

// ErrNegativeInteger is returned when a negative integer is encoded.
var ErrNegativeInteger = errors.New("rlp: negative integer")

// Item is the interface for values that can be RLP-encoded.
type Item interface {
	rlpEncode() ([]byte, error)
}

// Bytes is a byte string.
type Bytes []byte

func (b Bytes) rlpEncode() ([]byte, error) {
	return encodeString(b), nil
}

// String is literal text, encoded as its UTF-8 bytes.
type String string

func (s String) rlpEncode() ([]byte, error) {
	return encodeString([]byte(s)), nil
}

// Hex is a hex string (0x prefix optional) encoded as its decoded bytes.
type Hex string

func (h Hex) rlpEncode() ([]byte, error) {
	b, err := hexutil.Decode(string(h))
	if err != nil {
		return nil, fmt.Errorf("rlp: %w", err)
	}
	return encodeString(b), nil
}

// Uint is a non-negative integer. Zero encodes as the empty string.
type Uint uint64

func (u Uint) rlpEncode() ([]byte, error) {
	return encodeString(uint64Bytes(uint64(u))), nil
}

// Int is a signed integer; negative values cannot be encoded.
type Int int64

func (i Int) rlpEncode() ([]byte, error) {
	if i < 0 {
		return nil, ErrNegativeInteger
	}
	return Uint(i).rlpEncode()
}

// BigInt is an arbitrary-precision non-negative integer. A nil value
// encodes as zero.
type BigInt struct {
	*big.Int
}

// Big wraps x as an encodable integer.
func Big(x *big.Int) BigInt {
	return BigInt{x}
}

func (b BigInt) rlpEncode() ([]byte, error) {
	if b.Int == nil || b.Sign() == 0 {
		return encodeString(nil), nil
	}
	if b.Sign() < 0 {
		return nil, ErrNegativeInteger
	}
	return encodeString(b.Bytes()), nil
}

// List is an ordered list of items.
type List []Item

func (l List) rlpEncode() ([]byte, error) {
	var payload []byte
	for i, item := range l {
		enc, err := item.rlpEncode()
		if err != nil {
			return nil, fmt.Errorf("list element %d: %w", i, err)
		}
		payload = append(payload, enc...)
	}
	return withHeader(0xc0, 0xf7, payload), nil
}

// Raw is an already-encoded item and is emitted unchanged.
type Raw []byte

func (r Raw) rlpEncode() ([]byte, error) {
	return r, nil
}

// Encode returns the RLP encoding of item.
// On failure (for example a negative integer) it returns nil and the error.
func Encode(item Item) ([]byte, error) {
	enc, err := item.rlpEncode()
	if err != nil {
		return nil, err
	}
	return enc, nil
}

func encodeString(b []byte) []byte {
	if len(b) == 1 && b[0] <= 0x7f {
		return []byte{b[0]}
	}
	return withHeader(0x80, 0xb7, b)
}

// withHeader prefixes payload with a short (base+len) or long
// (longBase+len(len) followed by len) header.
func withHeader(base, longBase byte, payload []byte) []byte {
	length := len(payload)
	if length < 56 {
		result := make([]byte, 1+length)
		result[0] = base + byte(length)
		copy(result[1:], payload)
		return result
	}
	lenBytes := uint64Bytes(uint64(length))
	result := make([]byte, 1+len(lenBytes)+length)
	result[0] = longBase + byte(len(lenBytes))
	copy(result[1:], lenBytes)
	copy(result[1+len(lenBytes):], payload)
	return result
}

// uint64Bytes encodes v as big-endian bytes with no leading zeros.
// Zero yields an empty slice.
func uint64Bytes(v uint64) []byte {
	if v == 0 {
		return nil
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	for len(buf) > 0 && buf[0] == 0 {
		buf = buf[1:]
	}
	return buf
}
