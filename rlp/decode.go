package rlp

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrUnexpectedEOF is returned when the input ends inside an item.
	ErrUnexpectedEOF = errors.New("rlp: unexpected end of input")
	// ErrNonCanonical is returned for encodings a canonical encoder never produces.
	ErrNonCanonical = errors.New("rlp: non-canonical encoding")
	// ErrTrailingData is returned when bytes remain after the top-level item.
	ErrTrailingData = errors.New("rlp: trailing data")
	// ErrExpectedString is returned when a list is found where a string was expected.
	ErrExpectedString = errors.New("rlp: expected string")
	// ErrExpectedList is returned when a string is found where a list was expected.
	ErrExpectedList = errors.New("rlp: expected list")
)

// Value is a decoded RLP item: either a byte string or a list.
type Value struct {
	IsList bool
	Bytes  []byte
	List   []Value
}

// Decode parses exactly one RLP item from b.
func Decode(b []byte) (Value, error) {
	v, rest, err := decodeItem(b)
	if err != nil {
		return Value{}, err
	}
	if len(rest) != 0 {
		return Value{}, fmt.Errorf("%w: %d bytes", ErrTrailingData, len(rest))
	}
	return v, nil
}

// AsBytes returns the byte string held by v.
func (v Value) AsBytes() ([]byte, error) {
	if v.IsList {
		return nil, ErrExpectedString
	}
	return v.Bytes, nil
}

// AsList returns the elements held by v.
func (v Value) AsList() ([]Value, error) {
	if !v.IsList {
		return nil, ErrExpectedList
	}
	return v.List, nil
}

// AsUint64 decodes v as a canonical unsigned integer.
func (v Value) AsUint64() (uint64, error) {
	b, err := v.AsBytes()
	if err != nil {
		return 0, err
	}
	if len(b) > 8 {
		return 0, fmt.Errorf("rlp: integer of %d bytes overflows uint64", len(b))
	}
	if len(b) > 0 && b[0] == 0 {
		return 0, fmt.Errorf("%w: leading zero in integer", ErrNonCanonical)
	}
	var u uint64
	for _, c := range b {
		u = u<<8 | uint64(c)
	}
	return u, nil
}

// AsBig decodes v as a canonical arbitrary-precision unsigned integer.
func (v Value) AsBig() (*big.Int, error) {
	b, err := v.AsBytes()
	if err != nil {
		return nil, err
	}
	if len(b) > 0 && b[0] == 0 {
		return nil, fmt.Errorf("%w: leading zero in integer", ErrNonCanonical)
	}
	return new(big.Int).SetBytes(b), nil
}

// DecodeUint decodes a top-level RLP integer.
func DecodeUint(b []byte) (uint64, error) {
	v, err := Decode(b)
	if err != nil {
		return 0, err
	}
	return v.AsUint64()
}

func decodeItem(b []byte) (Value, []byte, error) {
	if len(b) == 0 {
		return Value{}, nil, ErrUnexpectedEOF
	}
	prefix := b[0]
	switch {
	case prefix < 0x80:
		return Value{Bytes: b[:1]}, b[1:], nil

	case prefix < 0xb8:
		size := int(prefix - 0x80)
		if len(b) < 1+size {
			return Value{}, nil, ErrUnexpectedEOF
		}
		if size == 1 && b[1] < 0x80 {
			return Value{}, nil, fmt.Errorf("%w: single byte below 0x80 with header", ErrNonCanonical)
		}
		return Value{Bytes: b[1 : 1+size]}, b[1+size:], nil

	case prefix < 0xc0:
		payload, rest, err := longPayload(b, prefix-0xb7)
		if err != nil {
			return Value{}, nil, err
		}
		return Value{Bytes: payload}, rest, nil

	case prefix < 0xf8:
		size := int(prefix - 0xc0)
		if len(b) < 1+size {
			return Value{}, nil, ErrUnexpectedEOF
		}
		list, err := decodeList(b[1 : 1+size])
		if err != nil {
			return Value{}, nil, err
		}
		return Value{IsList: true, List: list}, b[1+size:], nil

	default:
		payload, rest, err := longPayload(b, prefix-0xf7)
		if err != nil {
			return Value{}, nil, err
		}
		list, err := decodeList(payload)
		if err != nil {
			return Value{}, nil, err
		}
		return Value{IsList: true, List: list}, rest, nil
	}
}

// longPayload splits a long-form item whose header carries a lenOfLen-byte
// big-endian length.
func longPayload(b []byte, lenOfLen byte) ([]byte, []byte, error) {
	n := int(lenOfLen)
	if len(b) < 1+n {
		return nil, nil, ErrUnexpectedEOF
	}
	if b[1] == 0 {
		return nil, nil, fmt.Errorf("%w: leading zero in length", ErrNonCanonical)
	}
	var size uint64
	for _, c := range b[1 : 1+n] {
		size = size<<8 | uint64(c)
	}
	if size < 56 {
		return nil, nil, fmt.Errorf("%w: long form for %d bytes", ErrNonCanonical, size)
	}
	if size > uint64(len(b)-1-n) {
		return nil, nil, ErrUnexpectedEOF
	}
	end := 1 + n + int(size)
	return b[1+n : end], b[end:], nil
}

func decodeList(payload []byte) ([]Value, error) {
	list := []Value{}
	for len(payload) > 0 {
		v, rest, err := decodeItem(payload)
		if err != nil {
			return nil, err
		}
		list = append(list, v)
		payload = rest
	}
	return list, nil
}
