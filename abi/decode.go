package abi

import (
	"fmt"
	"math/big"

	"github.com/ABT-Tech-Limited/evmkit/hexutil"
	"github.com/ABT-Tech-Limited/evmkit/types"
)

// Decode decodes data laid out as the tuple (types...). The result holds one
// Go value per type, following the mapping in the package documentation.
func Decode(ts []Type, data []byte) ([]any, error) {
	if err := checkTypes(ts); err != nil {
		return nil, err
	}
	return decodeTuple(ts, data)
}

// DecodeValue decodes a single value of type t encoded on its own, i.e. as
// the one-element tuple (t).
func DecodeValue(t Type, data []byte) (any, error) {
	out, err := Decode([]Type{t}, data)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// decodeTuple reads members starting at data[0]. Offsets of dynamic members
// are relative to the start of data.
func decodeTuple(ts []Type, data []byte) ([]any, error) {
	out := make([]any, len(ts))
	pos := 0
	for i, t := range ts {
		var (
			v   any
			err error
		)
		if t.IsDynamic() {
			var off int
			off, err = readLength(data, pos)
			if err == nil {
				v, err = decodeValue(t, data[off:])
			}
		} else {
			if t.HeadSize() > len(data)-pos {
				err = fmt.Errorf("%w: data too short for %s", ErrInvalidValue, t)
			} else {
				v, err = decodeValue(t, data[pos:])
			}
		}
		if err != nil {
			return nil, fmt.Errorf("element %d (%s): %w", i, t, err)
		}
		out[i] = v
		pos += t.HeadSize()
	}
	return out, nil
}

// decodeValue decodes t from the start of data. For dynamic types data begins
// at the value itself (after following the offset).
func decodeValue(t Type, data []byte) (any, error) {
	switch t.Kind {
	case UintKind:
		word, err := readWord(data, 0)
		if err != nil {
			return nil, err
		}
		x := new(big.Int).SetBytes(word)
		if x.BitLen() > t.Size {
			return nil, fmt.Errorf("%w: %s overflows %s", ErrInvalidValue, x, t)
		}
		return x, nil

	case IntKind:
		word, err := readWord(data, 0)
		if err != nil {
			return nil, err
		}
		x := hexutil.FromTwosComplement(word)
		if err := checkRange(t, x); err != nil {
			return nil, err
		}
		return x, nil

	case BoolKind:
		word, err := readWord(data, 0)
		if err != nil {
			return nil, err
		}
		if isZero(word[:31]) && word[31] <= 1 {
			return word[31] == 1, nil
		}
		return nil, fmt.Errorf("%w: bool word %x", ErrInvalidValue, word)

	case AddressKind:
		word, err := readWord(data, 0)
		if err != nil {
			return nil, err
		}
		if !isZero(word[:12]) {
			return nil, fmt.Errorf("%w: address word %x", ErrInvalidValue, word)
		}
		return types.BytesToAddress(word[12:]), nil

	case FixedBytesKind:
		word, err := readWord(data, 0)
		if err != nil {
			return nil, err
		}
		return append([]byte(nil), word[:t.Size]...), nil

	case BytesKind, StringKind:
		n, err := readLength(data, 0)
		if err != nil {
			return nil, err
		}
		if n > len(data)-32 {
			return nil, fmt.Errorf("%w: length %d exceeds data", ErrInvalidValue, n)
		}
		b := make([]byte, n)
		copy(b, data[32:32+n])
		if t.Kind == StringKind {
			return string(b), nil
		}
		return b, nil

	case ArrayKind:
		// every element needs its head in data
		if t.Size > len(data)/max(t.Elem.HeadSize(), 1) {
			return nil, fmt.Errorf("%w: data too short for %s", ErrInvalidValue, t)
		}
		return decodeTuple(repeatType(*t.Elem, t.Size), data)

	case SliceKind:
		n, err := readLength(data, 0)
		if err != nil {
			return nil, err
		}
		// every element needs at least one head slot
		if n > (len(data)-32)/max(t.Elem.HeadSize(), 1) {
			return nil, fmt.Errorf("%w: %d elements exceed data", ErrInvalidValue, n)
		}
		return decodeTuple(repeatType(*t.Elem, n), data[32:])

	case TupleKind:
		return decodeTuple(t.Components, data)

	default:
		return nil, ErrInvalidType
	}
}

func readWord(data []byte, pos int) ([]byte, error) {
	if pos < 0 || pos+32 > len(data) {
		return nil, fmt.Errorf("%w: data too short", ErrInvalidValue)
	}
	return data[pos : pos+32], nil
}

// readLength reads a word that must fit in an int and not exceed len(data).
func readLength(data []byte, pos int) (int, error) {
	word, err := readWord(data, pos)
	if err != nil {
		return 0, err
	}
	x := new(big.Int).SetBytes(word)
	if !x.IsInt64() || x.Int64() > int64(len(data)) {
		return 0, fmt.Errorf("%w: length or offset %s out of bounds", ErrInvalidValue, x)
	}
	return int(x.Int64()), nil
}

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
