package abi

import (
	"fmt"
	"math/big"
	"reflect"

	"github.com/holiman/uint256"

	"github.com/ABT-Tech-Limited/evmkit/hexutil"
	"github.com/ABT-Tech-Limited/evmkit/types"
)

// Encode encodes values as the tuple (types...), which is the layout of
// function arguments and return values.
func Encode(ts []Type, values []any) ([]byte, error) {
	if len(ts) != len(values) {
		return nil, fmt.Errorf("%w: %d types, %d values", ErrIncorrectParameterCount, len(ts), len(values))
	}
	if err := checkTypes(ts); err != nil {
		return nil, err
	}
	return encodeTuple(ts, values)
}

// EncodeValue encodes a single value of type t.
func EncodeValue(t Type, v any) ([]byte, error) {
	if err := checkTypes([]Type{t}); err != nil {
		return nil, err
	}
	return encodeValue(t, v)
}

// encodeTuple lays out members head first: static members inline, dynamic
// members as a byte offset (from the start of this tuple) into the tail.
func encodeTuple(ts []Type, values []any) ([]byte, error) {
	headSize := 0
	for _, t := range ts {
		headSize += t.HeadSize()
	}
	head := make([]byte, 0, headSize)
	var tail []byte
	for i, t := range ts {
		enc, err := encodeValue(t, values[i])
		if err != nil {
			return nil, fmt.Errorf("element %d (%s): %w", i, t, err)
		}
		if t.IsDynamic() {
			head = append(head, uintWord(uint64(headSize+len(tail)))...)
			tail = append(tail, enc...)
		} else {
			head = append(head, enc...)
		}
	}
	return append(head, tail...), nil
}

func encodeValue(t Type, v any) ([]byte, error) {
	switch t.Kind {
	case UintKind, IntKind:
		x, err := toBig(v)
		if err != nil {
			return nil, err
		}
		if err := checkRange(t, x); err != nil {
			return nil, err
		}
		if x.Sign() < 0 {
			return hexutil.PaddedTwosComplement(x, 32)
		}
		word := make([]byte, 32)
		x.FillBytes(word)
		return word, nil

	case BoolKind:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %T for bool", ErrInvalidValue, v)
		}
		if b {
			return uintWord(1), nil
		}
		return uintWord(0), nil

	case AddressKind:
		addr, ok := toAddress(v)
		if !ok {
			return nil, fmt.Errorf("%w: %T for address", ErrInvalidValue, v)
		}
		return hexutil.LeftPad(addr[:], 32), nil

	case FixedBytesKind:
		b, ok := toBytes(v)
		if !ok {
			return nil, fmt.Errorf("%w: %T for %s", ErrInvalidValue, v, t)
		}
		if len(b) != t.Size {
			return nil, fmt.Errorf("%w: %d bytes for %s", ErrInvalidValue, len(b), t)
		}
		return hexutil.RightPad(b, 32), nil

	case BytesKind, StringKind:
		var b []byte
		if s, ok := v.(string); ok && t.Kind == StringKind {
			b = []byte(s)
		} else if raw, ok := toBytes(v); ok && t.Kind == BytesKind {
			b = raw
		} else {
			return nil, fmt.Errorf("%w: %T for %s", ErrInvalidValue, v, t)
		}
		out := uintWord(uint64(len(b)))
		return append(out, hexutil.RightPad(b, paddedLen(len(b)))...), nil

	case ArrayKind:
		elems, ok := toSlice(v)
		if !ok {
			return nil, fmt.Errorf("%w: %T for %s", ErrInvalidValue, v, t)
		}
		if len(elems) != t.Size {
			return nil, fmt.Errorf("%w: %d elements for %s", ErrIncorrectParameterCount, len(elems), t)
		}
		return encodeTuple(repeatType(*t.Elem, t.Size), elems)

	case SliceKind:
		elems, ok := toSlice(v)
		if !ok {
			return nil, fmt.Errorf("%w: %T for %s", ErrInvalidValue, v, t)
		}
		body, err := encodeTuple(repeatType(*t.Elem, len(elems)), elems)
		if err != nil {
			return nil, err
		}
		return append(uintWord(uint64(len(elems))), body...), nil

	case TupleKind:
		elems, ok := toSlice(v)
		if !ok {
			return nil, fmt.Errorf("%w: %T for %s", ErrInvalidValue, v, t)
		}
		if len(elems) != len(t.Components) {
			return nil, fmt.Errorf("%w: %d values for %s", ErrIncorrectParameterCount, len(elems), t)
		}
		return encodeTuple(t.Components, elems)

	default:
		return nil, ErrInvalidType
	}
}

func uintWord(v uint64) []byte {
	word := make([]byte, 32)
	new(big.Int).SetUint64(v).FillBytes(word)
	return word
}

func paddedLen(n int) int {
	return (n + 31) / 32 * 32
}

func checkRange(t Type, x *big.Int) error {
	if t.Kind == UintKind {
		if x.Sign() < 0 || x.BitLen() > t.Size {
			return fmt.Errorf("%w: %s out of range for %s", ErrInvalidValue, x, t)
		}
		return nil
	}
	limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
	if x.Cmp(limit) >= 0 || x.Cmp(new(big.Int).Neg(limit)) < 0 {
		return fmt.Errorf("%w: %s out of range for %s", ErrInvalidValue, x, t)
	}
	return nil
}

func toBig(v any) (*big.Int, error) {
	switch x := v.(type) {
	case *big.Int:
		if x == nil {
			return nil, fmt.Errorf("%w: nil integer", ErrInvalidValue)
		}
		return x, nil
	case big.Int:
		return &x, nil
	case *uint256.Int:
		if x == nil {
			return nil, fmt.Errorf("%w: nil integer", ErrInvalidValue)
		}
		return x.ToBig(), nil
	case uint256.Int:
		return x.ToBig(), nil
	case *hexutil.Big:
		return x.ToInt(), nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return big.NewInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return new(big.Int).SetUint64(rv.Uint()), nil
	}
	return nil, fmt.Errorf("%w: %T for integer", ErrInvalidValue, v)
}

func toAddress(v any) (types.Address, bool) {
	switch a := v.(type) {
	case types.Address:
		return a, true
	case *types.Address:
		if a == nil {
			return types.Address{}, false
		}
		return *a, true
	case [20]byte:
		return types.Address(a), true
	}
	return types.Address{}, false
}

// toBytes accepts byte slices and byte arrays of any named type.
func toBytes(v any) ([]byte, bool) {
	if b, ok := v.([]byte); ok {
		return b, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	if rv.Type().Elem().Kind() != reflect.Uint8 {
		return nil, false
	}
	switch rv.Kind() {
	case reflect.Slice:
		return rv.Bytes(), true
	case reflect.Array:
		out := make([]byte, rv.Len())
		reflect.Copy(reflect.ValueOf(out), rv)
		return out, true
	}
	return nil, false
}

// toSlice accepts []any as well as any other slice or array.
func toSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
