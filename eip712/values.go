package eip712

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/ABT-Tech-Limited/evmkit/abi"
	"github.com/ABT-Tech-Limited/evmkit/hexutil"
	"github.com/ABT-Tech-Limited/evmkit/types"
)

// encodeAtomic coerces a JSON-decoded (or native Go) value to an
// elementary ABI type and returns its 32-byte word.
func encodeAtomic(typ string, v any) ([]byte, error) {
	t, err := abi.ParseType(typ)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}

	var coerced any
	switch t.Kind {
	case abi.UintKind, abi.IntKind:
		coerced, err = toBig(v)
	case abi.BoolKind:
		coerced, err = toBool(v)
	case abi.AddressKind:
		coerced, err = toAddress(v)
	case abi.FixedBytesKind:
		var b []byte
		b, err = toBytes(v)
		if err == nil && len(b) > t.Size {
			err = fmt.Errorf("%w: %d bytes for %s", ErrInvalidValue, len(b), typ)
		}
		coerced = hexutil.RightPad(b, t.Size)
	default:
		return nil, fmt.Errorf("%w: %q is not an atomic type", ErrUnknownType, typ)
	}
	if err != nil {
		return nil, err
	}

	word, err := abi.EncodeValue(t, coerced)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return word, nil
}

func toBig(v any) (*big.Int, error) {
	switch x := v.(type) {
	case json.Number:
		return parseInteger(string(x))
	case string:
		return parseInteger(x)
	case float64:
		if x != math.Trunc(x) || math.Abs(x) > 1<<53 {
			return nil, fmt.Errorf("%w: %v is not an exact integer", ErrInvalidValue, x)
		}
		return big.NewInt(int64(x)), nil
	case *big.Int:
		if x == nil {
			return nil, fmt.Errorf("%w: nil integer", ErrInvalidValue)
		}
		return x, nil
	case int:
		return big.NewInt(int64(x)), nil
	case int64:
		return big.NewInt(x), nil
	case uint64:
		return new(big.Int).SetUint64(x), nil
	}
	return nil, fmt.Errorf("%w: %T for integer", ErrInvalidValue, v)
}

// parseInteger accepts decimal and 0x-prefixed hex, with an optional sign.
func parseInteger(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	digits := strings.TrimPrefix(s, "-")
	base := 10
	if hexutil.Has0xPrefix(digits) {
		digits, base = digits[2:], 16
	}
	x, ok := new(big.Int).SetString(digits, base)
	if !ok || digits == "" {
		return nil, fmt.Errorf("%w: integer %q", ErrInvalidValue, s)
	}
	if neg {
		x.Neg(x)
	}
	return x, nil
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		switch x {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: %v for bool", ErrInvalidValue, v)
}

func toAddress(v any) (types.Address, error) {
	switch x := v.(type) {
	case types.Address:
		return x, nil
	case string:
		a, err := types.ParseAddress(x)
		if err != nil {
			return types.Address{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return a, nil
	}
	return types.Address{}, fmt.Errorf("%w: %T for address", ErrInvalidValue, v)
}

func toBytes(v any) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case hexutil.Bytes:
		return x, nil
	case types.Hash:
		return x[:], nil
	case string:
		b, err := hexutil.Decode(x)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("%w: %T for bytes", ErrInvalidValue, v)
}
