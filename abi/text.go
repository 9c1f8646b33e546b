package abi

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ABT-Tech-Limited/evmkit/hexutil"
	"github.com/ABT-Tech-Limited/evmkit/types"
)

// ParseArgs converts textual arguments, as typed on a command line or sent
// in a form field, into values accepted by Encode.
func ParseArgs(ts []Type, args []string) ([]any, error) {
	if len(ts) != len(args) {
		return nil, fmt.Errorf("%w: %d types, %d arguments", ErrIncorrectParameterCount, len(ts), len(args))
	}
	out := make([]any, len(ts))
	for i, t := range ts {
		v, err := ParseValue(t, args[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d (%s): %w", i, t, err)
		}
		out[i] = v
	}
	return out, nil
}

// ParseValue parses s as a value of type t.
//
// Integers are decimal or 0x-prefixed hex, bytes are hex, bool is
// true/false. Arrays, slices and tuples are JSON arrays whose elements are
// either JSON scalars or strings in the scalar forms above.
func ParseValue(t Type, s string) (any, error) {
	switch t.Kind {
	case ArrayKind, SliceKind, TupleKind:
		var raw []json.RawMessage
		if err := json.Unmarshal([]byte(s), &raw); err != nil {
			return nil, fmt.Errorf("%w: %s expects a JSON array: %v", ErrInvalidValue, t, err)
		}
		return parseComposite(t, raw)
	}
	return parseScalar(t, s)
}

func parseComposite(t Type, raw []json.RawMessage) ([]any, error) {
	elemType := func(i int) Type {
		if t.Kind == TupleKind {
			return t.Components[i]
		}
		return *t.Elem
	}
	switch {
	case t.Kind == TupleKind && len(raw) != len(t.Components),
		t.Kind == ArrayKind && len(raw) != t.Size:
		return nil, fmt.Errorf("%w: %d elements for %s", ErrIncorrectParameterCount, len(raw), t)
	}
	out := make([]any, len(raw))
	for i, r := range raw {
		et := elemType(i)
		text := string(r)
		var str string
		if json.Unmarshal(r, &str) == nil {
			text = str
		}
		v, err := ParseValue(et, text)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func parseScalar(t Type, s string) (any, error) {
	if t.Kind != StringKind {
		s = strings.TrimSpace(s)
	}
	switch t.Kind {
	case UintKind, IntKind:
		x, ok := new(big.Int), false
		if hexutil.Has0xPrefix(s) {
			x, ok = x.SetString(s[2:], 16)
		} else {
			x, ok = x.SetString(s, 10)
		}
		if !ok {
			return nil, fmt.Errorf("%w: invalid integer %q", ErrInvalidValue, s)
		}
		if err := checkRange(t, x); err != nil {
			return nil, err
		}
		return x, nil
	case BoolKind:
		switch strings.ToLower(s) {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
		return nil, fmt.Errorf("%w: invalid bool %q", ErrInvalidValue, s)
	case AddressKind:
		a, err := types.ParseAddress(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return a, nil
	case FixedBytesKind, BytesKind:
		b, err := hexutil.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		if t.Kind == FixedBytesKind && len(b) != t.Size {
			return nil, fmt.Errorf("%w: %d bytes for %s", ErrInvalidValue, len(b), t)
		}
		return b, nil
	case StringKind:
		return s, nil
	}
	return nil, ErrInvalidType
}

// FormatValue renders a decoded value as text: integers in decimal,
// addresses checksummed, bytes as 0x hex and composites as JSON arrays.
func FormatValue(v any) string {
	switch x := v.(type) {
	case *big.Int:
		return x.String()
	case bool:
		if x {
			return "true"
		}
		return "false"
	case types.Address:
		return x.Checksum()
	case types.Hash:
		return x.Hex()
	case []byte:
		return hexutil.Encode(x)
	case string:
		return x
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatElem(e)
		}
		return "[" + strings.Join(parts, ",") + "]"
	}
	return fmt.Sprint(v)
}

func formatElem(v any) string {
	switch v.(type) {
	case []any, bool:
		return FormatValue(v)
	}
	b, _ := json.Marshal(FormatValue(v))
	return string(b)
}
