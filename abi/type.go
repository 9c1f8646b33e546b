// Package abi encodes and decodes values in the Solidity contract ABI
// format.
//
// Types are described by Type, a closed set of kinds. Go values map to kinds
// as follows:
//
//	uint<N>, int<N>  *big.Int (any Go integer or *uint256.Int on encode)
//	bool             bool
//	address          types.Address
//	bytes<N>         []byte of length N (types.Hash or [N]byte on encode)
//	bytes            []byte
//	string           string
//	T[N], T[]        []any (any slice or array on encode)
//	(T1,...,Tn)      []any (any slice on encode)
package abi

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxHeadSize bounds the head size of any static array or tuple. Types with a
// larger layout are rejected with ErrInvalidType.
const MaxHeadSize = 1 << 24

// Kind identifies the variant of a Type.
type Kind int

const (
	invalidKind Kind = iota
	UintKind
	IntKind
	BoolKind
	AddressKind
	FixedBytesKind
	BytesKind
	StringKind
	ArrayKind
	SliceKind
	TupleKind
)

// Type is an ABI type.
//
// Size holds the bit width for UintKind and IntKind, the byte length for
// FixedBytesKind and the element count for ArrayKind.
type Type struct {
	Kind       Kind
	Size       int
	Elem       *Type
	Components []Type
	// ComponentNames optionally names tuple components, as in a JSON ABI.
	ComponentNames []string
}

// Uint returns the uint<bits> type.
func Uint(bits int) Type { return Type{Kind: UintKind, Size: bits} }

// Int returns the int<bits> type.
func Int(bits int) Type { return Type{Kind: IntKind, Size: bits} }

// FixedBytes returns the bytes<n> type.
func FixedBytes(n int) Type { return Type{Kind: FixedBytesKind, Size: n} }

// ArrayOf returns the T[n] type.
func ArrayOf(elem Type, n int) Type { return Type{Kind: ArrayKind, Size: n, Elem: &elem} }

// SliceOf returns the T[] type.
func SliceOf(elem Type) Type { return Type{Kind: SliceKind, Elem: &elem} }

// Tuple returns the (T1,...,Tn) type.
func Tuple(components ...Type) Type { return Type{Kind: TupleKind, Components: components} }

var (
	Uint8   = Uint(8)
	Uint256 = Uint(256)
	Int256  = Int(256)
	Bool    = Type{Kind: BoolKind}
	Address = Type{Kind: AddressKind}
	Bytes   = Type{Kind: BytesKind}
	String  = Type{Kind: StringKind}
	Bytes4  = FixedBytes(4)
	Bytes32 = FixedBytes(32)
)

// String returns the canonical type signature, e.g. "uint256" or "(bool,bytes)[]".
func (t Type) String() string {
	switch t.Kind {
	case UintKind:
		return "uint" + strconv.Itoa(t.Size)
	case IntKind:
		return "int" + strconv.Itoa(t.Size)
	case BoolKind:
		return "bool"
	case AddressKind:
		return "address"
	case FixedBytesKind:
		return "bytes" + strconv.Itoa(t.Size)
	case BytesKind:
		return "bytes"
	case StringKind:
		return "string"
	case ArrayKind:
		return t.Elem.String() + "[" + strconv.Itoa(t.Size) + "]"
	case SliceKind:
		return t.Elem.String() + "[]"
	case TupleKind:
		parts := make([]string, len(t.Components))
		for i, c := range t.Components {
			parts[i] = c.String()
		}
		return "(" + strings.Join(parts, ",") + ")"
	default:
		return "invalid"
	}
}

// IsDynamic reports whether the encoding of t has variable length.
func (t Type) IsDynamic() bool {
	switch t.Kind {
	case BytesKind, StringKind, SliceKind:
		return true
	case ArrayKind:
		return t.Elem.IsDynamic()
	case TupleKind:
		for _, c := range t.Components {
			if c.IsDynamic() {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// HeadSize is the number of bytes t occupies in the head of an enclosing
// tuple: 32 for scalars and dynamic types (an offset word), and the sum of
// member head sizes for static arrays and tuples.
func (t Type) HeadSize() int {
	if t.IsDynamic() {
		return 32
	}
	switch t.Kind {
	case ArrayKind:
		return t.Size * t.Elem.HeadSize()
	case TupleKind:
		size := 0
		for _, c := range t.Components {
			size += c.HeadSize()
		}
		return size
	default:
		return 32
	}
}

func (t Type) valid() bool {
	switch t.Kind {
	case UintKind, IntKind:
		return t.Size > 0 && t.Size <= 256 && t.Size%8 == 0
	case FixedBytesKind:
		return t.Size > 0 && t.Size <= 32
	case BoolKind, AddressKind, BytesKind, StringKind:
		return true
	case ArrayKind:
		// the element head is at most MaxHeadSize, so Size*HeadSize cannot
		// overflow; zero-size elements still count one word each
		return t.Elem != nil && t.Elem.valid() &&
			t.Size >= 0 && t.Size <= MaxHeadSize/max(t.Elem.HeadSize(), 32)
	case SliceKind:
		return t.Elem != nil && t.Elem.valid()
	case TupleKind:
		size := 0
		for _, c := range t.Components {
			if !c.valid() {
				return false
			}
			size += c.HeadSize()
			if size > MaxHeadSize {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// checkTypes reports ErrInvalidType for the first type in ts that is not
// valid. Types built by hand bypass ParseType, so Encode and Decode check
// them before sizing any buffer.
func checkTypes(ts []Type) error {
	size := 0
	for i, t := range ts {
		if !t.valid() {
			return fmt.Errorf("%w: element %d", ErrInvalidType, i)
		}
		size += t.HeadSize()
		if size > MaxHeadSize {
			return fmt.Errorf("%w: head size exceeds %d bytes", ErrInvalidType, MaxHeadSize)
		}
	}
	return nil
}

func repeatType(t Type, n int) []Type {
	out := make([]Type, n)
	for i := range out {
		out[i] = t
	}
	return out
}
