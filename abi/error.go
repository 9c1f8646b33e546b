package abi

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/ABT-Tech-Limited/evmkit/keccak"
	"github.com/ABT-Tech-Limited/evmkit/types"
)

// Error is a custom Solidity error. Revert data is selector ‖ encoded inputs,
// the same layout as a function call.
type Error struct {
	Name   string
	Inputs Arguments
}

// ParseError parses a signature such as "InsufficientBalance(uint256 have, uint256 want)".
func ParseError(sig string) (Error, error) {
	name, params, rest, err := splitSignature(sig)
	if err != nil {
		return Error{}, err
	}
	if rest != "" {
		return Error{}, fmt.Errorf("%w: unexpected %q in %q", ErrInvalidType, rest, sig)
	}
	inputs, err := parseArguments(params, false)
	if err != nil {
		return Error{}, fmt.Errorf("%s: %w", name, err)
	}
	return Error{Name: name, Inputs: inputs}, nil
}

func (e Error) Signature() string { return e.Name + e.Inputs.Signature() }

func (e Error) Selector() [4]byte { return keccak.Selector(e.Signature()) }

// Encode builds revert data for the error.
func (e Error) Encode(args ...any) ([]byte, error) {
	enc, err := e.Inputs.Encode(args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Signature(), err)
	}
	sel := e.Selector()
	return append(sel[:], enc...), nil
}

// Decode decodes revert data produced by the error.
func (e Error) Decode(data []byte) ([]any, error) {
	sel := e.Selector()
	if len(data) < 4 || !bytes.Equal(data[:4], sel[:]) {
		return nil, fmt.Errorf("%w: want %x for %s", ErrSelectorMismatch, sel, e.Signature())
	}
	return e.Inputs.Decode(data[4:])
}

var (
	// ErrorString is the Error(string) revert raised by require and revert.
	ErrorString = Error{Name: "Error", Inputs: Arguments{{Name: "message", Type: String}}}
	// PanicError is the Panic(uint256) revert raised by failed assertions
	// and checked arithmetic.
	PanicError = Error{Name: "Panic", Inputs: Arguments{{Name: "code", Type: Uint256}}}
	// OffchainLookupError is the EIP-3668 revert requesting an offchain
	// lookup.
	OffchainLookupError = Error{Name: "OffchainLookup", Inputs: Arguments{
		{Name: "sender", Type: Address},
		{Name: "urls", Type: SliceOf(String)},
		{Name: "callData", Type: Bytes},
		{Name: "callbackFunction", Type: Bytes4},
		{Name: "extraData", Type: Bytes},
	}}
)

var panicReasons = map[uint64]string{
	0x00: "generic panic",
	0x01: "assert(false)",
	0x11: "arithmetic underflow or overflow",
	0x12: "division or modulo by zero",
	0x21: "enum overflow",
	0x22: "invalid encoded storage byte array accessed",
	0x31: "out-of-bounds array access; popping on an empty array",
	0x32: "out-of-bounds access of an array or bytesN",
	0x41: "out of memory",
	0x51: "uninitialized function",
}

// UnpackRevert returns a readable reason for Error(string) and
// Panic(uint256) revert data. Other data fails with ErrSelectorMismatch.
func UnpackRevert(data []byte) (string, error) {
	if values, err := ErrorString.Decode(data); err == nil {
		return values[0].(string), nil
	} else if !errors.Is(err, ErrSelectorMismatch) {
		return "", err
	}
	values, err := PanicError.Decode(data)
	if err != nil {
		return "", err
	}
	code := values[0].(*big.Int)
	if code.IsUint64() {
		if reason, ok := panicReasons[code.Uint64()]; ok {
			return fmt.Sprintf("panic: %s (0x%x)", reason, code), nil
		}
	}
	return fmt.Sprintf("panic: unknown code 0x%x", code), nil
}

// RevertError is a reverted call. Reason is set when the data is a
// standard Error(string) or Panic(uint256) revert.
type RevertError struct {
	Data   []byte
	Reason string
}

// NewRevertError wraps revert data, decoding a reason when possible.
func NewRevertError(data []byte) *RevertError {
	reason, _ := UnpackRevert(data)
	return &RevertError{Data: data, Reason: reason}
}

func (e *RevertError) Error() string {
	if e.Reason != "" {
		return "execution reverted: " + e.Reason
	}
	if len(e.Data) >= 4 {
		return fmt.Sprintf("execution reverted: custom error 0x%x", e.Data[:4])
	}
	return "execution reverted"
}

// Selector returns the first four bytes of the revert data, or false if
// there are fewer.
func (e *RevertError) Selector() ([4]byte, bool) {
	var sel [4]byte
	if len(e.Data) < 4 {
		return sel, false
	}
	copy(sel[:], e.Data)
	return sel, true
}

// OffchainLookup is a decoded OffchainLookup revert.
type OffchainLookup struct {
	Sender           types.Address
	URLs             []string
	CallData         []byte
	CallbackFunction [4]byte
	ExtraData        []byte
}

// DecodeOffchainLookup decodes OffchainLookup revert data.
func DecodeOffchainLookup(data []byte) (*OffchainLookup, error) {
	values, err := OffchainLookupError.Decode(data)
	if err != nil {
		return nil, err
	}
	l := &OffchainLookup{
		Sender:    values[0].(types.Address),
		CallData:  values[2].([]byte),
		ExtraData: values[4].([]byte),
	}
	for _, u := range values[1].([]any) {
		l.URLs = append(l.URLs, u.(string))
	}
	copy(l.CallbackFunction[:], values[3].([]byte))
	return l, nil
}

// Encode builds the revert data for l.
func (l *OffchainLookup) Encode() ([]byte, error) {
	return OffchainLookupError.Encode(l.Sender, l.URLs, l.CallData, l.CallbackFunction, l.ExtraData)
}
