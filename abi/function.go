package abi

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ABT-Tech-Limited/evmkit/keccak"
)

// Function is a contract method.
type Function struct {
	Name            string
	Inputs          Arguments
	Outputs         Arguments
	StateMutability string
}

// NewFunction returns an unnamed-parameter function over the given input types.
func NewFunction(name string, inputs ...Type) Function {
	f := Function{Name: name}
	for _, t := range inputs {
		f.Inputs = append(f.Inputs, Argument{Type: t})
	}
	return f
}

// ParseFunction parses a human-readable signature such as
// "transfer(address,uint256)", "balanceOf(address owner) view returns (uint256)".
func ParseFunction(sig string) (Function, error) {
	name, params, rest, err := splitSignature(sig)
	if err != nil {
		return Function{}, err
	}
	inputs, err := parseArguments(params, false)
	if err != nil {
		return Function{}, fmt.Errorf("%s inputs: %w", name, err)
	}
	f := Function{Name: name, Inputs: inputs}

	for rest != "" {
		word := rest
		if i := strings.IndexAny(rest, " ("); i >= 0 {
			word = rest[:i]
		}
		switch word {
		case "returns":
			rest = strings.TrimSpace(strings.TrimPrefix(rest, "returns"))
			if !strings.HasPrefix(rest, "(") {
				return Function{}, fmt.Errorf("%w: returns without a list in %q", ErrInvalidType, sig)
			}
			closeIdx := matchParen(rest, 0)
			if closeIdx < 0 {
				return Function{}, fmt.Errorf("%w: unbalanced parentheses in %q", ErrInvalidType, sig)
			}
			if f.Outputs, err = parseArguments(rest[1:closeIdx], false); err != nil {
				return Function{}, fmt.Errorf("%s outputs: %w", name, err)
			}
			rest = strings.TrimSpace(rest[closeIdx+1:])
		case "view", "pure", "payable", "nonpayable":
			f.StateMutability = word
			rest = strings.TrimSpace(rest[len(word):])
		case "external", "public":
			rest = strings.TrimSpace(rest[len(word):])
		default:
			return Function{}, fmt.Errorf("%w: unexpected %q in %q", ErrInvalidType, word, sig)
		}
	}
	return f, nil
}

// MustParseFunction is like ParseFunction but panics on error.
func MustParseFunction(sig string) Function {
	f, err := ParseFunction(sig)
	if err != nil {
		panic(err)
	}
	return f
}

// Signature returns the canonical signature, e.g. "transfer(address,uint256)".
func (f Function) Signature() string {
	return f.Name + f.Inputs.Signature()
}

// Selector returns the 4-byte method id.
func (f Function) Selector() [4]byte {
	return keccak.Selector(f.Signature())
}

// EncodeCall returns selector ‖ encoded arguments.
func (f Function) EncodeCall(args ...any) ([]byte, error) {
	enc, err := f.Inputs.Encode(args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Signature(), err)
	}
	sel := f.Selector()
	return append(sel[:], enc...), nil
}

// DecodeInput decodes calldata produced by EncodeCall.
func (f Function) DecodeInput(calldata []byte) ([]any, error) {
	sel := f.Selector()
	if len(calldata) < 4 || !bytes.Equal(calldata[:4], sel[:]) {
		return nil, fmt.Errorf("%w: want %x for %s", ErrSelectorMismatch, sel, f.Signature())
	}
	return f.Inputs.Decode(calldata[4:])
}

// DecodeOutput decodes return data.
func (f Function) DecodeOutput(data []byte) ([]any, error) {
	return f.Outputs.Decode(data)
}
