package abi

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ABT-Tech-Limited/evmkit/types"
)

// ABI is a parsed JSON contract interface.
type ABI struct {
	Constructor *Function
	Methods     map[string]Function
	Events      map[string]Event
	Errors      map[string]Error
}

type jsonArgument struct {
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Components []jsonArgument `json:"components,omitempty"`
	Indexed    bool           `json:"indexed,omitempty"`
}

type jsonEntry struct {
	Type            string         `json:"type"`
	Name            string         `json:"name"`
	Inputs          []jsonArgument `json:"inputs"`
	Outputs         []jsonArgument `json:"outputs"`
	StateMutability string         `json:"stateMutability,omitempty"`
	Anonymous       bool           `json:"anonymous,omitempty"`
	// Constant and Payable predate stateMutability.
	Constant bool `json:"constant,omitempty"`
	Payable  bool `json:"payable,omitempty"`
}

// JSON reads a standard JSON ABI.
func JSON(r io.Reader) (*ABI, error) {
	var entries []jsonEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("abi: decode json: %w", err)
	}
	a := &ABI{
		Methods: make(map[string]Function),
		Events:  make(map[string]Event),
		Errors:  make(map[string]Error),
	}
	for _, e := range entries {
		inputs, err := toArguments(e.Inputs)
		if err != nil {
			return nil, fmt.Errorf("%s %q inputs: %w", e.Type, e.Name, err)
		}
		switch e.Type {
		case "function", "":
			outputs, err := toArguments(e.Outputs)
			if err != nil {
				return nil, fmt.Errorf("function %q outputs: %w", e.Name, err)
			}
			a.Methods[uniqueName(a.Methods, e.Name)] = Function{
				Name: e.Name, Inputs: inputs, Outputs: outputs, StateMutability: mutability(e),
			}
		case "constructor":
			a.Constructor = &Function{Inputs: inputs, StateMutability: mutability(e)}
		case "event":
			a.Events[uniqueName(a.Events, e.Name)] = Event{
				Name: e.Name, Inputs: inputs, Anonymous: e.Anonymous,
			}
		case "error":
			a.Errors[uniqueName(a.Errors, e.Name)] = Error{
				Name: e.Name, Inputs: inputs,
			}
		case "fallback", "receive":
		default:
			return nil, fmt.Errorf("%w: entry type %q", ErrInvalidType, e.Type)
		}
	}
	return a, nil
}

// uniqueName disambiguates overloads as name, name0, name1, ...
func uniqueName[V any](m map[string]V, name string) string {
	if _, taken := m[name]; !taken {
		return name
	}
	for i := 0; ; i++ {
		n := fmt.Sprintf("%s%d", name, i)
		if _, taken := m[n]; !taken {
			return n
		}
	}
}

func mutability(e jsonEntry) string {
	switch {
	case e.StateMutability != "":
		return e.StateMutability
	case e.Constant:
		return "view"
	case e.Payable:
		return "payable"
	default:
		return "nonpayable"
	}
}

func toArguments(in []jsonArgument) (Arguments, error) {
	out := make(Arguments, 0, len(in))
	for _, arg := range in {
		t, err := toType(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, Argument{Name: arg.Name, Type: t, Indexed: arg.Indexed})
	}
	return out, nil
}

func toType(arg jsonArgument) (Type, error) {
	if !strings.HasPrefix(arg.Type, "tuple") {
		return ParseType(arg.Type)
	}
	base := Type{Kind: TupleKind}
	for _, c := range arg.Components {
		ct, err := toType(c)
		if err != nil {
			return Type{}, err
		}
		base.Components = append(base.Components, ct)
		base.ComponentNames = append(base.ComponentNames, c.Name)
	}
	p := &typeParser{src: arg.Type[len("tuple"):]}
	t, err := p.parseSuffixes(base)
	if err != nil {
		return Type{}, err
	}
	if p.pos != len(p.src) || !t.valid() {
		return Type{}, fmt.Errorf("%w: %q", ErrInvalidType, arg.Type)
	}
	return t, nil
}

// Method returns the method with the given name.
func (a *ABI) Method(name string) (Function, error) {
	f, ok := a.Methods[name]
	if !ok {
		return Function{}, fmt.Errorf("%w: method %q", ErrNotFound, name)
	}
	return f, nil
}

// MethodBySelector returns the method whose selector is sel.
func (a *ABI) MethodBySelector(sel [4]byte) (Function, error) {
	for _, f := range a.Methods {
		if f.Selector() == sel {
			return f, nil
		}
	}
	return Function{}, fmt.Errorf("%w: method %x", ErrNotFound, sel)
}

// EventByTopic returns the event whose id is topic.
func (a *ABI) EventByTopic(topic types.Hash) (Event, error) {
	for _, e := range a.Events {
		if !e.Anonymous && e.Topic() == topic {
			return e, nil
		}
	}
	return Event{}, fmt.Errorf("%w: event %s", ErrNotFound, topic.Hex())
}

// ErrorBySelector returns the custom error whose selector is sel. The
// built-in Error(string), Panic(uint256) and OffchainLookup errors are
// recognised even when the ABI does not declare them.
func (a *ABI) ErrorBySelector(sel [4]byte) (Error, error) {
	for _, e := range a.Errors {
		if e.Selector() == sel {
			return e, nil
		}
	}
	for _, e := range []Error{ErrorString, PanicError, OffchainLookupError} {
		if e.Selector() == sel {
			return e, nil
		}
	}
	return Error{}, fmt.Errorf("%w: error %x", ErrNotFound, sel)
}

// Pack encodes a call to the named method.
func (a *ABI) Pack(method string, args ...any) ([]byte, error) {
	f, err := a.Method(method)
	if err != nil {
		return nil, err
	}
	return f.EncodeCall(args...)
}

// Unpack decodes the return data of the named method.
func (a *ABI) Unpack(method string, data []byte) ([]any, error) {
	f, err := a.Method(method)
	if err != nil {
		return nil, err
	}
	return f.DecodeOutput(data)
}
