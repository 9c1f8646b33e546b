package abi

import (
	"fmt"

	"github.com/ABT-Tech-Limited/evmkit/types"
)

// Event is a contract log event.
type Event struct {
	Name      string
	Inputs    Arguments
	Anonymous bool
}

// ParseEvent parses a signature such as
// "Transfer(address indexed from, address indexed to, uint256 value)".
// A trailing "anonymous" marks an anonymous event.
func ParseEvent(sig string) (Event, error) {
	name, params, rest, err := splitSignature(sig)
	if err != nil {
		return Event{}, err
	}
	inputs, err := parseArguments(params, true)
	if err != nil {
		return Event{}, fmt.Errorf("%s: %w", name, err)
	}
	e := Event{Name: name, Inputs: inputs}
	switch rest {
	case "":
	case "anonymous":
		e.Anonymous = true
	default:
		return Event{}, fmt.Errorf("%w: unexpected %q in %q", ErrInvalidType, rest, sig)
	}
	return e, nil
}

// Signature returns the canonical signature, e.g. "Transfer(address,address,uint256)".
func (e Event) Signature() string {
	return e.Name + e.Inputs.Signature()
}

// Topic returns the event id, the first topic of non-anonymous logs.
func (e Event) Topic() types.Hash {
	return types.Keccak256Hash([]byte(e.Signature()))
}

// DecodeLog decodes a log's topics and data into values keyed by argument
// name. Indexed arguments come from topics: indexed values of elementary
// static types decode from the topic word, all others are returned as the
// topic types.Hash since only their hash is logged.
func (e Event) DecodeLog(topics []types.Hash, data []byte) (map[string]any, error) {
	indexed := 0
	for _, arg := range e.Inputs {
		if arg.Indexed {
			indexed++
		}
	}
	if !e.Anonymous {
		if len(topics) == 0 || topics[0] != e.Topic() {
			return nil, fmt.Errorf("%w: first topic is not %s", ErrSelectorMismatch, e.Signature())
		}
		topics = topics[1:]
	}
	if len(topics) != indexed {
		return nil, fmt.Errorf("%w: %s has %d indexed arguments, log has %d topics",
			ErrIncorrectParameterCount, e.Name, indexed, len(topics))
	}

	nonIndexed := e.Inputs.NonIndexed()
	if err := checkTypes(nonIndexed.Types()); err != nil {
		return nil, err
	}
	headSize := 0
	for _, arg := range nonIndexed {
		headSize += arg.Type.HeadSize()
	}
	if len(data) < headSize {
		return nil, fmt.Errorf("%w: %s needs %d data bytes, log has %d",
			ErrIncorrectParameterCount, e.Name, headSize, len(data))
	}
	values, err := nonIndexed.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s data: %w", e.Name, err)
	}

	out := make(map[string]any, len(e.Inputs))
	ti, di := 0, 0
	for i, arg := range e.Inputs {
		if !arg.Indexed {
			out[e.Inputs.key(i)] = values[di]
			di++
			continue
		}
		topic := topics[ti]
		ti++
		if !isElementaryStatic(arg.Type) {
			out[e.Inputs.key(i)] = topic
			continue
		}
		v, err := decodeValue(arg.Type, topic[:])
		if err != nil {
			return nil, fmt.Errorf("%s topic %d: %w", e.Name, ti, err)
		}
		out[e.Inputs.key(i)] = v
	}
	return out, nil
}

func isElementaryStatic(t Type) bool {
	switch t.Kind {
	case UintKind, IntKind, BoolKind, AddressKind, FixedBytesKind:
		return true
	default:
		return false
	}
}
