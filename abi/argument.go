package abi

import (
	"fmt"
	"strings"
)

// Argument is a named parameter of a function, event or error.
type Argument struct {
	Name    string
	Type    Type
	Indexed bool
}

// Arguments is an ordered parameter list.
type Arguments []Argument

// Types returns the parameter types in order.
func (a Arguments) Types() []Type {
	ts := make([]Type, len(a))
	for i, arg := range a {
		ts[i] = arg.Type
	}
	return ts
}

// Signature returns the canonical "(t1,t2,...)" list.
func (a Arguments) Signature() string {
	return Tuple(a.Types()...).String()
}

// Encode encodes values as the tuple of all arguments.
func (a Arguments) Encode(values ...any) ([]byte, error) {
	return Encode(a.Types(), values)
}

// Decode decodes data as the tuple of all arguments.
func (a Arguments) Decode(data []byte) ([]any, error) {
	return Decode(a.Types(), data)
}

// DecodeMap is like Decode but keys the values by argument name. Unnamed
// arguments are keyed "arg<index>".
func (a Arguments) DecodeMap(data []byte) (map[string]any, error) {
	values, err := a.Decode(data)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(values))
	for i, v := range values {
		out[a.key(i)] = v
	}
	return out, nil
}

// NonIndexed returns the arguments not marked indexed.
func (a Arguments) NonIndexed() Arguments {
	var out Arguments
	for _, arg := range a {
		if !arg.Indexed {
			out = append(out, arg)
		}
	}
	return out
}

func (a Arguments) key(i int) string {
	if a[i].Name != "" {
		return a[i].Name
	}
	return fmt.Sprintf("arg%d", i)
}

// parseArguments parses a human-readable parameter list such as
// "address indexed from, uint256 value". Data locations are ignored.
func parseArguments(list string, allowIndexed bool) (Arguments, error) {
	var out Arguments
	for _, part := range splitTopLevel(list) {
		p := &typeParser{src: strings.TrimSpace(part)}
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		arg := Argument{Type: t}
		for _, word := range strings.Fields(p.src[p.pos:]) {
			switch word {
			case "indexed":
				if !allowIndexed {
					return nil, fmt.Errorf("%w: indexed outside an event", ErrInvalidType)
				}
				arg.Indexed = true
			case "memory", "calldata", "storage", "payable":
			default:
				if arg.Name != "" {
					return nil, fmt.Errorf("%w: unexpected %q in %q", ErrInvalidType, word, part)
				}
				arg.Name = word
			}
		}
		out = append(out, arg)
	}
	return out, nil
}

// splitTopLevel splits s at commas that are not nested in parentheses.
func splitTopLevel(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// splitSignature splits "name(params) trailer" into its parts. The
// parameter list is matched up to its balancing parenthesis.
func splitSignature(sig string) (name, params, rest string, err error) {
	sig = strings.TrimSpace(sig)
	open := strings.IndexByte(sig, '(')
	if open <= 0 {
		return "", "", "", fmt.Errorf("%w: signature %q", ErrInvalidType, sig)
	}
	name = strings.TrimSpace(sig[:open])
	for _, kw := range []string{"function ", "event ", "error "} {
		name = strings.TrimSpace(strings.TrimPrefix(name, kw))
	}
	if name == "" || strings.ContainsAny(name, " \t") {
		return "", "", "", fmt.Errorf("%w: signature %q", ErrInvalidType, sig)
	}
	closeIdx := matchParen(sig, open)
	if closeIdx < 0 {
		return "", "", "", fmt.Errorf("%w: unbalanced parentheses in %q", ErrInvalidType, sig)
	}
	return name, sig[open+1 : closeIdx], strings.TrimSpace(sig[closeIdx+1:]), nil
}

func matchParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
