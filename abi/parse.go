package abi

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseType parses a canonical Solidity type string such as "uint256",
// "bytes32[]", "address[3][]" or "(uint256,string)[]".
// Bare "uint" and "int" mean 256 bits.
func ParseType(s string) (Type, error) {
	p := &typeParser{src: strings.TrimSpace(s)}
	t, err := p.parseType()
	if err != nil {
		return Type{}, err
	}
	if p.pos != len(p.src) {
		return Type{}, fmt.Errorf("%w: unexpected %q in %q", ErrInvalidType, p.src[p.pos:], s)
	}
	return t, nil
}

// MustParseType is like ParseType but panics on error.
func MustParseType(s string) Type {
	t, err := ParseType(s)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseTypes parses a comma-separated list of types, as in a parameter list.
func ParseTypes(list string) ([]Type, error) {
	list = strings.TrimSpace(list)
	if list == "" {
		return nil, nil
	}
	t, err := ParseType("(" + list + ")")
	if err != nil {
		return nil, err
	}
	return t.Components, nil
}

type typeParser struct {
	src string
	pos int
}

func (p *typeParser) skipSpaces() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) parseType() (Type, error) {
	var t Type
	var err error
	p.skipSpaces()
	if p.pos < len(p.src) && p.src[p.pos] == '(' {
		t, err = p.parseTuple()
	} else {
		t, err = p.parseElementary()
	}
	if err != nil {
		return Type{}, err
	}
	return p.parseSuffixes(t)
}

// parseSuffixes applies trailing "[]" and "[N]" suffixes to t.
func (p *typeParser) parseSuffixes(t Type) (Type, error) {
	for p.pos < len(p.src) && p.src[p.pos] == '[' {
		end := strings.IndexByte(p.src[p.pos:], ']')
		if end < 0 {
			return Type{}, fmt.Errorf("%w: unterminated array in %q", ErrInvalidType, p.src)
		}
		size := p.src[p.pos+1 : p.pos+end]
		p.pos += end + 1
		if size == "" {
			t = SliceOf(t)
			continue
		}
		n, err := strconv.Atoi(size)
		if err != nil || n < 0 || n > MaxHeadSize {
			return Type{}, fmt.Errorf("%w: array length %q", ErrInvalidType, size)
		}
		t = ArrayOf(t, n)
		if !t.valid() {
			return Type{}, fmt.Errorf("%w: %s exceeds %d head bytes", ErrInvalidType, t, MaxHeadSize)
		}
	}
	return t, nil
}

func (p *typeParser) parseTuple() (Type, error) {
	p.pos++ // '('
	var components []Type
	if p.pos < len(p.src) && p.src[p.pos] == ')' {
		p.pos++
		return Tuple(), nil
	}
	for {
		c, err := p.parseType()
		if err != nil {
			return Type{}, err
		}
		components = append(components, c)
		p.skipSpaces()
		if p.pos >= len(p.src) {
			return Type{}, fmt.Errorf("%w: unterminated tuple in %q", ErrInvalidType, p.src)
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case ')':
			p.pos++
			t := Tuple(components...)
			if !t.valid() {
				return Type{}, fmt.Errorf("%w: tuple exceeds %d head bytes", ErrInvalidType, MaxHeadSize)
			}
			return t, nil
		default:
			return Type{}, fmt.Errorf("%w: unexpected %q in tuple", ErrInvalidType, p.src[p.pos])
		}
	}
}

func (p *typeParser) parseElementary() (Type, error) {
	start := p.pos
	for p.pos < len(p.src) && isIdentChar(p.src[p.pos]) {
		p.pos++
	}
	name := p.src[start:p.pos]
	if name == "" {
		return Type{}, fmt.Errorf("%w: empty type in %q", ErrInvalidType, p.src)
	}
	return parseElementaryName(name)
}

func parseElementaryName(name string) (Type, error) {
	switch name {
	case "address":
		return Address, nil
	case "bool":
		return Bool, nil
	case "string":
		return String, nil
	case "bytes":
		return Bytes, nil
	case "uint":
		return Uint256, nil
	case "int":
		return Int256, nil
	}

	var t Type
	var digits string
	switch {
	case strings.HasPrefix(name, "uint"):
		t, digits = Type{Kind: UintKind}, name[4:]
	case strings.HasPrefix(name, "int"):
		t, digits = Type{Kind: IntKind}, name[3:]
	case strings.HasPrefix(name, "bytes"):
		t, digits = Type{Kind: FixedBytesKind}, name[5:]
	default:
		return Type{}, fmt.Errorf("%w: %q", ErrInvalidType, name)
	}
	n, err := strconv.Atoi(digits)
	if err != nil || strings.HasPrefix(digits, "0") {
		return Type{}, fmt.Errorf("%w: %q", ErrInvalidType, name)
	}
	t.Size = n
	if !t.valid() {
		return Type{}, fmt.Errorf("%w: %q", ErrInvalidType, name)
	}
	return t, nil
}

func isIdentChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'
}
