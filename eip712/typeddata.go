// Package eip712 hashes typed structured data per EIP-712, as signed by
// eth_signTypedData_v4.
package eip712

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ABT-Tech-Limited/evmkit/keccak"
	"github.com/ABT-Tech-Limited/evmkit/types"
)

var (
	// ErrUnknownType is returned when a struct type is referenced but not defined.
	ErrUnknownType = errors.New("eip712: unknown type")
	// ErrMissingField is returned when data lacks a field its type declares.
	ErrMissingField = errors.New("eip712: missing field")
	// ErrInvalidValue is returned when a value cannot be coerced to its field type.
	ErrInvalidValue = errors.New("eip712: invalid value")
)

// DomainType is the name of the domain separator struct.
const DomainType = "EIP712Domain"

// Field is one member of a struct type.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Types maps struct names to their ordered members.
type Types map[string][]Field

// TypedData is the eth_signTypedData_v4 payload.
type TypedData struct {
	Types       Types          `json:"types"`
	PrimaryType string         `json:"primaryType"`
	Domain      map[string]any `json:"domain"`
	Message     map[string]any `json:"message"`
}

// Parse decodes the JSON payload. Numbers are kept exact.
func Parse(b []byte) (*TypedData, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var td TypedData
	if err := dec.Decode(&td); err != nil {
		return nil, fmt.Errorf("eip712: decode json: %w", err)
	}
	if td.PrimaryType == "" {
		return nil, fmt.Errorf("%w: primaryType is empty", ErrUnknownType)
	}
	return &td, nil
}

// domainFieldOrder is the canonical member order of EIP712Domain.
var domainFieldOrder = []Field{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
	{Name: "salt", Type: "bytes32"},
}

// fields returns the members of name. An undeclared EIP712Domain is
// inferred from the keys present in the domain.
func (td *TypedData) fields(name string) ([]Field, error) {
	if fs, ok := td.Types[name]; ok {
		return fs, nil
	}
	if name == DomainType {
		var fs []Field
		for _, f := range domainFieldOrder {
			if _, ok := td.Domain[f.Name]; ok {
				fs = append(fs, f)
			}
		}
		return fs, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// baseType strips array suffixes: "Person[][2]" -> "Person".
func baseType(t string) string {
	if i := strings.IndexByte(t, '['); i >= 0 {
		return t[:i]
	}
	return t
}

func (td *TypedData) isStruct(name string) bool {
	if _, ok := td.Types[name]; ok {
		return true
	}
	return name == DomainType
}

// dependencies collects every struct type reachable from name, name included.
func (td *TypedData) dependencies(name string, found map[string]bool) error {
	if found[name] {
		return nil
	}
	fs, err := td.fields(name)
	if err != nil {
		return err
	}
	found[name] = true
	for _, f := range fs {
		if dep := baseType(f.Type); td.isStruct(dep) {
			if err := td.dependencies(dep, found); err != nil {
				return err
			}
		}
	}
	return nil
}

// EncodeType returns the type string of name: its own definition followed
// by the definitions of its dependencies sorted by name, e.g.
// "Mail(Person from,Person to,string contents)Person(string name,address wallet)".
func (td *TypedData) EncodeType(name string) (string, error) {
	found := make(map[string]bool)
	if err := td.dependencies(name, found); err != nil {
		return "", err
	}
	delete(found, name)
	deps := make([]string, 0, len(found))
	for dep := range found {
		deps = append(deps, dep)
	}
	sort.Strings(deps)

	var b strings.Builder
	for _, t := range append([]string{name}, deps...) {
		fs, err := td.fields(t)
		if err != nil {
			return "", err
		}
		b.WriteString(t)
		b.WriteByte('(')
		for i, f := range fs {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(f.Type)
			b.WriteByte(' ')
			b.WriteString(f.Name)
		}
		b.WriteByte(')')
	}
	return b.String(), nil
}

// TypeHash returns keccak256(EncodeType(name)).
func (td *TypedData) TypeHash(name string) (types.Hash, error) {
	enc, err := td.EncodeType(name)
	if err != nil {
		return types.Hash{}, err
	}
	return types.Keccak256Hash([]byte(enc)), nil
}

// HashStruct returns keccak256(typeHash ‖ encodeData(data)).
func (td *TypedData) HashStruct(name string, data map[string]any) (types.Hash, error) {
	enc, err := td.encodeData(name, data)
	if err != nil {
		return types.Hash{}, err
	}
	return types.Keccak256Hash(enc), nil
}

// DomainSeparator returns HashStruct(EIP712Domain, Domain).
func (td *TypedData) DomainSeparator() (types.Hash, error) {
	return td.HashStruct(DomainType, td.Domain)
}

// Hash returns the digest to sign:
// keccak256(0x19 0x01 ‖ domainSeparator ‖ hashStruct(primaryType, message)).
// When the primary type is the domain itself the message hash is omitted.
func (td *TypedData) Hash() (types.Hash, error) {
	ds, err := td.DomainSeparator()
	if err != nil {
		return types.Hash{}, fmt.Errorf("domain: %w", err)
	}
	if td.PrimaryType == DomainType {
		return types.Keccak256Hash([]byte{0x19, 0x01}, ds[:]), nil
	}
	msg, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return types.Hash{}, fmt.Errorf("%s: %w", td.PrimaryType, err)
	}
	return types.Keccak256Hash([]byte{0x19, 0x01}, ds[:], msg[:]), nil
}

func (td *TypedData) encodeData(name string, data map[string]any) ([]byte, error) {
	fs, err := td.fields(name)
	if err != nil {
		return nil, err
	}
	typeHash, err := td.TypeHash(name)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 32*(len(fs)+1))
	out = append(out, typeHash[:]...)
	for _, f := range fs {
		v, ok := data[f.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrMissingField, name, f.Name)
		}
		word, err := td.encodeField(f.Type, v)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", name, f.Name, err)
		}
		out = append(out, word...)
	}
	return out, nil
}

// encodeField returns the 32-byte encoding of one member value.
func (td *TypedData) encodeField(typ string, v any) ([]byte, error) {
	if strings.HasSuffix(typ, "]") {
		elemType := typ[:strings.LastIndexByte(typ, '[')]
		elems, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: %T for %s", ErrInvalidValue, v, typ)
		}
		var concat []byte
		for i, e := range elems {
			word, err := td.encodeField(elemType, e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			concat = append(concat, word...)
		}
		return keccak.Sum256(concat), nil
	}

	if td.isStruct(typ) {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %T for struct %s", ErrInvalidValue, v, typ)
		}
		h, err := td.HashStruct(typ, m)
		if err != nil {
			return nil, err
		}
		return h[:], nil
	}

	switch typ {
	case "string":
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %T for string", ErrInvalidValue, v)
		}
		return keccak.Sum256([]byte(s)), nil
	case "bytes":
		b, err := toBytes(v)
		if err != nil {
			return nil, err
		}
		return keccak.Sum256(b), nil
	}
	return encodeAtomic(typ, v)
}
