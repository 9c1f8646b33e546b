package hexutil

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// Bytes marshals as a 0x-prefixed hex JSON string.
type Bytes []byte

// MarshalText implements encoding.TextMarshaler.
func (b Bytes) MarshalText() ([]byte, error) {
	return []byte(Encode(b)), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bytes) UnmarshalJSON(input []byte) error {
	var s string
	if err := json.Unmarshal(input, &s); err != nil {
		return fmt.Errorf("%w: expected JSON string", ErrMalformedHex)
	}
	return b.UnmarshalText([]byte(s))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Bytes) UnmarshalText(input []byte) error {
	if !Has0xPrefix(string(input)) {
		return fmt.Errorf("%w: missing 0x prefix", ErrMalformedHex)
	}
	dec, err := Decode(string(input))
	if err != nil {
		return err
	}
	*b = dec
	return nil
}

// String returns the hex encoding of b.
func (b Bytes) String() string {
	return Encode(b)
}

// Big marshals as a JSON-RPC hex quantity.
type Big big.Int

// MarshalText implements encoding.TextMarshaler.
func (b Big) MarshalText() ([]byte, error) {
	return []byte(EncodeBig((*big.Int)(&b))), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Big) UnmarshalJSON(input []byte) error {
	var s string
	if err := json.Unmarshal(input, &s); err != nil {
		return fmt.Errorf("%w: expected JSON string", ErrMalformedHex)
	}
	return b.UnmarshalText([]byte(s))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Big) UnmarshalText(input []byte) error {
	x, err := DecodeBig(string(input))
	if err != nil {
		return err
	}
	*b = Big(*x)
	return nil
}

// ToInt converts b to a *big.Int.
func (b *Big) ToInt() *big.Int {
	return (*big.Int)(b)
}

// Uint64 marshals as a JSON-RPC hex quantity.
type Uint64 uint64

// MarshalText implements encoding.TextMarshaler.
func (u Uint64) MarshalText() ([]byte, error) {
	return []byte(EncodeUint64(uint64(u))), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *Uint64) UnmarshalJSON(input []byte) error {
	var s string
	if err := json.Unmarshal(input, &s); err != nil {
		return fmt.Errorf("%w: expected JSON string", ErrMalformedHex)
	}
	return u.UnmarshalText([]byte(s))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *Uint64) UnmarshalText(input []byte) error {
	v, err := DecodeUint64(string(input))
	if err != nil {
		return err
	}
	*u = Uint64(v)
	return nil
}
