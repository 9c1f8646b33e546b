package hexutil

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrIntegerOverflow is returned when an integer does not fit the requested width.
var ErrIntegerOverflow = errors.New("integer does not fit width")

// StripLeadingZeros removes leading 0x00 bytes but always keeps at least one
// byte, so zero is represented as a single 0x00.
func StripLeadingZeros(b []byte) []byte {
	for len(b) > 1 && b[0] == 0 {
		b = b[1:]
	}
	if len(b) == 0 {
		return []byte{0}
	}
	return b
}

// BigToBytes returns the minimal big-endian magnitude of x with at least one
// byte. A nil x is treated as zero.
func BigToBytes(x *big.Int) []byte {
	if x == nil {
		return []byte{0}
	}
	return StripLeadingZeros(x.Bytes())
}

// FromTwosComplement interprets b as a big-endian two's-complement integer.
// Empty input decodes to zero.
func FromTwosComplement(b []byte) *big.Int {
	x := new(big.Int).SetBytes(b)
	if len(b) > 0 && b[0]&0x80 != 0 {
		x.Sub(x, new(big.Int).Lsh(big.NewInt(1), uint(8*len(b))))
	}
	return x
}

// ToTwosComplement returns the two's-complement big-endian encoding of x,
// which FromTwosComplement reads back unchanged. Non-negative values use
// their minimal magnitude, with a leading 0x00 when the top bit is set.
// Negative values are encoded in ceil(bitlen/8)+1 bytes. A nil x is zero.
func ToTwosComplement(x *big.Int) []byte {
	if x == nil || x.Sign() >= 0 {
		b := BigToBytes(x)
		if b[0]&0x80 != 0 {
			b = append([]byte{0}, b...)
		}
		return b
	}
	width := (x.BitLen()+7)/8 + 1
	b, _ := PaddedTwosComplement(x, width)
	return b
}

// PaddedTwosComplement encodes x as a width-byte two's-complement integer.
func PaddedTwosComplement(x *big.Int, width int) ([]byte, error) {
	mod := new(big.Int).Lsh(big.NewInt(1), uint(8*width))
	half := new(big.Int).Rsh(mod, 1)
	if x.Cmp(half) >= 0 || x.Cmp(new(big.Int).Neg(half)) < 0 {
		return nil, fmt.Errorf("%w: %s in %d bytes", ErrIntegerOverflow, x, width)
	}
	v := new(big.Int).Set(x)
	if v.Sign() < 0 {
		v.Add(v, mod)
	}
	out := make([]byte, width)
	v.FillBytes(out)
	return out, nil
}

// LeftPad returns b left-padded with zeros to size bytes. Longer input is
// returned unchanged.
func LeftPad(b []byte, size int) []byte {
	if len(b) >= size {
		return b
	}
	out := make([]byte, size)
	copy(out[size-len(b):], b)
	return out
}

// RightPad returns b right-padded with zeros to size bytes.
func RightPad(b []byte, size int) []byte {
	if len(b) >= size {
		return b
	}
	out := make([]byte, size)
	copy(out, b)
	return out
}
