package signer

import (
	"fmt"

	"github.com/ABT-Tech-Limited/evmkit/hexutil"
)

const (
	// SignatureLength is the size of the flattened r || s || v form.
	SignatureLength = 65
	// CompactLength is the size of the r || s form without a recovery id.
	CompactLength = 64
)

// Signature is a recoverable secp256k1 signature. V holds the recovery id
// (0 or 1) unless changed with WithV.
type Signature struct {
	R [32]byte
	S [32]byte
	V byte
}

// ParseSignature parses a 65-byte r || s || v signature. V is kept as given;
// use NormalizeV to recover the recovery id from a chain encoding.
func ParseSignature(b []byte) (Signature, error) {
	if len(b) != SignatureLength {
		return Signature{}, fmt.Errorf("%w: signature must be %d bytes, got %d", ErrBadArguments, SignatureLength, len(b))
	}
	var sig Signature
	copy(sig.R[:], b[:32])
	copy(sig.S[:], b[32:64])
	sig.V = b[64]
	return sig, nil
}

// FromCompact builds a signature from a 64-byte r || s form and a separate
// recovery id.
func FromCompact(b []byte, recid byte) (Signature, error) {
	if len(b) != CompactLength {
		return Signature{}, fmt.Errorf("%w: compact signature must be %d bytes, got %d", ErrBadArguments, CompactLength, len(b))
	}
	if recid > 3 {
		return Signature{}, fmt.Errorf("%w: %d", ErrInvalidRecoveryID, recid)
	}
	var sig Signature
	copy(sig.R[:], b[:32])
	copy(sig.S[:], b[32:])
	sig.V = recid
	return sig, nil
}

// Bytes returns the 65-byte r || s || v form.
func (s Signature) Bytes() []byte {
	out := make([]byte, SignatureLength)
	copy(out[:32], s.R[:])
	copy(out[32:64], s.S[:])
	out[64] = s.V
	return out
}

// Compact returns the 64-byte r || s form and the recovery id.
func (s Signature) Compact() ([CompactLength]byte, byte) {
	var out [CompactLength]byte
	copy(out[:32], s.R[:])
	copy(out[32:], s.S[:])
	return out, s.V
}

// Hex returns the 0x-prefixed r || s || v form.
func (s Signature) Hex() string {
	return hexutil.Encode(s.Bytes())
}

// WithV returns a copy of s with V set to the given encoding, such as 27/28
// for personal messages. V values above 255 (EIP-155 with large chain ids)
// belong in the transaction envelope and cannot be stored here.
func (s Signature) WithV(v uint64) (Signature, error) {
	if v > 0xff {
		return Signature{}, fmt.Errorf("%w: v %d does not fit a byte", ErrInvalidRecoveryID, v)
	}
	s.V = byte(v)
	return s, nil
}

// NormalizeV maps any legal V encoding back to the recovery id: 0-3 raw,
// 27-30 (Ethereum message), 31-34 (compressed key flag) and 35-38
// (EIP-155 without chain offset).
func NormalizeV(v uint64) (byte, error) {
	switch {
	case v <= 3:
		return byte(v), nil
	case v >= 27 && v <= 30:
		return byte(v - 27), nil
	case v >= 31 && v <= 34:
		return byte(v - 31), nil
	case v >= 35 && v <= 38:
		return byte(v - 35), nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidRecoveryID, v)
	}
}
