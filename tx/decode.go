package tx

import (
	"fmt"
	"math/big"

	"github.com/ABT-Tech-Limited/evmkit/keccak"
	"github.com/ABT-Tech-Limited/evmkit/rlp"
	"github.com/ABT-Tech-Limited/evmkit/signer"
	"github.com/ABT-Tech-Limited/evmkit/types"
)

// Decode parses a signed legacy or dynamic fee envelope. The returned
// signature carries the recovery id in V. Pre-EIP-155 legacy transactions
// (v of 27 or 28) decode with a nil ChainID.
func Decode(raw []byte) (*Transaction, signer.Signature, error) {
	if len(raw) == 0 {
		return nil, signer.Signature{}, fmt.Errorf("%w: empty input", ErrMalformed)
	}
	if raw[0] >= 0xc0 {
		return decodeLegacy(raw)
	}
	switch Type(raw[0]) {
	case DynamicFeeType:
		return decodeDynamicFee(raw[1:])
	default:
		return nil, signer.Signature{}, fmt.Errorf("%w: 0x%02x", ErrUnsupportedType, raw[0])
	}
}

// Sender recovers the address that signed raw.
func Sender(raw []byte) (types.Address, error) {
	tx, sig, err := Decode(raw)
	if err != nil {
		return types.Address{}, err
	}
	var hash []byte
	if tx.Type == LegacyType && tx.ChainID == nil {
		pre, err := rlp.Encode(tx.legacyFields())
		if err != nil {
			return types.Address{}, err
		}
		hash = keccak.Sum256(pre)
	} else {
		h, ok := tx.SigningHash()
		if !ok {
			return types.Address{}, ErrNotHashable
		}
		hash = h[:]
	}
	return signer.Recover(hash, sig.Bytes())
}

func decodeList(b []byte, n int) ([]rlp.Value, error) {
	v, err := rlp.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	fields, err := v.AsList()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(fields) != n {
		return nil, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformed, n, len(fields))
	}
	return fields, nil
}

// fieldReader decodes successive fields and keeps the first error.
type fieldReader struct {
	fields []rlp.Value
	pos    int
	err    error
}

func (r *fieldReader) next() rlp.Value {
	v := r.fields[r.pos]
	r.pos++
	return v
}

func (r *fieldReader) fail(err error) {
	if r.err == nil && err != nil {
		r.err = fmt.Errorf("%w: field %d: %v", ErrMalformed, r.pos-1, err)
	}
}

func (r *fieldReader) uint64() *uint64 {
	u, err := r.next().AsUint64()
	r.fail(err)
	return &u
}

func (r *fieldReader) big() *big.Int {
	x, err := r.next().AsBig()
	r.fail(err)
	return x
}

func (r *fieldReader) bytes() []byte {
	b, err := r.next().AsBytes()
	r.fail(err)
	return b
}

func (r *fieldReader) address() *types.Address {
	b := r.bytes()
	switch len(b) {
	case 0:
		return nil
	case types.AddressLength:
		a := types.BytesToAddress(b)
		return &a
	}
	r.fail(fmt.Errorf("address of %d bytes", len(b)))
	return nil
}

func (r *fieldReader) word() [32]byte {
	var w [32]byte
	b := r.bytes()
	if len(b) > 32 {
		r.fail(fmt.Errorf("%d-byte signature value", len(b)))
		return w
	}
	copy(w[32-len(b):], b)
	return w
}

func (r *fieldReader) accessList() AccessList {
	tuples, err := r.next().AsList()
	if err != nil {
		r.fail(err)
		return nil
	}
	var list AccessList
	for _, t := range tuples {
		pair, err := t.AsList()
		if err == nil && len(pair) != 2 {
			err = fmt.Errorf("access tuple of %d items", len(pair))
		}
		if err != nil {
			r.fail(err)
			return nil
		}
		sub := &fieldReader{fields: pair}
		addr := sub.address()
		keys, err := sub.next().AsList()
		if err == nil && addr == nil {
			err = fmt.Errorf("access tuple without address")
		}
		if err != nil {
			r.fail(err)
			return nil
		}
		tuple := AccessTuple{Address: *addr, StorageKeys: make([]types.Hash, len(keys))}
		for i, k := range keys {
			b, err := k.AsBytes()
			if err == nil && len(b) != types.HashLength {
				err = fmt.Errorf("storage key of %d bytes", len(b))
			}
			if err != nil {
				r.fail(err)
				return nil
			}
			tuple.StorageKeys[i] = types.BytesToHash(b)
		}
		r.fail(sub.err)
		list = append(list, tuple)
	}
	return list
}

func decodeLegacy(raw []byte) (*Transaction, signer.Signature, error) {
	fields, err := decodeList(raw, 9)
	if err != nil {
		return nil, signer.Signature{}, err
	}
	r := &fieldReader{fields: fields}
	tx := &Transaction{
		Type:     LegacyType,
		Nonce:    r.uint64(),
		GasPrice: r.big(),
		GasLimit: r.uint64(),
		To:       r.address(),
		Value:    r.big(),
		Data:     r.bytes(),
	}
	v := r.big()
	sig := signer.Signature{R: r.word(), S: r.word()}
	if r.err != nil {
		return nil, signer.Signature{}, r.err
	}

	switch {
	case v.Cmp(big.NewInt(27)) == 0 || v.Cmp(big.NewInt(28)) == 0:
		sig.V = byte(v.Uint64() - 27)
	case v.Cmp(big.NewInt(35)) >= 0:
		x := new(big.Int).Sub(v, big.NewInt(35))
		sig.V = byte(x.Bit(0))
		tx.ChainID = x.Rsh(x, 1)
	default:
		return nil, signer.Signature{}, fmt.Errorf("%w: v %s", signer.ErrInvalidRecoveryID, v)
	}
	return tx, sig, nil
}

func decodeDynamicFee(payload []byte) (*Transaction, signer.Signature, error) {
	fields, err := decodeList(payload, 12)
	if err != nil {
		return nil, signer.Signature{}, err
	}
	r := &fieldReader{fields: fields}
	tx := &Transaction{
		Type:                 DynamicFeeType,
		ChainID:              r.big(),
		Nonce:                r.uint64(),
		MaxPriorityFeePerGas: r.big(),
		MaxFeePerGas:         r.big(),
		GasLimit:             r.uint64(),
		To:                   r.address(),
		Value:                r.big(),
		Data:                 r.bytes(),
		AccessList:           r.accessList(),
	}
	v := r.uint64()
	sig := signer.Signature{R: r.word(), S: r.word()}
	if r.err != nil {
		return nil, signer.Signature{}, r.err
	}
	if *v > 1 {
		return nil, signer.Signature{}, fmt.Errorf("%w: y parity %d", signer.ErrInvalidRecoveryID, *v)
	}
	sig.V = byte(*v)
	return tx, sig, nil
}
