package tx

import (
	"fmt"
	"math/big"

	"github.com/ABT-Tech-Limited/evmkit/hexutil"
	"github.com/ABT-Tech-Limited/evmkit/keccak"
	"github.com/ABT-Tech-Limited/evmkit/rlp"
	"github.com/ABT-Tech-Limited/evmkit/signer"
	"github.com/ABT-Tech-Limited/evmkit/types"
)

// Signed is a signed transaction ready for eth_sendRawTransaction.
type Signed struct {
	// Raw is the serialized envelope.
	Raw []byte
	// Hash is the transaction hash, keccak256(Raw).
	Hash types.Hash
	// Signature holds the recovery id (0 or 1) in V.
	Signature signer.Signature
}

// RawHex returns Raw as 0x-prefixed hex.
func (s *Signed) RawHex() string {
	return hexutil.Encode(s.Raw)
}

// Sign hashes tx, signs it with the raw private key and assembles the
// signed envelope.
func (tx *Transaction) Sign(key []byte) (*Signed, error) {
	hash, ok := tx.SigningHash()
	if !ok {
		return nil, ErrNotHashable
	}
	sig, err := signer.Sign(hash[:], key)
	if err != nil {
		return nil, err
	}
	return tx.Assemble(sig)
}

// Assemble serializes tx with a signature produced over SigningHash. V may
// be in any encoding signer.NormalizeV accepts.
//
// Legacy transactions carry v = chainId*2 + 35 + recid (EIP-155); typed
// transactions carry the bare parity.
func (tx *Transaction) Assemble(sig signer.Signature) (*Signed, error) {
	if !tx.Hashable() {
		return nil, ErrNotHashable
	}
	recid, err := signer.NormalizeV(uint64(sig.V))
	if err != nil {
		return nil, err
	}
	if recid > 1 {
		return nil, fmt.Errorf("%w: recovery id %d", signer.ErrInvalidRecoveryID, recid)
	}
	sig.V = recid

	r := rlp.Big(new(big.Int).SetBytes(sig.R[:]))
	s := rlp.Big(new(big.Int).SetBytes(sig.S[:]))

	var raw []byte
	switch tx.Type {
	case LegacyType:
		v := new(big.Int).Mul(tx.ChainID, big.NewInt(2))
		v.Add(v, big.NewInt(35+int64(recid)))
		raw, err = rlp.Encode(append(tx.legacyFields(), rlp.Big(v), r, s))
	case DynamicFeeType:
		raw, err = tx.typedPayload(append(tx.dynamicFeeFields(), rlp.Uint(recid), r, s))
	case EIP712Type:
		raw, err = tx.eip712Envelope(sig, r, s)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, tx.Type)
	}
	if err != nil {
		return nil, err
	}
	return &Signed{
		Raw:       raw,
		Hash:      types.BytesToHash(keccak.Sum256(raw)),
		Signature: sig,
	}, nil
}

// eip712Envelope serializes 0x71 ‖ RLP([nonce, maxPriorityFeePerGas,
// maxFeePerGas, gasLimit, to, value, data, v, r, s, chainId, from,
// gasPerPubdata, factoryDeps, customSignature, paymasterParams]).
func (tx *Transaction) eip712Envelope(sig signer.Signature, r, s rlp.Item) ([]byte, error) {
	deps := make(rlp.List, len(tx.FactoryDeps))
	for i, code := range tx.FactoryDeps {
		deps[i] = rlp.Bytes(code)
	}
	paymaster := rlp.List{}
	if tx.Paymaster != nil {
		paymaster = rlp.List{rlp.Bytes(tx.Paymaster.Bytes()), rlp.Bytes(tx.PaymasterInput)}
	}
	custom := sig
	custom.V += 27

	return tx.typedPayload(rlp.List{
		rlp.Uint(tx.nonce()),
		rlp.Big(tx.MaxPriorityFeePerGas),
		rlp.Big(tx.MaxFeePerGas),
		rlp.Uint(tx.gasLimit()),
		rlpAddress(tx.To),
		rlp.Big(tx.Value),
		rlp.Bytes(tx.Data),
		rlp.Uint(sig.V),
		r,
		s,
		rlp.Big(tx.ChainID),
		rlpAddress(tx.From),
		rlp.Big(tx.gasPerPubdata()),
		deps,
		rlp.Bytes(custom.Bytes()),
		paymaster,
	})
}
