// Package tx models Ethereum transactions and produces their signing hashes
// and signed wire encodings.
//
// A Transaction moves through three states: unsigned with required fields
// missing, hashable once nonce and chain id (and, for EIP-712 transactions,
// the sender) are present, and signed once Assemble or Sign returns a
// Signed envelope. Hash-producing methods report the first state with a
// false second return value, never a zero hash.
//
// Supported envelopes:
//
//   - Legacy (EIP-155): RLP([nonce, gasPrice, gasLimit, to, value, data, v, r, s])
//   - Dynamic fee (EIP-1559, type 0x02)
//   - EIP-712 layer-2 (zkSync era, type 0x71)
package tx

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ABT-Tech-Limited/evmkit/keccak"
	"github.com/ABT-Tech-Limited/evmkit/rlp"
	"github.com/ABT-Tech-Limited/evmkit/types"
)

var (
	// ErrNotHashable is returned when signing a transaction that lacks its
	// nonce, chain id or (for EIP-712) sender.
	ErrNotHashable = errors.New("tx: nonce and chain id are required")
	// ErrUnsupportedType is returned for unknown transaction types.
	ErrUnsupportedType = errors.New("tx: unsupported transaction type")
	// ErrMalformed is returned when raw bytes are not a valid envelope.
	ErrMalformed = errors.New("tx: malformed transaction")
)

// Type is the EIP-2718 transaction type.
type Type byte

const (
	LegacyType     Type = 0x00
	DynamicFeeType Type = 0x02
	EIP712Type     Type = 0x71
)

func (t Type) String() string {
	switch t {
	case LegacyType:
		return "legacy"
	case DynamicFeeType:
		return "eip1559"
	case EIP712Type:
		return "eip712"
	default:
		return fmt.Sprintf("0x%02x", byte(t))
	}
}

// ParseType maps the names returned by Type.String back to a Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "", "legacy":
		return LegacyType, nil
	case "eip1559", "dynamic-fee":
		return DynamicFeeType, nil
	case "eip712", "zksync":
		return EIP712Type, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedType, s)
	}
}

// AccessTuple is an EIP-2930 access list entry.
type AccessTuple struct {
	Address     types.Address `json:"address"`
	StorageKeys []types.Hash  `json:"storageKeys"`
}

// AccessList is an EIP-2930 access list.
type AccessList []AccessTuple

// Transaction is an unsigned transaction. Optional fields are pointers;
// only Nonce and ChainID (and From for EIP712Type) gate hashing. Absent
// amounts and gas values encode as zero.
type Transaction struct {
	Type     Type
	From     *types.Address
	To       *types.Address // nil for contract creation
	Value    *big.Int
	Data     []byte
	Nonce    *uint64
	GasLimit *uint64
	ChainID  *big.Int

	// GasPrice is used by legacy transactions.
	GasPrice *big.Int
	// MaxFeePerGas and MaxPriorityFeePerGas are used by typed transactions.
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	AccessList           AccessList

	// EIP-712 layer-2 fields.
	GasPerPubdata  *big.Int
	FactoryDeps    [][]byte
	Paymaster      *types.Address
	PaymasterInput []byte
}

// Uint64 returns a pointer to v, for filling optional fields.
func Uint64(v uint64) *uint64 { return &v }

// Hashable reports whether every field required for a signing hash is set.
func (tx *Transaction) Hashable() bool {
	if tx.Nonce == nil || tx.ChainID == nil {
		return false
	}
	if tx.Type == EIP712Type && tx.From == nil {
		return false
	}
	return true
}

// SigningPreimage returns the bytes whose keccak256 is signed. For EIP-712
// transactions the preimage is 0x19 0x01 ‖ domainSeparator ‖ structHash.
func (tx *Transaction) SigningPreimage() ([]byte, bool) {
	if !tx.Hashable() {
		return nil, false
	}
	var (
		b   []byte
		err error
	)
	switch tx.Type {
	case LegacyType:
		b, err = rlp.Encode(append(tx.legacyFields(), rlp.Big(tx.ChainID), rlp.Uint(0), rlp.Uint(0)))
	case DynamicFeeType:
		b, err = tx.typedPayload(tx.dynamicFeeFields())
	case EIP712Type:
		b, err = tx.eip712Preimage()
	default:
		return nil, false
	}
	if err != nil {
		return nil, false
	}
	return b, true
}

// SigningHash returns keccak256 of the signing preimage.
func (tx *Transaction) SigningHash() (types.Hash, bool) {
	pre, ok := tx.SigningPreimage()
	if !ok {
		return types.Hash{}, false
	}
	return types.BytesToHash(keccak.Sum256(pre)), true
}

func (tx *Transaction) nonce() uint64 {
	if tx.Nonce == nil {
		return 0
	}
	return *tx.Nonce
}

func (tx *Transaction) gasLimit() uint64 {
	if tx.GasLimit == nil {
		return 0
	}
	return *tx.GasLimit
}

// legacyFields are the first six fields shared by the signing preimage and
// the signed envelope.
func (tx *Transaction) legacyFields() rlp.List {
	return rlp.List{
		rlp.Uint(tx.nonce()),
		rlp.Big(tx.GasPrice),
		rlp.Uint(tx.gasLimit()),
		rlpAddress(tx.To),
		rlp.Big(tx.Value),
		rlp.Bytes(tx.Data),
	}
}

func (tx *Transaction) dynamicFeeFields() rlp.List {
	return rlp.List{
		rlp.Big(tx.ChainID),
		rlp.Uint(tx.nonce()),
		rlp.Big(tx.MaxPriorityFeePerGas),
		rlp.Big(tx.MaxFeePerGas),
		rlp.Uint(tx.gasLimit()),
		rlpAddress(tx.To),
		rlp.Big(tx.Value),
		rlp.Bytes(tx.Data),
		rlpAccessList(tx.AccessList),
	}
}

// typedPayload returns type ‖ RLP(fields).
func (tx *Transaction) typedPayload(fields rlp.List) ([]byte, error) {
	payload, err := rlp.Encode(fields)
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(tx.Type)}, payload...), nil
}

// rlpAddress encodes an address for RLP. nil means contract creation (empty bytes).
func rlpAddress(addr *types.Address) rlp.Item {
	if addr == nil {
		return rlp.Bytes{}
	}
	return rlp.Bytes(addr.Bytes())
}

// rlpAccessList encodes an access list for RLP.
func rlpAccessList(accessList AccessList) rlp.List {
	list := make(rlp.List, len(accessList))
	for i, tuple := range accessList {
		keys := make(rlp.List, len(tuple.StorageKeys))
		for j, key := range tuple.StorageKeys {
			keys[j] = rlp.Bytes(key.Bytes())
		}
		list[i] = rlp.List{
			rlp.Bytes(tuple.Address.Bytes()),
			keys,
		}
	}
	return list
}
