package tx

import (
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/ABT-Tech-Limited/evmkit/eip712"
	"github.com/ABT-Tech-Limited/evmkit/types"
)

// DefaultGasPerPubdata is used when GasPerPubdata is not set.
var DefaultGasPerPubdata = big.NewInt(50000)

var zkSyncTypes = eip712.Types{
	eip712.DomainType: {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
	},
	"Transaction": {
		{Name: "txType", Type: "uint256"},
		{Name: "from", Type: "uint256"},
		{Name: "to", Type: "uint256"},
		{Name: "gasLimit", Type: "uint256"},
		{Name: "gasPerPubdataByteLimit", Type: "uint256"},
		{Name: "maxFeePerGas", Type: "uint256"},
		{Name: "maxPriorityFeePerGas", Type: "uint256"},
		{Name: "paymaster", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "value", Type: "uint256"},
		{Name: "data", Type: "bytes"},
		{Name: "factoryDeps", Type: "bytes32[]"},
		{Name: "paymasterInput", Type: "bytes"},
	},
}

// TypedData returns the EIP-712 structure signed for an EIP712Type
// transaction.
func (tx *Transaction) TypedData() (*eip712.TypedData, error) {
	deps := make([]any, len(tx.FactoryDeps))
	for i, code := range tx.FactoryDeps {
		h, err := HashBytecode(code)
		if err != nil {
			return nil, fmt.Errorf("factory dep %d: %w", i, err)
		}
		deps[i] = h
	}
	return &eip712.TypedData{
		Types:       zkSyncTypes,
		PrimaryType: "Transaction",
		Domain: map[string]any{
			"name":    "zkSync",
			"version": "2",
			"chainId": tx.ChainID,
		},
		Message: map[string]any{
			"txType":                 big.NewInt(int64(EIP712Type)),
			"from":                   addressAsUint(tx.From),
			"to":                     addressAsUint(tx.To),
			"gasLimit":               new(big.Int).SetUint64(tx.gasLimit()),
			"gasPerPubdataByteLimit": tx.gasPerPubdata(),
			"maxFeePerGas":           orZero(tx.MaxFeePerGas),
			"maxPriorityFeePerGas":   orZero(tx.MaxPriorityFeePerGas),
			"paymaster":              addressAsUint(tx.Paymaster),
			"nonce":                  new(big.Int).SetUint64(tx.nonce()),
			"value":                  orZero(tx.Value),
			"data":                   orEmpty(tx.Data),
			"factoryDeps":            deps,
			"paymasterInput":         orEmpty(tx.PaymasterInput),
		},
	}, nil
}

func (tx *Transaction) eip712Preimage() ([]byte, error) {
	td, err := tx.TypedData()
	if err != nil {
		return nil, err
	}
	ds, err := td.DomainSeparator()
	if err != nil {
		return nil, err
	}
	msg, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 66)
	out = append(out, 0x19, 0x01)
	out = append(out, ds[:]...)
	return append(out, msg[:]...), nil
}

func (tx *Transaction) gasPerPubdata() *big.Int {
	if tx.GasPerPubdata == nil {
		return DefaultGasPerPubdata
	}
	return tx.GasPerPubdata
}

// HashBytecode returns the versioned bytecode hash zkSync uses to
// reference factory dependencies: sha256(code) with the first two bytes
// replaced by the version (1, 0) and the next two by the length in words.
func HashBytecode(code []byte) (types.Hash, error) {
	if len(code)%32 != 0 {
		return types.Hash{}, fmt.Errorf("%w: bytecode length %d is not a multiple of 32", ErrMalformed, len(code))
	}
	words := len(code) / 32
	if words >= 1<<16 || words%2 == 0 {
		return types.Hash{}, fmt.Errorf("%w: bytecode must be an odd number of words below 2^16, got %d", ErrMalformed, words)
	}
	h := types.Hash(sha256.Sum256(code))
	h[0], h[1] = 1, 0
	h[2], h[3] = byte(words>>8), byte(words)
	return h, nil
}

func addressAsUint(a *types.Address) *big.Int {
	if a == nil {
		return new(big.Int)
	}
	return new(big.Int).SetBytes(a.Bytes())
}

func orZero(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return x
}

func orEmpty(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
