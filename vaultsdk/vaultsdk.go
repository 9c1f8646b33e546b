package vaultsdk

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ABT-Tech-Limited/evmkit/hexutil"
	"github.com/ABT-Tech-Limited/evmkit/signer"
	"github.com/ABT-Tech-Limited/evmkit/tx"
)

// Key represents the public information about an account key.
type Key struct {
	// Name is the user-provided name.
	Name string `json:"name"`

	// Address is the EIP-55 account address.
	Address string `json:"address"`

	// PublicKey is the hex-encoded uncompressed public key ("0x04...").
	PublicKey string `json:"public_key"`

	// Source is "generated", "imported" or "keystore".
	Source string `json:"source"`

	// CreatedAt is the key creation timestamp in RFC3339 format.
	CreatedAt string `json:"created_at"`

	// Metadata is optional user-defined key-value metadata.
	Metadata map[string]string `json:"metadata"`
}

// CreateKeyRequest contains the parameters for creating or importing a key.
// At most one of PrivateKey and Keystore may be set; with neither a new key
// is generated.
type CreateKeyRequest struct {
	// Name is a unique name for the key (required).
	Name string `json:"name"`

	// PrivateKey is a hex private key to import.
	PrivateKey string `json:"private_key,omitempty"`

	// Keystore is a keystore v3 JSON document to import with Password.
	Keystore string `json:"keystore,omitempty"`
	Password string `json:"password,omitempty"`

	// Metadata is optional key-value metadata (max 16 keys).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SignRequest contains the parameters for signing data.
type SignRequest struct {
	// Data is the payload (required).
	Data string `json:"data"`

	// Type is "hash" (default, a 32-byte digest), "message" (EIP-191) or
	// "typed_data" (EIP-712 JSON).
	Type string `json:"type,omitempty"`

	// Encoding of Data: "hex" (default), "base64" or "utf8".
	Encoding string `json:"encoding,omitempty"`

	// OutputFormat is "hex" (default) or "base64".
	OutputFormat string `json:"output_format,omitempty"`
}

// SignResponse contains the signing result.
type SignResponse struct {
	// Signature is R || S || V in the requested format.
	Signature string `json:"signature"`

	R string `json:"r"`
	S string `json:"s"`
	// V is the recovery id for hashes and 27/28 for messages and typed data.
	V int `json:"v"`

	// Address of the signing key.
	Address string `json:"address"`
}

// TransactionRequest carries a transaction in the engine's field format.
// Amounts are decimal or 0x hex strings, byte fields are hex.
type TransactionRequest struct {
	// TxType is "legacy", "eip1559" or "eip712".
	TxType   string `json:"tx_type"`
	ChainID  int64  `json:"chain_id"`
	Nonce    uint64 `json:"nonce"`
	GasLimit uint64 `json:"gas_limit"`

	// From must match the signing key. It is required for eip712.
	From  string `json:"from,omitempty"`
	To    string `json:"to,omitempty"`
	Value string `json:"value,omitempty"`
	Data  string `json:"data,omitempty"`

	GasPrice             string `json:"gas_price,omitempty"`
	MaxFeePerGas         string `json:"max_fee_per_gas,omitempty"`
	MaxPriorityFeePerGas string `json:"max_priority_fee_per_gas,omitempty"`
	// AccessList is JSON: [{"address":"0x..","storageKeys":["0x.."]}].
	AccessList string `json:"access_list,omitempty"`

	GasPerPubdata  string   `json:"gas_per_pubdata,omitempty"`
	FactoryDeps    []string `json:"factory_deps,omitempty"`
	Paymaster      string   `json:"paymaster,omitempty"`
	PaymasterInput string   `json:"paymaster_input,omitempty"`
}

// BuildTransactionResponse contains the signing hash of a transaction.
type BuildTransactionResponse struct {
	// Data is the signing hash. Together with Type and Encoding it can be
	// passed to Sign unchanged.
	Data     string `json:"data"`
	Type     string `json:"type"`
	Encoding string `json:"encoding"`

	TxType      string `json:"tx_type"`
	SigningHash string `json:"signing_hash"`
	// Preimage is the hex input of keccak256 that produced SigningHash.
	Preimage string `json:"preimage"`
}

// SignRequest returns the request that signs the built hash.
func (r *BuildTransactionResponse) SignRequest() *SignRequest {
	return &SignRequest{Data: r.Data, Type: r.Type, Encoding: r.Encoding}
}

// SignedTransaction is a signed envelope ready for eth_sendRawTransaction.
type SignedTransaction struct {
	RawTransaction string `json:"raw_transaction"`
	TxHash         string `json:"tx_hash"`
	Signature      string `json:"signature"`
	TxType         string `json:"tx_type"`
	From           string `json:"from"`
}

// Raw decodes RawTransaction.
func (s *SignedTransaction) Raw() ([]byte, error) {
	return hexutil.Decode(s.RawTransaction)
}

// ExportKeyResponse holds an exported keystore.
type ExportKeyResponse struct {
	// Keystore is the keystore v3 JSON document.
	Keystore string `json:"keystore"`
	Address  string `json:"address"`
}

// EncodeResponse holds encoded call data.
type EncodeResponse struct {
	Data      string `json:"data"`
	Selector  string `json:"selector"`
	Signature string `json:"signature"`
}

// DecodeResponse holds decoded ABI values rendered as strings.
type DecodeResponse struct {
	Values []string `json:"values"`
}

// NewTransactionRequest converts a hashable transaction into request form.
func NewTransactionRequest(t *tx.Transaction) (*TransactionRequest, error) {
	if !t.Hashable() {
		return nil, tx.ErrNotHashable
	}
	if !t.ChainID.IsInt64() {
		return nil, fmt.Errorf("chain id %s out of range", t.ChainID)
	}
	if t.GasLimit == nil {
		return nil, errors.New("gas limit is required")
	}
	r := &TransactionRequest{
		TxType:   t.Type.String(),
		ChainID:  t.ChainID.Int64(),
		Nonce:    *t.Nonce,
		GasLimit: *t.GasLimit,
	}
	if t.From != nil {
		r.From = t.From.Checksum()
	}
	if t.To != nil {
		r.To = t.To.Checksum()
	}
	if t.Value != nil {
		r.Value = t.Value.String()
	}
	if len(t.Data) > 0 {
		r.Data = hexutil.Encode(t.Data)
	}
	if t.GasPrice != nil {
		r.GasPrice = t.GasPrice.String()
	}
	if t.MaxFeePerGas != nil {
		r.MaxFeePerGas = t.MaxFeePerGas.String()
	}
	if t.MaxPriorityFeePerGas != nil {
		r.MaxPriorityFeePerGas = t.MaxPriorityFeePerGas.String()
	}
	if len(t.AccessList) > 0 {
		b, err := json.Marshal(t.AccessList)
		if err != nil {
			return nil, err
		}
		r.AccessList = string(b)
	}
	if t.GasPerPubdata != nil {
		r.GasPerPubdata = t.GasPerPubdata.String()
	}
	for _, dep := range t.FactoryDeps {
		r.FactoryDeps = append(r.FactoryDeps, hexutil.Encode(dep))
	}
	if t.Paymaster != nil {
		r.Paymaster = t.Paymaster.Checksum()
	}
	if len(t.PaymasterInput) > 0 {
		r.PaymasterInput = hexutil.Encode(t.PaymasterInput)
	}
	return r, nil
}

// ParseSignature decodes a hex signature response.
func (r *SignResponse) ParseSignature() (signer.Signature, error) {
	b, err := hexutil.Decode(r.Signature)
	if err != nil {
		return signer.Signature{}, err
	}
	return signer.ParseSignature(b)
}
