package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/hashicorp/vault/sdk/framework"
	"github.com/hashicorp/vault/sdk/logical"

	"github.com/ABT-Tech-Limited/evmkit/account"
	"github.com/ABT-Tech-Limited/evmkit/hexutil"
	"github.com/ABT-Tech-Limited/evmkit/signer"
	"github.com/ABT-Tech-Limited/evmkit/tx"
	"github.com/ABT-Tech-Limited/evmkit/types"
)

// txFields is the schema shared by every path that takes a transaction.
func txFields() map[string]*framework.FieldSchema {
	return map[string]*framework.FieldSchema{
		"tx_type": {
			Type:        framework.TypeString,
			Description: "Transaction type: 'legacy', 'eip1559' or 'eip712'",
			Default:     "eip1559",
		},
		"chain_id": {
			Type:        framework.TypeInt64,
			Description: "Chain ID (e.g. 1=Mainnet, 11155111=Sepolia)",
			Required:    true,
		},
		"nonce": {
			Type:        framework.TypeInt64,
			Description: "Transaction nonce",
			Required:    true,
		},
		"gas_limit": {
			Type:        framework.TypeInt64,
			Description: "Gas limit",
			Required:    true,
		},
		"from": {
			Type:        framework.TypeString,
			Description: "Sender address (eip712 transactions only)",
		},
		"to": {
			Type:        framework.TypeString,
			Description: "Recipient address in hex with 0x prefix (empty for contract creation)",
		},
		"value": {
			Type:        framework.TypeString,
			Description: "Transfer value in wei (decimal or 0x hex string, default '0')",
			Default:     "0",
		},
		"data": {
			Type:        framework.TypeString,
			Description: "Transaction data in hex (optional, e.g. 0xa9059cbb...)",
		},
		// Legacy fields
		"gas_price": {
			Type:        framework.TypeString,
			Description: "Gas price in wei (legacy tx only)",
		},
		// EIP-1559 fields
		"max_fee_per_gas": {
			Type:        framework.TypeString,
			Description: "Max fee per gas in wei (eip1559 and eip712 tx)",
		},
		"max_priority_fee_per_gas": {
			Type:        framework.TypeString,
			Description: "Max priority fee per gas in wei (eip1559 and eip712 tx)",
		},
		"access_list": {
			Type:        framework.TypeString,
			Description: `Access list JSON: [{"address":"0x..","storageKeys":["0x.."]}] (eip1559 tx only)`,
		},
		// EIP-712 layer-2 fields
		"gas_per_pubdata": {
			Type:        framework.TypeString,
			Description: "Gas per pubdata byte limit (eip712 tx only, default 50000)",
		},
		"factory_deps": {
			Type:        framework.TypeCommaStringSlice,
			Description: "Hex bytecodes deployed alongside the transaction (eip712 tx only)",
		},
		"paymaster": {
			Type:        framework.TypeString,
			Description: "Paymaster address (eip712 tx only)",
		},
		"paymaster_input": {
			Type:        framework.TypeString,
			Description: "Paymaster input in hex (eip712 tx only)",
		},
	}
}

// parseTransaction reads txFields into a transaction. Errors are user errors.
func parseTransaction(d *framework.FieldData) (*tx.Transaction, error) {
	txType, err := tx.ParseType(strings.ToLower(d.Get("tx_type").(string)))
	if err != nil {
		return nil, fmt.Errorf("tx_type must be 'legacy', 'eip1559' or 'eip712'")
	}
	chainID := d.Get("chain_id").(int64)
	nonce := d.Get("nonce").(int64)
	gasLimit := d.Get("gas_limit").(int64)

	if chainID <= 0 {
		return nil, fmt.Errorf("chain_id must be positive")
	}
	if nonce < 0 {
		return nil, fmt.Errorf("nonce must be non-negative")
	}
	if gasLimit <= 0 {
		return nil, fmt.Errorf("gas_limit must be positive")
	}

	t := &tx.Transaction{
		Type:     txType,
		ChainID:  big.NewInt(chainID),
		Nonce:    tx.Uint64(uint64(nonce)),
		GasLimit: tx.Uint64(uint64(gasLimit)),
	}
	if t.From, err = parseAddress("from", d.Get("from").(string)); err != nil {
		return nil, err
	}
	if t.To, err = parseAddress("to", d.Get("to").(string)); err != nil {
		return nil, err
	}
	if t.Value, err = parseAmount("value", d.Get("value").(string)); err != nil {
		return nil, err
	}
	if t.Data, err = parseHex("data", d.Get("data").(string)); err != nil {
		return nil, err
	}

	switch txType {
	case tx.LegacyType:
		if t.GasPrice, err = parseAmount("gas_price", d.Get("gas_price").(string)); err != nil {
			return nil, err
		}
		if t.GasPrice == nil {
			return nil, fmt.Errorf("gas_price is required for legacy transactions")
		}
		return t, nil
	}

	if t.MaxFeePerGas, err = parseAmount("max_fee_per_gas", d.Get("max_fee_per_gas").(string)); err != nil {
		return nil, err
	}
	if t.MaxPriorityFeePerGas, err = parseAmount("max_priority_fee_per_gas", d.Get("max_priority_fee_per_gas").(string)); err != nil {
		return nil, err
	}
	if t.MaxFeePerGas == nil {
		return nil, fmt.Errorf("max_fee_per_gas is required for %s transactions", txType)
	}
	if t.MaxPriorityFeePerGas == nil {
		return nil, fmt.Errorf("max_priority_fee_per_gas is required for %s transactions", txType)
	}
	if t.MaxPriorityFeePerGas.Cmp(t.MaxFeePerGas) > 0 {
		return nil, fmt.Errorf("max_priority_fee_per_gas exceeds max_fee_per_gas")
	}

	if txType == tx.DynamicFeeType {
		if s := d.Get("access_list").(string); s != "" {
			if err := json.Unmarshal([]byte(s), &t.AccessList); err != nil {
				return nil, fmt.Errorf("invalid 'access_list': %s", err)
			}
		}
		return t, nil
	}

	if t.GasPerPubdata, err = parseAmount("gas_per_pubdata", d.Get("gas_per_pubdata").(string)); err != nil {
		return nil, err
	}
	for i, dep := range d.Get("factory_deps").([]string) {
		code, err := parseHex(fmt.Sprintf("factory_deps[%d]", i), dep)
		if err != nil {
			return nil, err
		}
		if _, err := tx.HashBytecode(code); err != nil {
			return nil, fmt.Errorf("invalid 'factory_deps[%d]': %s", i, err)
		}
		t.FactoryDeps = append(t.FactoryDeps, code)
	}
	if t.Paymaster, err = parseAddress("paymaster", d.Get("paymaster").(string)); err != nil {
		return nil, err
	}
	if t.PaymasterInput, err = parseHex("paymaster_input", d.Get("paymaster_input").(string)); err != nil {
		return nil, err
	}
	return t, nil
}

func pathTxBuild(b *EVMBackend) []*framework.Path {
	assembleFields := txFields()
	assembleFields["signature"] = &framework.FieldSchema{
		Type:        framework.TypeString,
		Description: "65-byte hex signature (R || S || V) over the signing hash",
		Required:    true,
	}
	return []*framework.Path{
		{
			Pattern: "tx/build",
			Fields:  txFields(),
			Operations: map[logical.Operation]framework.OperationHandler{
				logical.UpdateOperation: &framework.PathOperation{
					Callback: b.pathTxBuildEVM,
					Summary:  "Build EVM transaction signing data",
				},
			},
			HelpSynopsis:    "Build EVM transaction signing data for use with the sign API",
			HelpDescription: pathTxBuildHelpDescription,
		},
		{
			Pattern: "tx/assemble",
			Fields:  assembleFields,
			Operations: map[logical.Operation]framework.OperationHandler{
				logical.UpdateOperation: &framework.PathOperation{
					Callback: b.pathTxAssemble,
					Summary:  "Combine a transaction and its signature into a raw envelope",
				},
			},
			HelpSynopsis:    "Assemble a signed EVM transaction",
			HelpDescription: pathTxBuildHelpDescription,
		},
	}
}

// pathTxBuildEVM handles POST /tx/build
func (b *EVMBackend) pathTxBuildEVM(
	ctx context.Context,
	req *logical.Request,
	d *framework.FieldData,
) (*logical.Response, error) {
	t, err := parseTransaction(d)
	if err != nil {
		return logical.ErrorResponse(err.Error()), nil
	}
	preimage, ok := t.SigningPreimage()
	if !ok {
		return logical.ErrorResponse(tx.ErrNotHashable.Error()), nil
	}
	hash, _ := t.SigningHash()

	return &logical.Response{
		Data: map[string]interface{}{
			"data":         hash.Hex(),
			"type":         "hash",
			"encoding":     "hex",
			"tx_type":      t.Type.String(),
			"signing_hash": hash.Hex(),
			"preimage":     hexutil.Encode(preimage),
		},
	}, nil
}

// pathTxAssemble handles POST /tx/assemble
func (b *EVMBackend) pathTxAssemble(
	ctx context.Context,
	req *logical.Request,
	d *framework.FieldData,
) (*logical.Response, error) {
	t, err := parseTransaction(d)
	if err != nil {
		return logical.ErrorResponse(err.Error()), nil
	}
	raw, err := hexutil.Decode(d.Get("signature").(string))
	if err != nil {
		return logical.ErrorResponse("invalid signature hex"), nil
	}
	sig, err := signer.ParseSignature(raw)
	if err != nil {
		return logical.ErrorResponse(err.Error()), nil
	}
	signed, err := t.Assemble(sig)
	if err != nil {
		return logical.ErrorResponse(err.Error()), nil
	}
	hash, _ := t.SigningHash()
	from, err := account.Recover(hash[:], signed.Signature)
	if err != nil {
		return logical.ErrorResponse("signature does not recover: %s", err), nil
	}
	if t.From != nil && *t.From != from {
		return logical.ErrorResponse("signature recovers to %s, not from", from.Checksum()), nil
	}
	return signedTxResponse(t, signed, from), nil
}

func signedTxResponse(t *tx.Transaction, signed *tx.Signed, from types.Address) *logical.Response {
	return &logical.Response{
		Data: map[string]interface{}{
			"raw_transaction": signed.RawHex(),
			"tx_hash":         signed.Hash.Hex(),
			"signature":       signed.Signature.Hex(),
			"tx_type":         t.Type.String(),
			"from":            from.Checksum(),
		},
	}
}

const pathTxBuildHelpDescription = `
These endpoints support signing EVM transactions outside /keys/:name/sign-tx.

Supported transaction types:
  - legacy: EIP-155 transactions (requires gas_price)
  - eip1559: EIP-1559 dynamic fee transactions (requires max_fee_per_gas, max_priority_fee_per_gas)
  - eip712: zkSync-style layer-2 transactions (requires from and the eip1559 fee fields)

Workflow:
  1. POST /tx/build with transaction parameters
     -> Returns {data, type, encoding, signing_hash}
  2. POST /keys/:name/sign with the output from step 1
     -> Returns {signature}
  3. POST /tx/assemble with the same parameters plus signature
     -> Returns {raw_transaction, tx_hash}

Example (Legacy):
  curl -X POST -H "X-Vault-Token: $TOKEN" \
    -d '{"tx_type":"legacy","chain_id":11155111,"nonce":0,"gas_limit":21000,"to":"0x...","value":"100000000000000","gas_price":"10000000000"}' \
    $VAULT_ADDR/v1/evm/tx/build

Example (EIP-1559):
  curl -X POST -H "X-Vault-Token: $TOKEN" \
    -d '{"tx_type":"eip1559","chain_id":1,"nonce":0,"gas_limit":21000,"to":"0x...","value":"1000000000000000000","max_fee_per_gas":"30000000000","max_priority_fee_per_gas":"2000000000"}' \
    $VAULT_ADDR/v1/evm/tx/build
`
