package backend

import (
	"context"
	"errors"

	"github.com/hashicorp/vault/sdk/framework"
	"github.com/hashicorp/vault/sdk/logical"

	"github.com/ABT-Tech-Limited/evmkit/account"
)

func pathKeysSignTx(b *EVMBackend) []*framework.Path {
	fields := txFields()
	fields["name"] = &framework.FieldSchema{
		Type:        framework.TypeString,
		Description: "Name of the key",
		Required:    true,
	}
	fields["from"].Description = "Optional sender address; must match the key"

	return []*framework.Path{
		{
			Pattern: "keys/" + framework.GenericNameRegex("name") + "/sign-tx",
			Fields:  fields,
			Operations: map[logical.Operation]framework.OperationHandler{
				logical.UpdateOperation: &framework.PathOperation{
					Callback: b.pathKeySignTx,
					Summary:  "Build and sign an EVM transaction",
				},
			},
			HelpSynopsis:    "Sign an EVM transaction with the specified key",
			HelpDescription: pathKeysSignTxHelpDescription,
		},
	}
}

// pathKeySignTx handles POST /keys/:name/sign-tx
func (b *EVMBackend) pathKeySignTx(
	ctx context.Context,
	req *logical.Request,
	d *framework.FieldData,
) (*logical.Response, error) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	name := d.Get("name").(string)
	if name == "" {
		return logical.ErrorResponse("name is required"), nil
	}
	t, err := parseTransaction(d)
	if err != nil {
		return logical.ErrorResponse(err.Error()), nil
	}

	acc, err := openAccount(ctx, req, name)
	if err != nil {
		b.Logger().Error("failed to open key", "name", name, "error", err)
		return logical.ErrorResponse("failed to retrieve key"), nil
	}
	if acc == nil {
		return logical.ErrorResponse("key not found"), nil
	}

	signed, err := acc.SignTransaction(ctx, t)
	if errors.Is(err, account.ErrWrongSender) {
		return logical.ErrorResponse("from does not match the key address"), nil
	}
	if err != nil {
		return logical.ErrorResponse("signing failed: %s", err), nil
	}

	b.Logger().Debug("transaction signed", "name", name, "tx_type", t.Type.String(), "tx_hash", signed.Hash.Hex())
	return signedTxResponse(t, signed, acc.Address()), nil
}

const pathKeysSignTxHelpDescription = `
This endpoint builds a transaction from its fields, signs it with the named
key and returns the serialized envelope ready for eth_sendRawTransaction.

Request:
  The fields of /tx/build. from defaults to the key address.

Response:
  - raw_transaction: 0x-prefixed signed envelope
  - tx_hash: Transaction hash
  - signature: R || S || V with V the recovery id
  - tx_type, from

Example:
  curl -X POST -H "X-Vault-Token: $TOKEN" \
    -d '{"tx_type":"eip1559","chain_id":1,"nonce":0,"gas_limit":21000,"to":"0x...","value":"1","max_fee_per_gas":"30000000000","max_priority_fee_per_gas":"2000000000"}' \
    $VAULT_ADDR/v1/evm/keys/<name>/sign-tx
`
