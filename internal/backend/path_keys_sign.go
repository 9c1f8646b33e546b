package backend

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/hashicorp/vault/sdk/framework"
	"github.com/hashicorp/vault/sdk/logical"

	"github.com/ABT-Tech-Limited/evmkit/eip712"
	"github.com/ABT-Tech-Limited/evmkit/hexutil"
	"github.com/ABT-Tech-Limited/evmkit/signer"
)

func pathKeysSign(b *EVMBackend) []*framework.Path {
	return []*framework.Path{
		{
			Pattern: "keys/" + framework.GenericNameRegex("name") + "/sign",
			Fields: map[string]*framework.FieldSchema{
				"name": {
					Type:        framework.TypeString,
					Description: "Name of the key",
					Required:    true,
				},
				"data": {
					Type:        framework.TypeString,
					Description: "Data to sign: a hex hash, a message, or typed data JSON",
					Required:    true,
				},
				"type": {
					Type:        framework.TypeString,
					Description: "What data holds: 'hash', 'message' or 'typed_data' (default: hash)",
					Default:     "hash",
				},
				"encoding": {
					Type:        framework.TypeString,
					Description: "Encoding of hash and message data: 'hex', 'base64' or 'utf8' (default: hex)",
					Default:     "hex",
				},
				"output_format": {
					Type:        framework.TypeString,
					Description: "Output format: 'hex' or 'base64' (default: hex)",
					Default:     "hex",
				},
			},
			Operations: map[logical.Operation]framework.OperationHandler{
				logical.UpdateOperation: &framework.PathOperation{
					Callback: b.pathKeySign,
					Summary:  "Sign data with the specified key",
				},
			},
			HelpSynopsis:    "Sign a hash, an EIP-191 message or EIP-712 typed data",
			HelpDescription: pathKeysSignHelpDescription,
		},
	}
}

// pathKeySign handles POST /keys/:name/sign
func (b *EVMBackend) pathKeySign(
	ctx context.Context,
	req *logical.Request,
	d *framework.FieldData,
) (*logical.Response, error) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	name := d.Get("name").(string)
	dataStr := d.Get("data").(string)
	kind := strings.ToLower(d.Get("type").(string))
	encoding := strings.ToLower(d.Get("encoding").(string))
	outputFormat := strings.ToLower(d.Get("output_format").(string))

	if name == "" {
		return logical.ErrorResponse("name is required"), nil
	}
	if dataStr == "" {
		return logical.ErrorResponse("data is required"), nil
	}
	if outputFormat != "hex" && outputFormat != "base64" {
		return logical.ErrorResponse("output_format must be 'hex' or 'base64'"), nil
	}

	acc, err := openAccount(ctx, req, name)
	if err != nil {
		// Don't expose internal errors
		b.Logger().Error("failed to open key", "name", name, "error", err)
		return logical.ErrorResponse("failed to retrieve key"), nil
	}
	if acc == nil {
		return logical.ErrorResponse("key not found"), nil
	}

	var sig signer.Signature
	switch kind {
	case "hash", "message":
		data, err := decodeInput(dataStr, encoding)
		if err != nil {
			return logical.ErrorResponse(err.Error()), nil
		}
		if err := ValidateSignData(data); err != nil {
			return logical.ErrorResponse(err.Error()), nil
		}
		if kind == "hash" {
			sig, err = acc.SignHash(ctx, data)
		} else {
			sig, err = acc.SignMessage(ctx, data)
		}
		if errors.Is(err, signer.ErrBadArguments) {
			return logical.ErrorResponse("hash must be 32 bytes"), nil
		}
		if err != nil {
			return nil, err
		}
	case "typed_data":
		td, err := eip712.Parse([]byte(dataStr))
		if err != nil {
			return logical.ErrorResponse("invalid typed data: %s", err), nil
		}
		sig, err = acc.SignTypedData(ctx, td)
		if err != nil {
			return logical.ErrorResponse("signing typed data failed: %s", err), nil
		}
	default:
		return logical.ErrorResponse("type must be 'hash', 'message' or 'typed_data'"), nil
	}

	raw := sig.Bytes()
	signatureStr := hexutil.Encode(raw)
	if outputFormat == "base64" {
		signatureStr = base64.StdEncoding.EncodeToString(raw)
	}

	return &logical.Response{
		Data: map[string]interface{}{
			"signature": signatureStr,
			"r":         hexutil.Encode(sig.R[:]),
			"s":         hexutil.Encode(sig.S[:]),
			"v":         int(sig.V),
			"address":   acc.Address().Checksum(),
		},
	}, nil
}

func decodeInput(s, encoding string) ([]byte, error) {
	switch encoding {
	case "hex":
		b, err := hexutil.Decode(s)
		if err != nil {
			return nil, errors.New("invalid hex encoding")
		}
		return b, nil
	case "base64":
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, errors.New("invalid base64 encoding")
		}
		return b, nil
	case "utf8":
		return []byte(s), nil
	default:
		return nil, errors.New("encoding must be 'hex', 'base64' or 'utf8'")
	}
}

const pathKeysSignHelpDescription = `
This endpoint signs data using the specified account key.

Request:
  - name (path): The name of the key to use for signing
  - data (required): The data to sign
  - type: 'hash' (default, 32 bytes), 'message' (EIP-191 personal_sign)
    or 'typed_data' (EIP-712 JSON)
  - encoding: Encoding of hash/message data - 'hex' (default), 'base64' or 'utf8'
  - output_format: Output format - 'hex' (default) or 'base64'

Response:
  - signature: 65 bytes R[32] || S[32] || V[1]
  - r, s, v: The signature components
  - address: The signing account address

V is the recovery id (0 or 1) for raw hashes and 27/28 for messages and
typed data, as wallets produce them.

Examples:
  # Sign a Keccak256 hash
  curl -X POST -H "X-Vault-Token: $TOKEN" \
    -d '{"data":"0x1234...","type":"hash"}' \
    $VAULT_ADDR/v1/evm/keys/<name>/sign

  # personal_sign a text message
  curl -X POST -H "X-Vault-Token: $TOKEN" \
    -d '{"data":"hello","type":"message","encoding":"utf8"}' \
    $VAULT_ADDR/v1/evm/keys/<name>/sign
`
