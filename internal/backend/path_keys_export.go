package backend

import (
	"context"
	"errors"

	"github.com/hashicorp/vault/sdk/framework"
	"github.com/hashicorp/vault/sdk/logical"

	"github.com/ABT-Tech-Limited/evmkit/internal/storage"
	"github.com/ABT-Tech-Limited/evmkit/keystore"
	"github.com/ABT-Tech-Limited/evmkit/signer"
)

func pathKeysExport(b *EVMBackend) []*framework.Path {
	return []*framework.Path{
		{
			Pattern: "keys/" + framework.GenericNameRegex("name") + "/export",
			Fields: map[string]*framework.FieldSchema{
				"name": {
					Type:        framework.TypeString,
					Description: "Name of the key",
					Required:    true,
				},
				"password": {
					Type:        framework.TypeString,
					Description: "Password protecting the exported keystore",
					Required:    true,
				},
				"iterations": {
					Type:        framework.TypeInt,
					Description: "PBKDF2 iteration count (default 262144)",
					Default:     keystore.DefaultIterations,
				},
			},
			Operations: map[logical.Operation]framework.OperationHandler{
				logical.UpdateOperation: &framework.PathOperation{
					Callback: b.pathKeyExport,
					Summary:  "Export a key as keystore v3 JSON",
				},
			},
			HelpSynopsis:    "Export a key as an encrypted keystore v3 file",
			HelpDescription: pathKeysExportHelpDescription,
		},
	}
}

// pathKeyExport handles POST /keys/:name/export
func (b *EVMBackend) pathKeyExport(
	ctx context.Context,
	req *logical.Request,
	d *framework.FieldData,
) (*logical.Response, error) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	name := d.Get("name").(string)
	password := d.Get("password").(string)
	iterations := d.Get("iterations").(int)

	if err := ValidatePassword(password); err != nil {
		return logical.ErrorResponse(err.Error()), nil
	}

	ks := storage.NewKeyStorage(req.Storage)
	key, err := ks.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return logical.ErrorResponse("key not found"), nil
	}
	signer.ZeroBytes(key.PrivateKey)

	data, err := keystore.Export(ctx, ks, key.Address, password, keystore.Params{Iterations: iterations})
	if errors.Is(err, keystore.ErrInvalidParams) {
		return logical.ErrorResponse(err.Error()), nil
	}
	if err != nil {
		return nil, err
	}

	b.Logger().Warn("key exported", "name", name, "address", key.Address.Checksum())
	return &logical.Response{
		Data: map[string]interface{}{
			"keystore": string(data),
			"address":  key.Address.Checksum(),
		},
	}, nil
}

const pathKeysExportHelpDescription = `
This endpoint returns the key encrypted as a Web3 Secret Storage (keystore
v3) file using PBKDF2-HMAC-SHA256 and AES-128-CTR. The raw private key is
never returned.

Request:
  - name (path): The name of the key
  - password (required): At least 8 characters
  - iterations: PBKDF2 iterations (default 262144)
`
