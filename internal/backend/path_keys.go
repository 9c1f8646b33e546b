package backend

import (
	"context"
	"errors"

	"github.com/hashicorp/vault/sdk/framework"
	"github.com/hashicorp/vault/sdk/logical"

	"github.com/ABT-Tech-Limited/evmkit/account"
	"github.com/ABT-Tech-Limited/evmkit/hexutil"
	"github.com/ABT-Tech-Limited/evmkit/internal/model"
	"github.com/ABT-Tech-Limited/evmkit/internal/storage"
	"github.com/ABT-Tech-Limited/evmkit/keystore"
	"github.com/ABT-Tech-Limited/evmkit/signer"
)

func pathKeys(b *EVMBackend) []*framework.Path {
	return []*framework.Path{
		{
			// POST /keys - Create or import a key
			// LIST /keys - List all keys
			Pattern: "keys/?$",
			Fields: map[string]*framework.FieldSchema{
				"name": {
					Type:        framework.TypeString,
					Description: "Unique name for the key (alphanumeric, underscore, hyphen only)",
				},
				"private_key": {
					Type:        framework.TypeString,
					Description: "Optional hex private key to import instead of generating one",
				},
				"keystore": {
					Type:        framework.TypeString,
					Description: "Optional keystore v3 JSON to import instead of generating a key",
				},
				"password": {
					Type:        framework.TypeString,
					Description: "Password of the imported keystore",
				},
				"metadata": {
					Type:        framework.TypeKVPairs,
					Description: "Optional key-value metadata (max 16 keys)",
				},
			},
			Operations: map[logical.Operation]framework.OperationHandler{
				logical.UpdateOperation: &framework.PathOperation{
					Callback: b.pathKeyCreate,
					Summary:  "Create or import a secp256k1 account key",
				},
				logical.ListOperation: &framework.PathOperation{
					Callback: b.pathKeyList,
					Summary:  "List all keys",
				},
			},
			HelpSynopsis:    "Create, import or list account keys",
			HelpDescription: pathKeysHelpDescription,
		},
		{
			// GET /keys/:name - Read key info
			Pattern: "keys/" + framework.GenericNameRegex("name"),
			Fields: map[string]*framework.FieldSchema{
				"name": {
					Type:        framework.TypeString,
					Description: "Name of the key",
					Required:    true,
				},
			},
			Operations: map[logical.Operation]framework.OperationHandler{
				logical.ReadOperation: &framework.PathOperation{
					Callback: b.pathKeyRead,
					Summary:  "Read key information (without private key)",
				},
			},
			HelpSynopsis:    "Read a specific key",
			HelpDescription: "Read key information (never includes private key) by its name. Keys cannot be deleted for security reasons.",
		},
	}
}

// pathKeyCreate handles POST /keys
func (b *EVMBackend) pathKeyCreate(
	ctx context.Context,
	req *logical.Request,
	d *framework.FieldData,
) (*logical.Response, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	name := d.Get("name").(string)
	rawKey := d.Get("private_key").(string)
	keystoreJSON := d.Get("keystore").(string)
	password := d.Get("password").(string)
	var metadata map[string]string
	if raw, ok := d.GetOk("metadata"); ok {
		metadata = raw.(map[string]string)
	}

	if err := ValidateName(name); err != nil {
		return logical.ErrorResponse(err.Error()), nil
	}
	if err := ValidateMetadata(metadata); err != nil {
		return logical.ErrorResponse(err.Error()), nil
	}
	if rawKey != "" && keystoreJSON != "" {
		return logical.ErrorResponse("private_key and keystore are mutually exclusive"), nil
	}

	ks := storage.NewKeyStorage(req.Storage)
	existing, err := ks.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		signer.ZeroBytes(existing.PrivateKey)
		return logical.ErrorResponse("key %q already exists", name), nil
	}

	var acc *account.Account
	switch {
	case keystoreJSON != "":
		acc, err = keystore.Import(ctx, ks.Named(name, model.SourceKeystore, metadata), []byte(keystoreJSON), password)
		if err != nil && !errors.Is(err, account.ErrFailedToSave) {
			// Wrong password and tampered files are indistinguishable.
			return logical.ErrorResponse("failed to import keystore"), nil
		}
	case rawKey != "":
		key, derr := hexutil.Decode(rawKey)
		if derr != nil {
			return logical.ErrorResponse("invalid private_key: must be hex"), nil
		}
		acc, err = account.Import(ctx, ks.Named(name, model.SourceImported, metadata), key)
		signer.ZeroBytes(key)
		if errors.Is(err, signer.ErrInvalidPrivateKey) {
			return logical.ErrorResponse("invalid private_key"), nil
		}
	default:
		acc, err = account.Create(ctx, ks.Named(name, model.SourceGenerated, metadata))
	}
	if errors.Is(err, storage.ErrAddressExists) || errors.Is(err, storage.ErrNameExists) {
		return logical.ErrorResponse(err.Error()), nil
	}
	if err != nil {
		return nil, err
	}

	b.Logger().Info("key stored", "name", name, "address", acc.Address().Checksum())
	return b.keyResponse(ctx, ks, name)
}

// pathKeyRead handles GET /keys/:name
func (b *EVMBackend) pathKeyRead(
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
	return b.keyResponse(ctx, storage.NewKeyStorage(req.Storage), name)
}

// keyResponse returns the public view of the key stored under name.
func (b *EVMBackend) keyResponse(ctx context.Context, ks *storage.KeyStorage, name string) (*logical.Response, error) {
	key, err := ks.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return logical.ErrorResponse("key not found"), nil
	}
	defer signer.ZeroBytes(key.PrivateKey)

	pub, err := signer.PublicKey(key.PrivateKey)
	if err != nil {
		return nil, err
	}

	keyInfo := key.ToInfo()
	keyInfo.PublicKey = hexutil.Encode(pub)

	return &logical.Response{
		Data: keyInfo.ToResponseData(),
	}, nil
}

// pathKeyList handles LIST /keys
func (b *EVMBackend) pathKeyList(
	ctx context.Context,
	req *logical.Request,
	d *framework.FieldData,
) (*logical.Response, error) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	ks := storage.NewKeyStorage(req.Storage)
	names, err := ks.ListKeys(ctx)
	if err != nil {
		return nil, err
	}

	return logical.ListResponse(names), nil
}

// openAccount resolves a key name to an account backed by Vault storage.
// A nil account with nil error means the key does not exist.
func openAccount(ctx context.Context, req *logical.Request, name string) (*account.Account, error) {
	ks := storage.NewKeyStorage(req.Storage)
	key, err := ks.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, nil
	}
	signer.ZeroBytes(key.PrivateKey)
	return account.Open(ctx, ks, key.Address)
}

const pathKeysHelpDescription = `
This endpoint manages secp256k1 account keys.

CREATE (POST /keys):
  Required:
    - name: A unique name for the key (alphanumeric, underscore, hyphen)

  Optional (at most one):
    - private_key: hex private key to import
    - keystore + password: keystore v3 JSON to import

  Optional:
    - metadata: Key-value pairs for additional information

  Returns:
    - name, address (EIP-55), public_key, source, created_at, metadata

LIST (LIST /keys):
  Returns the names of all keys.

Security:
  - Private keys are never returned in any response
  - Keys are encrypted at rest using Vault's storage encryption
  - SealWrap provides additional encryption for key material
`
