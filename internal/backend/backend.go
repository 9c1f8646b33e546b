// Package backend implements the Vault secrets engine backend.
package backend

import (
	"context"
	"strings"
	"sync"

	"github.com/hashicorp/vault/sdk/framework"
	"github.com/hashicorp/vault/sdk/logical"
)

const (
	// Version is the semantic version of the plugin.
	Version = "v0.2.0"

	// PluginDescription provides a brief description of the plugin.
	PluginDescription = "EVM account management and transaction signing"
)

// EVMBackend is the main backend for the EVM secrets engine.
type EVMBackend struct {
	*framework.Backend
	lock sync.RWMutex
}

// Factory creates a new EVMBackend instance.
func Factory(ctx context.Context, conf *logical.BackendConfig) (logical.Backend, error) {
	b := newBackend()
	if err := b.Setup(ctx, conf); err != nil {
		return nil, err
	}
	return b, nil
}

func newBackend() *EVMBackend {
	b := &EVMBackend{}

	b.Backend = &framework.Backend{
		Help: strings.TrimSpace(backendHelp),
		PathsSpecial: &logical.Paths{
			SealWrapStorage: []string{
				"keys/*", // Enable SealWrap for all key storage
			},
		},
		Paths: framework.PathAppend(
			pathKeys(b),
			pathKeysSign(b),
			pathKeysSignTx(b),
			pathKeysExport(b),
			pathTxBuild(b),
			pathABI(b),
		),
		BackendType:    logical.TypeLogical,
		RunningVersion: Version,
	}

	return b
}

const backendHelp = `
The EVM secrets engine keeps secp256k1 account keys inside Vault and signs
hashes, EIP-191 messages, EIP-712 typed data and transactions with them.

Features:
- Key generation, raw key import and keystore v3 import
- Private keys never leave Vault except as a password-encrypted keystore
- Legacy (EIP-155), EIP-1559 and EIP-712 layer-2 transaction signing
- ABI call data encoding and decoding

Endpoints:
- POST   /keys                  - Create or import a key
- LIST   /keys                  - List key names
- GET    /keys/:name            - Read key info (address, public key)
- POST   /keys/:name/sign       - Sign a hash, message or typed data
- POST   /keys/:name/sign-tx    - Sign a transaction
- POST   /keys/:name/export     - Export as keystore v3 JSON
- POST   /tx/build              - Compute a transaction signing hash
- POST   /tx/assemble           - Combine a transaction and a signature
- POST   /abi/encode            - Encode a function call
- POST   /abi/decode            - Decode call or return data

Security:
- Key material is stored with SealWrap
- Keys cannot be deleted for security and audit compliance
`
