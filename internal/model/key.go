// Package model defines the data structures persisted by the EVM secrets engine.
package model

import (
	"time"

	"github.com/ABT-Tech-Limited/evmkit/types"
)

// Source records how a key entered the engine.
type Source string

const (
	// SourceGenerated marks a key created inside Vault.
	SourceGenerated Source = "generated"
	// SourceImported marks a key imported as raw bytes.
	SourceImported Source = "imported"
	// SourceKeystore marks a key imported from a keystore v3 file.
	SourceKeystore Source = "keystore"
)

// IsValid checks if the source is known.
func (s Source) IsValid() bool {
	switch s {
	case SourceGenerated, SourceImported, SourceKeystore:
		return true
	default:
		return false
	}
}

// Key represents a secp256k1 account stored in Vault.
type Key struct {
	// Name is the user-provided unique name.
	Name string `json:"name"`

	// Address is derived from PrivateKey when the key is created.
	Address types.Address `json:"address"`

	// PrivateKey is the raw 32-byte scalar (encrypted by Vault storage).
	// This field is NEVER returned to clients.
	PrivateKey []byte `json:"private_key"`

	Source    Source            `json:"source"`
	CreatedAt time.Time         `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// KeyInfo is the key information returned to clients (without private key).
type KeyInfo struct {
	Name      string            `json:"name"`
	Address   types.Address     `json:"address"`
	PublicKey string            `json:"public_key,omitempty"` // hex encoded, uncompressed
	Source    Source            `json:"source"`
	CreatedAt time.Time         `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ToInfo converts a Key to KeyInfo (strips private key).
func (k *Key) ToInfo() *KeyInfo {
	return &KeyInfo{
		Name:      k.Name,
		Address:   k.Address,
		Source:    k.Source,
		CreatedAt: k.CreatedAt,
		Metadata:  k.Metadata,
	}
}

// ToResponseData converts KeyInfo to a map for API response.
func (ki *KeyInfo) ToResponseData() map[string]interface{} {
	data := map[string]interface{}{
		"name":       ki.Name,
		"address":    ki.Address.Checksum(),
		"source":     string(ki.Source),
		"created_at": ki.CreatedAt.Format(time.RFC3339),
	}
	data["public_key"] = ki.PublicKey
	data["metadata"] = ki.Metadata
	return data
}
