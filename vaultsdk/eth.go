package vaultsdk

import (
	"fmt"

	"github.com/ABT-Tech-Limited/evmkit/hexutil"
	"github.com/ABT-Tech-Limited/evmkit/signer"
	"github.com/ABT-Tech-Limited/evmkit/types"
)

// ParsedAddress returns the key's address after checking that it is the
// address derived from PublicKey.
func (k *Key) ParsedAddress() (types.Address, error) {
	addr, err := types.ParseAddress(k.Address)
	if err != nil {
		return types.Address{}, err
	}
	pub, err := hexutil.Decode(k.PublicKey)
	if err != nil {
		return types.Address{}, fmt.Errorf("invalid public key: %w", err)
	}
	derived, err := signer.PublicKeyToAddress(pub)
	if err != nil {
		return types.Address{}, err
	}
	if derived != addr {
		return types.Address{}, fmt.Errorf("address %s does not match public key (%s)", k.Address, derived.Checksum())
	}
	return addr, nil
}
