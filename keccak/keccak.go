// Package keccak provides the Keccak-256 hash used throughout Ethereum.
package keccak

import (
	"golang.org/x/crypto/sha3"
)

// Sum256 computes the Keccak-256 hash of the concatenated inputs.
// Ethereum uses the original Keccak-256, NOT the NIST-standardized SHA3-256.
func Sum256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// Selector returns the first 4 bytes of the hash of a canonical function,
// error or event signature such as "transfer(address,uint256)".
func Selector(signature string) [4]byte {
	var sel [4]byte
	copy(sel[:], Sum256([]byte(signature)))
	return sel
}
