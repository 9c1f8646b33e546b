package signer

import (
	"strconv"

	"github.com/ABT-Tech-Limited/evmkit/keccak"
)

// TextHash returns the EIP-191 personal message hash:
// keccak256("\x19Ethereum Signed Message:\n" + len(msg) + msg).
func TextHash(msg []byte) []byte {
	prefix := "\x19Ethereum Signed Message:\n" + strconv.Itoa(len(msg))
	return keccak.Sum256([]byte(prefix), msg)
}

// SignMessage signs the EIP-191 hash of msg. V is 27 or 28, the form
// expected by personal_sign verifiers.
func SignMessage(msg []byte, key []byte) (Signature, error) {
	sig, err := Sign(TextHash(msg), key)
	if err != nil {
		return Signature{}, err
	}
	return sig.WithV(uint64(sig.V) + 27)
}
