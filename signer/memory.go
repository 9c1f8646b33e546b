package signer

import "runtime"

// ZeroBytes overwrites b with zeros. Callers holding a private key defer it
// right after loading the key.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
