package signer

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/ABT-Tech-Limited/evmkit/keccak"
)

const (
	testKeyHex     = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testAddressHex = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key, err := hex.DecodeString(testKeyHex)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func TestPrivateKeyToAddress(t *testing.T) {
	addr, err := PrivateKeyToAddress(testKey(t))
	if err != nil {
		t.Fatalf("PrivateKeyToAddress: %v", err)
	}
	if addr.Checksum() != testAddressHex {
		t.Errorf("address: got %s, want %s", addr.Checksum(), testAddressHex)
	}
}

func TestParsePrivateKey(t *testing.T) {
	n, _ := hex.DecodeString("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141")
	tests := []struct {
		name string
		key  []byte
		ok   bool
	}{
		{"valid", testKey(t), true},
		{"one", append(make([]byte, 31), 1), true},
		{"zero", make([]byte, 32), false},
		{"group order", n, false},
		{"short", make([]byte, 31), false},
		{"long", make([]byte, 33), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePrivateKey(tt.key)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidPrivateKey) {
				t.Errorf("expected ErrInvalidPrivateKey, got %v", err)
			}
		})
	}
}

func TestSignAndRecover(t *testing.T) {
	key := testKey(t)
	hash := keccak.Sum256([]byte("hello world"))

	sig, err := Sign(hash, key)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if sig.V > 1 {
		t.Errorf("V should be 0 or 1, got %d", sig.V)
	}
	if len(sig.Bytes()) != SignatureLength {
		t.Errorf("signature length: got %d", len(sig.Bytes()))
	}

	again, _ := Sign(hash, key)
	if again != sig {
		t.Error("signing is not deterministic")
	}

	addr, err := Recover(hash, sig.Bytes())
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if addr.Checksum() != testAddressHex {
		t.Errorf("recovered %s, want %s", addr.Checksum(), testAddressHex)
	}

	// Every legal V encoding recovers the same key.
	for _, offset := range []uint64{27, 31, 35} {
		shifted, err := sig.WithV(uint64(sig.V) + offset)
		if err != nil {
			t.Fatal(err)
		}
		got, err := Recover(hash, shifted.Bytes())
		if err != nil {
			t.Fatalf("Recover with v+%d: %v", offset, err)
		}
		if got != addr {
			t.Errorf("v+%d recovered %s", offset, got.Checksum())
		}
	}
}

func TestMatchesReferenceSigner(t *testing.T) {
	key := testKey(t)
	hash := keccak.Sum256([]byte("reference"))

	priv, err := gethcrypto.ToECDSA(key)
	if err != nil {
		t.Fatal(err)
	}
	want, err := gethcrypto.Sign(hash, priv)
	if err != nil {
		t.Fatal(err)
	}

	sig, err := Sign(hash, key)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(sig.Bytes(), want) {
		t.Errorf("signature mismatch:\ngot  %x\nwant %x", sig.Bytes(), want)
	}
}

func TestRecoverErrors(t *testing.T) {
	hash := make([]byte, 32)
	sig, _ := Sign(keccak.Sum256([]byte("x")), testKey(t))

	if _, err := Recover(hash[:31], sig.Bytes()); !errors.Is(err, ErrBadArguments) {
		t.Errorf("short hash: got %v", err)
	}
	if _, err := Recover(hash, sig.Bytes()[:64]); !errors.Is(err, ErrBadArguments) {
		t.Errorf("short signature: got %v", err)
	}

	bad := sig.Bytes()
	bad[64] = 5
	if _, err := Recover(hash, bad); !errors.Is(err, ErrInvalidRecoveryID) {
		t.Errorf("v=5: got %v", err)
	}

	zero := make([]byte, 65)
	if _, err := Recover(hash, zero); !errors.Is(err, ErrRecoveryFailed) {
		t.Errorf("zero signature: got %v", err)
	}

	if _, err := Sign(hash[:16], testKey(t)); !errors.Is(err, ErrBadArguments) {
		t.Errorf("Sign short hash: got %v", err)
	}
}

func TestNormalizeV(t *testing.T) {
	tests := []struct {
		in   uint64
		want byte
		ok   bool
	}{
		{0, 0, true}, {1, 1, true}, {3, 3, true},
		{27, 0, true}, {28, 1, true}, {30, 3, true},
		{31, 0, true}, {34, 3, true},
		{35, 0, true}, {36, 1, true}, {38, 3, true},
		{4, 0, false}, {26, 0, false}, {39, 0, false}, {255, 0, false},
	}
	for _, tt := range tests {
		got, err := NormalizeV(tt.in)
		if tt.ok {
			if err != nil || got != tt.want {
				t.Errorf("NormalizeV(%d): got %d, %v; want %d", tt.in, got, err, tt.want)
			}
		} else if !errors.Is(err, ErrInvalidRecoveryID) {
			t.Errorf("NormalizeV(%d): expected ErrInvalidRecoveryID, got %v", tt.in, err)
		}
	}
}

func TestSignatureForms(t *testing.T) {
	sig, _ := Sign(keccak.Sum256([]byte("forms")), testKey(t))

	parsed, err := ParseSignature(sig.Bytes())
	if err != nil || parsed != sig {
		t.Errorf("ParseSignature round trip: %v", err)
	}

	compact, recid := sig.Compact()
	fromCompact, err := FromCompact(compact[:], recid)
	if err != nil || fromCompact != sig {
		t.Errorf("FromCompact round trip: %v", err)
	}

	if _, err := FromCompact(compact[:63], recid); !errors.Is(err, ErrBadArguments) {
		t.Errorf("FromCompact short: got %v", err)
	}
	if _, err := sig.WithV(300); !errors.Is(err, ErrInvalidRecoveryID) {
		t.Errorf("WithV(300): got %v", err)
	}
}

func TestTextHash(t *testing.T) {
	got := hex.EncodeToString(TextHash([]byte("Some data")))
	want := hex.EncodeToString(gethcrypto.Keccak256([]byte("\x19Ethereum Signed Message:\n9Some data")))
	if got != want {
		t.Errorf("TextHash: got %s, want %s", got, want)
	}

	sig, err := SignMessage([]byte("Some data"), testKey(t))
	if err != nil {
		t.Fatal(err)
	}
	if sig.V != 27 && sig.V != 28 {
		t.Errorf("message V: got %d", sig.V)
	}
	addr, err := Recover(TextHash([]byte("Some data")), sig.Bytes())
	if err != nil || addr.Checksum() != testAddressHex {
		t.Errorf("message recovery: %s, %v", addr.Checksum(), err)
	}
}

func TestWithPrivateKey(t *testing.T) {
	var held *secp256k1.PrivateKey
	err := WithPrivateKey(testKey(t), func(priv *secp256k1.PrivateKey) error {
		held = priv
		if priv.Key.IsZero() {
			t.Error("key zeroed before use")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !held.Key.IsZero() {
		t.Error("key not zeroed after WithPrivateKey returned")
	}

	wantErr := errors.New("boom")
	if err := WithPrivateKey(testKey(t), func(*secp256k1.PrivateKey) error { return wantErr }); !errors.Is(err, wantErr) {
		t.Errorf("error not propagated: %v", err)
	}
	if err := WithPrivateKey(nil, func(*secp256k1.PrivateKey) error { return nil }); !errors.Is(err, ErrInvalidPrivateKey) {
		t.Errorf("nil key: got %v", err)
	}
}

func TestGenerateKey(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParsePrivateKey(key); err != nil {
		t.Errorf("generated key invalid: %v", err)
	}

	b := []byte{1, 2, 3}
	ZeroBytes(b)
	if !bytes.Equal(b, []byte{0, 0, 0}) {
		t.Errorf("ZeroBytes: got %x", b)
	}
}
