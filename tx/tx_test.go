package tx

import (
	"bytes"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ABT-Tech-Limited/evmkit/hexutil"
	"github.com/ABT-Tech-Limited/evmkit/keccak"
	"github.com/ABT-Tech-Limited/evmkit/rlp"
	"github.com/ABT-Tech-Limited/evmkit/signer"
	"github.com/ABT-Tech-Limited/evmkit/types"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	eip155Key  = "4646464646464646464646464646464646464646464646464646464646464646"
	eip155From = "0x9d8A62f656a8d1615C1294fd71e9CFb3E4855A4F"
	eip155Hash = "daf5a779ae972f972197303d7b574746c7ef83eadac0f2791ad23db92e4c8e53"
	eip155Raw  = "f86c098504a817c800825208943535353535353535353535353535353535353535880de0b6b3a76400008025a028ef61340bd939bc2195fe537567866003e1a15d3c71ff63e1590620aa636276a067cbe9d8997f761aecb703304b3800ccf555c9f3dc64214b297fb1966a3b6d83"
)

func addr(s string) *types.Address {
	a := types.HexToAddress(s)
	return &a
}

func eip155Tx() *Transaction {
	return &Transaction{
		Nonce:    Uint64(9),
		GasPrice: big.NewInt(20000000000),
		GasLimit: Uint64(21000),
		To:       addr("0x3535353535353535353535353535353535353535"),
		Value:    big.NewInt(1000000000000000000),
		ChainID:  big.NewInt(1),
	}
}

func TestLegacySigningPreimage(t *testing.T) {
	tx := &Transaction{
		Nonce:    Uint64(1),
		GasPrice: big.NewInt(10),
		GasLimit: Uint64(400000),
		To:       addr("0x3535353535353535353535353535353535353535"),
		Value:    big.NewInt(0),
		ChainID:  big.NewInt(5),
	}
	pre, ok := tx.SigningPreimage()
	if !ok {
		t.Fatal("transaction should be hashable")
	}
	want := "e0010a83061a8094" + strings.Repeat("35", 20) + "8080058080"
	if got := hex.EncodeToString(pre); got != want {
		t.Errorf("preimage:\ngot  %s\nwant %s", got, want)
	}
}

func TestLegacySign(t *testing.T) {
	tx := eip155Tx()
	hash, ok := tx.SigningHash()
	if !ok {
		t.Fatal("transaction should be hashable")
	}
	if got := hex.EncodeToString(hash[:]); got != eip155Hash {
		t.Errorf("signing hash: got %s, want %s", got, eip155Hash)
	}

	signed, err := tx.Sign(hexutil.MustDecode(eip155Key))
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}
	if got := hex.EncodeToString(signed.Raw); got != eip155Raw {
		t.Errorf("raw:\ngot  %s\nwant %s", got, eip155Raw)
	}
	if signed.RawHex() != "0x"+eip155Raw {
		t.Errorf("RawHex: got %s", signed.RawHex())
	}
	if want := types.BytesToHash(keccak.Sum256(signed.Raw)); signed.Hash != want {
		t.Errorf("hash: got %s, want %s", signed.Hash, want)
	}
	if signed.Signature.V != 0 {
		t.Errorf("recovery id: got %d, want 0", signed.Signature.V)
	}
}

func TestAssembleAcceptsChainV(t *testing.T) {
	var sig signer.Signature
	copy(sig.R[:], hexutil.MustDecode("28ef61340bd939bc2195fe537567866003e1a15d3c71ff63e1590620aa636276"))
	copy(sig.S[:], hexutil.MustDecode("67cbe9d8997f761aecb703304b3800ccf555c9f3dc64214b297fb1966a3b6d83"))

	for _, v := range []byte{0, 27, 31, 35} {
		sig.V = v
		signed, err := eip155Tx().Assemble(sig)
		if err != nil {
			t.Fatalf("Assemble(v=%d) error: %v", v, err)
		}
		if got := hex.EncodeToString(signed.Raw); got != eip155Raw {
			t.Errorf("Assemble(v=%d):\ngot  %s\nwant %s", v, got, eip155Raw)
		}
	}

	sig.V = 2
	if _, err := eip155Tx().Assemble(sig); !errors.Is(err, signer.ErrInvalidRecoveryID) {
		t.Errorf("recovery id 2: got %v, want ErrInvalidRecoveryID", err)
	}
	sig.V = 99
	if _, err := eip155Tx().Assemble(sig); !errors.Is(err, signer.ErrInvalidRecoveryID) {
		t.Errorf("v 99: got %v, want ErrInvalidRecoveryID", err)
	}
}

func TestNotHashable(t *testing.T) {
	key := hexutil.MustDecode(eip155Key)
	tests := []struct {
		name string
		tx   *Transaction
	}{
		{"no nonce", &Transaction{ChainID: big.NewInt(1)}},
		{"no chain id", &Transaction{Nonce: Uint64(0)}},
		{"eip712 without from", &Transaction{Type: EIP712Type, Nonce: Uint64(0), ChainID: big.NewInt(324)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.tx.Hashable() {
				t.Error("Hashable should be false")
			}
			if _, ok := tt.tx.SigningHash(); ok {
				t.Error("SigningHash should report false")
			}
			if _, err := tt.tx.Sign(key); !errors.Is(err, ErrNotHashable) {
				t.Errorf("Sign: got %v, want ErrNotHashable", err)
			}
			if _, err := tt.tx.Assemble(signer.Signature{}); !errors.Is(err, ErrNotHashable) {
				t.Errorf("Assemble: got %v, want ErrNotHashable", err)
			}
		})
	}
}

func TestContractCreation(t *testing.T) {
	tx := &Transaction{
		Nonce:    Uint64(0),
		GasPrice: big.NewInt(20000000000),
		GasLimit: Uint64(100000),
		Data:     hexutil.MustDecode("6080604052"),
		ChainID:  big.NewInt(1),
	}
	pre, ok := tx.SigningPreimage()
	if !ok {
		t.Fatal("transaction should be hashable")
	}
	// to encodes as the empty string
	if !bytes.Contains(pre, []byte{0x83, 0x01, 0x86, 0xa0, 0x80, 0x80, 0x85}) {
		t.Errorf("preimage %x does not encode an empty to", pre)
	}
}

func TestTypeNames(t *testing.T) {
	for _, typ := range []Type{LegacyType, DynamicFeeType, EIP712Type} {
		got, err := ParseType(typ.String())
		if err != nil || got != typ {
			t.Errorf("ParseType(%q) = %v, %v", typ.String(), got, err)
		}
	}
	if _, err := ParseType("blob"); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("ParseType(blob): got %v", err)
	}
	if Type(0x03).String() != "0x03" {
		t.Errorf("unknown type string: %s", Type(0x03))
	}
}

func dynamicFeeTx() *Transaction {
	to := addr("0xd46e8dd67c5d32be8058bb8eb970870f07244567")
	return &Transaction{
		Type:                 DynamicFeeType,
		ChainID:              big.NewInt(1),
		Nonce:                Uint64(1),
		MaxPriorityFeePerGas: big.NewInt(1000000000),
		MaxFeePerGas:         big.NewInt(50000000000),
		GasLimit:             Uint64(50000),
		To:                   to,
		Value:                big.NewInt(0),
		Data:                 hexutil.MustDecode("a9059cbb"),
		AccessList: AccessList{{
			Address:     *to,
			StorageKeys: []types.Hash{types.HexToHash("0x01")},
		}},
	}
}

func TestMatchesGethSigner(t *testing.T) {
	key := hexutil.MustDecode(eip155Key)
	ecdsaKey, err := gethcrypto.ToECDSA(key)
	if err != nil {
		t.Fatal(err)
	}

	ours := dynamicFeeTx()
	to := common.HexToAddress("0xd46e8dd67c5d32be8058bb8eb970870f07244567")
	ref := gethtypes.NewTx(&gethtypes.DynamicFeeTx{
		ChainID:   big.NewInt(1),
		Nonce:     1,
		GasTipCap: big.NewInt(1000000000),
		GasFeeCap: big.NewInt(50000000000),
		Gas:       50000,
		To:        &to,
		Value:     big.NewInt(0),
		Data:      hexutil.MustDecode("a9059cbb"),
		AccessList: gethtypes.AccessList{{
			Address:     to,
			StorageKeys: []common.Hash{common.HexToHash("0x01")},
		}},
	})
	gethSigner := gethtypes.LatestSignerForChainID(big.NewInt(1))

	hash, _ := ours.SigningHash()
	if want := gethSigner.Hash(ref); hash != types.Hash(want) {
		t.Errorf("signing hash: got %s, want %s", hash, want.Hex())
	}

	signedRef, err := gethtypes.SignTx(ref, gethSigner, ecdsaKey)
	if err != nil {
		t.Fatal(err)
	}
	wantRaw, err := signedRef.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	signed, err := ours.Sign(key)
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}
	if !bytes.Equal(signed.Raw, wantRaw) {
		t.Errorf("raw:\ngot  %x\nwant %x", signed.Raw, wantRaw)
	}
	if signed.Hash != types.Hash(signedRef.Hash()) {
		t.Errorf("tx hash: got %s, want %s", signed.Hash, signedRef.Hash().Hex())
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	key := hexutil.MustDecode(eip155Key)
	for name, tx := range map[string]*Transaction{"legacy": eip155Tx(), "eip1559": dynamicFeeTx()} {
		t.Run(name, func(t *testing.T) {
			signed, err := tx.Sign(key)
			if err != nil {
				t.Fatalf("Sign error: %v", err)
			}
			decoded, sig, err := Decode(signed.Raw)
			if err != nil {
				t.Fatalf("Decode error: %v", err)
			}
			if sig != signed.Signature {
				t.Errorf("signature: got %s, want %s", sig.Hex(), signed.Signature.Hex())
			}
			again, err := decoded.Assemble(sig)
			if err != nil {
				t.Fatalf("Assemble error: %v", err)
			}
			if !bytes.Equal(again.Raw, signed.Raw) {
				t.Errorf("re-encoded:\ngot  %x\nwant %x", again.Raw, signed.Raw)
			}

			from, err := Sender(signed.Raw)
			if err != nil {
				t.Fatalf("Sender error: %v", err)
			}
			if from.Checksum() != eip155From {
				t.Errorf("Sender: got %s, want %s", from.Checksum(), eip155From)
			}
		})
	}
}

func TestSenderHomestead(t *testing.T) {
	key := hexutil.MustDecode(eip155Key)
	tx := eip155Tx()
	pre, err := rlp.Encode(tx.legacyFields())
	if err != nil {
		t.Fatal(err)
	}
	sig, err := signer.Sign(keccak.Sum256(pre), key)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := rlp.Encode(append(tx.legacyFields(),
		rlp.Uint(27+uint64(sig.V)),
		rlp.Big(new(big.Int).SetBytes(sig.R[:])),
		rlp.Big(new(big.Int).SetBytes(sig.S[:])),
	))
	if err != nil {
		t.Fatal(err)
	}

	decoded, _, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if decoded.ChainID != nil {
		t.Errorf("pre-EIP-155 chain id should be nil, got %s", decoded.ChainID)
	}
	from, err := Sender(raw)
	if err != nil {
		t.Fatalf("Sender error: %v", err)
	}
	if from.Checksum() != eip155From {
		t.Errorf("Sender: got %s, want %s", from.Checksum(), eip155From)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"empty", "", ErrMalformed},
		{"unknown type", "03c0", ErrUnsupportedType},
		{"short list", "c3010203", ErrMalformed},
		{"bad v", strings.Replace(eip155Raw, "8025a0", "8021a0", 1), signer.ErrInvalidRecoveryID},
		{"truncated", eip155Raw[:40], ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(hexutil.MustDecode(tt.raw))
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func zkSyncTx() *Transaction {
	return &Transaction{
		Type:                 EIP712Type,
		From:                 addr(eip155From),
		To:                   addr("0x3535353535353535353535353535353535353535"),
		Nonce:                Uint64(3),
		GasLimit:             Uint64(800000),
		MaxFeePerGas:         big.NewInt(250000000),
		MaxPriorityFeePerGas: big.NewInt(0),
		Value:                big.NewInt(7),
		ChainID:              big.NewInt(324),
		Data:                 hexutil.MustDecode("a9059cbb"),
	}
}

func TestEIP712Preimage(t *testing.T) {
	tx := zkSyncTx()
	pre, ok := tx.SigningPreimage()
	if !ok {
		t.Fatal("transaction should be hashable")
	}
	if len(pre) != 66 || pre[0] != 0x19 || pre[1] != 0x01 {
		t.Fatalf("preimage %x is not 0x1901 ‖ domain ‖ struct", pre)
	}

	td, err := tx.TypedData()
	if err != nil {
		t.Fatal(err)
	}
	enc, err := td.EncodeType("Transaction")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(enc, "Transaction(uint256 txType,uint256 from,uint256 to,") {
		t.Errorf("type string: %s", enc)
	}
	want, err := td.Hash()
	if err != nil {
		t.Fatal(err)
	}
	got, _ := tx.SigningHash()
	if got != want {
		t.Errorf("signing hash: got %s, want %s", got, want)
	}

	// the default gas per pubdata is the explicit 50000
	explicit := zkSyncTx()
	explicit.GasPerPubdata = big.NewInt(50000)
	if h, _ := explicit.SigningHash(); h != got {
		t.Error("default gas per pubdata differs from 50000")
	}
}

func TestEIP712Envelope(t *testing.T) {
	tx := zkSyncTx()
	tx.FactoryDeps = [][]byte{make([]byte, 32)}
	tx.Paymaster = addr("0x0101010101010101010101010101010101010101")
	tx.PaymasterInput = []byte{0xde, 0xad}

	signed, err := tx.Sign(hexutil.MustDecode(eip155Key))
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}
	if signed.Raw[0] != byte(EIP712Type) {
		t.Fatalf("envelope type: got 0x%02x", signed.Raw[0])
	}
	v, err := rlp.Decode(signed.Raw[1:])
	if err != nil {
		t.Fatalf("envelope is not RLP: %v", err)
	}
	fields, _ := v.AsList()
	if len(fields) != 16 {
		t.Fatalf("envelope has %d fields, want 16", len(fields))
	}
	custom, _ := fields[14].AsBytes()
	if len(custom) != 65 || custom[64] != 27+signed.Signature.V {
		t.Errorf("custom signature: %x", custom)
	}
	from, _ := fields[11].AsBytes()
	if types.BytesToAddress(from).Checksum() != eip155From {
		t.Errorf("from: %x", from)
	}
	pm, _ := fields[15].AsList()
	if len(pm) != 2 {
		t.Errorf("paymaster params: %d items", len(pm))
	}

	hash, _ := tx.SigningHash()
	recovered, err := signer.Recover(hash[:], custom)
	if err != nil || recovered.Checksum() != eip155From {
		t.Errorf("custom signature recovers %s, %v", recovered.Checksum(), err)
	}
}

func TestHashBytecode(t *testing.T) {
	h, err := HashBytecode(make([]byte, 32))
	if err != nil {
		t.Fatal(err)
	}
	want := "01000001f862bd776c8fc18b8e9f8e20089714856ee233b3902a591d0d5f2925"
	if got := hex.EncodeToString(h[:]); got != want {
		t.Errorf("HashBytecode: got %s, want %s", got, want)
	}
	for _, n := range []int{0, 31, 64} {
		if _, err := HashBytecode(make([]byte, n)); !errors.Is(err, ErrMalformed) {
			t.Errorf("HashBytecode(%d bytes): got %v, want ErrMalformed", n, err)
		}
	}
}
