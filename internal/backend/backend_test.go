package backend

import (
	"context"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/vault/sdk/logical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ABT-Tech-Limited/evmkit/account"
	"github.com/ABT-Tech-Limited/evmkit/hexutil"
	"github.com/ABT-Tech-Limited/evmkit/keystore"
	"github.com/ABT-Tech-Limited/evmkit/signer"
	"github.com/ABT-Tech-Limited/evmkit/tx"
	"github.com/ABT-Tech-Limited/evmkit/types"
)

const (
	testKeyHex  = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testAddress = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"
	recipient   = "0x3535353535353535353535353535353535353535"
)

func getTestBackend(t *testing.T) (logical.Backend, logical.Storage) {
	t.Helper()
	config := logical.TestBackendConfig()
	config.StorageView = new(logical.InmemStorage)
	config.Logger = hclog.NewNullLogger()

	b, err := Factory(context.Background(), config)
	require.NoError(t, err)
	return b, config.StorageView
}

func request(t *testing.T, b logical.Backend, s logical.Storage, op logical.Operation, path string, data map[string]interface{}) *logical.Response {
	t.Helper()
	resp, err := b.HandleRequest(context.Background(), &logical.Request{
		Operation: op,
		Path:      path,
		Storage:   s,
		Data:      data,
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	return resp
}

func mustOK(t *testing.T, resp *logical.Response) map[string]interface{} {
	t.Helper()
	require.False(t, resp.IsError(), "unexpected error response: %v", resp.Data)
	return resp.Data
}

func importTestKey(t *testing.T, b logical.Backend, s logical.Storage, name string) {
	t.Helper()
	data := mustOK(t, request(t, b, s, logical.UpdateOperation, "keys", map[string]interface{}{
		"name":        name,
		"private_key": testKeyHex,
	}))
	require.Equal(t, testAddress, data["address"])
}

func TestCreateReadList(t *testing.T) {
	b, s := getTestBackend(t)

	created := mustOK(t, request(t, b, s, logical.UpdateOperation, "keys", map[string]interface{}{
		"name":     "hot-wallet",
		"metadata": map[string]string{"env": "test"},
	}))
	assert.Equal(t, "hot-wallet", created["name"])
	assert.Equal(t, "generated", created["source"])
	assert.True(t, types.IsChecksumValid(created["address"].(string)))
	assert.Len(t, created["public_key"], 2+130)
	assert.NotContains(t, created, "private_key")

	pub, err := hexutil.Decode(created["public_key"].(string))
	require.NoError(t, err)
	addr, err := signer.PublicKeyToAddress(pub)
	require.NoError(t, err)
	assert.Equal(t, created["address"], addr.Checksum())

	read := mustOK(t, request(t, b, s, logical.ReadOperation, "keys/hot-wallet", nil))
	assert.Equal(t, created["address"], read["address"])
	assert.Equal(t, map[string]string{"env": "test"}, read["metadata"])

	importTestKey(t, b, s, "imported")
	list := mustOK(t, request(t, b, s, logical.ListOperation, "keys/", nil))
	assert.ElementsMatch(t, []string{"hot-wallet", "imported"}, list["keys"])

	resp := request(t, b, s, logical.ReadOperation, "keys/missing", nil)
	assert.True(t, resp.IsError())
}

func TestCreateErrors(t *testing.T) {
	b, s := getTestBackend(t)
	importTestKey(t, b, s, "a")

	tests := []struct {
		name string
		data map[string]interface{}
		want string
	}{
		{"missing name", map[string]interface{}{}, "name is required"},
		{"bad name", map[string]interface{}{"name": "a b"}, "invalid characters"},
		{"duplicate name", map[string]interface{}{"name": "a"}, "already exists"},
		{"duplicate address", map[string]interface{}{"name": "b", "private_key": testKeyHex}, "address already exists"},
		{"bad key hex", map[string]interface{}{"name": "c", "private_key": "0xzz"}, "must be hex"},
		{"zero key", map[string]interface{}{"name": "c", "private_key": "0x" + strings.Repeat("00", 32)}, "invalid private_key"},
		{"both sources", map[string]interface{}{"name": "c", "private_key": testKeyHex, "keystore": "{}"}, "mutually exclusive"},
		{"bad keystore", map[string]interface{}{"name": "c", "keystore": "{}", "password": "x"}, "failed to import keystore"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := request(t, b, s, logical.UpdateOperation, "keys", tt.data)
			require.True(t, resp.IsError())
			assert.Contains(t, resp.Error().Error(), tt.want)
		})
	}
}

func TestSign(t *testing.T) {
	b, s := getTestBackend(t)
	importTestKey(t, b, s, "signer")

	hash := make([]byte, 32)
	hash[31] = 1
	data := mustOK(t, request(t, b, s, logical.UpdateOperation, "keys/signer/sign", map[string]interface{}{
		"data": hexutil.Encode(hash),
	}))
	sig, err := signer.ParseSignature(hexutil.MustDecode(data["signature"].(string)))
	require.NoError(t, err)
	assert.LessOrEqual(t, sig.V, byte(1))
	got, err := account.Recover(hash, sig)
	require.NoError(t, err)
	assert.Equal(t, testAddress, got.Checksum())

	data = mustOK(t, request(t, b, s, logical.UpdateOperation, "keys/signer/sign", map[string]interface{}{
		"data":     "hello",
		"type":     "message",
		"encoding": "utf8",
	}))
	v := data["v"].(int)
	assert.Contains(t, []int{27, 28}, v)
	sig, err = signer.ParseSignature(hexutil.MustDecode(data["signature"].(string)))
	require.NoError(t, err)
	got, err = account.RecoverMessage([]byte("hello"), sig)
	require.NoError(t, err)
	assert.Equal(t, testAddress, got.Checksum())

	typed := `{
		"types": {
			"EIP712Domain": [{"name":"name","type":"string"},{"name":"chainId","type":"uint256"}],
			"Mail": [{"name":"contents","type":"string"}]
		},
		"primaryType": "Mail",
		"domain": {"name": "Test", "chainId": 1},
		"message": {"contents": "hi"}
	}`
	data = mustOK(t, request(t, b, s, logical.UpdateOperation, "keys/signer/sign", map[string]interface{}{
		"data": typed,
		"type": "typed_data",
	}))
	assert.Equal(t, testAddress, data["address"])
	assert.Contains(t, []int{27, 28}, data["v"].(int))

	for _, bad := range []map[string]interface{}{
		{"data": "0x01"},
		{"data": "0x01", "encoding": "rot13"},
		{"data": "0x01", "type": "blob"},
		{"data": "{", "type": "typed_data"},
		{"data": hexutil.Encode(hash), "output_format": "raw"},
	} {
		resp := request(t, b, s, logical.UpdateOperation, "keys/signer/sign", bad)
		assert.True(t, resp.IsError(), "%v", bad)
	}
	resp := request(t, b, s, logical.UpdateOperation, "keys/nobody/sign", map[string]interface{}{"data": hexutil.Encode(hash)})
	assert.True(t, resp.IsError())
}

func eip1559Fields() map[string]interface{} {
	return map[string]interface{}{
		"tx_type":                  "eip1559",
		"chain_id":                 5,
		"nonce":                    7,
		"gas_limit":                21000,
		"to":                       recipient,
		"value":                    "1000000000000000000",
		"max_fee_per_gas":          "30000000000",
		"max_priority_fee_per_gas": "0x77359400",
	}
}

func TestSignTx(t *testing.T) {
	b, s := getTestBackend(t)
	importTestKey(t, b, s, "signer")

	data := mustOK(t, request(t, b, s, logical.UpdateOperation, "keys/signer/sign-tx", eip1559Fields()))
	assert.Equal(t, "eip1559", data["tx_type"])
	assert.Equal(t, testAddress, data["from"])

	raw := hexutil.MustDecode(data["raw_transaction"].(string))
	assert.Equal(t, byte(tx.DynamicFeeType), raw[0])
	decoded, _, err := tx.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), *decoded.Nonce)
	assert.Equal(t, "2000000000", decoded.MaxPriorityFeePerGas.String())
	from, err := tx.Sender(raw)
	require.NoError(t, err)
	assert.Equal(t, testAddress, from.Checksum())
	assert.Equal(t, types.Keccak256Hash(raw).Hex(), data["tx_hash"])

	legacy := map[string]interface{}{
		"tx_type":   "legacy",
		"chain_id":  1,
		"nonce":     9,
		"gas_limit": 21000,
		"gas_price": "20000000000",
		"to":        recipient,
		"value":     "1000000000000000000",
	}
	data = mustOK(t, request(t, b, s, logical.UpdateOperation, "keys/signer/sign-tx", legacy))
	from, err = tx.Sender(hexutil.MustDecode(data["raw_transaction"].(string)))
	require.NoError(t, err)
	assert.Equal(t, testAddress, from.Checksum())

	wrongFrom := eip1559Fields()
	wrongFrom["from"] = recipient
	resp := request(t, b, s, logical.UpdateOperation, "keys/signer/sign-tx", wrongFrom)
	require.True(t, resp.IsError())
	assert.Contains(t, resp.Error().Error(), "does not match")
}

func TestSignTxEIP712(t *testing.T) {
	b, s := getTestBackend(t)
	importTestKey(t, b, s, "signer")

	fields := eip1559Fields()
	fields["tx_type"] = "eip712"
	fields["chain_id"] = 324
	fields["factory_deps"] = []string{"0x" + strings.Repeat("00", 32)}

	data := mustOK(t, request(t, b, s, logical.UpdateOperation, "keys/signer/sign-tx", fields))
	raw := hexutil.MustDecode(data["raw_transaction"].(string))
	assert.Equal(t, byte(tx.EIP712Type), raw[0])
	assert.Equal(t, testAddress, data["from"])

	fields["factory_deps"] = []string{"0x00"}
	resp := request(t, b, s, logical.UpdateOperation, "keys/signer/sign-tx", fields)
	assert.True(t, resp.IsError())
}

func TestTxBuildSignAssemble(t *testing.T) {
	b, s := getTestBackend(t)
	importTestKey(t, b, s, "signer")

	built := mustOK(t, request(t, b, s, logical.UpdateOperation, "tx/build", eip1559Fields()))
	assert.Equal(t, built["data"], built["signing_hash"])

	sigResp := mustOK(t, request(t, b, s, logical.UpdateOperation, "keys/signer/sign", map[string]interface{}{
		"data":     built["data"],
		"type":     built["type"],
		"encoding": built["encoding"],
	}))

	fields := eip1559Fields()
	fields["signature"] = sigResp["signature"]
	assembled := mustOK(t, request(t, b, s, logical.UpdateOperation, "tx/assemble", fields))

	direct := mustOK(t, request(t, b, s, logical.UpdateOperation, "keys/signer/sign-tx", eip1559Fields()))
	assert.Equal(t, direct["raw_transaction"], assembled["raw_transaction"])
	assert.Equal(t, direct["tx_hash"], assembled["tx_hash"])
	assert.Equal(t, testAddress, assembled["from"])
}

func TestTxBuildErrors(t *testing.T) {
	b, s := getTestBackend(t)

	tests := []struct {
		name   string
		mutate func(map[string]interface{})
	}{
		{"unknown type", func(m map[string]interface{}) { m["tx_type"] = "blob" }},
		{"zero chain", func(m map[string]interface{}) { m["chain_id"] = 0 }},
		{"negative nonce", func(m map[string]interface{}) { m["nonce"] = -1 }},
		{"zero gas", func(m map[string]interface{}) { m["gas_limit"] = 0 }},
		{"short to", func(m map[string]interface{}) { m["to"] = "0x1234" }},
		{"bad checksum", func(m map[string]interface{}) { m["to"] = "0x2C7536E3605D9C16a7a3D7b1898e529396a65c23" }},
		{"bad value", func(m map[string]interface{}) { m["value"] = "1e18" }},
		{"negative value", func(m map[string]interface{}) { m["value"] = "-1" }},
		{"bad data", func(m map[string]interface{}) { m["data"] = "0x123" }},
		{"missing max fee", func(m map[string]interface{}) { delete(m, "max_fee_per_gas") }},
		{"tip above max fee", func(m map[string]interface{}) { m["max_priority_fee_per_gas"] = "40000000000" }},
		{"bad access list", func(m map[string]interface{}) { m["access_list"] = "[{" }},
		{"legacy without gas price", func(m map[string]interface{}) { m["tx_type"] = "legacy" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := eip1559Fields()
			tt.mutate(fields)
			resp := request(t, b, s, logical.UpdateOperation, "tx/build", fields)
			assert.True(t, resp.IsError())
		})
	}
}

func TestExportImport(t *testing.T) {
	b, s := getTestBackend(t)
	importTestKey(t, b, s, "signer")

	resp := request(t, b, s, logical.UpdateOperation, "keys/signer/export", map[string]interface{}{"password": "short"})
	assert.True(t, resp.IsError())

	data := mustOK(t, request(t, b, s, logical.UpdateOperation, "keys/signer/export", map[string]interface{}{
		"password":   "correct horse",
		"iterations": 1024,
	}))
	assert.Equal(t, testAddress, data["address"])
	file := data["keystore"].(string)

	key, err := keystore.Decrypt([]byte(file), "correct horse")
	require.NoError(t, err)
	assert.Equal(t, hexutil.MustDecode(testKeyHex), key)

	b2, s2 := getTestBackend(t)
	resp = request(t, b2, s2, logical.UpdateOperation, "keys", map[string]interface{}{
		"name": "restored", "keystore": file, "password": "wrong password",
	})
	assert.True(t, resp.IsError())

	restored := mustOK(t, request(t, b2, s2, logical.UpdateOperation, "keys", map[string]interface{}{
		"name": "restored", "keystore": file, "password": "correct horse",
	}))
	assert.Equal(t, testAddress, restored["address"])
	assert.Equal(t, "keystore", restored["source"])
}

func TestABI(t *testing.T) {
	b, s := getTestBackend(t)

	data := mustOK(t, request(t, b, s, logical.UpdateOperation, "abi/encode", map[string]interface{}{
		"signature": "transfer(address,uint256)",
		"args":      []string{recipient, "1000"},
	}))
	assert.Equal(t, "0xa9059cbb", data["selector"])
	calldata := data["data"].(string)
	assert.Equal(t, "0xa9059cbb"+
		"0000000000000000000000003535353535353535353535353535353535353535"+
		"00000000000000000000000000000000000000000000000000000000000003e8", calldata)

	decoded := mustOK(t, request(t, b, s, logical.UpdateOperation, "abi/decode", map[string]interface{}{
		"signature": "transfer(address to, uint256 amount)",
		"data":      calldata,
		"input":     true,
	}))
	assert.Equal(t, []string{recipient, "1000"}, decoded["values"])

	resp := request(t, b, s, logical.UpdateOperation, "abi/encode", map[string]interface{}{
		"signature": "transfer(address,uint256)",
		"args":      []string{recipient},
	})
	assert.True(t, resp.IsError())

	for _, sig := range []string{
		"f() returns (uint256[4294967296][4294967296])",
		"f() returns (uint256[288230376151711744])",
	} {
		resp = request(t, b, s, logical.UpdateOperation, "abi/decode", map[string]interface{}{
			"signature": sig,
			"data":      "0x" + strings.Repeat("00", 64),
		})
		assert.True(t, resp.IsError(), sig)
	}
}

func TestBackendHelpListsEndpoints(t *testing.T) {
	for _, endpoint := range []string{
		"POST   /keys ", "LIST   /keys ", "GET    /keys/:name ",
		"/keys/:name/sign ", "/keys/:name/sign-tx ", "/keys/:name/export ",
		"/tx/build ", "/tx/assemble ", "/abi/encode ", "/abi/decode ",
	} {
		assert.Contains(t, backendHelp, endpoint)
	}
}
