package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ABT-Tech-Limited/evmkit/abi"
	"github.com/ABT-Tech-Limited/evmkit/hexutil"
)

const (
	testKey     = "0x0000000000000000000000000000000000000000000000000000000000000001"
	testAddress = "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// setup writes a config with a fast kdf and returns the leading flags.
func setup(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "evmkit.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`
logging: error
keystore:
  iterations: 4096
tx:
  chainId: 5
`), 0o600))
	t.Setenv(passwordEnv, "correct horse battery staple")
	return []string{"--config", cfg, "--keystore", filepath.Join(dir, "keys")}
}

func TestAddressCommands(t *testing.T) {
	flags := setup(t)

	out, err := run(t, append(flags, "address", "from-key", testKey)...)
	require.NoError(t, err)
	assert.Equal(t, testAddress+"\n", out)

	out, err = run(t, append(flags, "address", "checksum", strings.ToLower(testAddress))...)
	require.NoError(t, err)
	assert.Equal(t, testAddress+"\n", out)

	_, err = run(t, append(flags, "address", "checksum", "0x7e5f4552091a69125d5dfcb7b8c2659029395BDF")...)
	assert.Error(t, err)
}

func TestKeystoreAndTxSign(t *testing.T) {
	flags := setup(t)

	out, err := run(t, append(flags, "keystore", "import", testKey)...)
	require.NoError(t, err)
	assert.Equal(t, testAddress+"\n", out)

	out, err = run(t, append(flags, "keystore", "list")...)
	require.NoError(t, err)
	assert.Equal(t, testAddress+"\n", out)

	out, err = run(t, append(flags, "tx", "sign",
		"--from", testAddress, "--to", testAddress, "--value", "1000",
		"--nonce", "0", "--gas", "21000", "--max-fee", "2000000000", "--tip", "1000000000")...)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	raw := strings.TrimSpace(strings.TrimPrefix(lines[0], "raw:"))
	assert.True(t, strings.HasPrefix(raw, "0x02"))

	out, err = run(t, append(flags, "tx", "decode", raw)...)
	require.NoError(t, err)
	assert.Contains(t, out, "type:     eip1559")
	assert.Contains(t, out, "from:     "+testAddress)
	assert.Contains(t, out, "chainId:  5")
	assert.Contains(t, out, "value:    1000")

	// no nonce
	_, err = run(t, append(flags, "tx", "sign", "--from", testAddress, "--to", testAddress)...)
	assert.Error(t, err)

	_, err = run(t, append(flags, "tx", "sign", "--from", testAddress, "--nonce", "0",
		"--max-fee", "1", "--tip", "2")...)
	assert.Error(t, err)
}

func TestKeystoreExportDecrypt(t *testing.T) {
	flags := setup(t)

	_, err := run(t, append(flags, "keystore", "import", testKey)...)
	require.NoError(t, err)

	file := filepath.Join(t.TempDir(), "exported.json")
	_, err = run(t, append(flags, "keystore", "export", testAddress, file)...)
	require.NoError(t, err)

	out, err := run(t, append(flags, "keystore", "inspect", file)...)
	require.NoError(t, err)
	assert.Contains(t, out, "address: "+testAddress)
	assert.Contains(t, out, "cipher:  aes-128-ctr")

	out, err = run(t, append(flags, "keystore", "decrypt", file)...)
	require.NoError(t, err)
	assert.Equal(t, testKey+"\n", out)

	t.Setenv(passwordEnv, "wrong password")
	_, err = run(t, append(flags, "keystore", "decrypt", file)...)
	assert.Error(t, err)
}

func TestABICommands(t *testing.T) {
	flags := setup(t)

	out, err := run(t, append(flags, "abi", "selector", "transfer(address,uint256)")...)
	require.NoError(t, err)
	assert.Equal(t, "0xa9059cbb\n", out)

	out, err = run(t, append(flags, "abi", "selector", "--event", "Transfer(address indexed,address indexed,uint256)")...)
	require.NoError(t, err)
	assert.Equal(t, "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef\n", out)

	out, err = run(t, append(flags, "abi", "encode", "transfer(address,uint256)", testAddress, "1000")...)
	require.NoError(t, err)
	calldata := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(calldata, "0xa9059cbb"))
	assert.Len(t, calldata, 2+8+128)

	out, err = run(t, append(flags, "abi", "decode", "--input", "transfer(address,uint256)", calldata)...)
	require.NoError(t, err)
	assert.Equal(t, testAddress+"\n1000\n", out)

	revert, err := abi.ErrorString.Encode("not enough balance")
	require.NoError(t, err)
	out, err = run(t, append(flags, "abi", "revert", hexutil.Encode(revert))...)
	require.NoError(t, err)
	assert.Equal(t, "not enough balance\n", out)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: dev")
}
