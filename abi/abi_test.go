package abi

import (
	"encoding/hex"
	"math/big"
	"strings"
	"testing"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ABT-Tech-Limited/evmkit/types"
)

func words(ws ...string) string {
	var b strings.Builder
	for _, w := range ws {
		b.WriteString(strings.Repeat("0", 64-len(w)))
		b.WriteString(w)
	}
	return b.String()
}

func rightWord(s string) string {
	return s + strings.Repeat("0", 64-len(s))
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"uint", "uint256"},
		{"int", "int256"},
		{"uint8", "uint8"},
		{"int24", "int24"},
		{"address", "address"},
		{"bool", "bool"},
		{"bytes", "bytes"},
		{"bytes32", "bytes32"},
		{"string", "string"},
		{"uint256[]", "uint256[]"},
		{"address[3][]", "address[3][]"},
		{"(uint256,string)[]", "(uint256,string)[]"},
		{"(uint256, (bool, bytes4)[2])", "(uint256,(bool,bytes4)[2])"},
		{" string ", "string"},
		{"()", "()"},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got.String(), tt.in)
	}

	for _, bad := range []string{"", "uint7", "uint0", "uint264", "uint08", "bytes0", "bytes33", "int-8",
		"function", "tuple", "uint256[", "uint256[x]", "(uint256", "(uint256,)", "uint256)",
		"uint256[288230376151711744]", "uint256[4294967296][4294967296]", "uint256[524289]",
		"uint256[65536][65536]", "()[16777217]", "(uint256[524288],uint256)"} {
		_, err := ParseType(bad)
		assert.ErrorIs(t, err, ErrInvalidType, bad)
	}

	// the largest static array that fits the head limit
	ty, err := ParseType("uint256[524288]")
	require.NoError(t, err)
	assert.Equal(t, MaxHeadSize, ty.HeadSize())
}

func TestDynamicAndHeadSize(t *testing.T) {
	tests := []struct {
		in      string
		dynamic bool
		head    int
	}{
		{"uint256", false, 32},
		{"bytes", true, 32},
		{"uint256[3]", false, 96},
		{"string[2]", true, 32},
		{"(uint256,address)", false, 64},
		{"(uint256,bytes)", true, 32},
		{"(uint256,bool)[2]", false, 128},
	}
	for _, tt := range tests {
		ty := MustParseType(tt.in)
		assert.Equal(t, tt.dynamic, ty.IsDynamic(), tt.in)
		assert.Equal(t, tt.head, ty.HeadSize(), tt.in)
	}
}

func TestEncodeStaticCall(t *testing.T) {
	f := MustParseFunction("baz(uint32 x, bool y)")
	assert.Equal(t, "baz(uint32,bool)", f.Signature())

	got, err := f.EncodeCall(69, true)
	require.NoError(t, err)
	assert.Equal(t, "cdcd77c0"+words("45", "1"), hex.EncodeToString(got))
}

func TestEncodeDynamicCall(t *testing.T) {
	f := MustParseFunction("sam(bytes,bool,uint256[])")
	got, err := f.EncodeCall([]byte("dave"), true, []int{1, 2, 3})
	require.NoError(t, err)

	want := "a5643bf2" +
		words("60", "1", "a0", "4") + rightWord(hex.EncodeToString([]byte("dave"))) +
		words("3", "1", "2", "3")
	assert.Equal(t, want, hex.EncodeToString(got))
}

func TestEncodeMixedCall(t *testing.T) {
	f := MustParseFunction("f(uint256,uint32[],bytes10,bytes)")
	got, err := f.EncodeCall(
		big.NewInt(0x123),
		[]uint32{0x456, 0x789},
		[]byte("1234567890"),
		[]byte("Hello, world!"),
	)
	require.NoError(t, err)

	want := "8be65246" +
		words("123", "80") + rightWord(hex.EncodeToString([]byte("1234567890"))) +
		words("e0", "2", "456", "789", "d") + rightWord(hex.EncodeToString([]byte("Hello, world!")))
	assert.Equal(t, want, hex.EncodeToString(got))

	decoded, err := f.DecodeInput(got)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(0x123), decoded[0])
	assert.Equal(t, []any{big.NewInt(0x456), big.NewInt(0x789)}, decoded[1])
	assert.Equal(t, []byte("1234567890"), decoded[2])
	assert.Equal(t, []byte("Hello, world!"), decoded[3])
}

func TestEncodeIntegers(t *testing.T) {
	enc, err := EncodeValue(Int256, -1)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("ff", 32), hex.EncodeToString(enc))

	enc, err = EncodeValue(Int(8), -128)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("ff", 31)+"80", hex.EncodeToString(enc))

	enc, err = EncodeValue(Uint256, uint256.NewInt(1024))
	require.NoError(t, err)
	assert.Equal(t, words("400"), hex.EncodeToString(enc))

	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	_, err = EncodeValue(Uint256, max)
	assert.NoError(t, err)

	for _, tc := range []struct {
		ty Type
		v  any
	}{
		{Int(8), 128},
		{Int(8), -129},
		{Uint(8), 256},
		{Uint256, -1},
		{Uint256, new(big.Int).Lsh(big.NewInt(1), 256)},
		{Uint256, "1"},
		{Uint256, (*big.Int)(nil)},
	} {
		_, err := EncodeValue(tc.ty, tc.v)
		assert.ErrorIs(t, err, ErrInvalidValue, "%s %v", tc.ty, tc.v)
	}
}

func TestEncodeValueErrors(t *testing.T) {
	_, err := Encode([]Type{Uint256, Bool}, []any{1})
	assert.ErrorIs(t, err, ErrIncorrectParameterCount)

	_, err = EncodeValue(ArrayOf(Uint256, 2), []int{1})
	assert.ErrorIs(t, err, ErrIncorrectParameterCount)

	_, err = EncodeValue(Tuple(Uint256, Bool), []any{1})
	assert.ErrorIs(t, err, ErrIncorrectParameterCount)

	_, err = EncodeValue(Bytes4, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = EncodeValue(Address, "0x01")
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = EncodeValue(Bool, 1)
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = EncodeValue(Type{}, 1)
	assert.ErrorIs(t, err, ErrInvalidType)
}

func TestFixedBytesInputs(t *testing.T) {
	h := types.HexToHash("0x01")
	enc, err := EncodeValue(Bytes32, h)
	require.NoError(t, err)
	assert.Equal(t, h[:], enc)

	enc, err = EncodeValue(Bytes4, [4]byte{0xde, 0xad, 0xbe, 0xef})
	require.NoError(t, err)
	assert.Equal(t, rightWord("deadbeef"), hex.EncodeToString(enc))
}

func TestRoundTrip(t *testing.T) {
	addr := types.HexToAddress("0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826")
	ts, err := ParseTypes("address, int64, (string,uint8[2]), bytes[], bool[3], (uint256,bytes)[]")
	require.NoError(t, err)

	values := []any{
		addr,
		big.NewInt(-42),
		[]any{"hello", []any{big.NewInt(1), big.NewInt(2)}},
		[]any{[]byte{}, []byte{0xaa, 0xbb}},
		[]any{true, false, true},
		[]any{[]any{big.NewInt(7), []byte("x")}},
	}
	enc, err := Encode(ts, values)
	require.NoError(t, err)

	got, err := Decode(ts, enc)
	require.NoError(t, err)
	assert.Equal(t, values, got)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]Type{Uint256}, make([]byte, 31))
	assert.ErrorIs(t, err, ErrInvalidValue)

	badBool, _ := hex.DecodeString(words("2"))
	_, err = Decode([]Type{Bool}, badBool)
	assert.ErrorIs(t, err, ErrInvalidValue)

	overflow, _ := hex.DecodeString(words("100"))
	_, err = Decode([]Type{Uint8}, overflow)
	assert.ErrorIs(t, err, ErrInvalidValue)

	notSignExtended, _ := hex.DecodeString(words("80"))
	_, err = Decode([]Type{Int(8)}, notSignExtended)
	assert.ErrorIs(t, err, ErrInvalidValue)

	hugeOffset, _ := hex.DecodeString(words("ffffffffffffffffffffffffffffffff"))
	_, err = Decode([]Type{String}, hugeOffset)
	assert.ErrorIs(t, err, ErrInvalidValue)

	hugeLength, _ := hex.DecodeString(words("20", "ffffffff"))
	_, err = Decode([]Type{SliceOf(Uint256)}, hugeLength)
	assert.ErrorIs(t, err, ErrInvalidValue)

	shortBytes, _ := hex.DecodeString(words("20", "40") + rightWord("aa"))
	_, err = Decode([]Type{Bytes}, shortBytes)
	assert.ErrorIs(t, err, ErrInvalidValue)

	dirtyAddress, _ := hex.DecodeString(words("01" + strings.Repeat("00", 19) + "aa"))
	_, err = Decode([]Type{Address}, dirtyAddress)
	assert.ErrorIs(t, err, ErrInvalidValue)

	// hand-built types skip ParseType and must still fail without allocating
	huge := ArrayOf(ArrayOf(Uint256, 1<<32), 1<<32)
	_, err = Decode([]Type{huge}, make([]byte, 64))
	assert.ErrorIs(t, err, ErrInvalidType)
	_, err = Encode([]Type{huge}, []any{nil})
	assert.ErrorIs(t, err, ErrInvalidType)
	_, err = Decode([]Type{ArrayOf(Uint256, 1<<58)}, make([]byte, 64))
	assert.ErrorIs(t, err, ErrInvalidType)

	manyStrings, _ := hex.DecodeString(words("20"))
	_, err = Decode([]Type{ArrayOf(String, 1000)}, manyStrings)
	assert.ErrorIs(t, err, ErrInvalidValue)

	f := MustParseFunction("transfer(address,uint256)")
	_, err = f.DecodeInput([]byte{0x01, 0x02, 0x03, 0x04})
	assert.ErrorIs(t, err, ErrSelectorMismatch)
}

func TestDecodeNegativeInt(t *testing.T) {
	data, _ := hex.DecodeString(strings.Repeat("ff", 31) + "38")
	v, err := DecodeValue(Int(16), data)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(-200), v)
}

func TestParseFunction(t *testing.T) {
	f, err := ParseFunction("function balanceOf(address owner) external view returns (uint256 balance)")
	require.NoError(t, err)
	assert.Equal(t, "balanceOf", f.Name)
	assert.Equal(t, "owner", f.Inputs[0].Name)
	assert.Equal(t, "view", f.StateMutability)
	require.Len(t, f.Outputs, 1)
	assert.Equal(t, "balance", f.Outputs[0].Name)
	assert.Equal(t, [4]byte{0x70, 0xa0, 0x82, 0x31}, f.Selector())

	f, err = ParseFunction("submit((address,uint256)[] memory orders, bytes calldata sig)")
	require.NoError(t, err)
	assert.Equal(t, "submit((address,uint256)[],bytes)", f.Signature())

	for _, bad := range []string{"", "noparens", "(uint256)", "f(uint256", "f(uint256) returns", "f(uint7)", "f(uint256 indexed x)", "f() virtual"} {
		_, err := ParseFunction(bad)
		assert.ErrorIs(t, err, ErrInvalidType, bad)
	}
}

func TestEventDecodeLog(t *testing.T) {
	e, err := ParseEvent("Transfer(address indexed from, address indexed to, uint256 value)")
	require.NoError(t, err)
	assert.Equal(t, "ddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef", hex.EncodeToString(e.Topic().Bytes()))

	from := types.HexToAddress("0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826")
	to := types.HexToAddress("0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB")
	topics := []types.Hash{e.Topic(), types.BytesToHash(from.Bytes()), types.BytesToHash(to.Bytes())}
	data, _ := hex.DecodeString(words("3e8"))

	got, err := e.DecodeLog(topics, data)
	require.NoError(t, err)
	assert.Equal(t, from, got["from"])
	assert.Equal(t, to, got["to"])
	assert.Equal(t, big.NewInt(1000), got["value"])

	_, err = e.DecodeLog(topics[:2], data)
	assert.ErrorIs(t, err, ErrIncorrectParameterCount)

	_, err = e.DecodeLog(topics, nil)
	assert.ErrorIs(t, err, ErrIncorrectParameterCount)

	_, err = e.DecodeLog([]types.Hash{{}, topics[1], topics[2]}, data)
	assert.ErrorIs(t, err, ErrSelectorMismatch)
}

func TestEventIndexedDynamic(t *testing.T) {
	e, err := ParseEvent("Named(string indexed name, bytes payload) anonymous")
	require.NoError(t, err)
	assert.True(t, e.Anonymous)

	nameHash := types.Keccak256Hash([]byte("alice"))
	data, err := e.Inputs.NonIndexed().Encode([]byte{1, 2})
	require.NoError(t, err)

	got, err := e.DecodeLog([]types.Hash{nameHash}, data)
	require.NoError(t, err)
	assert.Equal(t, nameHash, got["name"])
	assert.Equal(t, []byte{1, 2}, got["payload"])
}

func TestUnpackRevert(t *testing.T) {
	data, err := ErrorString.Encode("Not enough Ether provided.")
	require.NoError(t, err)
	assert.Equal(t, "08c379a0", hex.EncodeToString(data[:4]))

	reason, err := UnpackRevert(data)
	require.NoError(t, err)
	assert.Equal(t, "Not enough Ether provided.", reason)

	data, err = PanicError.Encode(0x11)
	require.NoError(t, err)
	assert.Equal(t, "4e487b71", hex.EncodeToString(data[:4]))
	reason, err = UnpackRevert(data)
	require.NoError(t, err)
	assert.Equal(t, "panic: arithmetic underflow or overflow (0x11)", reason)

	_, err = UnpackRevert([]byte{0xde, 0xad, 0xbe, 0xef})
	assert.ErrorIs(t, err, ErrSelectorMismatch)

	revert := NewRevertError([]byte{0xde, 0xad, 0xbe, 0xef, 0x00})
	assert.Equal(t, "execution reverted: custom error 0xdeadbeef", revert.Error())
}

func TestCustomError(t *testing.T) {
	e, err := ParseError("InsufficientBalance(uint256 available, uint256 required)")
	require.NoError(t, err)

	data, err := e.Encode(10, 20)
	require.NoError(t, err)
	values, err := e.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []any{big.NewInt(10), big.NewInt(20)}, values)

	_, err = ErrorString.Decode(data)
	assert.ErrorIs(t, err, ErrSelectorMismatch)
}

func TestOffchainLookup(t *testing.T) {
	assert.Equal(t, [4]byte{0x55, 0x6f, 0x18, 0x30}, OffchainLookupError.Selector())

	in := &OffchainLookup{
		Sender:           types.HexToAddress("0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC"),
		URLs:             []string{"https://gateway.example/{sender}/{data}.json", "https://backup.example/"},
		CallData:         []byte{0x01, 0x02, 0x03},
		CallbackFunction: [4]byte{0xb4, 0xa8, 0x58, 0x01},
		ExtraData:        []byte("extra"),
	}
	data, err := in.Encode()
	require.NoError(t, err)

	out, err := DecodeOffchainLookup(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = DecodeOffchainLookup(data[4:])
	assert.ErrorIs(t, err, ErrSelectorMismatch)
}

const testABI = `[
	{"type":"function","name":"transfer","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"transfer","constant":false,
	 "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"},{"name":"data","type":"bytes"}],
	 "outputs":[]},
	{"type":"function","name":"fill","stateMutability":"payable",
	 "inputs":[{"name":"orders","type":"tuple[]","components":[
		{"name":"maker","type":"address"},{"name":"amounts","type":"uint256[2]"}]}],
	 "outputs":[]},
	{"type":"event","name":"Transfer","anonymous":false,
	 "inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]},
	{"type":"error","name":"Unauthorized","inputs":[{"name":"caller","type":"address"}]},
	{"type":"constructor","inputs":[{"name":"supply","type":"uint256"}]},
	{"type":"receive","stateMutability":"payable"}
]`

func TestJSON(t *testing.T) {
	a, err := JSON(strings.NewReader(testABI))
	require.NoError(t, err)

	transfer, err := a.Method("transfer")
	require.NoError(t, err)
	assert.Equal(t, "transfer(address,uint256)", transfer.Signature())

	overload, err := a.Method("transfer0")
	require.NoError(t, err)
	assert.Equal(t, "transfer(address,uint256,bytes)", overload.Signature())
	assert.Equal(t, "nonpayable", overload.StateMutability)

	fill, err := a.Method("fill")
	require.NoError(t, err)
	assert.Equal(t, "fill((address,uint256[2])[])", fill.Signature())
	assert.Equal(t, []string{"maker", "amounts"}, fill.Inputs[0].Type.Elem.ComponentNames)

	ev, err := a.EventByTopic(types.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"))
	require.NoError(t, err)
	assert.Equal(t, "Transfer", ev.Name)

	unauthorized, err := a.ErrorBySelector(a.Errors["Unauthorized"].Selector())
	require.NoError(t, err)
	assert.Equal(t, "Unauthorized(address)", unauthorized.Signature())

	builtin, err := a.ErrorBySelector([4]byte{0x08, 0xc3, 0x79, 0xa0})
	require.NoError(t, err)
	assert.Equal(t, "Error", builtin.Name)

	require.NotNil(t, a.Constructor)
	assert.Equal(t, "(uint256)", a.Constructor.Inputs.Signature())

	_, err = a.Method("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = JSON(strings.NewReader(`[{"type":"function","name":"f","inputs":[{"type":"uint7"}]}]`))
	assert.ErrorIs(t, err, ErrInvalidType)
}

func TestMatchesReferenceCodec(t *testing.T) {
	ref, err := gethabi.JSON(strings.NewReader(`[{"type":"function","name":"m","inputs":[
		{"name":"a","type":"uint256[][]"},{"name":"b","type":"string[]"},
		{"name":"c","type":"bytes"},{"name":"d","type":"int256"},{"name":"e","type":"address[2]"}],"outputs":[]}]`))
	require.NoError(t, err)

	a := [][]*big.Int{{big.NewInt(1), big.NewInt(2)}, {big.NewInt(3)}}
	b := []string{"one", "two", "three"}
	c := []byte(strings.Repeat("z", 40))
	d := big.NewInt(-12345)
	e := [2]types.Address{
		types.HexToAddress("0x00000000000000000000000000000000000000aa"),
		types.HexToAddress("0x00000000000000000000000000000000000000bb"),
	}

	want, err := ref.Pack("m", a, b, c, d, [2]common.Address{common.Address(e[0]), common.Address(e[1])})
	require.NoError(t, err)

	got, err := MustParseFunction("m(uint256[][],string[],bytes,int256,address[2])").EncodeCall(a, b, c, d, e)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(want), hex.EncodeToString(got))
}
