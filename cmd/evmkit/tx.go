package main

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ABT-Tech-Limited/evmkit/account"
	"github.com/ABT-Tech-Limited/evmkit/hexutil"
	"github.com/ABT-Tech-Limited/evmkit/keccak"
	"github.com/ABT-Tech-Limited/evmkit/tx"
	"github.com/ABT-Tech-Limited/evmkit/types"
)

// txFlags holds the transaction fields shared by tx sign and tx send.
// Empty strings and negative numbers mean unset.
type txFlags struct {
	from     string
	txType   string
	to       string
	value    string
	data     string
	nonce    int64
	gas      int64
	chainID  int64
	gasPrice string
	maxFee   string
	tip      string
}

func (f *txFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.from, "from", "", "sending address, must be in the keystore (required)")
	fs.StringVar(&f.txType, "type", "", "legacy, eip1559 or eip712 (default: config tx.type)")
	fs.StringVar(&f.to, "to", "", "recipient; empty deploys a contract")
	fs.StringVar(&f.value, "value", "", "amount in wei, decimal or 0x hex")
	fs.StringVar(&f.data, "data", "", "hex call data")
	fs.Int64Var(&f.nonce, "nonce", -1, "account nonce")
	fs.Int64Var(&f.gas, "gas", -1, "gas limit")
	fs.Int64Var(&f.chainID, "chain-id", -1, "chain id (default: config tx.chainId)")
	fs.StringVar(&f.gasPrice, "gas-price", "", "legacy gas price in wei")
	fs.StringVar(&f.maxFee, "max-fee", "", "max fee per gas in wei")
	fs.StringVar(&f.tip, "tip", "", "max priority fee per gas in wei")
}

func parseWei(name, s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	var (
		x   *big.Int
		err error
	)
	if hexutil.Has0xPrefix(s) {
		x, err = hexutil.DecodeBig(s)
	} else if v, ok := new(big.Int).SetString(s, 10); ok {
		x = v
	} else {
		err = errors.New("not a number")
	}
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	if x.Sign() < 0 {
		return nil, fmt.Errorf("--%s: must not be negative", name)
	}
	return x, nil
}

// build converts the flags into a transaction. Fields left unset stay nil
// so that tx send can fill them from the node.
func (f *txFlags) build(a *app) (*tx.Transaction, error) {
	if f.from == "" {
		return nil, errors.New("--from is required")
	}
	from, err := parseAddressArg(f.from)
	if err != nil {
		return nil, err
	}
	typ := f.txType
	if typ == "" {
		typ = a.cfg.Tx.Type
	}
	t := &tx.Transaction{From: &from}
	if t.Type, err = tx.ParseType(typ); err != nil {
		return nil, err
	}
	if f.to != "" {
		to, err := parseAddressArg(f.to)
		if err != nil {
			return nil, err
		}
		t.To = &to
	}
	if t.Value, err = parseWei("value", f.value); err != nil {
		return nil, err
	}
	if f.data != "" {
		if t.Data, err = hexutil.Decode(f.data); err != nil {
			return nil, fmt.Errorf("--data: %w", err)
		}
	}
	if f.nonce >= 0 {
		t.Nonce = tx.Uint64(uint64(f.nonce))
	}
	if f.gas >= 0 {
		t.GasLimit = tx.Uint64(uint64(f.gas))
	}
	switch {
	case f.chainID >= 0:
		t.ChainID = big.NewInt(f.chainID)
	case a.cfg.Tx.ChainID > 0:
		t.ChainID = big.NewInt(a.cfg.Tx.ChainID)
	}
	if t.GasPrice, err = parseWei("gas-price", f.gasPrice); err != nil {
		return nil, err
	}
	if t.MaxFeePerGas, err = parseWei("max-fee", f.maxFee); err != nil {
		return nil, err
	}
	if t.MaxPriorityFeePerGas, err = parseWei("tip", f.tip); err != nil {
		return nil, err
	}
	if t.MaxFeePerGas != nil && t.MaxPriorityFeePerGas != nil && t.MaxPriorityFeePerGas.Cmp(t.MaxFeePerGas) > 0 {
		return nil, errors.New("--tip must not exceed --max-fee")
	}
	return t, nil
}

func (a *app) openAccount(cmd *cobra.Command, from types.Address) (*account.Account, error) {
	ds, err := a.dirStorage()
	if err != nil {
		return nil, err
	}
	return account.Open(cmd.Context(), ds, from)
}

func printSigned(cmd *cobra.Command, signed *tx.Signed) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "raw:  %s\n", signed.RawHex())
	fmt.Fprintf(out, "hash: %s\n", signed.Hash.Hex())
}

func newTxCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Sign, send and decode transactions.",
	}

	var signFlags txFlags
	signCmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a transaction offline. --nonce and a chain id are required.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := signFlags.build(a)
			if err != nil {
				return err
			}
			if !t.Hashable() {
				return errors.New("offline signing needs --nonce and --chain-id")
			}
			acc, err := a.openAccount(cmd, *t.From)
			if err != nil {
				return err
			}
			signed, err := acc.SignTransaction(cmd.Context(), t)
			if err != nil {
				return err
			}
			a.logger.Debug("signed transaction", "type", t.Type, "from", acc.Address().Checksum(), "hash", signed.Hash.Hex())
			printSigned(cmd, signed)
			return nil
		},
	}
	signFlags.register(signCmd.Flags())

	var sendFlags txFlags
	sendCmd := &cobra.Command{
		Use:   "send",
		Short: "Fill missing fields from the node, sign and broadcast a transaction.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := sendFlags.build(a)
			if err != nil {
				return err
			}
			acc, err := a.openAccount(cmd, *t.From)
			if err != nil {
				return err
			}
			client, err := a.rpcClient()
			if err != nil {
				return err
			}
			signed, err := client.SendTransaction(cmd.Context(), acc, t)
			if err != nil {
				return err
			}
			a.logger.Info("sent transaction", "hash", signed.Hash.Hex(), "rpc", a.cfg.RPC.URL)
			printSigned(cmd, signed)
			return nil
		},
	}
	sendFlags.register(sendCmd.Flags())

	decodeCmd := &cobra.Command{
		Use:   "decode <raw-hex>",
		Short: "Decode a signed legacy or EIP-1559 transaction and recover its sender.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := hexutil.Decode(args[0])
			if err != nil {
				return err
			}
			t, sig, err := tx.Decode(raw)
			if err != nil {
				return err
			}
			sender, err := tx.Sender(raw)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "type:     %s\n", t.Type)
			fmt.Fprintf(out, "hash:     %s\n", hexutil.Encode(keccak.Sum256(raw)))
			fmt.Fprintf(out, "from:     %s\n", sender.Checksum())
			if t.To != nil {
				fmt.Fprintf(out, "to:       %s\n", t.To.Checksum())
			} else {
				fmt.Fprintln(out, "to:       (contract creation)")
			}
			if t.ChainID != nil {
				fmt.Fprintf(out, "chainId:  %s\n", t.ChainID)
			}
			fmt.Fprintf(out, "nonce:    %d\n", derefUint64(t.Nonce))
			fmt.Fprintf(out, "gas:      %d\n", derefUint64(t.GasLimit))
			fmt.Fprintf(out, "value:    %s\n", orZero(t.Value))
			switch t.Type {
			case tx.LegacyType:
				fmt.Fprintf(out, "gasPrice: %s\n", orZero(t.GasPrice))
			default:
				fmt.Fprintf(out, "maxFee:   %s\n", orZero(t.MaxFeePerGas))
				fmt.Fprintf(out, "tip:      %s\n", orZero(t.MaxPriorityFeePerGas))
			}
			fmt.Fprintf(out, "data:     %s\n", hexutil.Encode(t.Data))
			fmt.Fprintf(out, "v:        %d\n", sig.V)
			return nil
		},
	}

	cmd.AddCommand(signCmd, sendCmd, decodeCmd)
	return cmd
}

func derefUint64(p *uint64) uint64 {
	if p == nil {
		return 0
	}
	return *p
}

func orZero(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return x
}
