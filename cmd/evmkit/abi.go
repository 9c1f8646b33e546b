package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ABT-Tech-Limited/evmkit/abi"
	"github.com/ABT-Tech-Limited/evmkit/hexutil"
	"github.com/ABT-Tech-Limited/evmkit/keccak"
)

func newABICmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "abi",
		Short: "Encode and decode Solidity ABI data.",
	}

	selectorCmd := &cobra.Command{
		Use:   "selector <signature>",
		Short: "Print the 4-byte selector of a function or error, or the topic of an event.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ev, _ := cmd.Flags().GetBool("event"); ev {
				e, err := abi.ParseEvent(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), e.Topic().Hex())
				return nil
			}
			fn, err := abi.ParseFunction(args[0])
			if err != nil {
				return err
			}
			sel := keccak.Selector(fn.Signature())
			fmt.Fprintln(cmd.OutOrStdout(), hexutil.Encode(sel[:]))
			return nil
		},
	}
	selectorCmd.Flags().Bool("event", false, "treat the signature as an event and print its topic")

	encodeCmd := &cobra.Command{
		Use:   "encode <signature> [args...]",
		Short: "Encode a function call.",
		Long: `Encode a function call. Integers are decimal or 0x hex, addresses and
bytes are hex, arrays and tuples are JSON arrays, e.g.

  evmkit abi encode 'transfer(address,uint256)' 0x35...35 1000`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fn, err := abi.ParseFunction(args[0])
			if err != nil {
				return err
			}
			values, err := abi.ParseArgs(fn.Inputs.Types(), args[1:])
			if err != nil {
				return err
			}
			var data []byte
			if noSel, _ := cmd.Flags().GetBool("no-selector"); noSel {
				data, err = fn.Inputs.Encode(values...)
			} else {
				data, err = fn.EncodeCall(values...)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hexutil.Encode(data))
			return nil
		},
	}
	encodeCmd.Flags().Bool("no-selector", false, "encode the arguments only")

	decodeCmd := &cobra.Command{
		Use:   "decode <signature> <hex-data>",
		Short: "Decode return data, or call data with --input.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fn, err := abi.ParseFunction(args[0])
			if err != nil {
				return err
			}
			data, err := hexutil.Decode(args[1])
			if err != nil {
				return err
			}
			var values []any
			if input, _ := cmd.Flags().GetBool("input"); input {
				values, err = fn.DecodeInput(data)
			} else {
				values, err = fn.DecodeOutput(data)
			}
			if err != nil {
				return err
			}
			for _, v := range values {
				fmt.Fprintln(cmd.OutOrStdout(), abi.FormatValue(v))
			}
			return nil
		},
	}
	decodeCmd.Flags().Bool("input", false, "decode call data (selector and inputs)")

	revertCmd := &cobra.Command{
		Use:   "revert <hex-data>",
		Short: "Decode revert data: Error(string), Panic(uint256) or OffchainLookup.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := hexutil.Decode(args[0])
			if err != nil {
				return err
			}
			return printRevert(cmd, data)
		},
	}

	cmd.AddCommand(selectorCmd, encodeCmd, decodeCmd, revertCmd)
	return cmd
}

func printRevert(cmd *cobra.Command, data []byte) error {
	out := cmd.OutOrStdout()
	if lookup, err := abi.DecodeOffchainLookup(data); err == nil {
		fmt.Fprintf(out, "OffchainLookup sender=%s callback=%s\n", lookup.Sender.Checksum(), hexutil.Encode(lookup.CallbackFunction[:]))
		for _, u := range lookup.URLs {
			fmt.Fprintf(out, "  url: %s\n", u)
		}
		return nil
	}
	reason, err := abi.UnpackRevert(data)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, reason)
	return nil
}
