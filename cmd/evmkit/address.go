package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ABT-Tech-Limited/evmkit/hexutil"
	"github.com/ABT-Tech-Limited/evmkit/signer"
	"github.com/ABT-Tech-Limited/evmkit/types"
)

// parseAddressArg parses a full 20-byte address, rejecting a wrong
// mixed-case checksum.
func parseAddressArg(s string) (types.Address, error) {
	if !types.IsChecksumValid(s) {
		return types.Address{}, fmt.Errorf("%q is not a valid address or has a bad checksum", s)
	}
	return types.ParseAddress(s)
}

func newAddressCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Address utilities.",
	}

	checksumCmd := &cobra.Command{
		Use:   "checksum <address>",
		Short: "Print the EIP-55 checksummed form of an address.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddressArg(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), addr.Checksum())
			return nil
		},
	}

	fromKeyCmd := &cobra.Command{
		Use:   "from-key <hex-private-key>",
		Short: "Derive the address of a raw private key.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := hexutil.Decode(args[0])
			if err != nil {
				return err
			}
			defer signer.ZeroBytes(key)
			addr, err := signer.PrivateKeyToAddress(key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), addr.Checksum())
			return nil
		},
	}

	cmd.AddCommand(checksumCmd, fromKeyCmd)
	return cmd
}
