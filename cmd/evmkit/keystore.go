package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ABT-Tech-Limited/evmkit/account"
	"github.com/ABT-Tech-Limited/evmkit/hexutil"
	"github.com/ABT-Tech-Limited/evmkit/keystore"
	"github.com/ABT-Tech-Limited/evmkit/signer"
)

func newKeystoreCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keystore",
		Short: "Manage keystore v3 accounts.",
	}

	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Generate a key and store it in the keystore directory.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.dirStorage()
			if err != nil {
				return err
			}
			acc, err := account.Create(cmd.Context(), ds)
			if err != nil {
				return err
			}
			a.logger.Info("created account", "address", acc.Address().Checksum(), "dir", a.cfg.Keystore.Dir)
			fmt.Fprintln(cmd.OutOrStdout(), acc.Address().Checksum())
			return nil
		},
	}

	importCmd := &cobra.Command{
		Use:   "import <hex-private-key | keystore-file>",
		Short: "Import a raw key or a keystore file encrypted with the same password.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.dirStorage()
			if err != nil {
				return err
			}
			var acc *account.Account
			if data, rerr := os.ReadFile(args[0]); rerr == nil {
				password, err := a.password()
				if err != nil {
					return err
				}
				acc, err = keystore.Import(cmd.Context(), ds, data, password)
				if err != nil {
					return err
				}
			} else {
				key, err := hexutil.Decode(args[0])
				if err != nil {
					return fmt.Errorf("%s is neither a readable file nor a hex key", args[0])
				}
				defer signer.ZeroBytes(key)
				if acc, err = account.Import(cmd.Context(), ds, key); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), acc.Address().Checksum())
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the addresses in the keystore directory.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := keystore.NewDirStorage(a.cfg.Keystore.Dir, "", a.cfg.Keystore.Iterations)
			if err != nil {
				return err
			}
			addrs, err := ds.ListAddresses(cmd.Context())
			if err != nil {
				return err
			}
			for _, addr := range addrs {
				fmt.Fprintln(cmd.OutOrStdout(), addr.Checksum())
			}
			return nil
		},
	}

	inspectCmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print the public fields of a keystore file without decrypting it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			f, err := keystore.Parse(data)
			if err != nil {
				return err
			}
			addr, err := f.Address()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "address: %s\n", addr.Checksum())
			fmt.Fprintf(out, "id:      %s\n", f.ID)
			fmt.Fprintf(out, "version: %d\n", f.Version)
			fmt.Fprintf(out, "cipher:  %s\n", f.Crypto.Cipher)
			switch f.Crypto.KDF {
			case "scrypt":
				fmt.Fprintf(out, "kdf:     scrypt (n=%d r=%d p=%d)\n", f.Crypto.KDFParams.N, f.Crypto.KDFParams.R, f.Crypto.KDFParams.P)
			default:
				fmt.Fprintf(out, "kdf:     %s (c=%d prf=%s)\n", f.Crypto.KDF, f.Crypto.KDFParams.C, f.Crypto.KDFParams.PRF)
			}
			return nil
		},
	}

	decryptCmd := &cobra.Command{
		Use:   "decrypt <file>",
		Short: "Decrypt a keystore file and print the raw private key.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			password, err := a.password()
			if err != nil {
				return err
			}
			key, err := keystore.Decrypt(data, password)
			if err != nil {
				return err
			}
			defer signer.ZeroBytes(key)
			a.logger.Warn("printing raw private key")
			fmt.Fprintln(cmd.OutOrStdout(), hexutil.Encode(key))
			return nil
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export <address> <file>",
		Short: "Write the key for address to file, re-encrypted with --export-password-file.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddressArg(args[0])
			if err != nil {
				return err
			}
			ds, err := a.dirStorage()
			if err != nil {
				return err
			}
			password, err := a.password()
			if err != nil {
				return err
			}
			if f := cmd.Flag("export-password-file").Value.String(); f != "" {
				if password, err = readPasswordFile(f); err != nil {
					return err
				}
			}
			data, err := keystore.Export(cmd.Context(), ds, addr, password, keystore.Params{Iterations: a.cfg.Keystore.Iterations})
			if err != nil {
				return err
			}
			return os.WriteFile(args[1], data, 0o600)
		},
	}
	exportCmd.Flags().String("export-password-file", "", "password for the exported file (default: the keystore password)")

	cmd.AddCommand(newCmd, importCmd, listCmd, inspectCmd, decryptCmd, exportCmd)
	return cmd
}
