package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ABT-Tech-Limited/evmkit/rpc"
	"github.com/ABT-Tech-Limited/evmkit/vaultsdk"
)

func (a *app) vaultClient() (*vaultsdk.Client, error) {
	opts := []vaultsdk.Option{
		vaultsdk.WithMountPath(a.cfg.Vault.Mount),
		vaultsdk.WithTimeout(a.cfg.RPC.Timeout),
	}
	if a.cfg.Vault.CACert != "" {
		opts = append(opts, vaultsdk.WithCACert(a.cfg.Vault.CACert))
	}
	// the token comes from VAULT_TOKEN
	return vaultsdk.NewClient(a.cfg.Vault.Address, "", opts...)
}

func newVaultCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Use keys held by the Vault secrets engine.",
		Long: `Use keys held by the evmkit Vault secrets engine. The server address and
token are read from VAULT_ADDR and VAULT_TOKEN; vault.address and
vault.mount in the config file override the address and the mount path.`,
	}

	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "List the keys and their addresses.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.vaultClient()
			if err != nil {
				return err
			}
			names, err := client.ListKeys(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				key, err := client.ReadKey(cmd.Context(), name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", key.Name, key.Address, key.Source)
			}
			return nil
		},
	}

	var (
		flags     txFlags
		keyName   string
		fill      bool
		broadcast bool
	)
	signTxCmd := &cobra.Command{
		Use:   "sign-tx",
		Short: "Build, sign and assemble a transaction with a Vault key.",
		Long: `Build, sign and assemble a transaction with a Vault key:

  1. read the key and verify its address against the public key
  2. tx/build returns the signing hash
  3. keys/<name>/sign signs the hash
  4. tx/assemble returns the raw transaction

With --fill, absent nonce, chain id, fee and gas fields are queried from the
configured RPC node. With --broadcast, the result is sent with
eth_sendRawTransaction.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if keyName == "" {
				return errors.New("--key is required")
			}
			client, err := a.vaultClient()
			if err != nil {
				return err
			}
			key, err := client.ReadKey(ctx, keyName)
			if err != nil {
				return err
			}
			from, err := key.ParsedAddress()
			if err != nil {
				return err
			}
			if flags.from == "" {
				flags.from = from.Checksum()
			}
			t, err := flags.build(a)
			if err != nil {
				return err
			}
			if *t.From != from {
				return fmt.Errorf("--from %s is not the address of key %q", t.From.Checksum(), keyName)
			}

			var node *rpc.Client
			if fill || broadcast {
				if node, err = a.rpcClient(); err != nil {
					return err
				}
			}
			if fill {
				if t, err = node.Fill(ctx, from, t); err != nil {
					return err
				}
			}

			req, err := vaultsdk.NewTransactionRequest(t)
			if err != nil {
				return fmt.Errorf("%w (use --fill or set --nonce, --chain-id and --gas)", err)
			}
			built, err := client.BuildTransaction(ctx, req)
			if err != nil {
				return err
			}
			local, _ := t.SigningHash()
			if !strings.EqualFold(built.SigningHash, local.Hex()) {
				return fmt.Errorf("vault signing hash %s differs from local %s", built.SigningHash, local.Hex())
			}
			sig, err := client.Sign(ctx, keyName, built.SignRequest())
			if err != nil {
				return err
			}
			signed, err := client.AssembleTransaction(ctx, req, sig.Signature)
			if err != nil {
				return err
			}
			a.logger.Debug("assembled transaction", "key", keyName, "from", signed.From, "hash", signed.TxHash)
			fmt.Fprintf(cmd.OutOrStdout(), "raw:  %s\nhash: %s\n", signed.RawTransaction, signed.TxHash)
			if !broadcast {
				return nil
			}

			raw, err := signed.Raw()
			if err != nil {
				return err
			}
			h, err := node.SendRawTransaction(ctx, raw)
			if err != nil {
				return err
			}
			if !strings.EqualFold(h.Hex(), signed.TxHash) {
				return fmt.Errorf("node returned hash %s, expected %s", h.Hex(), signed.TxHash)
			}
			a.logger.Info("sent transaction", "hash", signed.TxHash, "rpc", a.cfg.RPC.URL)
			return nil
		},
	}
	flags.register(signTxCmd.Flags())
	signTxCmd.Flags().StringVar(&keyName, "key", "", "name of the Vault key (required)")
	signTxCmd.Flags().BoolVar(&fill, "fill", false, "query absent fields from the RPC node")
	signTxCmd.Flags().BoolVar(&broadcast, "broadcast", false, "send the signed transaction to the RPC node")

	cmd.AddCommand(keysCmd, signTxCmd)
	return cmd
}
