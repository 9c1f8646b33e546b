package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/ABT-Tech-Limited/evmkit/internal/config"
	"github.com/ABT-Tech-Limited/evmkit/keystore"
	"github.com/ABT-Tech-Limited/evmkit/rpc"
)

// passwordEnv is read when no --password-file is given.
const passwordEnv = "EVMKIT_PASSWORD"

// app carries state shared by every subcommand.
type app struct {
	configFile   string
	logLevel     string
	keystoreDir  string
	passwordFile string

	cfg    *config.Config
	logger hclog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "evmkit",
		Short:         "EVM account, keystore, ABI and transaction toolkit.",
		Long:          `evmkit manages keystore v3 accounts, encodes and decodes ABI data, and signs and broadcasts transactions.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default: built-in defaults)")
	flags.StringVar(&a.logLevel, "log-level", "", "override the configured logging level")
	flags.StringVar(&a.keystoreDir, "keystore", "", "override the configured keystore directory")
	flags.StringVar(&a.passwordFile, "password-file", "", "file holding the keystore password (default: $"+passwordEnv+")")

	rootCmd.AddCommand(
		newKeystoreCmd(a),
		newABICmd(a),
		newTxCmd(a),
		newAddressCmd(a),
		newVaultCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

func (a *app) init() error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.LoggingLevel = a.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if a.keystoreDir != "" {
		cfg.Keystore.Dir = a.keystoreDir
	}
	a.cfg = cfg
	a.logger = cfg.Logger("evmkit")
	return nil
}

func (a *app) password() (string, error) {
	if a.passwordFile != "" {
		return readPasswordFile(a.passwordFile)
	}
	if p, ok := os.LookupEnv(passwordEnv); ok {
		return p, nil
	}
	return "", errors.New("no password: use --password-file or set " + passwordEnv)
}

// readPasswordFile returns the file contents without the trailing newline.
func readPasswordFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}

func (a *app) dirStorage() (*keystore.DirStorage, error) {
	password, err := a.password()
	if err != nil {
		return nil, err
	}
	return keystore.NewDirStorage(a.cfg.Keystore.Dir, password, a.cfg.Keystore.Iterations)
}

func (a *app) rpcClient() (*rpc.Client, error) {
	opts := []rpc.Option{
		rpc.WithTimeout(a.cfg.RPC.Timeout),
		rpc.WithRetry(a.cfg.RPC.MaxRetries, a.cfg.RPC.Backoff, a.cfg.RPC.MaxBackoff),
		rpc.WithLogger(a.logger),
	}
	for k, v := range a.cfg.RPC.Headers {
		opts = append(opts, rpc.WithHeader(k, v))
	}
	t, err := rpc.NewHTTPTransport(a.cfg.RPC.URL, opts...)
	if err != nil {
		return nil, err
	}
	return rpc.NewClient(t), nil
}
