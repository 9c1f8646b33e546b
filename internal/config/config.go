// Package config holds the evmkit CLI configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/hashicorp/go-hclog"
	"gopkg.in/yaml.v3"

	"github.com/ABT-Tech-Limited/evmkit/keystore"
	"github.com/ABT-Tech-Limited/evmkit/tx"
)

// Config is the CLI configuration file.
type Config struct {
	LoggingLevel string         `yaml:"logging" default:"info"`
	RPC          RPCConfig      `yaml:"rpc"`
	Keystore     KeystoreConfig `yaml:"keystore"`
	Tx           TxConfig       `yaml:"tx"`
	Vault        VaultConfig    `yaml:"vault"`
}

// RPCConfig configures the JSON-RPC node connection.
type RPCConfig struct {
	URL        string            `yaml:"url" default:"http://localhost:8545"`
	Timeout    time.Duration     `yaml:"timeout" default:"30s"`
	MaxRetries uint64            `yaml:"maxRetries" default:"3"`
	Backoff    time.Duration     `yaml:"backoff" default:"200ms"`
	MaxBackoff time.Duration     `yaml:"maxBackoff" default:"5s"`
	Headers    map[string]string `yaml:"headers"`
}

// KeystoreConfig configures the keystore directory.
type KeystoreConfig struct {
	Dir        string `yaml:"dir" default:"./keystore"`
	Iterations int    `yaml:"iterations" default:"262144"`
}

// TxConfig sets transaction defaults.
type TxConfig struct {
	Type string `yaml:"type" default:"eip1559"`
	// ChainID, when non-zero, is used instead of eth_chainId.
	ChainID int64 `yaml:"chainId"`
}

// VaultConfig locates the evmkit secrets engine for remote signing. The
// token is taken from VAULT_TOKEN and never from the file.
type VaultConfig struct {
	// Address overrides VAULT_ADDR when set.
	Address string `yaml:"address"`
	Mount   string `yaml:"mount" default:"evm"`
	// CACert is a PEM file trusted for the Vault TLS connection.
	CACert string `yaml:"caCert"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	if err := defaults.Set(c); err != nil {
		panic(err)
	}
	return c
}

// Load reads the YAML file over the defaults. An empty path returns the
// defaults.
func Load(file string) (*Config, error) {
	config := &Config{}

	if err := defaults.Set(config); err != nil {
		return nil, err
	}

	if file == "" {
		return config, config.Validate()
	}

	yamlFile, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	type plain Config

	if err := yaml.Unmarshal(yamlFile, (*plain)(config)); err != nil {
		return nil, fmt.Errorf("parse %s: %w", file, err)
	}

	return config, config.Validate()
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if hclog.LevelFromString(c.LoggingLevel) == hclog.NoLevel {
		return fmt.Errorf("invalid logging level %q", c.LoggingLevel)
	}
	if c.RPC.URL == "" {
		return errors.New("rpc.url is required")
	}
	if c.RPC.Timeout <= 0 {
		return errors.New("rpc.timeout must be positive")
	}
	if c.RPC.Backoff <= 0 || c.RPC.MaxBackoff < c.RPC.Backoff {
		return fmt.Errorf("invalid rpc backoff %s..%s", c.RPC.Backoff, c.RPC.MaxBackoff)
	}
	if c.Keystore.Iterations < keystore.DefaultIterations/64 {
		return fmt.Errorf("keystore.iterations %d is too low", c.Keystore.Iterations)
	}
	if _, err := tx.ParseType(c.Tx.Type); err != nil {
		return fmt.Errorf("tx.type: %w", err)
	}
	if c.Tx.ChainID < 0 {
		return errors.New("tx.chainId must not be negative")
	}
	if c.Vault.Mount == "" {
		return errors.New("vault.mount is required")
	}
	return nil
}

// Logger returns an hclog logger at the configured level.
func (c *Config) Logger(name string) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  hclog.LevelFromString(c.LoggingLevel),
		Output: os.Stderr,
	})
}
