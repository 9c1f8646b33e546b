// Command vault-plugin-evm serves the evmkit secrets engine as a Vault
// plugin.
package main

import (
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/vault/api"
	"github.com/hashicorp/vault/sdk/plugin"

	"github.com/ABT-Tech-Limited/evmkit/internal/backend"
)

func main() {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:       "vault-plugin-evm",
		Level:      hclog.Info,
		Output:     os.Stderr,
		JSONFormat: true,
	})

	// TLS settings are passed by Vault on the command line
	apiClientMeta := &api.PluginAPIClientMeta{}
	flags := apiClientMeta.FlagSet()
	if err := flags.Parse(os.Args[1:]); err != nil {
		logger.Error("failed to parse flags", "error", err)
		os.Exit(1)
	}

	tlsConfig := apiClientMeta.GetTLSConfig()
	tlsProviderFunc := api.VaultPluginTLSProvider(tlsConfig)

	logger.Info("starting plugin", "version", backend.Version)
	err := plugin.ServeMultiplex(&plugin.ServeOpts{
		BackendFactoryFunc: backend.Factory,
		TLSProviderFunc:    tlsProviderFunc,
		Logger:             logger,
	})
	if err != nil {
		logger.Error("plugin shutting down", "error", err)
		os.Exit(1)
	}
}
