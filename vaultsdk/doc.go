// Package vaultsdk is a Go client for the evmkit Vault secrets engine.
//
// It wraps github.com/hashicorp/vault/api and exposes the engine's key
// management, signing, transaction and keystore endpoints as typed calls.
//
// # Quick Start
//
//	client, err := vaultsdk.NewClient("https://vault.example.com:8200", "s.my-token")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	key, err := client.CreateKey(ctx, &vaultsdk.CreateKeyRequest{Name: "hot-wallet"})
//
//	req, err := vaultsdk.NewTransactionRequest(t)
//	signed, err := client.SignTransaction(ctx, "hot-wallet", req)
//
// # TLS with Self-Signed Certificates
//
//	client, err := vaultsdk.NewClient(addr, token,
//	    vaultsdk.WithCACert("/etc/vault/ca.pem"),
//	)
//
// An existing *api.Client, for example one authenticated through an auth
// method, can be reused with NewFromAPI.
package vaultsdk
