package vaultsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hashicorp/vault/api"
)

// Client talks to one mount of the secrets engine.
type Client struct {
	api       *api.Client
	mountPath string
}

// NewClient creates a client for the engine at addr using token.
//
// addr is the Vault server address (e.g., "https://vault.example.com:8200").
// VAULT_* environment variables are read first, as the Vault CLI does, and
// non-empty arguments take precedence.
func NewClient(addr, token string, opts ...Option) (*Client, error) {
	o := &options{mountPath: DefaultMountPath}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("vaultsdk: option error: %w", err)
		}
	}

	cfg := api.DefaultConfig()
	if cfg.Error != nil {
		return nil, fmt.Errorf("vaultsdk: %w", cfg.Error)
	}
	if addr != "" {
		cfg.Address = strings.TrimRight(addr, "/")
	}
	if o.httpClient != nil {
		cfg.HttpClient = o.httpClient
	} else {
		if o.timeout > 0 {
			cfg.Timeout = o.timeout
		}
		if o.tlsConfig != nil {
			if err := cfg.ConfigureTLS(o.tlsConfig); err != nil {
				return nil, fmt.Errorf("vaultsdk: tls: %w", err)
			}
		}
	}

	c, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vaultsdk: %w", err)
	}
	if token != "" {
		c.SetToken(token)
	}
	return NewFromAPI(c, o.mountPath), nil
}

// NewFromAPI wraps an already configured Vault client.
func NewFromAPI(c *api.Client, mountPath string) *Client {
	if mountPath == "" {
		mountPath = DefaultMountPath
	}
	return &Client{api: c, mountPath: strings.Trim(mountPath, "/")}
}

func (c *Client) path(parts ...string) string {
	return c.mountPath + "/" + strings.Join(parts, "/")
}

// CreateKey creates, or imports, an account key.
func (c *Client) CreateKey(ctx context.Context, req *CreateKeyRequest) (*Key, error) {
	var key Key
	if err := c.write(ctx, c.path("keys"), req, &key); err != nil {
		return nil, err
	}
	return &key, nil
}

// ListKeys returns the names of all keys.
func (c *Client) ListKeys(ctx context.Context) ([]string, error) {
	secret, err := c.api.Logical().ListWithContext(ctx, c.path("keys"))
	if err != nil {
		return nil, wrapError(err)
	}
	// Vault returns 404 when there are no keys.
	if secret == nil {
		return nil, nil
	}
	var result struct {
		Keys []string `json:"keys"`
	}
	if err := decodeData(secret, &result); err != nil {
		return nil, err
	}
	return result.Keys, nil
}

// ReadKey retrieves key information by name.
func (c *Client) ReadKey(ctx context.Context, name string) (*Key, error) {
	secret, err := c.api.Logical().ReadWithContext(ctx, c.path("keys", name))
	if err != nil {
		return nil, wrapError(err)
	}
	var key Key
	if err := decodeData(secret, &key); err != nil {
		return nil, err
	}
	return &key, nil
}

// Sign signs data with the named key.
func (c *Client) Sign(ctx context.Context, name string, req *SignRequest) (*SignResponse, error) {
	var result SignResponse
	if err := c.write(ctx, c.path("keys", name, "sign"), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SignTransaction signs a transaction with the named key.
func (c *Client) SignTransaction(ctx context.Context, name string, req *TransactionRequest) (*SignedTransaction, error) {
	var result SignedTransaction
	if err := c.write(ctx, c.path("keys", name, "sign-tx"), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// BuildTransaction returns the signing hash of a transaction without
// touching any key.
func (c *Client) BuildTransaction(ctx context.Context, req *TransactionRequest) (*BuildTransactionResponse, error) {
	var result BuildTransactionResponse
	if err := c.write(ctx, c.path("tx", "build"), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AssembleTransaction combines a transaction with a signature over its
// signing hash.
func (c *Client) AssembleTransaction(ctx context.Context, req *TransactionRequest, signature string) (*SignedTransaction, error) {
	data, err := toData(req)
	if err != nil {
		return nil, err
	}
	data["signature"] = signature
	var result SignedTransaction
	if err := c.writeData(ctx, c.path("tx", "assemble"), data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ExportKey exports the named key as a keystore v3 document encrypted with
// password. iterations of zero uses the engine default.
func (c *Client) ExportKey(ctx context.Context, name, password string, iterations int) (*ExportKeyResponse, error) {
	data := map[string]any{"password": password}
	if iterations > 0 {
		data["iterations"] = iterations
	}
	var result ExportKeyResponse
	if err := c.writeData(ctx, c.path("keys", name, "export"), data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// EncodeCall encodes a function call from its signature and textual args.
func (c *Client) EncodeCall(ctx context.Context, signature string, args ...string) (*EncodeResponse, error) {
	var result EncodeResponse
	data := map[string]any{"signature": signature, "args": args}
	if err := c.writeData(ctx, c.path("abi", "encode"), data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Decode decodes return data, or call data when input is true.
func (c *Client) Decode(ctx context.Context, signature, data string, input bool) (*DecodeResponse, error) {
	var result DecodeResponse
	body := map[string]any{"signature": signature, "data": data, "input": input}
	if err := c.writeData(ctx, c.path("abi", "decode"), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) write(ctx context.Context, path string, req any, v any) error {
	data, err := toData(req)
	if err != nil {
		return err
	}
	return c.writeData(ctx, path, data, v)
}

func (c *Client) writeData(ctx context.Context, path string, data map[string]any, v any) error {
	secret, err := c.api.Logical().WriteWithContext(ctx, path, data)
	if err != nil {
		return wrapError(err)
	}
	return decodeData(secret, v)
}

// toData converts a request struct into the map the Vault API sends.
func toData(req any) (map[string]any, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	var data map[string]any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return data, nil
}

// decodeData unmarshals the secret's data field into v.
func decodeData(secret *api.Secret, v any) error {
	if secret == nil || secret.Data == nil {
		return ErrEmptyResponse
	}
	b, err := json.Marshal(secret.Data)
	if err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("failed to unmarshal response data: %w", err)
	}
	return nil
}
