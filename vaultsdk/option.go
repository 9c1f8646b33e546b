package vaultsdk

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/hashicorp/vault/api"
)

// DefaultMountPath is where the engine is mounted unless WithMountPath says
// otherwise.
const DefaultMountPath = "evm"

// Option configures the client.
type Option func(*options) error

type options struct {
	mountPath  string
	timeout    time.Duration
	tlsConfig  *api.TLSConfig
	httpClient *http.Client
}

// WithMountPath sets a custom mount path for the secrets engine.
func WithMountPath(path string) Option {
	return func(o *options) error {
		if path == "" {
			return errors.New("empty mount path")
		}
		o.mountPath = path
		return nil
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) error {
		o.timeout = d
		return nil
	}
}

// WithTLSConfig provides a custom TLS configuration.
func WithTLSConfig(cfg *api.TLSConfig) Option {
	return func(o *options) error {
		o.tlsConfig = cfg
		return nil
	}
}

// WithCACert trusts the PEM-encoded CA certificate in the file at path.
func WithCACert(path string) Option {
	return func(o *options) error {
		if _, err := os.Stat(path); err != nil {
			return err
		}
		o.tls().CACert = path
		return nil
	}
}

// WithCAPEM trusts a PEM-encoded CA certificate given as bytes, e.g. one
// read from a Kubernetes secret.
func WithCAPEM(pem []byte) Option {
	return func(o *options) error {
		if len(pem) == 0 {
			return errors.New("empty CA certificate")
		}
		o.tls().CACertBytes = pem
		return nil
	}
}

// WithHTTPClient provides a fully custom *http.Client. TLS options and
// WithTimeout are ignored when it is set.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) error {
		o.httpClient = client
		return nil
	}
}

func (o *options) tls() *api.TLSConfig {
	if o.tlsConfig == nil {
		o.tlsConfig = &api.TLSConfig{}
	}
	return o.tlsConfig
}
