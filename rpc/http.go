package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
)

// Transport sends one JSON-RPC call and decodes its result into result,
// which must be a pointer (or nil to discard it).
type Transport interface {
	Send(ctx context.Context, method string, params any, result any) error
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error"`
}

// HTTPTransport is a JSON-RPC 2.0 client over HTTP POST. Transport failures,
// HTTP 429 and 5xx responses are retried with exponential backoff; JSON-RPC
// errors are returned immediately.
type HTTPTransport struct {
	url     string
	client  *http.Client
	timeout time.Duration
	headers http.Header
	logger  hclog.Logger
	metrics *Metrics

	maxRetries      uint64
	initialInterval time.Duration
	maxInterval     time.Duration

	nextID atomic.Uint64
}

var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a transport for the node at url.
func NewHTTPTransport(url string, opts ...Option) (*HTTPTransport, error) {
	if url == "" {
		return nil, errors.New("rpc: empty url")
	}
	t := &HTTPTransport{
		url:             url,
		timeout:         30 * time.Second,
		headers:         make(http.Header),
		logger:          hclog.NewNullLogger(),
		maxRetries:      3,
		initialInterval: 200 * time.Millisecond,
		maxInterval:     5 * time.Second,
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, fmt.Errorf("rpc: option error: %w", err)
		}
	}
	if t.client == nil {
		t.client = &http.Client{Timeout: t.timeout}
	}
	return t, nil
}

// Send implements Transport.
func (t *HTTPTransport) Send(ctx context.Context, method string, params any, result any) error {
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(request{JSONRPC: "2.0", ID: t.nextID.Add(1), Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("rpc: marshal %s params: %w", method, err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.initialInterval
	b.MaxInterval = t.maxInterval
	b.MaxElapsedTime = 0

	start := time.Now()
	var raw json.RawMessage
	op := func() error {
		var err error
		raw, err = t.post(ctx, body)
		return err
	}
	notify := func(err error, wait time.Duration) {
		t.metrics.retried(method)
		t.logger.Warn("rpc request failed, retrying", "method", method, "error", err, "backoff", wait)
	}
	err = backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(b, t.maxRetries), ctx), notify)
	if err != nil {
		t.metrics.observe(method, "error", start)
		t.logger.Debug("rpc request failed", "method", method, "error", err)
		return err
	}
	t.metrics.observe(method, "ok", start)

	if result == nil {
		return nil
	}
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: %s", ErrNullResult, method)
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("rpc: decode %s result: %w", method, err)
	}
	return nil
}

// post performs one attempt. Errors that must not be retried are wrapped
// with backoff.Permanent.
func (t *HTTPTransport) post(ctx context.Context, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	for k, vs := range t.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("rpc: read response: %w", err)
	}

	var r response
	if jerr := json.Unmarshal(data, &r); jerr != nil || (r.Error == nil && r.Result == nil) {
		herr := &HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(data), 256)}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, herr
		}
		if resp.StatusCode/100 != 2 {
			return nil, backoff.Permanent(herr)
		}
		return nil, backoff.Permanent(fmt.Errorf("rpc: malformed response: %s", herr.Body))
	}
	if r.Error != nil {
		return nil, backoff.Permanent(r.Error)
	}
	return r.Result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Option configures an HTTPTransport.
type Option func(*HTTPTransport) error

// WithHTTPClient replaces the default client (30s timeout). The client is used
// as given; WithTimeout does not apply to it.
func WithHTTPClient(c *http.Client) Option {
	return func(t *HTTPTransport) error {
		if c == nil {
			return errors.New("nil http client")
		}
		t.client = c
		return nil
	}
}

// WithTimeout sets the per-attempt timeout of the default client. It is
// ignored when WithHTTPClient is given, in either order.
func WithTimeout(d time.Duration) Option {
	return func(t *HTTPTransport) error {
		t.timeout = d
		return nil
	}
}

// WithHeader adds a header to every request, e.g. an API key.
func WithHeader(key, value string) Option {
	return func(t *HTTPTransport) error {
		t.headers.Add(key, value)
		return nil
	}
}

// WithLogger sets the logger. Default: no logging.
func WithLogger(l hclog.Logger) Option {
	return func(t *HTTPTransport) error {
		t.logger = l.Named("rpc")
		return nil
	}
}

// WithMetrics records request metrics.
func WithMetrics(m *Metrics) Option {
	return func(t *HTTPTransport) error {
		t.metrics = m
		return nil
	}
}

// WithRetry sets the number of retries after the first attempt and the
// backoff bounds. Zero retries disables retrying.
func WithRetry(maxRetries uint64, initial, max time.Duration) Option {
	return func(t *HTTPTransport) error {
		if initial <= 0 || max < initial {
			return fmt.Errorf("invalid backoff interval %s..%s", initial, max)
		}
		t.maxRetries = maxRetries
		t.initialInterval = initial
		t.maxInterval = max
		return nil
	}
}
