package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ABT-Tech-Limited/evmkit/hexutil"
)

// ErrNullResult is returned when a call that must produce a value returns
// JSON null.
var ErrNullResult = errors.New("rpc: null result")

// Error is a JSON-RPC error object returned by the node.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("rpc: %s (code %d)", e.Message, e.Code)
}

// RevertData returns the hex-encoded return data nodes attach to
// execution-reverted errors.
func (e *Error) RevertData() ([]byte, bool) {
	if len(e.Data) == 0 {
		return nil, false
	}
	var s string
	if err := json.Unmarshal(e.Data, &s); err != nil {
		// some nodes nest it as {"data": "0x..."}
		var nested struct {
			Data string `json:"data"`
		}
		if err := json.Unmarshal(e.Data, &nested); err != nil || nested.Data == "" {
			return nil, false
		}
		s = nested.Data
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, false
	}
	return b, true
}

// HTTPError is returned for non-2xx responses that carry no JSON-RPC body.
type HTTPError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("rpc: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("rpc: HTTP %d: %s", e.StatusCode, e.Body)
}
