package vaultsdk

import (
	"errors"
	"fmt"

	"github.com/hashicorp/vault/api"
)

// ErrEmptyResponse is returned when Vault answers without data, which is
// how it reports a missing path.
var ErrEmptyResponse = errors.New("vault: empty response")

// Error represents an error returned by the Vault API.
type Error struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Errors contains the error messages from the Vault response.
	Errors []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("vault: HTTP %d", e.StatusCode)
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("vault: %s (HTTP %d)", e.Errors[0], e.StatusCode)
	}
	return fmt.Sprintf("vault: %v (HTTP %d)", e.Errors, e.StatusCode)
}

func wrapError(err error) error {
	var re *api.ResponseError
	if errors.As(err, &re) {
		return &Error{StatusCode: re.StatusCode, Errors: re.Errors}
	}
	return err
}
