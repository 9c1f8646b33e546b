package backend

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ABT-Tech-Limited/evmkit/hexutil"
	"github.com/ABT-Tech-Limited/evmkit/types"
)

const (
	// MaxNameLength is the maximum length for key names.
	MaxNameLength = 128
	// MaxMetadataKeys is the maximum number of metadata keys.
	MaxMetadataKeys = 16
	// MaxMetadataKeyLen is the maximum length for a metadata key.
	MaxMetadataKeyLen = 64
	// MaxMetadataValueLen is the maximum length for a metadata value.
	MaxMetadataValueLen = 256
	// MaxDataLength is the maximum length for data to sign (1MB).
	MaxDataLength = 1024 * 1024
	// MinPasswordLength is the minimum keystore export password length.
	MinPasswordLength = 8
)

// namePattern allows alphanumeric, underscore, and hyphen.
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateName validates a key name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("name exceeds maximum length of %d characters", MaxNameLength)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("name contains invalid characters: only alphanumeric, underscore, and hyphen allowed")
	}
	return nil
}

// ValidateMetadata validates metadata key-value pairs.
func ValidateMetadata(metadata map[string]string) error {
	if metadata == nil {
		return nil
	}
	if len(metadata) > MaxMetadataKeys {
		return fmt.Errorf("metadata exceeds maximum of %d keys", MaxMetadataKeys)
	}
	for k, v := range metadata {
		if len(k) > MaxMetadataKeyLen {
			return fmt.Errorf("metadata key '%s' exceeds maximum length of %d characters", k, MaxMetadataKeyLen)
		}
		if len(v) > MaxMetadataValueLen {
			return fmt.Errorf("metadata value for key '%s' exceeds maximum length of %d characters", k, MaxMetadataValueLen)
		}
	}
	return nil
}

// ValidateSignData validates data to be signed.
func ValidateSignData(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("data cannot be empty")
	}
	if len(data) > MaxDataLength {
		return fmt.Errorf("data exceeds maximum length of %d bytes", MaxDataLength)
	}
	return nil
}

// ValidatePassword validates a keystore password.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// parseAmount parses a non-negative decimal or 0x-hex integer field.
// An empty string yields nil.
func parseAmount(field, s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	var (
		x  *big.Int
		ok bool
	)
	if hexutil.Has0xPrefix(s) {
		x, ok = new(big.Int).SetString(s[2:], 16)
	} else {
		x, ok = new(big.Int).SetString(s, 10)
	}
	if !ok {
		return nil, fmt.Errorf("invalid '%s': must be a decimal or 0x-prefixed hex string", field)
	}
	if x.Sign() < 0 {
		return nil, fmt.Errorf("%s must be non-negative", field)
	}
	return x, nil
}

// parseAddress parses an optional address field.
func parseAddress(field, s string) (*types.Address, error) {
	if s == "" {
		return nil, nil
	}
	if len(strings.TrimPrefix(s, "0x")) != 2*types.AddressLength {
		return nil, fmt.Errorf("invalid '%s' address: expected 20 bytes", field)
	}
	if !types.IsChecksumValid(s) {
		return nil, fmt.Errorf("invalid '%s' address: bad EIP-55 checksum", field)
	}
	addr, err := types.ParseAddress(s)
	if err != nil {
		return nil, fmt.Errorf("invalid '%s' address: %s", field, err)
	}
	return &addr, nil
}

// parseHex decodes an optional hex field.
func parseHex(field, s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid '%s': %s", field, err)
	}
	return b, nil
}
