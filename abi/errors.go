package abi

import "errors"

var (
	// ErrInvalidType is returned for unknown or malformed ABI types.
	ErrInvalidType = errors.New("abi: invalid type")
	// ErrInvalidValue is returned when a value does not match its type, or
	// encoded data is too short or out of range for its type.
	ErrInvalidValue = errors.New("abi: invalid value")
	// ErrIncorrectParameterCount is returned when the number of values,
	// topics or data words does not match the declared parameters.
	ErrIncorrectParameterCount = errors.New("abi: incorrect parameter count")
	// ErrSelectorMismatch is returned when data does not start with the
	// expected 4-byte selector.
	ErrSelectorMismatch = errors.New("abi: selector mismatch")
	// ErrNotFound is returned when a method, event or error is not in an ABI.
	ErrNotFound = errors.New("abi: not found")
)
