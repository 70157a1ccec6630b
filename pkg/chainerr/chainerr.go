// Package chainerr defines the coded error taxonomy shared by the chain state core.
// No error in this package is fatal: callers log, notify and continue with a
// degraded state.
package chainerr

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Code identifies a specific error condition.
type Code string

const (
	// Uniqueness violations on insert.
	CodeDuplicateKey   Code = "DUPLICATE_KEY"
	CodeDuplicateChain Code = "DUPLICATE_CHAIN"

	// Registry lifecycle.
	CodeLastChain Code = "LAST_CHAIN"
	CodeNotFound  Code = "NOT_FOUND"

	// I/O and decoding.
	CodePersistence Code = "PERSISTENCE"
	CodeDecode      Code = "DECODE"

	// General.
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeInternal     Code = "INTERNAL_ERROR"
)

// Error is a structured error carrying a code, context details and an optional cause.
type Error struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// ToJSON renders the error for verbose CLI output.
func (e *Error) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap wraps err with a code and message.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Cause: err}
}

// Is reports whether any error in err's chain is an *Error with the given code.
func Is(err error, code Code) bool {
	return GetCode(err) == code
}

// GetCode extracts the first code found in err's chain.
func GetCode(err error) Code {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
