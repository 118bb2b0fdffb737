// Package errors provides structured error types for the Canopy engines.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the layout and sync engines
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures (including tree-cycle rejections)
//   - NOT_FOUND_*: Resource not found
//   - STORAGE_*: Local document store failures
//   - NETWORK_*: Remote provider failures, including offline detection
//   - CONFLICT_*: Sync conflicts surfaced as data, coded when wrapped
//   - INTERNAL_*: Unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeStorageWrite, "put document %s", id)
//	if errors.Is(err, errors.ErrCodeStorageWrite) {
//	    // Handle storage failure
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeNetwork, origErr, "fetch file %s", fileID)
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidNode     Code = "INVALID_NODE"
	ErrCodeInvalidDocument Code = "INVALID_DOCUMENT"
	ErrCodeInvalidConfig   Code = "INVALID_CONFIG"
	ErrCodeInvalidPath     Code = "INVALID_PATH"
	ErrCodeTreeCycle       Code = "INVALID_TREE_CYCLE"

	// Resource not found errors
	ErrCodeNotFound         Code = "NOT_FOUND"
	ErrCodeNodeNotFound     Code = "NODE_NOT_FOUND"
	ErrCodeDocumentNotFound Code = "DOCUMENT_NOT_FOUND"
	ErrCodeFileNotFound     Code = "FILE_NOT_FOUND"
	ErrCodeVaultNotFound    Code = "VAULT_NOT_FOUND"

	// Local store errors
	ErrCodeStorage            Code = "STORAGE_ERROR"
	ErrCodeStorageRead        Code = "STORAGE_READ"
	ErrCodeStorageWrite       Code = "STORAGE_WRITE"
	ErrCodeStorageTransaction Code = "STORAGE_TRANSACTION"

	// Remote provider errors
	ErrCodeNetwork     Code = "NETWORK_ERROR"
	ErrCodeOffline     Code = "NETWORK_OFFLINE"
	ErrCodeTimeout     Code = "NETWORK_TIMEOUT"
	ErrCodeLock        Code = "NETWORK_LOCK"
	ErrCodeRateLimited Code = "RATE_LIMITED"

	// Sync conflicts (normally carried as data, coded when wrapped)
	ErrCodeConflict Code = "CONFLICT_SYNC"

	// Authentication errors
	ErrCodeUnauthorized Code = "UNAUTHORIZED"
	ErrCodeForbidden    Code = "FORBIDDEN"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsNotFound reports whether err carries any code of the NOT_FOUND
// family (NOT_FOUND itself or a resource-specific *_NOT_FOUND).
func IsNotFound(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return strings.HasSuffix(string(e.Code), "NOT_FOUND")
}

// IsStorage reports whether err carries any STORAGE_* code.
func IsStorage(err error) bool {
	return hasPrefix(err, "STORAGE")
}

// IsNetwork reports whether err carries any NETWORK_* code.
// Offline detection and timeouts count as network errors.
func IsNetwork(err error) bool {
	return hasPrefix(err, "NETWORK")
}

func hasPrefix(err error, prefix string) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	code := string(e.Code)
	return len(code) >= len(prefix) && code[:len(prefix)] == prefix
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// RateLimitedError provides additional information for rate-limited responses.
type RateLimitedError struct {
	RetryAfter int // Seconds to wait before retrying
	Message    string
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: retry after %d seconds", e.RetryAfter)
	}
	return "rate limited"
}

// Code returns the error code for this error type.
func (e *RateLimitedError) Code() Code {
	return ErrCodeRateLimited
}
