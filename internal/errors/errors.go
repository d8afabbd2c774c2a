package errors

import (
	"fmt"
)

// VaultError is the structured error type for vaultidx.
// It carries a stable code for callers that route on error kind, plus
// context for logging and user presentation.
type VaultError struct {
	// Code is the unique error code (e.g., "ERR_202_PATH_ESCAPE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Vault, Provider, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *VaultError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *VaultError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with VaultError.
func (e *VaultError) Is(target error) bool {
	if t, ok := target.(*VaultError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *VaultError) WithDetail(key, value string) *VaultError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *VaultError) WithSuggestion(suggestion string) *VaultError {
	e.Suggestion = suggestion
	return e
}

// New creates a new VaultError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *VaultError {
	return &VaultError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a VaultError from an existing error.
// The error's message becomes the VaultError message.
func Wrap(code string, err error) *VaultError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Wrapf creates a VaultError from an existing error with a contextual
// message prefix.
func Wrapf(code string, err error, format string, args ...interface{}) *VaultError {
	if err == nil {
		return nil
	}
	return New(code, fmt.Sprintf(format, args...)+": "+err.Error(), err)
}

// NotFound creates a not-found error for the given vault path.
func NotFound(path string) *VaultError {
	return New(ErrCodeNotFound, fmt.Sprintf("note not found: %s", path), nil).
		WithDetail("path", path)
}

// PathEscape creates a path-escape error for the given path.
// This is always rejected before any I/O, never silently clamped.
func PathEscape(path string) *VaultError {
	return New(ErrCodePathEscape, fmt.Sprintf("path escapes vault root: %s", path), nil).
		WithDetail("path", path).
		WithSuggestion("use a path relative to the vault root, without '..' segments")
}

// ProviderUnavailable creates a degraded-provider error.
func ProviderUnavailable(provider string, cause error) *VaultError {
	return New(ErrCodeProviderUnavailable,
		fmt.Sprintf("embedding provider %q unavailable", provider), cause).
		WithDetail("provider", provider)
}

// IndexCorrupt creates an index-corruption error.
func IndexCorrupt(message string, cause error) *VaultError {
	return New(ErrCodeIndexCorrupt, message, cause).
		WithSuggestion("delete the index database and run rebuild; notes are never affected")
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *VaultError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *VaultError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ve, ok := err.(*VaultError); ok {
		return ve.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if ve, ok := err.(*VaultError); ok {
		return ve.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a VaultError.
// Returns empty string if not a VaultError.
func GetCode(err error) string {
	if ve, ok := err.(*VaultError); ok {
		return ve.Code
	}
	return ""
}
