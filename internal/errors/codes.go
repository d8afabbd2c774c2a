// Package errors provides structured error handling for vaultidx.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Content store (vault) errors
//   - 3XX: Embedding provider errors
//   - 4XX: Validation errors
//   - 5XX: Index store / internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryVault indicates content store errors.
	CategoryVault Category = "VAULT"
	// CategoryProvider indicates embedding provider errors.
	CategoryProvider Category = "PROVIDER"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryIndex indicates index store and internal errors.
	CategoryIndex Category = "INDEX"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Vault errors (200-299)
	ErrCodeNotFound      = "ERR_201_NOT_FOUND"
	ErrCodePathEscape    = "ERR_202_PATH_ESCAPE"
	ErrCodeVaultIO       = "ERR_203_VAULT_IO"
	ErrCodeNotMarkdown   = "ERR_204_NOT_MARKDOWN"
	ErrCodeSectionAbsent = "ERR_205_SECTION_ABSENT"

	// Provider errors (300-399)
	ErrCodeProviderUnavailable = "ERR_301_PROVIDER_UNAVAILABLE"
	ErrCodeProviderTimeout     = "ERR_302_PROVIDER_TIMEOUT"
	ErrCodeUnknownProvider     = "ERR_303_UNKNOWN_PROVIDER"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeQueryEmpty        = "ERR_402_QUERY_EMPTY"
	ErrCodeDimensionMismatch = "ERR_403_DIMENSION_MISMATCH"

	// Index / internal errors (500-599)
	ErrCodeIndexCorrupt    = "ERR_501_INDEX_CORRUPT"
	ErrCodeInternal        = "ERR_502_INTERNAL"
	ErrCodeEmbeddingFailed = "ERR_503_EMBEDDING_FAILED"
	ErrCodeSyncFailed      = "ERR_504_SYNC_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryIndex
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryVault
	case '3':
		return CategoryProvider
	case '4':
		return CategoryValidation
	default:
		return CategoryIndex
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeIndexCorrupt:
		// Corruption is fatal only if recovery itself fails; callers
		// downgrade after a successful rebuild.
		return SeverityFatal
	case ErrCodeProviderUnavailable, ErrCodeProviderTimeout:
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeProviderUnavailable, ErrCodeProviderTimeout:
		return true
	default:
		return false
	}
}
