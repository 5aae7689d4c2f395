// Package errors provides structured error types for the swxkit system.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategorySchema     ErrorCategory = "SCHEMA"
	ErrCategoryDerivation ErrorCategory = "DERIVATION"
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryContainer  ErrorCategory = "CONTAINER"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryConfig     ErrorCategory = "CONFIG"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Schema codes
	CodeLoadFailed = "LOAD_FAILED"

	// Derivation codes
	CodeUnknownDerivation = "UNKNOWN_DERIVATION"
	CodeDerivationFailed  = "DERIVATION_FAILED"

	// Validation codes
	CodeMissingEpoch   = "MISSING_EPOCH"
	CodeNotValidatable = "NOT_VALIDATABLE"

	// Container codes
	CodeLengthMismatch  = "LENGTH_MISMATCH"
	CodeDuplicateName   = "DUPLICATE_NAME"
	CodeUnknownVariable = "UNKNOWN_VARIABLE"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"
	CodeCorruptFile    = "CORRUPT_FILE"

	// Config codes
	CodeInvalidMission = "INVALID_MISSION"
	CodeParseFailed    = "PARSE_FAILED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// KitError is the structured error type used throughout the system.
type KitError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *KitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *KitError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *KitError) Is(target error) bool {
	var t *KitError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new KitError.
func New(category ErrorCategory, code, message string) *KitError {
	return &KitError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new KitError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *KitError {
	return &KitError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *KitError) WithDetails(details map[string]interface{}) *KitError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var ke *KitError
	if errors.As(err, &ke) {
		return ke.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a KitError.
func GetCategory(err error) ErrorCategory {
	var ke *KitError
	if errors.As(err, &ke) {
		return ke.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a KitError.
func GetCode(err error) string {
	var ke *KitError
	if errors.As(err, &ke) {
		return ke.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable. Only transient
// storage transfer failures qualify; schema, derivation, and validation
// failures are deterministic.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewSchemaError(code, message string, cause error) *KitError {
	return Wrap(ErrCategorySchema, code, message, cause)
}

func NewDerivationError(code, message string, cause error) *KitError {
	return Wrap(ErrCategoryDerivation, code, message, cause)
}

func NewValidationError(code, message string) *KitError {
	return New(ErrCategoryValidation, code, message)
}

func NewContainerError(code, message string) *KitError {
	return New(ErrCategoryContainer, code, message)
}

func NewStorageError(code, message string, cause error) *KitError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewConfigError(code, message string, cause error) *KitError {
	return Wrap(ErrCategoryConfig, code, message, cause)
}

func NewInternalError(message string, cause error) *KitError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
