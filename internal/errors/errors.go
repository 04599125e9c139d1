package errors

import (
	stderrors "errors"
	"fmt"
)

// ViewError is the structured error type for wmviews.
// It carries enough context for logging, JSON output and CLI hints.
type ViewError struct {
	// Code is the unique error code (e.g., "ERR_201_FILE_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Validation, Internal).
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
func (e *ViewError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *ViewError) Unwrap() error {
	return e.Cause
}

// Is matches by code, so errors.Is(err, New(code, "", nil)) works.
func (e *ViewError) Is(target error) bool {
	if t, ok := target.(*ViewError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *ViewError) WithDetail(key, value string) *ViewError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *ViewError) WithSuggestion(suggestion string) *ViewError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ViewError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *ViewError {
	return &ViewError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a ViewError from an existing error.
// Returns nil when err is nil.
func Wrap(code string, err error) *ViewError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *ViewError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *ViewError {
	return New(ErrCodeFileNotFound, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *ViewError {
	return New(ErrCodeInvalidInput, message, cause)
}

// DocumentError reports a document that could not be decoded.
func DocumentError(source string, index int, cause error) *ViewError {
	return New(ErrCodeInvalidDocument, fmt.Sprintf("invalid document in %s at %d", source, index), cause).
		WithDetail("source", source).
		WithDetail("index", fmt.Sprint(index))
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *ViewError {
	return New(ErrCodeInternal, message, cause)
}

// As finds the first ViewError in err's chain.
func As(err error) (*ViewError, bool) {
	var ve *ViewError
	if stderrors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ve, ok := As(err); ok {
		return ve.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if ve, ok := As(err); ok {
		return ve.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a ViewError.
// Returns empty string if not a ViewError.
func GetCode(err error) string {
	if ve, ok := As(err); ok {
		return ve.Code
	}
	return ""
}

// GetCategory extracts the category from a ViewError.
// Returns empty string if not a ViewError.
func GetCategory(err error) Category {
	if ve, ok := As(err); ok {
		return ve.Category
	}
	return ""
}
