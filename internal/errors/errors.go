// Package errors provides structured error types for the time tag writer.
// All errors include a category, code, message, optional path and cause so
// that a fatal write failure can be diagnosed from the error alone.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by the kind of failure.
type ErrorCategory string

const (
	ErrCategoryConfig   ErrorCategory = "CONFIG"
	ErrCategoryNaming   ErrorCategory = "NAMING"
	ErrCategoryIO       ErrorCategory = "IO"
	ErrCategoryInternal ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Config codes
	CodeNotADirectory = "NOT_A_DIRECTORY"
	CodeInvalidConfig = "INVALID_CONFIG"

	// Naming codes
	CodeFileExists = "FILE_EXISTS"

	// IO codes
	CodeCreateFailed  = "CREATE_FAILED"
	CodeWriteFailed   = "WRITE_FAILED"
	CodeCloseFailed   = "CLOSE_FAILED"
	CodeSourceFailed  = "SOURCE_FAILED"
	CodeUploadFailed  = "UPLOAD_FAILED"
	CodeCatalogFailed = "CATALOG_FAILED"

	// Internal codes
	CodeCanceled   = "CANCELED"
	CodeUnexpected = "UNEXPECTED"
)

// WriterError is the structured error type returned by every fatal failure.
type WriterError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Path      string
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *WriterError) Error() string {
	msg := fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *WriterError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *WriterError) Is(target error) bool {
	var t *WriterError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new WriterError.
func New(category ErrorCategory, code, message string) *WriterError {
	return &WriterError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new WriterError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *WriterError {
	return &WriterError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithPath returns a copy of the error annotated with the file path involved.
func (e *WriterError) WithPath(path string) *WriterError {
	cp := *e
	cp.Path = path
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var we *WriterError
	if errors.As(err, &we) {
		return we.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a WriterError.
func GetCategory(err error) ErrorCategory {
	var we *WriterError
	if errors.As(err, &we) {
		return we.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a WriterError.
func GetCode(err error) string {
	var we *WriterError
	if errors.As(err, &we) {
		return we.Code
	}
	return ""
}

// GetPath extracts the file path from an error chain.
func GetPath(err error) string {
	var we *WriterError
	if errors.As(err, &we) {
		return we.Path
	}
	return ""
}

func IsConfig(err error) bool { return GetCategory(err) == ErrCategoryConfig }

func IsNaming(err error) bool { return GetCategory(err) == ErrCategoryNaming }

func IsIO(err error) bool { return GetCategory(err) == ErrCategoryIO }

// isRetryable reports whether a failure can be retried by the component that
// owns it. The writer itself never retries.
func isRetryable(category ErrorCategory, code string) bool {
	return category == ErrCategoryIO && code == CodeUploadFailed
}

// Convenience constructors for common errors.

func NewConfigError(code, message string) *WriterError {
	return New(ErrCategoryConfig, code, message)
}

func NewNamingError(path string) *WriterError {
	return New(ErrCategoryNaming, CodeFileExists, "output file already exists").WithPath(path)
}

func NewIOError(code, message, path string, cause error) *WriterError {
	return Wrap(ErrCategoryIO, code, message, cause).WithPath(path)
}

func NewInternalError(message string, cause error) *WriterError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
