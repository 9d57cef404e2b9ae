package metadata

import "errors"

// StoreError represents a domain error from MetadataStore operations.
//
// These are namespace errors (file not found, directory not empty, ...) as
// opposed to infrastructure errors from the backing key-value engine, which
// are returned wrapped but otherwise untouched.
type StoreError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path is the path related to the error (if applicable)
	Path string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// Is matches any *StoreError carrying the same Code, so callers can write
// errors.Is(err, &metadata.StoreError{Code: metadata.ErrNotFound}).
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	return ok && t.Code == e.Code
}

// ErrorCode represents the category of a StoreError.
type ErrorCode int

const (
	// ErrNotFound indicates the requested file or directory doesn't exist
	ErrNotFound ErrorCode = iota

	// ErrAlreadyExists indicates an entry with the name already exists
	ErrAlreadyExists

	// ErrNotEmpty indicates a directory still has children
	ErrNotEmpty

	// ErrIsDirectory indicates the operation expected a file but got a directory
	ErrIsDirectory

	// ErrNotDirectory indicates a path component or target is not a directory
	ErrNotDirectory

	// ErrInvalidArgument indicates invalid parameters were provided
	ErrInvalidArgument

	// ErrInvalidHandle indicates the handle is unknown or already closed
	ErrInvalidHandle

	// ErrBufferTooSmall indicates inline content exceeds the caller's capacity
	ErrBufferTooSmall

	// ErrMigrated indicates the file's bytes live in the bulk store, so the
	// inline data path cannot serve the request
	ErrMigrated

	// ErrNotInitialized indicates Init was not called or Destroy already ran
	ErrNotInitialized
)

// String returns a short name for the code, used in logs.
func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "not_found"
	case ErrAlreadyExists:
		return "already_exists"
	case ErrNotEmpty:
		return "not_empty"
	case ErrIsDirectory:
		return "is_directory"
	case ErrNotDirectory:
		return "not_directory"
	case ErrInvalidArgument:
		return "invalid_argument"
	case ErrInvalidHandle:
		return "invalid_handle"
	case ErrBufferTooSmall:
		return "buffer_too_small"
	case ErrMigrated:
		return "migrated"
	case ErrNotInitialized:
		return "not_initialized"
	default:
		return "unknown"
	}
}

// NewError builds a StoreError.
func NewError(code ErrorCode, message, path string) *StoreError {
	return &StoreError{Code: code, Message: message, Path: path}
}

// IsCode reports whether err wraps a StoreError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Code == code
}

// IsNotFound is shorthand for IsCode(err, ErrNotFound).
func IsNotFound(err error) bool {
	return IsCode(err, ErrNotFound)
}
