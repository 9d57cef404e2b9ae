package tierfs

import "errors"

// Standard errors returned by the tiered file layer. Failures from either
// backing store are not translated: they are wrapped with %w and can be
// inspected with errors.Is / errors.As.
var (
	// ErrInvalidState is returned when a write session would start past the
	// migration threshold.
	ErrInvalidState = errors.New("session position exceeds migration threshold")

	// ErrNotFound is returned when a path does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrCreateFailed is returned when the metadata store hands back an
	// invalid handle.
	ErrCreateFailed = errors.New("create failed")

	// ErrClosedStream is returned for operations on a closed stream.
	ErrClosedStream = errors.New("stream closed")

	// ErrIsDirectory is returned when a file operation targets a directory.
	ErrIsDirectory = errors.New("is a directory")

	// ErrAlreadyExists is returned by Create without overwrite, and by
	// Mkdirs when a file occupies the path.
	ErrAlreadyExists = errors.New("file already exists")

	// ErrRecursiveDeleteUndefined is returned by Delete(path, true) on a
	// directory. Recursive removal has no defined semantics yet.
	ErrRecursiveDeleteUndefined = errors.New("recursive delete is not defined")
)

// PathError records an error together with the operation and path that
// caused it.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error {
	return e.Err
}
