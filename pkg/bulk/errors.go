package bulk

import "errors"

var (
	// ErrObjectNotFound indicates the requested object doesn't exist.
	ErrObjectNotFound = errors.New("bulk object not found")

	// ErrObjectExists indicates Create without Overwrite hit an existing object.
	ErrObjectExists = errors.New("bulk object already exists")

	// ErrObjectBusy indicates another writer holds the object.
	ErrObjectBusy = errors.New("bulk object is being written")

	// ErrWriterClosed indicates a write or flush on a closed writer.
	ErrWriterClosed = errors.New("bulk writer closed")

	// ErrInvalidPath indicates a relative or empty object path.
	ErrInvalidPath = errors.New("invalid bulk object path")
)

// PathError records a failed operation on an object path.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return "bulk " + e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error {
	return e.Err
}
