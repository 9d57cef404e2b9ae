// Package bulk defines the large-object store that receives files once they
// outgrow the metadata store's inline capacity.
package bulk

import (
	"context"
	"io"
	"os"
	"path"
	"strings"
	"time"
)

// ProgressFunc is invoked by long-running transfers to signal liveness.
type ProgressFunc func()

// CreateOptions are passed through to the backend on Create.
type CreateOptions struct {
	// Permission is applied to the new object where the backend supports it.
	Permission os.FileMode

	// Overwrite replaces an existing object instead of failing with
	// ErrObjectExists.
	Overwrite bool

	// BufferSize is the client-side write buffer in bytes.
	BufferSize int

	// Replication is a hint for replicated backends.
	Replication int16

	// BlockSize is a hint for block-structured backends.
	BlockSize int64

	// Progress, when set, is called as data is committed.
	Progress ProgressFunc
}

// Writer is an open bulk object.
//
// Bytes become readable by Open no later than Close. Flush pushes buffered
// bytes toward the backend as far as the backend allows.
type Writer interface {
	io.WriteCloser
	Flush() error
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Path        string
	Size        int64
	Replication int16
	BlockSize   int64
	ModTime     time.Time
}

// Store is a bulk object store keyed by absolute slash-separated paths.
//
// Thread safety:
// Implementations must be safe for concurrent use. An object has at most one
// open Writer at a time; a second Create or Append fails with ErrObjectBusy.
type Store interface {
	// Create opens a new object for writing.
	Create(ctx context.Context, path string, opts CreateOptions) (Writer, error)

	// Open returns a reader over the object's committed bytes.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Append opens an existing object for writing at its end.
	Append(ctx context.Context, path string, bufferSize int, progress ProgressFunc) (Writer, error)

	// Stat describes an object.
	Stat(ctx context.Context, path string) (*ObjectInfo, error)

	// Close releases backend resources.
	Close() error
}

// CleanPath validates an object path and returns its clean form.
func CleanPath(p string) (string, error) {
	if !strings.HasPrefix(p, "/") {
		return "", &PathError{Op: "clean", Path: p, Err: ErrInvalidPath}
	}
	clean := path.Clean(p)
	if clean == "/" {
		return "", &PathError{Op: "clean", Path: p, Err: ErrInvalidPath}
	}
	return clean, nil
}

// CollectableStore is implemented by stores that can enumerate and remove
// objects. The garbage collector uses it to find bulk objects no metadata
// entry points at.
type CollectableStore interface {
	Store

	// List returns every object whose path starts with prefix. The result
	// may include objects that still have an open writer.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Delete removes an object. Deleting a missing object is not an error;
	// deleting one with an open writer fails with ErrObjectBusy.
	Delete(ctx context.Context, path string) error
}

// AsCollectable returns s, or the store it wraps, as a CollectableStore.
func AsCollectable(s Store) (CollectableStore, bool) {
	for {
		if c, ok := s.(CollectableStore); ok {
			return c, true
		}
		u, ok := s.(interface{ Unwrap() Store })
		if !ok {
			return nil, false
		}
		s = u.Unwrap()
	}
}
