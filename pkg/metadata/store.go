package metadata

import (
	"context"
	"iter"
)

// MetadataStore is the small-object store: a namespace of files and
// directories whose small files keep their bytes inline, next to the inode.
//
// Once a file grows past the tiering threshold its bytes move to the bulk
// store and the inode keeps only a migration pointer (see WriteLink). Fetch
// and ReadAll report which of the two states a file is in.
//
// Lifecycle:
// Init must be called before any other method. Destroy releases the backing
// engine; every later call fails with ErrNotInitialized.
//
// Thread safety:
// Implementations must be safe for concurrent use. A single FileHandle is
// owned by one caller at a time.
type MetadataStore interface {
	// Init prepares the store, creating the root directory if needed.
	Init(ctx context.Context) error

	// Destroy closes every open handle and the backing engine.
	Destroy() error

	// Mknod creates an empty regular file. mode carries permission bits.
	Mknod(ctx context.Context, path string, mode uint32) error

	// Create creates an empty regular file and opens it for writing.
	//
	// Returns:
	//   - A positive FileHandle on success
	//   - ErrAlreadyExists if path exists, ErrNotFound if the parent is missing
	Create(ctx context.Context, path string, mode uint32) (FileHandle, error)

	// Mkdir creates a single directory. The parent must exist.
	Mkdir(ctx context.Context, path string, mode uint32) error

	// Rmdir removes an empty directory.
	Rmdir(ctx context.Context, path string) error

	// Unlink removes a regular file and any inline bytes it holds.
	Unlink(ctx context.Context, path string) error

	// GetAttr returns the full fixed-width stat record.
	GetAttr(ctx context.Context, path string) (*RawStat, error)

	// GetInfo returns the reduced status record, including the migration
	// pointer when the file has been migrated.
	GetInfo(ctx context.Context, path string) (*FileInfo, error)

	// Open opens an existing file. flags use the Open* constants.
	Open(ctx context.Context, path string, flags int) (FileHandle, error)

	// Read returns up to size inline bytes from the handle's position.
	// An empty slice with nil error means end of file.
	Read(ctx context.Context, h FileHandle, size int) ([]byte, error)

	// Write appends data at the handle's position and returns the count written.
	Write(ctx context.Context, h FileHandle, data []byte) (int, error)

	// Close releases a handle.
	Close(ctx context.Context, h FileHandle) error

	// Fetch returns a file's content by path in a buffer of at most capacity
	// bytes. For migrated files the buffer holds the migration pointer.
	Fetch(ctx context.Context, path string, capacity int) ([]byte, FetchReply, error)

	// ReadAll is Fetch for an open handle. It returns every committed byte
	// regardless of the handle position.
	ReadAll(ctx context.Context, h FileHandle, capacity int) ([]byte, FetchReply, error)

	// WriteLink records target as the migration pointer of the handle's file,
	// switches it to StateMigrated and drops its inline bytes.
	WriteLink(ctx context.Context, h FileHandle, target string) error

	// UpdateLink replaces the pointer of an already migrated file.
	UpdateLink(ctx context.Context, path string, target string) error

	// GetParentID returns the identifier of the directory containing the
	// handle's file. Identifiers are stable for the life of the directory.
	GetParentID(ctx context.Context, h FileHandle) (string, error)

	// List opens a forward-only lister over the children of a directory.
	List(ctx context.Context, path string) (Lister, error)
}

// Lister walks directory entries in name order. It is forward-only and may
// read entries lazily as it advances.
//
// Ownership:
// The caller owns the lister. It is released either by an explicit Release
// or automatically when Next moves past the last entry. Release is
// idempotent and must be called when abandoning iteration early.
//
// A lister that fails to read further entries releases itself and reports
// the failure through Err, so Valid turning false is only a complete
// listing when Err is nil.
type Lister interface {
	// Valid reports whether Entry may be called.
	Valid() bool

	// Entry returns the current child name and its status.
	Entry() (string, FileInfo)

	// Next advances to the following entry.
	Next()

	// Release frees the lister.
	Release()

	// Err returns the error that ended iteration early, if any.
	Err() error
}

// Entries adapts a Lister to a range-over-func sequence. The lister is
// released when the loop ends, whether drained or broken early. Check the
// lister's Err after the loop.
func Entries(l Lister) iter.Seq2[string, FileInfo] {
	return func(yield func(string, FileInfo) bool) {
		defer l.Release()
		for ; l.Valid(); l.Next() {
			if !yield(l.Entry()) {
				return
			}
		}
	}
}
