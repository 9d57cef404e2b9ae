// Package tierfs presents one file abstraction over two stores: small files
// live inline in a metadata.MetadataStore, and a file that grows past the
// migration threshold is moved once, while it is being written, to a
// bulk.Store.
//
// Write path:
//
//	Create ──► WriteSession ──(pos+n <= threshold)──► MetadataStore.Write
//	                 │
//	                 └─(pos+n > threshold)──► migrate ──► bulk.Writer
//
// Read path: Open issues one GetInfo and one Fetch against the metadata
// store; only migrated files touch the bulk store.
package tierfs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path"
	"sync"

	"github.com/linpawslitap/mds-scaling/internal/logger"
	"github.com/linpawslitap/mds-scaling/pkg/bulk"
	"github.com/linpawslitap/mds-scaling/pkg/metadata"
	"github.com/linpawslitap/mds-scaling/pkg/metrics"
)

const (
	// DefaultThreshold is the migration threshold in bytes.
	DefaultThreshold = 4096

	// DefaultBufferSize is the write buffer used when Create is not given one.
	DefaultBufferSize = 4096

	// DefaultReplication is forwarded to the bulk store on migration.
	DefaultReplication int16 = 3

	// DefaultBlockSize is forwarded to the bulk store on migration (64 MiB).
	DefaultBlockSize int64 = 1 << 26

	// minFetchCapacity keeps the fetch buffer large enough for a migration
	// pointer even when the threshold is tiny.
	minFetchCapacity = 1024

	defaultPermission os.FileMode = 0o644
)

// Options configures a FileSystem. Zero values select the defaults.
type Options struct {
	// Threshold is the size in bytes above which a file is migrated.
	Threshold int

	// BufferSize is the default write buffer for sessions.
	BufferSize int

	// Replication and BlockSize are passed through to the bulk store.
	Replication int16
	BlockSize   int64

	// WorkingDirectory resolves relative paths. Default: /user/<os user>.
	WorkingDirectory string

	// Metrics is optional; nil disables collection.
	Metrics metrics.TierMetrics
}

// FileSystem is the tiered file facade.
//
// The FileSystem takes ownership of both stores: Close destroys the metadata
// store and closes the bulk store. The metadata store must already be
// initialized.
//
// Thread safety:
// FileSystem methods are safe for concurrent use. Each WriteSession and
// ReadStream must be used by a single goroutine.
type FileSystem struct {
	meta metadata.MetadataStore
	bulk bulk.Store

	threshold   int64
	bufferSize  int
	replication int16
	blockSize   int64
	metrics     metrics.TierMetrics

	mu         sync.RWMutex
	workingDir string
}

// New creates a FileSystem over the given stores.
//
// Returns an error if a store is nil or an option is negative.
func New(meta metadata.MetadataStore, bulkStore bulk.Store, opts Options) (*FileSystem, error) {
	if meta == nil {
		return nil, errors.New("metadata store is required")
	}
	if bulkStore == nil {
		return nil, errors.New("bulk store is required")
	}
	if opts.Threshold < 0 || opts.BufferSize < 0 || opts.Replication < 0 || opts.BlockSize < 0 {
		return nil, fmt.Errorf("invalid options: %+v", opts)
	}

	fs := &FileSystem{
		meta:        meta,
		bulk:        bulkStore,
		threshold:   int64(opts.Threshold),
		bufferSize:  opts.BufferSize,
		replication: opts.Replication,
		blockSize:   opts.BlockSize,
		metrics:     opts.Metrics,
		workingDir:  opts.WorkingDirectory,
	}
	if fs.threshold == 0 {
		fs.threshold = DefaultThreshold
	}
	if fs.bufferSize == 0 {
		fs.bufferSize = DefaultBufferSize
	}
	if fs.replication == 0 {
		fs.replication = DefaultReplication
	}
	if fs.blockSize == 0 {
		fs.blockSize = DefaultBlockSize
	}
	if fs.metrics == nil {
		fs.metrics = metrics.NewNoopTierMetrics()
	}
	if fs.workingDir == "" {
		fs.workingDir = defaultWorkingDirectory()
	} else {
		fs.workingDir = path.Clean("/" + fs.workingDir)
	}

	logger.Debug("tierfs: threshold=%d buffer=%d replication=%d block=%d cwd=%s",
		fs.threshold, fs.bufferSize, fs.replication, fs.blockSize, fs.workingDir)
	return fs, nil
}

func defaultWorkingDirectory() string {
	name := os.Getenv("USER")
	if u, err := user.Current(); err == nil && u.Username != "" {
		name = u.Username
	}
	if name == "" {
		return "/"
	}
	return path.Join("/user", name)
}

// Threshold returns the migration threshold in bytes.
func (fs *FileSystem) Threshold() int64 {
	return fs.threshold
}

// DefaultReplication returns the replication factor used for new files.
func (fs *FileSystem) DefaultReplication() int16 {
	return fs.replication
}

// DefaultBlockSize returns the block size used for new files.
func (fs *FileSystem) DefaultBlockSize() int64 {
	return fs.blockSize
}

// MetadataStore returns the store holding the namespace and inline files.
func (fs *FileSystem) MetadataStore() metadata.MetadataStore {
	return fs.meta
}

// BulkStore returns the store holding migrated files.
func (fs *FileSystem) BulkStore() bulk.Store {
	return fs.bulk
}

// Close destroys the metadata store and closes the bulk store. Open
// sessions are not flushed.
func (fs *FileSystem) Close() error {
	err := fs.meta.Destroy()
	if bulkErr := fs.bulk.Close(); err == nil {
		err = bulkErr
	}
	return err
}

// ============================================================================
// Create / Append
// ============================================================================

// CreateOptions are the per-file parameters of Create. Zero values fall back
// to the FileSystem defaults.
type CreateOptions struct {
	Permission  os.FileMode
	Overwrite   bool
	BufferSize  int
	Replication int16
	BlockSize   int64

	// Progress is called at least once per Write, Flush and migration.
	Progress bulk.ProgressFunc
}

func (fs *FileSystem) sessionConfig(opts CreateOptions) sessionConfig {
	cfg := sessionConfig{
		threshold:   fs.threshold,
		bufferSize:  opts.BufferSize,
		permission:  opts.Permission.Perm(),
		replication: opts.Replication,
		blockSize:   opts.BlockSize,
		progress:    opts.Progress,
	}
	if cfg.bufferSize <= 0 {
		cfg.bufferSize = fs.bufferSize
	}
	if cfg.permission == 0 {
		cfg.permission = defaultPermission
	}
	if cfg.replication <= 0 {
		cfg.replication = fs.replication
	}
	if cfg.blockSize <= 0 {
		cfg.blockSize = fs.blockSize
	}
	return cfg
}

// Create creates a file and returns a session for writing it. Missing parent
// directories are created. An existing file is replaced only when
// opts.Overwrite is set; its old bulk object, if any, is left in place until
// the new file migrates over it.
func (fs *FileSystem) Create(ctx context.Context, p string, opts CreateOptions) (*WriteSession, error) {
	p = fs.resolve(p)

	info, err := fs.meta.GetInfo(ctx, p)
	switch {
	case err == nil && info.IsDir:
		return nil, &PathError{Op: "create", Path: p, Err: ErrIsDirectory}
	case err == nil && !opts.Overwrite:
		return nil, &PathError{Op: "create", Path: p, Err: ErrAlreadyExists}
	case err == nil:
		if err := fs.meta.Unlink(ctx, p); err != nil {
			return nil, &PathError{Op: "create", Path: p, Err: err}
		}
	case metadata.IsNotFound(err):
		if err := fs.ensureParent(ctx, p); err != nil {
			return nil, err
		}
	default:
		return nil, &PathError{Op: "create", Path: p, Err: err}
	}

	cfg := fs.sessionConfig(opts)
	h, err := fs.meta.Create(ctx, p, metadata.ModeRegular|uint32(cfg.permission))
	if err != nil {
		return nil, &PathError{Op: "create", Path: p, Err: err}
	}
	if !h.Valid() {
		return nil, &PathError{Op: "create", Path: p, Err: fmt.Errorf("%w: handle %d", ErrCreateFailed, h)}
	}

	s, err := newWriteSession(ctx, fs, h, p, 0, cfg)
	if err != nil {
		_ = fs.meta.Close(ctx, h)
		return nil, err
	}
	return s, nil
}

func (fs *FileSystem) ensureParent(ctx context.Context, p string) error {
	parent := path.Dir(p)
	if parent == "/" {
		return nil
	}
	info, err := fs.meta.GetInfo(ctx, parent)
	switch {
	case err == nil && info.IsDir:
		return nil
	case err == nil:
		return &PathError{Op: "create", Path: parent, Err: metadata.NewError(metadata.ErrNotDirectory, "not a directory", parent)}
	case metadata.IsNotFound(err):
		return fs.mkdirs(ctx, parent, metadata.ModeDir|0o755)
	default:
		return &PathError{Op: "create", Path: p, Err: err}
	}
}

// Append opens an existing file for appending. An inline file resumes a
// session at its current size; a migrated file gets a session that writes
// straight to the bulk object.
func (fs *FileSystem) Append(ctx context.Context, p string, bufferSize int, progress bulk.ProgressFunc) (*WriteSession, error) {
	p = fs.resolve(p)

	info, err := fs.meta.GetInfo(ctx, p)
	if err != nil {
		if metadata.IsNotFound(err) {
			err = ErrNotFound
		}
		return nil, &PathError{Op: "append", Path: p, Err: err}
	}
	if info.IsDir {
		return nil, &PathError{Op: "append", Path: p, Err: ErrIsDirectory}
	}

	cfg := fs.sessionConfig(CreateOptions{
		Permission: os.FileMode(info.Permission),
		BufferSize: bufferSize,
		Progress:   progress,
	})

	h, err := fs.meta.Open(ctx, p, metadata.OpenWriteOnly|metadata.OpenAppend)
	if err != nil {
		return nil, &PathError{Op: "append", Path: p, Err: err}
	}
	if !h.Valid() {
		return nil, &PathError{Op: "append", Path: p, Err: fmt.Errorf("%w: handle %d", ErrCreateFailed, h)}
	}

	if !info.Migrated() {
		s, err := newWriteSession(ctx, fs, h, p, info.Size, cfg)
		if err != nil {
			_ = fs.meta.Close(ctx, h)
			return nil, err
		}
		return s, nil
	}

	stream, err := fs.bulk.Append(ctx, info.Link, cfg.bufferSize, progress)
	if err != nil {
		_ = fs.meta.Close(ctx, h)
		return nil, &PathError{Op: "append", Path: p, Err: err}
	}
	return newMigratedSession(ctx, fs, h, p, stream, cfg), nil
}
