package fs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/nspcc-dev/hrw"

	"github.com/linpawslitap/mds-scaling/internal/logger"
	"github.com/linpawslitap/mds-scaling/pkg/bulk"
)

// FSBulkStoreConfig configures the local filesystem bulk store.
type FSBulkStoreConfig struct {
	// Volumes are root directories. Each object is placed on one volume
	// chosen by rendezvous hashing of its path.
	Volumes []string `mapstructure:"volumes"`

	// DirMode is used for intermediate directories (default 0755).
	DirMode os.FileMode `mapstructure:"dir_mode"`

	// FileMode is used when CreateOptions.Permission is zero (default 0644).
	FileMode os.FileMode `mapstructure:"file_mode"`

	// BlockSize is reported by Stat (default 64 MiB).
	BlockSize int64 `mapstructure:"block_size"`
}

// FSBulkStore stores bulk objects as regular files spread over volumes.
//
// Each volume holds two trees: objects/ with the object data and locks/ with
// one lock file per object path. Writers hold an exclusive advisory lock for
// their lifetime, so a second writer on the same object, in this or another
// process, fails with ErrObjectBusy instead of interleaving bytes. The lock
// of an object always lives on its preferred volume.
type FSBulkStore struct {
	volumes   []string
	dirMode   os.FileMode
	fileMode  os.FileMode
	blockSize int64
}

var _ bulk.CollectableStore = (*FSBulkStore)(nil)

const (
	objectsDir = "objects"
	locksDir   = "locks"
)

// NewFSBulkStore validates the volumes and creates them if missing.
func NewFSBulkStore(ctx context.Context, cfg FSBulkStoreConfig) (*FSBulkStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(cfg.Volumes) == 0 {
		return nil, errors.New("at least one volume is required")
	}

	s := &FSBulkStore{
		dirMode:   cfg.DirMode,
		fileMode:  cfg.FileMode,
		blockSize: cfg.BlockSize,
	}
	if s.dirMode == 0 {
		s.dirMode = 0o755
	}
	if s.fileMode == 0 {
		s.fileMode = 0o644
	}
	if s.blockSize == 0 {
		s.blockSize = 64 << 20
	}

	for _, v := range cfg.Volumes {
		abs, err := filepath.Abs(v)
		if err != nil {
			return nil, fmt.Errorf("resolve volume %s: %w", v, err)
		}
		for _, sub := range []string{objectsDir, locksDir} {
			if err := os.MkdirAll(filepath.Join(abs, sub), s.dirMode); err != nil {
				return nil, fmt.Errorf("create volume %s: %w", abs, err)
			}
		}
		s.volumes = append(s.volumes, abs)
	}
	return s, nil
}

// placement returns volume indices ordered by preference for p.
func (s *FSBulkStore) placement(p string) []uint64 {
	indices := make([]uint64, len(s.volumes))
	for i := range indices {
		indices[i] = uint64(i)
	}
	hrw.SortSliceByValue(indices, hrw.Hash([]byte(p)))
	return indices
}

func (s *FSBulkStore) localPath(volume uint64, p string) string {
	return filepath.Join(s.volumes[volume], objectsDir, filepath.FromSlash(p))
}

func (s *FSBulkStore) lockPath(p string) string {
	return filepath.Join(s.volumes[s.placement(p)[0]], locksDir, filepath.FromSlash(p))
}

// lock takes the writer lock of p.
func (s *FSBulkStore) lock(p string) (*flock.Flock, error) {
	lp := s.lockPath(p)
	if err := os.MkdirAll(filepath.Dir(lp), s.dirMode); err != nil {
		return nil, err
	}
	return acquire(lp)
}

// locate finds the file holding p. The preferred volume is tried first;
// the rest cover objects written before the volume list changed.
func (s *FSBulkStore) locate(p string) (string, os.FileInfo, error) {
	for _, v := range s.placement(p) {
		lp := s.localPath(v, p)
		fi, err := os.Stat(lp)
		if err == nil {
			return lp, fi, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", nil, err
		}
	}
	return "", nil, bulk.ErrObjectNotFound
}

func (s *FSBulkStore) Create(ctx context.Context, path string, opts bulk.CreateOptions) (bulk.Writer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := bulk.CleanPath(path)
	if err != nil {
		return nil, err
	}

	lp := s.localPath(s.placement(clean)[0], clean)
	if err := os.MkdirAll(filepath.Dir(lp), s.dirMode); err != nil {
		return nil, &bulk.PathError{Op: "create", Path: clean, Err: err}
	}

	lock, err := s.lock(clean)
	if err != nil {
		return nil, &bulk.PathError{Op: "create", Path: clean, Err: err}
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !opts.Overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	perm := opts.Permission
	if perm == 0 {
		perm = s.fileMode
	}

	f, err := os.OpenFile(lp, flags, perm)
	if err != nil {
		release(lock)
		if errors.Is(err, os.ErrExist) {
			err = bulk.ErrObjectExists
		}
		return nil, &bulk.PathError{Op: "create", Path: clean, Err: err}
	}

	logger.Debug("bulk create %s on %s", clean, lp)
	return newWriter(f, lock, opts.BufferSize, opts.Progress), nil
}

func (s *FSBulkStore) Append(ctx context.Context, path string, bufferSize int, progress bulk.ProgressFunc) (bulk.Writer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := bulk.CleanPath(path)
	if err != nil {
		return nil, err
	}

	lp, _, err := s.locate(clean)
	if err != nil {
		return nil, &bulk.PathError{Op: "append", Path: clean, Err: err}
	}

	lock, err := s.lock(clean)
	if err != nil {
		return nil, &bulk.PathError{Op: "append", Path: clean, Err: err}
	}

	f, err := os.OpenFile(lp, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		release(lock)
		return nil, &bulk.PathError{Op: "append", Path: clean, Err: err}
	}
	return newWriter(f, lock, bufferSize, progress), nil
}

func (s *FSBulkStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := bulk.CleanPath(path)
	if err != nil {
		return nil, err
	}

	lp, _, err := s.locate(clean)
	if err != nil {
		return nil, &bulk.PathError{Op: "open", Path: clean, Err: err}
	}
	f, err := os.Open(lp)
	if err != nil {
		return nil, &bulk.PathError{Op: "open", Path: clean, Err: err}
	}
	return f, nil
}

func (s *FSBulkStore) Stat(ctx context.Context, path string) (*bulk.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := bulk.CleanPath(path)
	if err != nil {
		return nil, err
	}

	_, fi, err := s.locate(clean)
	if err != nil {
		return nil, &bulk.PathError{Op: "stat", Path: clean, Err: err}
	}
	return &bulk.ObjectInfo{
		Path:        clean,
		Size:        fi.Size(),
		Replication: 1,
		BlockSize:   s.blockSize,
		ModTime:     fi.ModTime(),
	}, nil
}

// List walks every volume. An object found on more than one volume is
// reported once.
func (s *FSBulkStore) List(ctx context.Context, prefix string) ([]bulk.ObjectInfo, error) {
	seen := make(map[string]struct{})
	var out []bulk.ObjectInfo

	for _, volume := range s.volumes {
		root := filepath.Join(volume, objectsDir)
		err := filepath.WalkDir(root, func(lp string, d iofs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}

			rel, err := filepath.Rel(root, lp)
			if err != nil {
				return err
			}
			p := "/" + filepath.ToSlash(rel)
			if !strings.HasPrefix(p, prefix) {
				return nil
			}
			if _, dup := seen[p]; dup {
				return nil
			}
			seen[p] = struct{}{}

			fi, err := d.Info()
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return nil
				}
				return err
			}
			out = append(out, bulk.ObjectInfo{
				Path:        p,
				Size:        fi.Size(),
				Replication: 1,
				BlockSize:   s.blockSize,
				ModTime:     fi.ModTime(),
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("list volume %s: %w", volume, err)
		}
	}
	return out, nil
}

// Delete removes the object from whichever volume holds it. The object's
// lock is taken first so an active writer is never deleted underneath.
func (s *FSBulkStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean, err := bulk.CleanPath(path)
	if err != nil {
		return err
	}

	lp, _, err := s.locate(clean)
	if errors.Is(err, bulk.ErrObjectNotFound) {
		return nil
	}
	if err != nil {
		return &bulk.PathError{Op: "delete", Path: clean, Err: err}
	}

	lock, err := s.lock(clean)
	if err != nil {
		return &bulk.PathError{Op: "delete", Path: clean, Err: err}
	}
	defer release(lock)

	if err := os.Remove(lp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &bulk.PathError{Op: "delete", Path: clean, Err: err}
	}
	_ = os.Remove(lock.Path())
	logger.Debug("bulk delete %s from %s", clean, lp)
	return nil
}

func (s *FSBulkStore) Close() error {
	return nil
}

// ============================================================================
// Writer
// ============================================================================

func acquire(lockPath string) (*flock.Flock, error) {
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, bulk.ErrObjectBusy
	}
	return lock, nil
}

func release(lock *flock.Flock) {
	if err := lock.Unlock(); err != nil {
		logger.Warn("release lock %s: %v", lock.Path(), err)
	}
}

type writer struct {
	f        *os.File
	bw       *bufio.Writer
	lock     *flock.Flock
	progress bulk.ProgressFunc
	closed   bool
}

func newWriter(f *os.File, lock *flock.Flock, bufferSize int, progress bulk.ProgressFunc) *writer {
	if bufferSize <= 0 {
		bufferSize = 4096
	}
	return &writer{
		f:        f,
		bw:       bufio.NewWriterSize(f, bufferSize),
		lock:     lock,
		progress: progress,
	}
}

func (w *writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, bulk.ErrWriterClosed
	}
	return w.bw.Write(p)
}

func (w *writer) Flush() error {
	if w.closed {
		return bulk.ErrWriterClosed
	}
	if err := w.bw.Flush(); err != nil {
		return err
	}
	if w.progress != nil {
		w.progress()
	}
	return nil
}

// Close flushes, syncs and releases the lock. Safe to call twice.
func (w *writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	defer release(w.lock)

	err := w.bw.Flush()
	if syncErr := w.f.Sync(); err == nil {
		err = syncErr
	}
	if closeErr := w.f.Close(); err == nil {
		err = closeErr
	}
	return err
}
