package tierfs

import (
	"context"
	"os"
	"path"
	"time"

	"github.com/linpawslitap/mds-scaling/internal/logger"
	"github.com/linpawslitap/mds-scaling/pkg/metadata"
)

// FileStatus is the external view of a file or directory.
type FileStatus struct {
	Path        string
	Size        int64
	IsDir       bool
	Replication int16
	BlockSize   int64
	ModTime     time.Time
	AccessTime  time.Time
	Permission  os.FileMode
	UID         uint32
	GID         uint32

	// Link is the bulk object path of a migrated file, empty otherwise.
	Link string
}

// Migrated reports whether the file's bytes live in the bulk store.
func (st *FileStatus) Migrated() bool {
	return st.Link != ""
}

// ============================================================================
// Working directory
// ============================================================================

// WorkingDirectory returns the directory relative paths are resolved against.
func (fs *FileSystem) WorkingDirectory() string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.workingDir
}

// SetWorkingDirectory changes the working directory. A relative dir is
// resolved against the current one. The directory need not exist.
func (fs *FileSystem) SetWorkingDirectory(dir string) {
	abs := fs.resolve(dir)
	fs.mu.Lock()
	fs.workingDir = abs
	fs.mu.Unlock()
}

// resolve makes p absolute and clean.
func (fs *FileSystem) resolve(p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(fs.WorkingDirectory(), p)
}

// ============================================================================
// Directories
// ============================================================================

// Mkdirs creates p and any missing ancestors, outermost first.
//
// It succeeds when the deepest mkdir succeeds or p already is a directory.
// Ancestors that already exist are skipped; any other ancestor failure is
// returned.
func (fs *FileSystem) Mkdirs(ctx context.Context, p string, perm os.FileMode) error {
	if perm == 0 {
		perm = 0o755
	}
	return fs.mkdirs(ctx, fs.resolve(p), metadata.ModeDir|uint32(perm.Perm()))
}

func (fs *FileSystem) mkdirs(ctx context.Context, p string, mode uint32) error {
	if p == "/" {
		return nil
	}
	if err := fs.mkdirs(ctx, path.Dir(p), mode); err != nil {
		return err
	}

	err := fs.meta.Mkdir(ctx, p, mode)
	if err == nil {
		return nil
	}
	if !metadata.IsCode(err, metadata.ErrAlreadyExists) {
		return &PathError{Op: "mkdir", Path: p, Err: err}
	}

	info, err := fs.meta.GetInfo(ctx, p)
	if err != nil {
		return &PathError{Op: "mkdir", Path: p, Err: err}
	}
	if !info.IsDir {
		return &PathError{Op: "mkdir", Path: p, Err: ErrAlreadyExists}
	}
	return nil
}

// ============================================================================
// Status
// ============================================================================

// GetFileStatus returns the status of p, or (nil, nil) when p does not
// exist. The size of a migrated file comes from the bulk store.
func (fs *FileSystem) GetFileStatus(ctx context.Context, p string) (*FileStatus, error) {
	p = fs.resolve(p)

	info, err := fs.meta.GetInfo(ctx, p)
	if err != nil {
		if metadata.IsNotFound(err) {
			return nil, nil
		}
		return nil, &PathError{Op: "stat", Path: p, Err: err}
	}
	return fs.status(ctx, p, info)
}

func (fs *FileSystem) status(ctx context.Context, p string, info *metadata.FileInfo) (*FileStatus, error) {
	st := &FileStatus{
		Path:        p,
		Size:        info.Size,
		IsDir:       info.IsDir,
		Replication: fs.replication,
		BlockSize:   fs.blockSize,
		ModTime:     time.Unix(info.Ctime, 0),
		AccessTime:  time.Unix(info.Atime, 0),
		Permission:  os.FileMode(info.Permission),
		UID:         info.UID,
		GID:         info.GID,
		Link:        info.Link,
	}
	if info.IsDir {
		st.Size = 0
		st.Replication = 1
		st.BlockSize = 0
		st.Permission |= os.ModeDir
		return st, nil
	}
	if !info.Migrated() {
		return st, nil
	}

	obj, err := fs.bulk.Stat(ctx, info.Link)
	if err != nil {
		return nil, &PathError{Op: "stat", Path: p, Err: err}
	}
	st.Size = obj.Size
	if obj.Replication > 0 {
		st.Replication = obj.Replication
	}
	if obj.BlockSize > 0 {
		st.BlockSize = obj.BlockSize
	}
	return st, nil
}

// Exists reports whether p exists.
func (fs *FileSystem) Exists(ctx context.Context, p string) (bool, error) {
	p = fs.resolve(p)
	_, err := fs.meta.GetInfo(ctx, p)
	switch {
	case err == nil:
		return true, nil
	case metadata.IsNotFound(err):
		return false, nil
	default:
		return false, &PathError{Op: "stat", Path: p, Err: err}
	}
}

// ListStatus returns the status of every entry in directory p, or of p
// itself when it is a file.
func (fs *FileSystem) ListStatus(ctx context.Context, p string) ([]*FileStatus, error) {
	p = fs.resolve(p)

	info, err := fs.meta.GetInfo(ctx, p)
	if err != nil {
		if metadata.IsNotFound(err) {
			err = ErrNotFound
		}
		return nil, &PathError{Op: "list", Path: p, Err: err}
	}
	if !info.IsDir {
		st, err := fs.status(ctx, p, info)
		if err != nil {
			return nil, err
		}
		return []*FileStatus{st}, nil
	}

	lister, err := fs.meta.List(ctx, p)
	if err != nil {
		return nil, &PathError{Op: "list", Path: p, Err: err}
	}

	var out []*FileStatus
	for name, entry := range metadata.Entries(lister) {
		st, err := fs.status(ctx, path.Join(p, name), &entry)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	if err := lister.Err(); err != nil {
		return nil, &PathError{Op: "list", Path: p, Err: err}
	}
	return out, nil
}

// ============================================================================
// Delete
// ============================================================================

// Delete removes p.
//
// Files are removed with a single unlink and empty directories with rmdir,
// whatever recursive says. A recursive delete of a non-empty directory
// returns ErrRecursiveDeleteUndefined. The bulk object of a migrated file is
// not removed.
func (fs *FileSystem) Delete(ctx context.Context, p string, recursive bool) error {
	p = fs.resolve(p)

	err := fs.meta.Unlink(ctx, p)
	switch {
	case err == nil:
		return nil
	case metadata.IsNotFound(err):
		return &PathError{Op: "delete", Path: p, Err: ErrNotFound}
	case !metadata.IsCode(err, metadata.ErrIsDirectory):
		return &PathError{Op: "delete", Path: p, Err: err}
	}

	err = fs.meta.Rmdir(ctx, p)
	switch {
	case err == nil:
		return nil
	case recursive && metadata.IsCode(err, metadata.ErrNotEmpty):
		logger.Warn("delete %s: recursive delete of a non-empty directory is not defined", p)
		return &PathError{Op: "delete", Path: p, Err: ErrRecursiveDeleteUndefined}
	default:
		return &PathError{Op: "delete", Path: p, Err: err}
	}
}
