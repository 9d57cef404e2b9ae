package tierfs

import (
	"fmt"
	"path"
	"time"

	"github.com/linpawslitap/mds-scaling/internal/logger"
	"github.com/linpawslitap/mds-scaling/pkg/bulk"
	"github.com/linpawslitap/mds-scaling/pkg/metadata"
)

// BulkRoot is the bulk store directory every migrated file lives under.
const BulkRoot = "/files"

// BulkPath returns the bulk object path for a file named base inside the
// directory with the given ID.
func BulkPath(parentID, base string) string {
	return path.Join(BulkRoot, parentID, base)
}

// migrate moves the file from the metadata store to the bulk store.
//
// Steps, in order:
//  1. push the staged buffer and read back everything committed so far
//  2. create the bulk object, copy those bytes into it in one write and
//     flush them so the bulk object is readable
//  3. record the migration pointer in the metadata store
//
// The pointer is written last, so any failure leaves the metadata store
// authoritative with the inline bytes intact. A bulk object created before
// the failure stays behind.
func (s *WriteSession) migrate() (err error) {
	if s.migrated {
		return nil
	}
	s.tick()

	start := time.Now()
	var copied int64
	defer func() {
		s.fs.metrics.RecordMigration(copied, time.Since(start), err)
	}()

	if err := s.flushBuffer(); err != nil {
		return err
	}

	data, reply, err := s.fs.meta.ReadAll(s.ctx, s.handle, int(s.cfg.threshold))
	if err != nil {
		return &PathError{Op: "migrate", Path: s.path, Err: err}
	}
	if reply.State != metadata.StateInline {
		return &PathError{Op: "migrate", Path: s.path, Err: fmt.Errorf("%w: file already migrated", ErrInvalidState)}
	}
	data = data[:reply.BufLen]

	parentID, err := s.fs.meta.GetParentID(s.ctx, s.handle)
	if err != nil {
		return &PathError{Op: "migrate", Path: s.path, Err: err}
	}
	target := BulkPath(parentID, path.Base(s.path))

	stream, err := s.fs.bulk.Create(s.ctx, target, bulk.CreateOptions{
		Permission:  s.cfg.permission,
		Overwrite:   true,
		BufferSize:  s.cfg.bufferSize,
		Replication: s.cfg.replication,
		BlockSize:   s.cfg.blockSize,
		Progress:    s.cfg.progress,
	})
	if err != nil {
		return &PathError{Op: "migrate", Path: s.path, Err: err}
	}

	abandon := func(cause error) error {
		if closeErr := stream.Close(); closeErr != nil {
			logger.Debug("migrate %s: close bulk writer: %v", s.path, closeErr)
		}
		logger.Warn("migrate %s: bulk object %s orphaned: %v", s.path, target, cause)
		return &PathError{Op: "migrate", Path: s.path, Err: cause}
	}

	if len(data) > 0 {
		n, err := stream.Write(data)
		if err != nil {
			return abandon(err)
		}
		if n != len(data) {
			return abandon(fmt.Errorf("short write to bulk store: %d of %d bytes", n, len(data)))
		}
	}
	if err := stream.Flush(); err != nil {
		return abandon(err)
	}

	if err := s.fs.meta.WriteLink(s.ctx, s.handle, target); err != nil {
		return abandon(err)
	}

	copied = int64(len(data))
	s.migrated = true
	s.bulkStream = stream
	// The inline buffer is never used again.
	s.buf = nil
	s.cursor = 0

	logger.Debug("migrated %s to %s (%d bytes, %s)", s.path, target, copied, time.Since(start))
	return nil
}
