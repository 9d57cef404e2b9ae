package tierfs

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/linpawslitap/mds-scaling/pkg/bulk"
	"github.com/linpawslitap/mds-scaling/pkg/metadata"
	"github.com/linpawslitap/mds-scaling/pkg/metrics"
)

type sessionConfig struct {
	threshold   int64
	bufferSize  int
	permission  os.FileMode
	replication int16
	blockSize   int64
	progress    bulk.ProgressFunc
}

// WriteSession is the write side of one open file.
//
// Bytes are staged in a fixed buffer and pushed to the metadata store each
// time the buffer fills. The first Write that would take the file past the
// threshold migrates it to the bulk store; from then on every call goes to
// the bulk writer. Migration happens at most once per session.
//
// A WriteSession is not safe for concurrent use. Bytes still buffered when
// the session is dropped without Close are lost.
type WriteSession struct {
	ctx    context.Context
	fs     *FileSystem
	handle metadata.FileHandle
	path   string
	cfg    sessionConfig

	buf    []byte
	cursor int
	pos    int64

	migrated   bool
	bulkStream bulk.Writer
	bulkDirty  int

	closed bool
}

var _ io.WriteCloser = (*WriteSession)(nil)

func newWriteSession(ctx context.Context, fs *FileSystem, h metadata.FileHandle, p string, pos int64, cfg sessionConfig) (*WriteSession, error) {
	if pos > cfg.threshold {
		return nil, &PathError{
			Op:   "session",
			Path: p,
			Err:  fmt.Errorf("%w: position %d, threshold %d", ErrInvalidState, pos, cfg.threshold),
		}
	}
	fs.metrics.SessionOpened()
	return &WriteSession{
		ctx:    ctx,
		fs:     fs,
		handle: h,
		path:   p,
		cfg:    cfg,
		buf:    make([]byte, cfg.bufferSize),
		pos:    pos,
	}, nil
}

// newMigratedSession wraps a bulk writer for a file that migrated earlier.
func newMigratedSession(ctx context.Context, fs *FileSystem, h metadata.FileHandle, p string, stream bulk.Writer, cfg sessionConfig) *WriteSession {
	fs.metrics.SessionOpened()
	return &WriteSession{
		ctx:        ctx,
		fs:         fs,
		handle:     h,
		path:       p,
		cfg:        cfg,
		migrated:   true,
		bulkStream: stream,
	}
}

// Path returns the absolute path of the file.
func (s *WriteSession) Path() string {
	return s.path
}

// Handle returns the metadata store handle owned by the session.
func (s *WriteSession) Handle() metadata.FileHandle {
	return s.handle
}

// Migrated reports whether the file's bytes now live in the bulk store.
func (s *WriteSession) Migrated() bool {
	return s.migrated
}

// Written returns the number of bytes accepted by the session, including any
// the file held when an inline append started.
func (s *WriteSession) Written() int64 {
	return s.pos
}

// Buffered returns the number of bytes waiting in the local buffer.
func (s *WriteSession) Buffered() int {
	return s.cursor
}

func (s *WriteSession) tick() {
	if s.cfg.progress != nil {
		s.cfg.progress()
	}
}

// Write appends p to the file.
//
// A write that keeps the file at or below the threshold is buffered. A write
// that would cross it triggers migration and then lands in full in the bulk
// store, flushed before Write returns; no write is split across tiers.
func (s *WriteSession) Write(p []byte) (int, error) {
	if s.closed {
		return 0, &PathError{Op: "write", Path: s.path, Err: ErrClosedStream}
	}
	s.tick()
	if len(p) == 0 {
		return 0, nil
	}

	crossing := false
	if !s.migrated && s.pos+int64(len(p)) > s.cfg.threshold {
		if err := s.migrate(); err != nil {
			return 0, err
		}
		crossing = true
	}

	if s.migrated {
		n, err := s.bulkStream.Write(p)
		s.pos += int64(n)
		s.bulkDirty += n
		if err != nil {
			return n, &PathError{Op: "write", Path: s.path, Err: err}
		}
		// The crossing write is readable as soon as it returns.
		if crossing {
			if err := s.flush(); err != nil {
				return n, err
			}
		}
		return n, nil
	}

	written := 0
	for written < len(p) {
		n := copy(s.buf[s.cursor:], p[written:])
		s.cursor += n
		written += n
		s.pos += int64(n)
		if s.cursor == len(s.buf) {
			if err := s.flushBuffer(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// flushBuffer pushes the staged bytes to the metadata store. An empty buffer
// issues no call.
func (s *WriteSession) flushBuffer() error {
	if s.cursor == 0 {
		return nil
	}
	n, err := s.fs.meta.Write(s.ctx, s.handle, s.buf[:s.cursor])
	if err != nil {
		return &PathError{Op: "write", Path: s.path, Err: err}
	}
	if n != s.cursor {
		return &PathError{Op: "write", Path: s.path, Err: io.ErrShortWrite}
	}
	s.fs.metrics.RecordFlush(metrics.TierInline, n)
	s.cursor = 0
	return nil
}

// Flush pushes buffered bytes to whichever store currently holds the file.
// The inline flush need not be buffer aligned.
func (s *WriteSession) Flush() error {
	if s.closed {
		return &PathError{Op: "flush", Path: s.path, Err: ErrClosedStream}
	}
	s.tick()
	return s.flush()
}

func (s *WriteSession) flush() error {
	if !s.migrated {
		return s.flushBuffer()
	}
	if err := s.bulkStream.Flush(); err != nil {
		return &PathError{Op: "flush", Path: s.path, Err: err}
	}
	if s.bulkDirty > 0 {
		s.fs.metrics.RecordFlush(metrics.TierBulk, s.bulkDirty)
		s.bulkDirty = 0
	}
	return nil
}

// Close flushes, releases the buffer, closes the bulk writer if the file
// migrated and finally releases the metadata handle. The first error is
// returned; later steps still run. Calling Close again is a no-op.
func (s *WriteSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.flush()
	s.buf = nil

	tier := metrics.TierInline
	if s.migrated {
		tier = metrics.TierBulk
		if closeErr := s.bulkStream.Close(); closeErr != nil && err == nil {
			err = &PathError{Op: "close", Path: s.path, Err: closeErr}
		}
	}
	if closeErr := s.fs.meta.Close(s.ctx, s.handle); closeErr != nil && err == nil {
		err = &PathError{Op: "close", Path: s.path, Err: closeErr}
	}

	s.fs.metrics.SessionClosed(tier, s.pos)
	return err
}
