package tierfs

import (
	"bytes"
	"context"
	"io"

	"github.com/linpawslitap/mds-scaling/pkg/metadata"
	"github.com/linpawslitap/mds-scaling/pkg/metrics"
)

// ReadStream reads one file from the store that holds it.
type ReadStream struct {
	path   string
	tier   metrics.Tier
	r      io.Reader
	closer io.Closer
	closed bool
}

var _ io.ReadCloser = (*ReadStream)(nil)

// Open opens a file for reading.
//
// The path is checked with GetInfo first, so a missing file fails with
// ErrNotFound without a fetch. Otherwise exactly one Fetch is issued: inline
// content is served from the returned buffer, and a migration pointer is
// followed into the bulk store.
func (fs *FileSystem) Open(ctx context.Context, p string) (*ReadStream, error) {
	p = fs.resolve(p)

	info, err := fs.meta.GetInfo(ctx, p)
	if err != nil {
		return nil, openError(p, err)
	}
	if info.IsDir {
		return nil, &PathError{Op: "open", Path: p, Err: ErrIsDirectory}
	}

	buf, reply, err := fs.meta.Fetch(ctx, p, fs.fetchCapacity())
	if err != nil {
		return nil, openError(p, err)
	}
	buf = buf[:reply.BufLen]

	if reply.State == metadata.StateInline {
		fs.metrics.RecordOpen(metrics.TierInline)
		return &ReadStream{path: p, tier: metrics.TierInline, r: bytes.NewReader(buf)}, nil
	}

	rc, err := fs.bulk.Open(ctx, string(buf))
	if err != nil {
		return nil, &PathError{Op: "open", Path: p, Err: err}
	}
	fs.metrics.RecordOpen(metrics.TierBulk)
	return &ReadStream{path: p, tier: metrics.TierBulk, r: rc, closer: rc}, nil
}

func (fs *FileSystem) fetchCapacity() int {
	return int(max(fs.threshold, minFetchCapacity))
}

func openError(p string, err error) error {
	switch {
	case metadata.IsNotFound(err):
		return &PathError{Op: "open", Path: p, Err: ErrNotFound}
	case metadata.IsCode(err, metadata.ErrIsDirectory):
		return &PathError{Op: "open", Path: p, Err: ErrIsDirectory}
	default:
		return &PathError{Op: "open", Path: p, Err: err}
	}
}

// Path returns the absolute path of the file.
func (r *ReadStream) Path() string {
	return r.path
}

// Migrated reports whether the stream reads from the bulk store.
func (r *ReadStream) Migrated() bool {
	return r.tier == metrics.TierBulk
}

func (r *ReadStream) Read(p []byte) (int, error) {
	if r.closed {
		return 0, &PathError{Op: "read", Path: r.path, Err: ErrClosedStream}
	}
	return r.r.Read(p)
}

// Close releases the underlying bulk reader, if any. Calling Close again is
// a no-op.
func (r *ReadStream) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
