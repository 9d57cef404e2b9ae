package memory

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/linpawslitap/mds-scaling/pkg/bulk"
)

// MemoryBulkStore keeps bulk objects in memory.
//
// Objects appear (empty) as soon as Create returns. Written bytes become
// visible to Open on Flush and Close.
type MemoryBulkStore struct {
	mu      sync.RWMutex
	objects map[string]*object
	closed  bool
}

type object struct {
	data        []byte
	replication int16
	blockSize   int64
	modTime     time.Time
	writing     bool
}

var _ bulk.CollectableStore = (*MemoryBulkStore)(nil)

func NewMemoryBulkStore() *MemoryBulkStore {
	return &MemoryBulkStore{objects: make(map[string]*object)}
}

func (s *MemoryBulkStore) Create(ctx context.Context, path string, opts bulk.CreateOptions) (bulk.Writer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := bulk.CleanPath(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.objects[clean]; ok {
		if existing.writing {
			return nil, &bulk.PathError{Op: "create", Path: clean, Err: bulk.ErrObjectBusy}
		}
		if !opts.Overwrite {
			return nil, &bulk.PathError{Op: "create", Path: clean, Err: bulk.ErrObjectExists}
		}
	}

	s.objects[clean] = &object{
		replication: opts.Replication,
		blockSize:   opts.BlockSize,
		modTime:     time.Now(),
		writing:     true,
	}
	return &writer{store: s, path: clean}, nil
}

func (s *MemoryBulkStore) Append(ctx context.Context, path string, _ int, _ bulk.ProgressFunc) (bulk.Writer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := bulk.CleanPath(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[clean]
	if !ok {
		return nil, &bulk.PathError{Op: "append", Path: clean, Err: bulk.ErrObjectNotFound}
	}
	if obj.writing {
		return nil, &bulk.PathError{Op: "append", Path: clean, Err: bulk.ErrObjectBusy}
	}
	obj.writing = true
	return &writer{store: s, path: clean}, nil
}

func (s *MemoryBulkStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := bulk.CleanPath(path)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[clean]
	if !ok {
		return nil, &bulk.PathError{Op: "open", Path: clean, Err: bulk.ErrObjectNotFound}
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(obj.data))), nil
}

func (s *MemoryBulkStore) Stat(ctx context.Context, path string) (*bulk.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := bulk.CleanPath(path)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[clean]
	if !ok {
		return nil, &bulk.PathError{Op: "stat", Path: clean, Err: bulk.ErrObjectNotFound}
	}
	return &bulk.ObjectInfo{
		Path:        clean,
		Size:        int64(len(obj.data)),
		Replication: obj.replication,
		BlockSize:   obj.blockSize,
		ModTime:     obj.modTime,
	}, nil
}

func (s *MemoryBulkStore) List(ctx context.Context, prefix string) ([]bulk.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []bulk.ObjectInfo
	for p, obj := range s.objects {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		out = append(out, bulk.ObjectInfo{
			Path:        p,
			Size:        int64(len(obj.data)),
			Replication: obj.replication,
			BlockSize:   obj.blockSize,
			ModTime:     obj.modTime,
		})
	}
	return out, nil
}

func (s *MemoryBulkStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean, err := bulk.CleanPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if obj, ok := s.objects[clean]; ok && obj.writing {
		return &bulk.PathError{Op: "delete", Path: clean, Err: bulk.ErrObjectBusy}
	}
	delete(s.objects, clean)
	return nil
}

func (s *MemoryBulkStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Paths returns every stored object path. Used by tests.
func (s *MemoryBulkStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.objects))
	for p := range s.objects {
		out = append(out, p)
	}
	return out
}

// commit appends pending bytes to the stored object.
func (s *MemoryBulkStore) commit(path string, pending []byte, done bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[path]
	if !ok {
		return
	}
	obj.data = append(obj.data, pending...)
	obj.modTime = time.Now()
	if done {
		obj.writing = false
	}
}

type writer struct {
	store   *MemoryBulkStore
	path    string
	pending []byte
	closed  bool
}

func (w *writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, bulk.ErrWriterClosed
	}
	w.pending = append(w.pending, p...)
	return len(p), nil
}

func (w *writer) Flush() error {
	if w.closed {
		return bulk.ErrWriterClosed
	}
	w.store.commit(w.path, w.pending, false)
	w.pending = nil
	return nil
}

func (w *writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.store.commit(w.path, w.pending, true)
	w.pending = nil
	return nil
}
