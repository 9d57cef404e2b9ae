package tierfs

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/linpawslitap/mds-scaling/pkg/bulk"
	bulkmemory "github.com/linpawslitap/mds-scaling/pkg/bulk/memory"
	"github.com/linpawslitap/mds-scaling/pkg/metadata"
	"github.com/linpawslitap/mds-scaling/pkg/metadata/kvstore"
	metamemory "github.com/linpawslitap/mds-scaling/pkg/metadata/memory"
	"github.com/linpawslitap/mds-scaling/pkg/metrics"
)

// recordingStore counts calls made to the wrapped MetadataStore and can
// inject failures.
type recordingStore struct {
	metadata.MetadataStore

	mu     sync.Mutex
	calls  map[string][]string
	writes []int

	writeLinkErr error
}

func (r *recordingStore) record(op, p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = make(map[string][]string)
	}
	r.calls[op] = append(r.calls[op], p)
}

func (r *recordingStore) count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls[op])
}

func (r *recordingStore) paths(op string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls[op]...)
}

func (r *recordingStore) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
	r.writes = nil
}

func (r *recordingStore) Mkdir(ctx context.Context, p string, mode uint32) error {
	r.record("Mkdir", p)
	return r.MetadataStore.Mkdir(ctx, p, mode)
}

func (r *recordingStore) Rmdir(ctx context.Context, p string) error {
	r.record("Rmdir", p)
	return r.MetadataStore.Rmdir(ctx, p)
}

func (r *recordingStore) Unlink(ctx context.Context, p string) error {
	r.record("Unlink", p)
	return r.MetadataStore.Unlink(ctx, p)
}

func (r *recordingStore) GetInfo(ctx context.Context, p string) (*metadata.FileInfo, error) {
	r.record("GetInfo", p)
	return r.MetadataStore.GetInfo(ctx, p)
}

func (r *recordingStore) Write(ctx context.Context, h metadata.FileHandle, data []byte) (int, error) {
	r.record("Write", "")
	r.mu.Lock()
	r.writes = append(r.writes, len(data))
	r.mu.Unlock()
	return r.MetadataStore.Write(ctx, h, data)
}

func (r *recordingStore) Fetch(ctx context.Context, p string, capacity int) ([]byte, metadata.FetchReply, error) {
	r.record("Fetch", p)
	return r.MetadataStore.Fetch(ctx, p, capacity)
}

func (r *recordingStore) ReadAll(ctx context.Context, h metadata.FileHandle, capacity int) ([]byte, metadata.FetchReply, error) {
	r.record("ReadAll", "")
	return r.MetadataStore.ReadAll(ctx, h, capacity)
}

func (r *recordingStore) WriteLink(ctx context.Context, h metadata.FileHandle, target string) error {
	r.record("WriteLink", target)
	if r.writeLinkErr != nil {
		return r.writeLinkErr
	}
	return r.MetadataStore.WriteLink(ctx, h, target)
}

// failingBulk rejects Create when createErr is set and fails every writer
// Flush when flushErr is set.
type failingBulk struct {
	bulk.Store
	createErr error
	flushErr  error
}

func (f *failingBulk) Create(ctx context.Context, p string, opts bulk.CreateOptions) (bulk.Writer, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	w, err := f.Store.Create(ctx, p, opts)
	if err != nil {
		return nil, err
	}
	return &failingWriter{Writer: w, flushErr: f.flushErr}, nil
}

type failingWriter struct {
	bulk.Writer
	flushErr error
}

func (w *failingWriter) Flush() error {
	if w.flushErr != nil {
		return w.flushErr
	}
	return w.Writer.Flush()
}

// countingMetrics records TierMetrics calls.
type countingMetrics struct {
	opened, closed int
	flushes        map[metrics.Tier]int
	migrations     []error
	migratedBytes  int64
	opens          map[metrics.Tier]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		flushes: make(map[metrics.Tier]int),
		opens:   make(map[metrics.Tier]int),
	}
}

func (m *countingMetrics) SessionOpened()                       { m.opened++ }
func (m *countingMetrics) SessionClosed(metrics.Tier, int64)    { m.closed++ }
func (m *countingMetrics) RecordFlush(tier metrics.Tier, _ int) { m.flushes[tier]++ }
func (m *countingMetrics) RecordOpen(tier metrics.Tier)         { m.opens[tier]++ }

func (m *countingMetrics) RecordMigration(bytes int64, _ time.Duration, err error) {
	m.migrations = append(m.migrations, err)
	m.migratedBytes += bytes
}

type testEnv struct {
	fs   *FileSystem
	meta *recordingStore
	bulk *bulkmemory.MemoryBulkStore
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	return newTestEnvWithBulk(t, opts, nil)
}

// newTestEnvWithBulk wraps the memory bulk store when wrap is non-nil.
func newTestEnvWithBulk(t *testing.T, opts Options, wrap func(bulk.Store) bulk.Store) *testEnv {
	t.Helper()

	store, err := metamemory.NewMemoryMetadataStore(kvstore.Options{})
	require.NoError(t, err)
	require.NoError(t, store.Init(context.Background()))

	env := &testEnv{
		meta: &recordingStore{MetadataStore: store},
		bulk: bulkmemory.NewMemoryBulkStore(),
	}
	var bs bulk.Store = env.bulk
	if wrap != nil {
		bs = wrap(bs)
	}

	if opts.WorkingDirectory == "" {
		opts.WorkingDirectory = "/"
	}
	env.fs, err = New(env.meta, bs, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.fs.Close() })
	return env
}

func (e *testEnv) writeFile(t *testing.T, p string, chunks ...[]byte) *WriteSession {
	t.Helper()
	s, err := e.fs.Create(context.Background(), p, CreateOptions{})
	require.NoError(t, err)
	for _, c := range chunks {
		n, err := s.Write(c)
		require.NoError(t, err)
		require.Equal(t, len(c), n)
	}
	require.NoError(t, s.Close())
	return s
}

func (e *testEnv) readFile(t *testing.T, p string) []byte {
	t.Helper()
	r, err := e.fs.Open(context.Background(), p)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return data
}

// fetchState bypasses the recorder.
func (e *testEnv) fetchState(t *testing.T, p string) metadata.FetchState {
	t.Helper()
	_, reply, err := e.meta.MetadataStore.Fetch(context.Background(), p, 4096)
	require.NoError(t, err)
	return reply.State
}

func fill(n int, b byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func pattern(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i*31 + 7)
	}
	return out
}
