package testing

import (
	"bytes"
	"context"
	"io"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linpawslitap/mds-scaling/pkg/bulk"
)

// StoreTestSuite is a contract test suite for bulk.Store implementations.
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store for each test.
	NewStore func(t *testing.T) bulk.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("CreateWriteRead", suite.testCreateWriteRead)
	t.Run("CreateWithoutOverwrite", suite.testCreateWithoutOverwrite)
	t.Run("CreateOverwrite", suite.testCreateOverwrite)
	t.Run("SecondWriterBusy", suite.testSecondWriterBusy)
	t.Run("Append", suite.testAppend)
	t.Run("AppendMissing", suite.testAppendMissing)
	t.Run("OpenMissing", suite.testOpenMissing)
	t.Run("StatSize", suite.testStatSize)
	t.Run("RelativePath", suite.testRelativePath)
	t.Run("WriteAfterClose", suite.testWriteAfterClose)
	t.Run("LargeObject", suite.testLargeObject)
	t.Run("ListAndDelete", suite.testListAndDelete)
	t.Run("DeleteBusy", suite.testDeleteBusy)
	t.Run("LockSuffixedSibling", suite.testLockSuffixedSibling)
	t.Run("FlushMakesReadable", suite.testFlushMakesReadable)
}

func (suite *StoreTestSuite) newStore(t *testing.T) bulk.Store {
	t.Helper()
	store := suite.NewStore(t)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func mustPut(t *testing.T, store bulk.Store, path string, data []byte) {
	t.Helper()
	w, err := store.Create(context.Background(), path, bulk.CreateOptions{Overwrite: true})
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func mustRead(t *testing.T, store bulk.Store, path string) []byte {
	t.Helper()
	r, err := store.Open(context.Background(), path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return data
}

func (suite *StoreTestSuite) testCreateWriteRead(t *testing.T) {
	store := suite.newStore(t)

	w, err := store.Create(context.Background(), "/files/p/a", bulk.CreateOptions{
		Permission:  0o640,
		BufferSize:  16,
		Replication: 3,
		BlockSize:   1 << 26,
	})
	require.NoError(t, err)

	for _, chunk := range []string{"hello ", "bulk ", "world"} {
		n, err := w.Write([]byte(chunk))
		require.NoError(t, err)
		assert.Equal(t, len(chunk), n)
	}
	require.NoError(t, w.Flush())
	require.NoError(t, w.Close())

	assert.Equal(t, "hello bulk world", string(mustRead(t, store, "/files/p/a")))
}

func (suite *StoreTestSuite) testCreateWithoutOverwrite(t *testing.T) {
	store := suite.newStore(t)
	mustPut(t, store, "/x", []byte("1"))

	_, err := store.Create(context.Background(), "/x", bulk.CreateOptions{})
	assert.ErrorIs(t, err, bulk.ErrObjectExists)
}

func (suite *StoreTestSuite) testCreateOverwrite(t *testing.T) {
	store := suite.newStore(t)
	mustPut(t, store, "/x", []byte("first version"))
	mustPut(t, store, "/x", []byte("second"))

	assert.Equal(t, "second", string(mustRead(t, store, "/x")))
}

func (suite *StoreTestSuite) testSecondWriterBusy(t *testing.T) {
	store := suite.newStore(t)

	w, err := store.Create(context.Background(), "/x", bulk.CreateOptions{Overwrite: true})
	require.NoError(t, err)

	_, err = store.Create(context.Background(), "/x", bulk.CreateOptions{Overwrite: true})
	assert.ErrorIs(t, err, bulk.ErrObjectBusy)

	require.NoError(t, w.Close())

	w, err = store.Create(context.Background(), "/x", bulk.CreateOptions{Overwrite: true})
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func (suite *StoreTestSuite) testAppend(t *testing.T) {
	store := suite.newStore(t)
	mustPut(t, store, "/x", []byte("abc"))

	w, err := store.Append(context.Background(), "/x", 8, nil)
	require.NoError(t, err)
	_, err = w.Write([]byte("def"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, "abcdef", string(mustRead(t, store, "/x")))
}

func (suite *StoreTestSuite) testAppendMissing(t *testing.T) {
	store := suite.newStore(t)
	_, err := store.Append(context.Background(), "/missing", 8, nil)
	assert.ErrorIs(t, err, bulk.ErrObjectNotFound)
}

func (suite *StoreTestSuite) testOpenMissing(t *testing.T) {
	store := suite.newStore(t)
	_, err := store.Open(context.Background(), "/missing")
	assert.ErrorIs(t, err, bulk.ErrObjectNotFound)

	_, err = store.Stat(context.Background(), "/missing")
	assert.ErrorIs(t, err, bulk.ErrObjectNotFound)
}

func (suite *StoreTestSuite) testStatSize(t *testing.T) {
	store := suite.newStore(t)
	mustPut(t, store, "/files/d/s", bytes.Repeat([]byte("z"), 12345))

	info, err := store.Stat(context.Background(), "/files/d/s")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), info.Size)
	assert.Equal(t, "/files/d/s", info.Path)
}

func (suite *StoreTestSuite) testRelativePath(t *testing.T) {
	store := suite.newStore(t)
	_, err := store.Create(context.Background(), "relative", bulk.CreateOptions{})
	assert.ErrorIs(t, err, bulk.ErrInvalidPath)
}

func (suite *StoreTestSuite) testWriteAfterClose(t *testing.T) {
	store := suite.newStore(t)
	w, err := store.Create(context.Background(), "/x", bulk.CreateOptions{})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("late"))
	assert.ErrorIs(t, err, bulk.ErrWriterClosed)
}

func (suite *StoreTestSuite) testLargeObject(t *testing.T) {
	store := suite.newStore(t)
	data := make([]byte, 12<<20)
	for i := range data {
		data[i] = byte(i * 7)
	}

	w, err := store.Create(context.Background(), "/big", bulk.CreateOptions{BufferSize: 64 << 10})
	require.NoError(t, err)
	for off := 0; off < len(data); off += 1 << 20 {
		_, err := w.Write(data[off : off+1<<20])
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	assert.Equal(t, data, mustRead(t, store, "/big"))
}

func (suite *StoreTestSuite) collectable(t *testing.T) bulk.CollectableStore {
	t.Helper()
	store, ok := bulk.AsCollectable(suite.newStore(t))
	if !ok {
		t.Skip("store does not support listing")
	}
	return store
}

func (suite *StoreTestSuite) testListAndDelete(t *testing.T) {
	store := suite.collectable(t)
	ctx := context.Background()

	mustPut(t, store, "/files/p1/a", []byte("aaa"))
	mustPut(t, store, "/files/p2/b", []byte("bb"))
	mustPut(t, store, "/other/c", []byte("c"))

	objects, err := store.List(ctx, "/files/")
	require.NoError(t, err)

	var paths []string
	sizes := map[string]int64{}
	for _, obj := range objects {
		paths = append(paths, obj.Path)
		sizes[obj.Path] = obj.Size
	}
	sort.Strings(paths)
	assert.Equal(t, []string{"/files/p1/a", "/files/p2/b"}, paths)
	assert.Equal(t, int64(3), sizes["/files/p1/a"])

	require.NoError(t, store.Delete(ctx, "/files/p1/a"))
	_, err = store.Open(ctx, "/files/p1/a")
	assert.ErrorIs(t, err, bulk.ErrObjectNotFound)

	require.NoError(t, store.Delete(ctx, "/files/p1/a"))

	objects, err = store.List(ctx, "/")
	require.NoError(t, err)
	assert.Len(t, objects, 2)
}

func (suite *StoreTestSuite) testDeleteBusy(t *testing.T) {
	store := suite.collectable(t)
	ctx := context.Background()

	mustPut(t, store, "/busy", []byte("old"))
	w, err := store.Create(ctx, "/busy", bulk.CreateOptions{Overwrite: true})
	require.NoError(t, err)

	assert.ErrorIs(t, store.Delete(ctx, "/busy"), bulk.ErrObjectBusy)

	require.NoError(t, w.Close())
	require.NoError(t, store.Delete(ctx, "/busy"))
}

func (suite *StoreTestSuite) testLockSuffixedSibling(t *testing.T) {
	store := suite.collectable(t)
	ctx := context.Background()

	mustPut(t, store, "/files/p/x.lock", []byte("sibling"))
	mustPut(t, store, "/files/p/x", []byte("object"))

	objects, err := store.List(ctx, "/files/p/")
	require.NoError(t, err)
	assert.Len(t, objects, 2)

	require.NoError(t, store.Delete(ctx, "/files/p/x"))
	assert.Equal(t, "sibling", string(mustRead(t, store, "/files/p/x.lock")))

	objects, err = store.List(ctx, "/files/p/")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "/files/p/x.lock", objects[0].Path)
}

func (suite *StoreTestSuite) testFlushMakesReadable(t *testing.T) {
	store := suite.newStore(t)

	w, err := store.Create(context.Background(), "/files/p/f", bulk.CreateOptions{BufferSize: 64})
	require.NoError(t, err)
	_, err = w.Write([]byte("visible"))
	require.NoError(t, err)
	require.NoError(t, w.Flush())

	assert.Equal(t, "visible", string(mustRead(t, store, "/files/p/f")))
	require.NoError(t, w.Close())
}
