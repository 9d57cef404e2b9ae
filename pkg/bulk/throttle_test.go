package bulk_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linpawslitap/mds-scaling/internal/ratelimiter"
	"github.com/linpawslitap/mds-scaling/pkg/bulk"
	"github.com/linpawslitap/mds-scaling/pkg/bulk/memory"
)

func TestThrottledStoreUnlimitedIsPassthrough(t *testing.T) {
	inner := memory.NewMemoryBulkStore()
	assert.Same(t, bulk.Store(inner), bulk.NewThrottledStore(inner, ratelimiter.New(0, 0)))
	assert.Same(t, bulk.Store(inner), bulk.NewThrottledStore(inner, nil))
}

func TestThrottledStoreLimitsWrites(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewMemoryBulkStore()
	s := bulk.NewThrottledStore(inner, ratelimiter.New(1000, 100))

	w, err := s.Create(ctx, "/x", bulk.CreateOptions{})
	require.NoError(t, err)

	start := time.Now()
	_, err = w.Write(make([]byte, 300))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	require.NoError(t, w.Close())

	r, err := s.Open(ctx, "/x")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Len(t, data, 300)
}

func TestCleanPath(t *testing.T) {
	p, err := bulk.CleanPath("/files//a/../b")
	require.NoError(t, err)
	assert.Equal(t, "/files/b", p)

	_, err = bulk.CleanPath("/")
	assert.ErrorIs(t, err, bulk.ErrInvalidPath)
	_, err = bulk.CleanPath("x")
	assert.ErrorIs(t, err, bulk.ErrInvalidPath)
}

func TestAsCollectableUnwrapsThrottledStore(t *testing.T) {
	inner := memory.NewMemoryBulkStore()
	s := bulk.NewThrottledStore(inner, ratelimiter.New(1000, 100))

	c, ok := bulk.AsCollectable(s)
	require.True(t, ok)
	assert.Same(t, bulk.CollectableStore(inner), c)

	_, ok = bulk.AsCollectable(struct{ bulk.Store }{inner})
	assert.False(t, ok)
}
