package memory

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linpawslitap/mds-scaling/pkg/bulk"
	bulktesting "github.com/linpawslitap/mds-scaling/pkg/bulk/testing"
)

func TestMemoryBulkStore(t *testing.T) {
	suite := &bulktesting.StoreTestSuite{
		NewStore: func(t *testing.T) bulk.Store {
			return NewMemoryBulkStore()
		},
	}
	suite.Run(t)
}

func TestFlushMakesBytesVisible(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryBulkStore()

	w, err := s.Create(ctx, "/x", bulk.CreateOptions{Replication: 3, BlockSize: 128})
	require.NoError(t, err)
	_, err = w.Write([]byte("abc"))
	require.NoError(t, err)

	info, err := s.Stat(ctx, "/x")
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size)

	require.NoError(t, w.Flush())
	r, err := s.Open(ctx, "/x")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))

	info, err = s.Stat(ctx, "/x")
	require.NoError(t, err)
	assert.Equal(t, int16(3), info.Replication)
	assert.Equal(t, int64(128), info.BlockSize)
	require.NoError(t, w.Close())
}
