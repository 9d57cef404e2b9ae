package s3

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linpawslitap/mds-scaling/pkg/bulk"
	bulktesting "github.com/linpawslitap/mds-scaling/pkg/bulk/testing"
)

func newTestStore(t *testing.T, client API) *S3BulkStore {
	t.Helper()
	s, err := NewS3BulkStore(context.Background(), S3BulkStoreConfig{
		Client:    client,
		Bucket:    "gtfs-test",
		KeyPrefix: "gtfs/",
		PartSize:  minPartSize,
	})
	require.NoError(t, err)
	return s
}

func TestS3BulkStore(t *testing.T) {
	suite := &bulktesting.StoreTestSuite{
		NewStore: func(t *testing.T) bulk.Store {
			return newTestStore(t, newFakeS3())
		},
	}
	suite.Run(t)
}

func TestConfigValidation(t *testing.T) {
	ctx := context.Background()

	_, err := NewS3BulkStore(ctx, S3BulkStoreConfig{Bucket: "b"})
	assert.Error(t, err)

	_, err = NewS3BulkStore(ctx, S3BulkStoreConfig{Client: newFakeS3()})
	assert.Error(t, err)

	_, err = NewS3BulkStore(ctx, S3BulkStoreConfig{Client: newFakeS3(), Bucket: "b", PartSize: 1024})
	assert.Error(t, err)
}

func TestSmallObjectUsesSinglePut(t *testing.T) {
	fake := newFakeS3()
	s := newTestStore(t, fake)

	w, err := s.Create(context.Background(), "/files/p/a", bulk.CreateOptions{Replication: 3, BlockSize: 1 << 26})
	require.NoError(t, err)
	_, err = w.Write([]byte("small"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, 1, fake.puts)
	assert.Equal(t, 0, fake.parts)
	assert.Contains(t, fake.objects, "gtfs/files/p/a")

	info, err := s.Stat(context.Background(), "/files/p/a")
	require.NoError(t, err)
	assert.Equal(t, int16(3), info.Replication)
	assert.Equal(t, int64(1<<26), info.BlockSize)
}

func TestFlushPublishesSmallObject(t *testing.T) {
	fake := newFakeS3()
	s := newTestStore(t, fake)
	ctx := context.Background()

	w, err := s.Create(ctx, "/files/p/a", bulk.CreateOptions{})
	require.NoError(t, err)
	_, err = w.Write([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	require.NoError(t, w.Flush())

	assert.Equal(t, 1, fake.puts)
	r, err := s.Open(ctx, "/files/p/a")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "abc", string(data))

	_, err = w.Write([]byte("def"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, 2, fake.puts)
	assert.Equal(t, "abcdef", string(fake.objects["gtfs/files/p/a"].data))
}

func TestLargeObjectUsesMultipart(t *testing.T) {
	fake := newFakeS3()
	s := newTestStore(t, fake)
	progress := 0

	w, err := s.Create(context.Background(), "/big", bulk.CreateOptions{Progress: func() { progress++ }})
	require.NoError(t, err)
	_, err = w.Write(bytes.Repeat([]byte("a"), 2*minPartSize+10))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, 0, fake.puts)
	assert.Equal(t, 3, fake.parts)
	assert.Equal(t, 3, progress)
	assert.Len(t, fake.objects["gtfs/big"].data, 2*minPartSize+10)
}

func TestFailedPartAbortsUpload(t *testing.T) {
	fake := newFakeS3()
	fake.failPart = true
	s := newTestStore(t, fake)

	w, err := s.Create(context.Background(), "/big", bulk.CreateOptions{})
	require.NoError(t, err)
	_, err = w.Write(bytes.Repeat([]byte("a"), minPartSize))
	require.Error(t, err)
	require.Error(t, w.Close())

	assert.Equal(t, 1, fake.aborted)
	assert.NotContains(t, fake.objects, "gtfs/big")

	w, err = s.Create(context.Background(), "/big", bulk.CreateOptions{})
	require.NoError(t, err)
	require.NoError(t, w.Close())
}
