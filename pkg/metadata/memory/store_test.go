package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linpawslitap/mds-scaling/pkg/metadata"
	"github.com/linpawslitap/mds-scaling/pkg/metadata/kvstore"
	metadatatesting "github.com/linpawslitap/mds-scaling/pkg/metadata/testing"
)

func TestMemoryMetadataStore(t *testing.T) {
	suite := &metadatatesting.StoreTestSuite{
		NewStore: func(t *testing.T) metadata.MetadataStore {
			store, err := NewMemoryMetadataStore(kvstore.Options{})
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}

func TestMemoryMetadataStoreCompressed(t *testing.T) {
	suite := &metadatatesting.StoreTestSuite{
		NewStore: func(t *testing.T) metadata.MetadataStore {
			store, err := NewMemoryMetadataStore(kvstore.Options{Compress: true, ListPageSize: 2})
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}

func TestUpdateDiscardedOnError(t *testing.T) {
	b := NewBackend()
	ctx := context.Background()

	err := b.Update(ctx, func(txn kvstore.Txn) error {
		require.NoError(t, txn.Set([]byte("k"), []byte("v")))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 0, b.Len())
}

func TestScanSeesStagedWritesInOrder(t *testing.T) {
	b := NewBackend()
	ctx := context.Background()

	require.NoError(t, b.Update(ctx, func(txn kvstore.Txn) error {
		require.NoError(t, txn.Set([]byte("p:b"), []byte("2")))
		require.NoError(t, txn.Set([]byte("p:c"), []byte("3")))
		return txn.Set([]byte("q:a"), []byte("x"))
	}))

	require.NoError(t, b.Update(ctx, func(txn kvstore.Txn) error {
		require.NoError(t, txn.Set([]byte("p:a"), []byte("1")))
		require.NoError(t, txn.Delete([]byte("p:c")))

		var keys []string
		err := txn.Scan([]byte("p:"), nil, func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"p:a", "p:b"}, keys)
		return nil
	}))
}

func TestScanFromStartKey(t *testing.T) {
	b := NewBackend()
	ctx := context.Background()

	require.NoError(t, b.Update(ctx, func(txn kvstore.Txn) error {
		for _, k := range []string{"o:z", "p:a", "p:b", "p:c", "q:a"} {
			require.NoError(t, txn.Set([]byte(k), []byte("v")))
		}
		return nil
	}))

	scan := func(start []byte) []string {
		var keys []string
		require.NoError(t, b.View(ctx, func(txn kvstore.Txn) error {
			return txn.Scan([]byte("p:"), start, func(k, _ []byte) error {
				keys = append(keys, string(k))
				return nil
			})
		}))
		return keys
	}

	assert.Equal(t, []string{"p:b", "p:c"}, scan([]byte("p:b")))
	assert.Equal(t, []string{"p:a", "p:b", "p:c"}, scan([]byte("a")))
	assert.Empty(t, scan([]byte("p:d")))
}

func TestViewIsReadOnly(t *testing.T) {
	b := NewBackend()
	err := b.View(context.Background(), func(txn kvstore.Txn) error {
		return txn.Set([]byte("k"), []byte("v"))
	})
	assert.Error(t, err)
}
