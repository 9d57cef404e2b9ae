package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linpawslitap/mds-scaling/pkg/metadata"
	"github.com/linpawslitap/mds-scaling/pkg/metadata/kvstore"
	metadatatesting "github.com/linpawslitap/mds-scaling/pkg/metadata/testing"
)

func TestBoltMetadataStore(t *testing.T) {
	suite := &metadatatesting.StoreTestSuite{
		NewStore: func(t *testing.T) metadata.MetadataStore {
			store, err := NewBoltMetadataStore(context.Background(), BoltMetadataStoreConfig{
				Path:   filepath.Join(t.TempDir(), "meta.db"),
				NoSync: true,
			})
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}

func TestBoltMetadataStorePagedListing(t *testing.T) {
	suite := &metadatatesting.StoreTestSuite{
		NewStore: func(t *testing.T) metadata.MetadataStore {
			store, err := NewBoltMetadataStore(context.Background(), BoltMetadataStoreConfig{
				Path:   filepath.Join(t.TempDir(), "meta.db"),
				NoSync: true,
				Store:  kvstore.Options{ListPageSize: 1},
			})
			require.NoError(t, err)
			return store
		},
	}
	suite.RunListTests(t)
}

func TestBoltMetadataStoreReopen(t *testing.T) {
	ctx := context.Background()
	config := BoltMetadataStoreConfig{Path: filepath.Join(t.TempDir(), "meta.db")}

	store, err := NewBoltMetadataStore(ctx, config)
	require.NoError(t, err)
	require.NoError(t, store.Init(ctx))
	h, err := store.Create(ctx, "/f", 0o644)
	require.NoError(t, err)
	_, err = store.Write(ctx, h, []byte("persisted"))
	require.NoError(t, err)
	require.NoError(t, store.Close(ctx, h))
	require.NoError(t, store.Destroy())

	store, err = NewBoltMetadataStore(ctx, config)
	require.NoError(t, err)
	require.NoError(t, store.Init(ctx))
	defer func() { _ = store.Destroy() }()

	buf, reply, err := store.Fetch(ctx, "/f", 64)
	require.NoError(t, err)
	assert.Equal(t, metadata.StateInline, reply.State)
	assert.Equal(t, "persisted", string(buf))
}
