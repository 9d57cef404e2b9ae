package testing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linpawslitap/mds-scaling/pkg/metadata"
)

// RunLifecycleTests covers Init and Destroy.
func (suite *StoreTestSuite) RunLifecycleTests(t *testing.T) {
	t.Run("UseBeforeInit", func(t *testing.T) {
		store := suite.NewStore(t)
		t.Cleanup(func() { _ = store.Destroy() })

		_, err := store.GetInfo(context.Background(), "/")
		AssertErrorCode(t, metadata.ErrNotInitialized, err)
	})

	t.Run("RootExistsAfterInit", func(t *testing.T) {
		store := suite.newStore(t)
		fi := mustInfo(t, store, "/")
		assert.True(t, fi.IsDir)
		assert.Equal(t, uint16(0o755), fi.Permission)
	})

	t.Run("UseAfterDestroy", func(t *testing.T) {
		store := suite.NewStore(t)
		require.NoError(t, store.Init(context.Background()))
		require.NoError(t, store.Destroy())
		require.NoError(t, store.Destroy())

		_, err := store.GetInfo(context.Background(), "/")
		AssertErrorCode(t, metadata.ErrNotInitialized, err)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		store := suite.newStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, store.Mkdir(ctx, "/d", 0o755), context.Canceled)
	})
}

// RunNamespaceTests covers mknod, mkdir, rmdir, unlink and stat.
func (suite *StoreTestSuite) RunNamespaceTests(t *testing.T) {
	ctx := context.Background()

	t.Run("MkdirAndStat", func(t *testing.T) {
		store := suite.newStore(t)
		require.NoError(t, store.Mkdir(ctx, "/a", 0o750))

		st, err := store.GetAttr(ctx, "/a")
		require.NoError(t, err)
		assert.True(t, st.IsDir())
		assert.Equal(t, uint32(0o750), st.Mode&metadata.ModePermMask)
		assert.NotZero(t, st.Ino)
	})

	t.Run("MkdirExisting", func(t *testing.T) {
		store := suite.newStore(t)
		mustMkdir(t, store, "/a")
		AssertErrorCode(t, metadata.ErrAlreadyExists, store.Mkdir(ctx, "/a", 0o755))
		AssertErrorCode(t, metadata.ErrAlreadyExists, store.Mkdir(ctx, "/", 0o755))
	})

	t.Run("MkdirMissingParent", func(t *testing.T) {
		store := suite.newStore(t)
		AssertErrorCode(t, metadata.ErrNotFound, store.Mkdir(ctx, "/x/y", 0o755))
	})

	t.Run("MkdirUnderFile", func(t *testing.T) {
		store := suite.newStore(t)
		require.NoError(t, store.Mknod(ctx, "/f", 0o644))
		AssertErrorCode(t, metadata.ErrNotDirectory, store.Mkdir(ctx, "/f/d", 0o755))
	})

	t.Run("RelativePathRejected", func(t *testing.T) {
		store := suite.newStore(t)
		AssertErrorCode(t, metadata.ErrInvalidArgument, store.Mkdir(ctx, "a", 0o755))
	})

	t.Run("MknodCreatesEmptyFile", func(t *testing.T) {
		store := suite.newStore(t)
		require.NoError(t, store.Mknod(ctx, "/f", 0o600))

		fi := mustInfo(t, store, "/f")
		assert.False(t, fi.IsDir)
		assert.Equal(t, int64(0), fi.Size)
		assert.Equal(t, uint16(0o600), fi.Permission)
		assert.Empty(t, fi.Link)
	})

	t.Run("CreateExisting", func(t *testing.T) {
		store := suite.newStore(t)
		mustWriteFile(t, store, "/f", nil)
		_, err := store.Create(ctx, "/f", 0o644)
		AssertErrorCode(t, metadata.ErrAlreadyExists, err)
	})

	t.Run("HandlesStartAtOne", func(t *testing.T) {
		store := suite.newStore(t)
		h, err := store.Create(ctx, "/f", 0o644)
		require.NoError(t, err)
		assert.Equal(t, metadata.FileHandle(1), h)
		require.NoError(t, store.Close(ctx, h))
	})

	t.Run("RmdirEmpty", func(t *testing.T) {
		store := suite.newStore(t)
		mustMkdir(t, store, "/d")
		require.NoError(t, store.Rmdir(ctx, "/d"))
		_, err := store.GetInfo(ctx, "/d")
		AssertErrorCode(t, metadata.ErrNotFound, err)
	})

	t.Run("RmdirNotEmpty", func(t *testing.T) {
		store := suite.newStore(t)
		mustMkdir(t, store, "/d")
		mustWriteFile(t, store, "/d/f", []byte("x"))
		AssertErrorCode(t, metadata.ErrNotEmpty, store.Rmdir(ctx, "/d"))
	})

	t.Run("RmdirFileOrRoot", func(t *testing.T) {
		store := suite.newStore(t)
		mustWriteFile(t, store, "/f", nil)
		AssertErrorCode(t, metadata.ErrNotDirectory, store.Rmdir(ctx, "/f"))
		AssertErrorCode(t, metadata.ErrInvalidArgument, store.Rmdir(ctx, "/"))
	})

	t.Run("UnlinkFile", func(t *testing.T) {
		store := suite.newStore(t)
		mustWriteFile(t, store, "/f", []byte("payload"))
		require.NoError(t, store.Unlink(ctx, "/f"))

		_, err := store.GetInfo(ctx, "/f")
		AssertErrorCode(t, metadata.ErrNotFound, err)
		AssertErrorCode(t, metadata.ErrNotFound, store.Unlink(ctx, "/f"))
	})

	t.Run("UnlinkDirectory", func(t *testing.T) {
		store := suite.newStore(t)
		mustMkdir(t, store, "/d")
		AssertErrorCode(t, metadata.ErrIsDirectory, store.Unlink(ctx, "/d"))
	})

	t.Run("RecreateAfterUnlinkIsEmpty", func(t *testing.T) {
		store := suite.newStore(t)
		mustWriteFile(t, store, "/f", []byte("old"))
		require.NoError(t, store.Unlink(ctx, "/f"))
		mustWriteFile(t, store, "/f", nil)

		buf, reply, err := store.Fetch(ctx, "/f", 16)
		require.NoError(t, err)
		assert.Equal(t, metadata.StateInline, reply.State)
		assert.Equal(t, 0, reply.BufLen)
		assert.Empty(t, buf)
	})
}
