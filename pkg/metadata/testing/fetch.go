package testing

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linpawslitap/mds-scaling/pkg/metadata"
)

// RunFetchTests covers Fetch and ReadAll.
func (suite *StoreTestSuite) RunFetchTests(t *testing.T) {
	ctx := context.Background()

	t.Run("InlineWithinCapacity", func(t *testing.T) {
		store := suite.newStore(t)
		content := bytesOf(4096)
		mustWriteFile(t, store, "/f", content)

		buf, reply, err := store.Fetch(ctx, "/f", 4096)
		require.NoError(t, err)
		assert.Equal(t, metadata.StateInline, reply.State)
		assert.Equal(t, 4096, reply.BufLen)
		assert.Equal(t, content, buf[:reply.BufLen])
	})

	t.Run("InlineExceedsCapacity", func(t *testing.T) {
		store := suite.newStore(t)
		mustWriteFile(t, store, "/f", bytesOf(10))

		_, _, err := store.Fetch(ctx, "/f", 9)
		AssertErrorCode(t, metadata.ErrBufferTooSmall, err)
	})

	t.Run("Missing", func(t *testing.T) {
		store := suite.newStore(t)
		_, _, err := store.Fetch(ctx, "/nope", 16)
		AssertErrorCode(t, metadata.ErrNotFound, err)
	})

	t.Run("Directory", func(t *testing.T) {
		store := suite.newStore(t)
		mustMkdir(t, store, "/d")
		_, _, err := store.Fetch(ctx, "/d", 16)
		AssertErrorCode(t, metadata.ErrIsDirectory, err)
	})

	t.Run("CompressibleContentRoundTrips", func(t *testing.T) {
		store := suite.newStore(t)
		content := []byte(strings.Repeat("tiered ", 500))
		mustWriteFile(t, store, "/f", content)

		buf, reply, err := store.Fetch(ctx, "/f", len(content))
		require.NoError(t, err)
		assert.Equal(t, content, buf[:reply.BufLen])
	})

	t.Run("ReadAllIgnoresPosition", func(t *testing.T) {
		store := suite.newStore(t)
		h, err := store.Create(ctx, "/f", 0o644)
		require.NoError(t, err)
		defer func() { _ = store.Close(ctx, h) }()

		_, err = store.Write(ctx, h, []byte("0123456789"))
		require.NoError(t, err)

		buf, reply, err := store.ReadAll(ctx, h, 64)
		require.NoError(t, err)
		assert.Equal(t, metadata.StateInline, reply.State)
		assert.Equal(t, "0123456789", string(buf[:reply.BufLen]))
	})
}

// RunLinkTests covers WriteLink, UpdateLink and GetParentID.
func (suite *StoreTestSuite) RunLinkTests(t *testing.T) {
	ctx := context.Background()

	t.Run("WriteLinkSwitchesState", func(t *testing.T) {
		store := suite.newStore(t)
		h, err := store.Create(ctx, "/f", 0o644)
		require.NoError(t, err)
		_, err = store.Write(ctx, h, bytesOf(100))
		require.NoError(t, err)

		require.NoError(t, store.WriteLink(ctx, h, "/files/p/f"))
		require.NoError(t, store.Close(ctx, h))

		buf, reply, err := store.Fetch(ctx, "/f", 4096)
		require.NoError(t, err)
		assert.Equal(t, metadata.StateMigrated, reply.State)
		assert.Equal(t, "/files/p/f", string(buf))

		fi := mustInfo(t, store, "/f")
		assert.Equal(t, "/files/p/f", fi.Link)
		assert.True(t, fi.Migrated())
	})

	t.Run("InlineIOOnMigratedFile", func(t *testing.T) {
		store := suite.newStore(t)
		h, err := store.Create(ctx, "/f", 0o644)
		require.NoError(t, err)
		require.NoError(t, store.WriteLink(ctx, h, "/files/p/f"))

		_, err = store.Write(ctx, h, []byte("x"))
		AssertErrorCode(t, metadata.ErrMigrated, err)
		require.NoError(t, store.Close(ctx, h))

		_, err = store.Open(ctx, "/f", metadata.OpenWriteOnly|metadata.OpenTruncate)
		AssertErrorCode(t, metadata.ErrMigrated, err)
	})

	t.Run("WriteLinkEmptyTarget", func(t *testing.T) {
		store := suite.newStore(t)
		h, err := store.Create(ctx, "/f", 0o644)
		require.NoError(t, err)
		AssertErrorCode(t, metadata.ErrInvalidArgument, store.WriteLink(ctx, h, ""))
	})

	t.Run("UpdateLink", func(t *testing.T) {
		store := suite.newStore(t)
		mustWriteFile(t, store, "/inline", []byte("x"))
		AssertErrorCode(t, metadata.ErrInvalidArgument, store.UpdateLink(ctx, "/inline", "/files/x"))

		h, err := store.Create(ctx, "/f", 0o644)
		require.NoError(t, err)
		require.NoError(t, store.WriteLink(ctx, h, "/files/a"))
		require.NoError(t, store.Close(ctx, h))

		require.NoError(t, store.UpdateLink(ctx, "/f", "/files/b"))
		assert.Equal(t, "/files/b", mustInfo(t, store, "/f").Link)
	})

	t.Run("ParentIDStablePerDirectory", func(t *testing.T) {
		store := suite.newStore(t)
		mustMkdir(t, store, "/d")

		h1, err := store.Create(ctx, "/d/a", 0o644)
		require.NoError(t, err)
		h2, err := store.Create(ctx, "/d/b", 0o644)
		require.NoError(t, err)
		h3, err := store.Create(ctx, "/c", 0o644)
		require.NoError(t, err)

		p1, err := store.GetParentID(ctx, h1)
		require.NoError(t, err)
		p2, err := store.GetParentID(ctx, h2)
		require.NoError(t, err)
		p3, err := store.GetParentID(ctx, h3)
		require.NoError(t, err)

		assert.NotEmpty(t, p1)
		assert.Equal(t, p1, p2)
		assert.NotEqual(t, p1, p3)
	})
}

// RunListTests covers the directory lister.
func (suite *StoreTestSuite) RunListTests(t *testing.T) {
	ctx := context.Background()

	t.Run("SortedEntries", func(t *testing.T) {
		store := suite.newStore(t)
		mustMkdir(t, store, "/d")
		mustWriteFile(t, store, "/d/b", []byte("bb"))
		mustWriteFile(t, store, "/d/a", []byte("a"))
		mustMkdir(t, store, "/d/c")
		mustWriteFile(t, store, "/d/c/nested", nil)

		l, err := store.List(ctx, "/d")
		require.NoError(t, err)

		var names []string
		sizes := map[string]int64{}
		for name, fi := range metadata.Entries(l) {
			names = append(names, name)
			sizes[name] = fi.Size
		}
		assert.Equal(t, []string{"a", "b", "c"}, names)
		assert.Equal(t, int64(2), sizes["b"])
		assert.False(t, l.Valid())
		assert.NoError(t, l.Err())
	})

	t.Run("ManyEntries", func(t *testing.T) {
		store := suite.newStore(t)
		mustMkdir(t, store, "/d")
		var want []string
		for i := 0; i < 7; i++ {
			name := fmt.Sprintf("f%02d", i)
			want = append(want, name)
			mustWriteFile(t, store, "/d/"+name, []byte(name))
		}

		l, err := store.List(ctx, "/d")
		require.NoError(t, err)
		var names []string
		for name, fi := range metadata.Entries(l) {
			names = append(names, name)
			assert.Equal(t, int64(3), fi.Size)
		}
		require.NoError(t, l.Err())
		assert.Equal(t, want, names)
	})

	t.Run("EmptyDirectory", func(t *testing.T) {
		store := suite.newStore(t)
		mustMkdir(t, store, "/d")
		l, err := store.List(ctx, "/d")
		require.NoError(t, err)
		assert.False(t, l.Valid())
		l.Release()
	})

	t.Run("PrefixSiblingsNotMixed", func(t *testing.T) {
		store := suite.newStore(t)
		mustMkdir(t, store, "/d")
		mustMkdir(t, store, "/dd")
		mustWriteFile(t, store, "/dd/x", nil)

		l, err := store.List(ctx, "/d")
		require.NoError(t, err)
		assert.False(t, l.Valid())
	})

	t.Run("NotADirectory", func(t *testing.T) {
		store := suite.newStore(t)
		mustWriteFile(t, store, "/f", nil)
		_, err := store.List(ctx, "/f")
		AssertErrorCode(t, metadata.ErrNotDirectory, err)
	})
}
