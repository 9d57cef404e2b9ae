package testing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linpawslitap/mds-scaling/pkg/metadata"
)

// RunIOTests covers open, read, write and close on inline files.
func (suite *StoreTestSuite) RunIOTests(t *testing.T) {
	t.Run("WriteAppendsAtPosition", suite.testWriteAppendsAtPosition)
	t.Run("ReadSequential", suite.testReadSequential)
	t.Run("OpenMissing", suite.testOpenMissing)
	t.Run("OpenCreate", suite.testOpenCreate)
	t.Run("OpenTruncate", suite.testOpenTruncate)
	t.Run("OpenAppend", suite.testOpenAppend)
	t.Run("OpenDirectory", suite.testOpenDirectory)
	t.Run("AccessModeEnforced", suite.testAccessModeEnforced)
	t.Run("CloseTwice", suite.testCloseTwice)
	t.Run("HandleOfUnlinkedFile", suite.testHandleOfUnlinkedFile)
}

func (suite *StoreTestSuite) testWriteAppendsAtPosition(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()

	h, err := store.Create(ctx, "/f", 0o644)
	require.NoError(t, err)
	for _, chunk := range []string{"hello", " ", "world"} {
		n, err := store.Write(ctx, h, []byte(chunk))
		require.NoError(t, err)
		require.Equal(t, len(chunk), n)
	}
	require.NoError(t, store.Close(ctx, h))

	fi := mustInfo(t, store, "/f")
	assert.Equal(t, int64(11), fi.Size)

	buf, reply, err := store.Fetch(ctx, "/f", 64)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(buf[:reply.BufLen]))
}

func (suite *StoreTestSuite) testReadSequential(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()
	content := bytesOf(100)
	mustWriteFile(t, store, "/f", content)

	h, err := store.Open(ctx, "/f", metadata.OpenReadOnly)
	require.NoError(t, err)
	defer func() { _ = store.Close(ctx, h) }()

	var got []byte
	for {
		chunk, err := store.Read(ctx, h, 30)
		require.NoError(t, err)
		if len(chunk) == 0 {
			break
		}
		got = append(got, chunk...)
	}
	assert.Equal(t, content, got)
}

func (suite *StoreTestSuite) testOpenMissing(t *testing.T) {
	store := suite.newStore(t)
	_, err := store.Open(context.Background(), "/nope", metadata.OpenReadOnly)
	AssertErrorCode(t, metadata.ErrNotFound, err)
}

func (suite *StoreTestSuite) testOpenCreate(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()

	h, err := store.Open(ctx, "/f", metadata.OpenWriteOnly|metadata.OpenCreate)
	require.NoError(t, err)
	_, err = store.Write(ctx, h, []byte("abc"))
	require.NoError(t, err)
	require.NoError(t, store.Close(ctx, h))

	assert.Equal(t, int64(3), mustInfo(t, store, "/f").Size)
}

func (suite *StoreTestSuite) testOpenTruncate(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()
	mustWriteFile(t, store, "/f", []byte("old content"))

	h, err := store.Open(ctx, "/f", metadata.OpenWriteOnly|metadata.OpenTruncate)
	require.NoError(t, err)
	_, err = store.Write(ctx, h, []byte("new"))
	require.NoError(t, err)
	require.NoError(t, store.Close(ctx, h))

	buf, _, err := store.Fetch(ctx, "/f", 64)
	require.NoError(t, err)
	assert.Equal(t, "new", string(buf))
}

func (suite *StoreTestSuite) testOpenAppend(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()
	mustWriteFile(t, store, "/f", []byte("abc"))

	h, err := store.Open(ctx, "/f", metadata.OpenWriteOnly|metadata.OpenAppend)
	require.NoError(t, err)
	_, err = store.Write(ctx, h, []byte("def"))
	require.NoError(t, err)
	require.NoError(t, store.Close(ctx, h))

	buf, _, err := store.Fetch(ctx, "/f", 64)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(buf))
}

func (suite *StoreTestSuite) testOpenDirectory(t *testing.T) {
	store := suite.newStore(t)
	mustMkdir(t, store, "/d")

	_, err := store.Open(context.Background(), "/d", metadata.OpenReadOnly)
	AssertErrorCode(t, metadata.ErrIsDirectory, err)
	_, err = store.Open(context.Background(), "/", metadata.OpenReadOnly)
	AssertErrorCode(t, metadata.ErrIsDirectory, err)
}

func (suite *StoreTestSuite) testAccessModeEnforced(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()
	mustWriteFile(t, store, "/f", []byte("abc"))

	ro, err := store.Open(ctx, "/f", metadata.OpenReadOnly)
	require.NoError(t, err)
	_, err = store.Write(ctx, ro, []byte("x"))
	AssertErrorCode(t, metadata.ErrInvalidArgument, err)

	wo, err := store.Create(ctx, "/g", 0o644)
	require.NoError(t, err)
	_, err = store.Read(ctx, wo, 1)
	AssertErrorCode(t, metadata.ErrInvalidArgument, err)
}

func (suite *StoreTestSuite) testCloseTwice(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()

	h, err := store.Create(ctx, "/f", 0o644)
	require.NoError(t, err)
	require.NoError(t, store.Close(ctx, h))
	AssertErrorCode(t, metadata.ErrInvalidHandle, store.Close(ctx, h))

	_, err = store.Write(ctx, h, []byte("x"))
	AssertErrorCode(t, metadata.ErrInvalidHandle, err)
}

func (suite *StoreTestSuite) testHandleOfUnlinkedFile(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()

	h, err := store.Create(ctx, "/f", 0o644)
	require.NoError(t, err)
	require.NoError(t, store.Unlink(ctx, "/f"))

	_, err = store.Write(ctx, h, []byte("x"))
	AssertErrorCode(t, metadata.ErrNotFound, err)
}
