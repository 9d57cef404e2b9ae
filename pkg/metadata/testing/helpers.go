package testing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linpawslitap/mds-scaling/pkg/metadata"
)

// AssertErrorCode asserts that err is a StoreError with the expected code.
func AssertErrorCode(t *testing.T, expected metadata.ErrorCode, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Truef(t, metadata.IsCode(err, expected), "expected %s, got %v", expected, err)
}

// mustMkdir creates a directory or fails the test.
func mustMkdir(t *testing.T, store metadata.MetadataStore, path string) {
	t.Helper()
	require.NoError(t, store.Mkdir(context.Background(), path, 0o755))
}

// mustWriteFile creates path with content and closes the handle.
func mustWriteFile(t *testing.T, store metadata.MetadataStore, path string, content []byte) {
	t.Helper()
	ctx := context.Background()

	h, err := store.Create(ctx, path, 0o644)
	require.NoError(t, err)
	require.True(t, h.Valid())

	if len(content) > 0 {
		n, err := store.Write(ctx, h, content)
		require.NoError(t, err)
		require.Equal(t, len(content), n)
	}
	require.NoError(t, store.Close(ctx, h))
}

// mustInfo returns GetInfo for path or fails the test.
func mustInfo(t *testing.T, store metadata.MetadataStore, path string) *metadata.FileInfo {
	t.Helper()
	fi, err := store.GetInfo(context.Background(), path)
	require.NoError(t, err)
	require.NotNil(t, fi)
	return fi
}

// bytesOf returns n bytes of a repeating pattern.
func bytesOf(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + i%26)
	}
	return b
}
