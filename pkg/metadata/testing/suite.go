package testing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/linpawslitap/mds-scaling/pkg/metadata"
)

// StoreTestSuite is a contract test suite for MetadataStore implementations.
// It tests the interface contract, not implementation details, so every
// backend runs the same cases.
type StoreTestSuite struct {
	// NewStore creates a fresh, not yet initialized store for each test.
	NewStore func(t *testing.T) metadata.MetadataStore
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("Lifecycle", suite.RunLifecycleTests)
	t.Run("Namespace", suite.RunNamespaceTests)
	t.Run("IO", suite.RunIOTests)
	t.Run("Fetch", suite.RunFetchTests)
	t.Run("Link", suite.RunLinkTests)
	t.Run("List", suite.RunListTests)
}

// newStore creates and initializes a store, destroying it at test end.
func (suite *StoreTestSuite) newStore(t *testing.T) metadata.MetadataStore {
	t.Helper()
	store := suite.NewStore(t)
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { _ = store.Destroy() })
	return store
}
