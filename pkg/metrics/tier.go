package metrics

import "time"

// Tier names the storage tier an operation touched.
type Tier string

const (
	// TierInline is the metadata store's inline payload area.
	TierInline Tier = "inline"

	// TierBulk is the bulk object store.
	TierBulk Tier = "bulk"
)

// TierMetrics provides observability for the tiered file layer.
//
// This interface is optional - if not provided, operations proceed without
// metrics collection.
type TierMetrics interface {
	// SessionOpened records a new write session.
	SessionOpened()

	// SessionClosed records a write session ending.
	//
	// Parameters:
	//   - tier: Tier the file ended up in
	//   - size: Total bytes written through the session
	SessionClosed(tier Tier, size int64)

	// RecordFlush records one buffer flush to a tier.
	RecordFlush(tier Tier, bytes int)

	// RecordMigration records a migration attempt.
	//
	// Parameters:
	//   - bytes: Inline bytes copied to the bulk store
	//   - duration: Time taken to migrate
	//   - err: Error if the migration failed, nil if successful
	RecordMigration(bytes int64, duration time.Duration, err error)

	// RecordOpen records a read stream opened on the given tier.
	RecordOpen(tier Tier)
}

// noopTierMetrics is a no-op implementation of TierMetrics.
type noopTierMetrics struct{}

// NewNoopTierMetrics returns a TierMetrics that discards everything.
func NewNoopTierMetrics() TierMetrics {
	return noopTierMetrics{}
}

func (noopTierMetrics) SessionOpened()                              {}
func (noopTierMetrics) SessionClosed(Tier, int64)                   {}
func (noopTierMetrics) RecordFlush(Tier, int)                       {}
func (noopTierMetrics) RecordMigration(int64, time.Duration, error) {}
func (noopTierMetrics) RecordOpen(Tier)                             {}
