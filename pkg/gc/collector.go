// Package gc removes bulk objects that no file points at.
//
// A bulk object becomes orphaned when:
//   - a migration created the object but failed to record the pointer
//   - a migrated file was unlinked (unlink leaves the bulk object)
//
// The collector walks the metadata namespace to build the set of live
// pointers, lists the bulk store and deletes the difference. Objects younger
// than MinAge are left alone so a migration that has created its object but
// not yet written the pointer is never collected.
package gc

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/linpawslitap/mds-scaling/internal/logger"
	"github.com/linpawslitap/mds-scaling/pkg/bulk"
	"github.com/linpawslitap/mds-scaling/pkg/metadata"
)

// Collector finds and deletes orphaned bulk objects.
//
// Thread Safety: Safe for concurrent use.
type Collector struct {
	metadataStore metadata.MetadataStore
	bulkStore     bulk.CollectableStore
	config        Config
	stopCh        chan struct{}
	doneCh        chan struct{}
	started       bool
	now           func() time.Time
}

// Config contains configuration for the garbage collector.
type Config struct {
	// Interval is how often the background worker runs (default: 24h)
	Interval time.Duration

	// MinAge protects recently written objects (default: 1h)
	MinAge time.Duration

	// Prefix restricts collection to bulk paths under it (default: "/files/")
	Prefix string

	// DryRun logs what would be deleted without deleting
	DryRun bool
}

// NewCollector creates a new garbage collector.
//
// Parameters:
//   - metadataStore: Initialized metadata store to read pointers from
//   - bulkStore: Bulk store to scan; it (or the store it wraps) must
//     implement bulk.CollectableStore
//   - config: Garbage collection configuration
//
// Returns:
//   - *Collector: Initialized collector (not started)
//   - error: Returns error if the bulk store cannot list objects
func NewCollector(metadataStore metadata.MetadataStore, bulkStore bulk.Store, config Config) (*Collector, error) {
	collectable, ok := bulk.AsCollectable(bulkStore)
	if !ok {
		return nil, fmt.Errorf("bulk store %T does not support garbage collection", bulkStore)
	}

	if config.Interval == 0 {
		config.Interval = 24 * time.Hour
	}
	if config.MinAge == 0 {
		config.MinAge = time.Hour
	}
	if config.Prefix == "" {
		config.Prefix = "/files/"
	}

	return &Collector{
		metadataStore: metadataStore,
		bulkStore:     collectable,
		config:        config,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
		now:           time.Now,
	}, nil
}

// Start begins background garbage collection. Subsequent calls are no-ops.
func (c *Collector) Start() {
	if c.started {
		return
	}
	c.started = true

	logger.Info("Starting garbage collector: interval=%s min_age=%s dry_run=%v",
		c.config.Interval, c.config.MinAge, c.config.DryRun)

	go c.worker()
}

// Stop signals the worker and waits for an in-progress run to finish.
func (c *Collector) Stop(ctx context.Context) error {
	if !c.started {
		return nil
	}

	select {
	case <-c.stopCh:
	default:
		close(c.stopCh)
	}

	select {
	case <-c.doneCh:
		logger.Info("Garbage collector stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("Garbage collector shutdown timeout")
		return ctx.Err()
	}
}

// RunNow performs one collection and blocks until it completes.
func (c *Collector) RunNow(ctx context.Context) (*Stats, error) {
	logger.Info("Running garbage collection (manual trigger)...")
	return c.collect(ctx)
}

func (c *Collector) worker() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			stats, err := c.collect(ctx)
			cancel()

			if err != nil {
				logger.Error("Garbage collection failed: %v", err)
			} else {
				logger.Info("Garbage collection completed: %s", stats.Summary())
			}

		case <-c.stopCh:
			return
		}
	}
}

// collect performs a single run:
//  1. walk the namespace and gather every migration pointer
//  2. list the bulk objects under the prefix
//  3. delete listed objects that are unreferenced and older than MinAge
func (c *Collector) collect(ctx context.Context) (*Stats, error) {
	stats := &Stats{StartTime: c.now()}
	defer func() { stats.EndTime = c.now() }()

	referenced := make(map[string]struct{})
	if err := c.walk(ctx, "/", referenced); err != nil {
		return stats, fmt.Errorf("failed to collect pointers: %w", err)
	}
	stats.ReferencedCount = uint64(len(referenced))

	existing, err := c.bulkStore.List(ctx, c.config.Prefix)
	if err != nil {
		return stats, fmt.Errorf("failed to list bulk objects: %w", err)
	}
	stats.ExistingCount = uint64(len(existing))

	logger.Debug("GC: %d pointers, %d bulk objects under %s",
		stats.ReferencedCount, stats.ExistingCount, c.config.Prefix)

	cutoff := stats.StartTime.Add(-c.config.MinAge)
	for _, obj := range existing {
		if _, ok := referenced[obj.Path]; ok {
			continue
		}
		stats.OrphanedCount++

		if obj.ModTime.After(cutoff) {
			stats.SkippedCount++
			continue
		}

		if c.config.DryRun {
			logger.Info("GC: would delete %s (%d bytes)", obj.Path, obj.Size)
			continue
		}

		if err := ctx.Err(); err != nil {
			return stats, err
		}

		err := c.bulkStore.Delete(ctx, obj.Path)
		switch {
		case err == nil:
			stats.DeletedCount++
			stats.ReclaimedBytes += uint64(obj.Size)
			logger.Debug("GC: deleted %s", obj.Path)
		case errors.Is(err, bulk.ErrObjectBusy):
			stats.SkippedCount++
		default:
			stats.FailedCount++
			logger.Warn("GC: failed to delete %s: %v", obj.Path, err)
		}
	}

	logger.Info("GC: %s", stats.Summary())
	return stats, nil
}

// walk adds the pointer of every migrated file below dir to refs.
func (c *Collector) walk(ctx context.Context, dir string, refs map[string]struct{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lister, err := c.metadataStore.List(ctx, dir)
	if err != nil {
		return err
	}

	var subdirs []string
	for name, info := range metadata.Entries(lister) {
		switch {
		case info.IsDir:
			subdirs = append(subdirs, path.Join(dir, name))
		case info.Migrated():
			refs[info.Link] = struct{}{}
		}
	}
	// A partial listing would make referenced objects look orphaned.
	if err := lister.Err(); err != nil {
		return err
	}

	for _, sub := range subdirs {
		if err := c.walk(ctx, sub, refs); err != nil {
			return err
		}
	}
	return nil
}

// Stats contains statistics from a garbage collection run.
type Stats struct {
	StartTime       time.Time // When collection started
	EndTime         time.Time // When collection ended
	ReferencedCount uint64    // Pointers found in the namespace
	ExistingCount   uint64    // Bulk objects under the prefix
	OrphanedCount   uint64    // Bulk objects with no pointer
	SkippedCount    uint64    // Orphans kept because they were too young or busy
	DeletedCount    uint64    // Orphans deleted
	FailedCount     uint64    // Orphans that failed to delete
	ReclaimedBytes  uint64    // Bytes freed by deleted orphans
}

// Duration returns the total collection duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the collection.
func (s *Stats) Summary() string {
	return fmt.Sprintf("referenced=%d existing=%d orphaned=%d skipped=%d deleted=%d failed=%d reclaimed=%dB duration=%s",
		s.ReferencedCount, s.ExistingCount, s.OrphanedCount, s.SkippedCount,
		s.DeletedCount, s.FailedCount, s.ReclaimedBytes, s.Duration())
}
