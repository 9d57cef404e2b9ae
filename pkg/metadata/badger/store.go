package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/linpawslitap/mds-scaling/pkg/metadata/kvstore"
)

// BadgerMetadataStoreConfig contains configuration for the BadgerDB backend.
type BadgerMetadataStoreConfig struct {
	// DBPath is the directory where BadgerDB stores its files.
	// Ignored when InMemory is set.
	DBPath string `mapstructure:"db_path"`

	// InMemory keeps the LSM tree in memory only (tests, scratch runs).
	InMemory bool `mapstructure:"in_memory"`

	// BlockCacheSizeMB is BadgerDB's block cache size in MB (default: 64)
	BlockCacheSizeMB int64 `mapstructure:"block_cache_mb"`

	// IndexCacheSizeMB is BadgerDB's index cache size in MB (default: 32)
	IndexCacheSizeMB int64 `mapstructure:"index_cache_mb"`

	// Store holds the namespace options shared by all backends.
	Store kvstore.Options `mapstructure:"-"`
}

// Backend adapts a BadgerDB instance to kvstore.Backend.
type Backend struct {
	db *badger.DB
}

// NewBackend opens BadgerDB according to config.
func NewBackend(ctx context.Context, config BadgerMetadataStoreConfig) (*Backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(config.DBPath)
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}

	// Inline payloads are compressed by kvstore when configured, so the
	// table-level compression stays off.
	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithCompression(options.None)

	blockCacheMB := config.BlockCacheSizeMB
	if blockCacheMB == 0 {
		blockCacheMB = 64
	}
	indexCacheMB := config.IndexCacheSizeMB
	if indexCacheMB == 0 {
		indexCacheMB = 32
	}
	opts = opts.WithBlockCacheSize(blockCacheMB << 20)
	opts = opts.WithIndexCacheSize(indexCacheMB << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}
	return &Backend{db: db}, nil
}

// NewBadgerMetadataStore opens BadgerDB and wraps it in a MetadataStore.
// Init must still be called.
func NewBadgerMetadataStore(ctx context.Context, config BadgerMetadataStoreConfig) (*kvstore.Store, error) {
	backend, err := NewBackend(ctx, config)
	if err != nil {
		return nil, err
	}

	store, err := kvstore.New(backend, config.Store)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return store, nil
}

func (b *Backend) View(ctx context.Context, fn func(kvstore.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.View(func(t *badger.Txn) error {
		return fn(txn{t})
	})
}

func (b *Backend) Update(ctx context.Context, fn func(kvstore.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(t *badger.Txn) error {
		return fn(txn{t})
	})
}

func (b *Backend) Close() error {
	return b.db.Close()
}

type txn struct {
	t *badger.Txn
}

func (t txn) Get(key []byte) ([]byte, error) {
	item, err := t.t.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, kvstore.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t txn) Set(key, value []byte) error {
	return t.t.Set(key, value)
}

func (t txn) Delete(key []byte) error {
	return t.t.Delete(key)
}

func (t txn) Scan(prefix, start []byte, fn func(key, value []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix

	it := t.t.NewIterator(opts)
	defer it.Close()

	seek := prefix
	if bytes.Compare(start, prefix) > 0 {
		seek = start
	}
	for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		err := item.Value(func(val []byte) error {
			return fn(item.Key(), val)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
