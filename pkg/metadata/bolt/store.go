package bolt

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/linpawslitap/mds-scaling/pkg/metadata/kvstore"
)

var namespaceBucket = []byte("namespace")

// BoltMetadataStoreConfig contains configuration for the bbolt backend.
type BoltMetadataStoreConfig struct {
	// Path is the database file.
	Path string `mapstructure:"path"`

	// LockTimeout bounds how long Open waits for the file lock held by
	// another process.
	LockTimeout time.Duration `mapstructure:"lock_timeout"`

	// NoSync skips fsync after each commit. Faster, unsafe on power loss.
	NoSync bool `mapstructure:"no_sync"`

	// Store holds the namespace options shared by all backends.
	Store kvstore.Options `mapstructure:"-"`
}

// Backend adapts a bbolt database to kvstore.Backend. All keys live in a
// single bucket so the ordered cursor serves prefix scans directly.
type Backend struct {
	db *bbolt.DB
}

// NewBackend opens the database file and creates the namespace bucket.
func NewBackend(ctx context.Context, config BoltMetadataStoreConfig) (*Backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := config.LockTimeout
	if timeout == 0 {
		timeout = time.Second
	}

	db, err := bbolt.Open(config.Path, 0o600, &bbolt.Options{
		Timeout:      timeout,
		NoSync:       config.NoSync,
		NoStatistics: true,
	})
	if err != nil {
		return nil, fmt.Errorf("can't open bbolt at %s: %w", config.Path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(namespaceBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("can't create namespace bucket: %w", err)
	}

	return &Backend{db: db}, nil
}

// NewBoltMetadataStore opens bbolt and wraps it in a MetadataStore.
// Init must still be called.
func NewBoltMetadataStore(ctx context.Context, config BoltMetadataStoreConfig) (*kvstore.Store, error) {
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
	return b.db.View(func(tx *bbolt.Tx) error {
		return fn(txn{b: tx.Bucket(namespaceBucket)})
	})
}

func (b *Backend) Update(ctx context.Context, fn func(kvstore.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return fn(txn{b: tx.Bucket(namespaceBucket)})
	})
}

func (b *Backend) Close() error {
	return b.db.Close()
}

type txn struct {
	b *bbolt.Bucket
}

// Get copies the value: bbolt memory is only valid inside the transaction.
func (t txn) Get(key []byte) ([]byte, error) {
	v := t.b.Get(key)
	if v == nil {
		return nil, kvstore.ErrKeyNotFound
	}
	return bytes.Clone(v), nil
}

func (t txn) Set(key, value []byte) error {
	return t.b.Put(key, value)
}

func (t txn) Delete(key []byte) error {
	return t.b.Delete(key)
}

func (t txn) Scan(prefix, start []byte, fn func(key, value []byte) error) error {
	seek := prefix
	if bytes.Compare(start, prefix) > 0 {
		seek = start
	}
	c := t.b.Cursor()
	for k, v := c.Seek(seek); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}
