package memory

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/linpawslitap/mds-scaling/pkg/metadata/kvstore"
)

var errClosed = errors.New("memory backend closed")

// Backend is an in-memory ordered key-value engine.
//
// It is suitable for tests and for ephemeral deployments where nothing
// needs to survive a restart.
//
// Thread Safety:
// A single read-write mutex serializes writers and lets readers share. An
// Update stages its writes and applies them only when the callback succeeds.
type Backend struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewBackend returns an empty backend.
func NewBackend() *Backend {
	return &Backend{data: make(map[string][]byte)}
}

// NewMemoryMetadataStore returns a MetadataStore backed by a fresh in-memory
// engine. Init must still be called.
func NewMemoryMetadataStore(opts kvstore.Options) (*kvstore.Store, error) {
	return kvstore.New(NewBackend(), opts)
}

func (b *Backend) View(ctx context.Context, fn func(kvstore.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errClosed
	}
	return fn(&txn{base: b.data, readOnly: true})
}

func (b *Backend) Update(ctx context.Context, fn func(kvstore.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed
	}

	t := &txn{
		base:    b.data,
		staged:  make(map[string][]byte),
		deleted: make(map[string]bool),
	}
	if err := fn(t); err != nil {
		return err
	}

	for k := range t.deleted {
		delete(b.data, k)
	}
	for k, v := range t.staged {
		b.data[k] = v
	}
	return nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.data = nil
	return nil
}

// Len returns the number of stored keys.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

type txn struct {
	base     map[string][]byte
	staged   map[string][]byte
	deleted  map[string]bool
	readOnly bool
}

var errReadOnly = errors.New("write in read-only transaction")

func (t *txn) Get(key []byte) ([]byte, error) {
	k := string(key)
	if t.deleted[k] {
		return nil, kvstore.ErrKeyNotFound
	}
	if v, ok := t.staged[k]; ok {
		return bytes.Clone(v), nil
	}
	if v, ok := t.base[k]; ok {
		return bytes.Clone(v), nil
	}
	return nil, kvstore.ErrKeyNotFound
}

func (t *txn) Set(key, value []byte) error {
	if t.readOnly {
		return errReadOnly
	}
	k := string(key)
	delete(t.deleted, k)
	t.staged[k] = bytes.Clone(value)
	return nil
}

func (t *txn) Delete(key []byte) error {
	if t.readOnly {
		return errReadOnly
	}
	k := string(key)
	delete(t.staged, k)
	if _, ok := t.base[k]; ok {
		t.deleted[k] = true
	}
	return nil
}

func (t *txn) Scan(prefix, start []byte, fn func(key, value []byte) error) error {
	p := string(prefix)
	from := string(start)

	var keys []string
	for k := range t.base {
		if strings.HasPrefix(k, p) && k >= from && !t.deleted[k] {
			if _, ok := t.staged[k]; !ok {
				keys = append(keys, k)
			}
		}
	}
	for k := range t.staged {
		if strings.HasPrefix(k, p) && k >= from {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	for _, k := range keys {
		v, ok := t.staged[k]
		if !ok {
			v = t.base[k]
		}
		if err := fn([]byte(k), v); err != nil {
			return err
		}
	}
	return nil
}
