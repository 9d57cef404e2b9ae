package kvstore

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Txn.Get for a missing key. Backends must map
// their engine-specific miss error to this value.
var ErrKeyNotFound = errors.New("key not found")

// Backend is an ordered key-value engine with serializable transactions.
//
// Implementations live next to their engine (memory, badger, bolt). The
// namespace semantics in Store are shared by all of them.
type Backend interface {
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(Txn) error) error

	// Update runs fn in a read-write transaction, committed only when fn
	// returns nil.
	Update(ctx context.Context, fn func(Txn) error) error

	// Close releases the engine.
	Close() error
}

// Txn is the view of the engine inside a transaction.
type Txn interface {
	// Get returns a copy of the value stored under key, or ErrKeyNotFound.
	Get(key []byte) ([]byte, error)

	// Set stores value under key.
	Set(key, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key []byte) error

	// Scan calls fn for every key with the given prefix, starting at the
	// first key not below start (nil starts at prefix), in ascending key
	// order. key and value are only valid during the call.
	Scan(prefix, start []byte, fn func(key, value []byte) error) error
}
