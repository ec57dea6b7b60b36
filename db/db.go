// Package db defines the key-value storage contract shared by every backend
// the ledger can persist to.
package db

import (
	"fmt"
	"io"
)

// Supported database backends.
const (
	TypePebble   = "pebble"
	TypeLevelDB  = "leveldb"
	TypeMongo    = "mongodb"
	TypeInMemory = "inmemory"
)

// ErrKeyNotFound is used to indicate that a key does not exist in the db.
var ErrKeyNotFound = fmt.Errorf("key not found")

// ErrConflict is returned when a transaction conflicts with another
// transaction. This can happen if the read rows had been updated concurrently
// by another transaction.
var ErrConflict = fmt.Errorf("txn conflict")

// Options defines generic parameters for creating a new Database.
type Options struct {
	Path string
}

// Database wraps all database operations. All methods are safe for concurrent
// use.
type Database interface {
	io.Closer

	Reader

	// WriteTx creates a new write transaction.
	WriteTx() WriteTx

	// Compact compacts the underlying storage.
	Compact() error
}

// Reader contains the read-only database operations.
type Reader interface {
	// Get retrieves the value for the given key. If the key does not
	// exist, returns the error ErrKeyNotFound
	Get(key []byte) ([]byte, error)

	// Iterate calls callback with all key-value pairs in the database whose key
	// starts with prefix. The keys passed to the callback have the prefix
	// removed, and the calls are ordered lexicographically by key.
	//
	// The iteration is stopped early when the callback function returns false.
	//
	// It is not safe to use the key or value slices after the callback returns.
	// To use the values for longer, make a copy.
	Iterate(prefix []byte, callback func(key, value []byte) bool) error
}

// WriteTx is a read-write transaction. Reads observe the pending writes of
// the same transaction.
type WriteTx interface {
	Reader

	// Set adds a key-value pair. If the key already exists, its value is
	// updated.
	Set(key []byte, value []byte) error
	// Delete deletes a key and its value.
	Delete(key []byte) error
	// Apply copies the pending key-values of other into this transaction.
	Apply(other WriteTx) error
	// Commit commits the transaction into the db.
	// Calling Commit more than once, or after Discard, is an error.
	Commit() error
	// Discard releases the transaction's resources. It can be safely called
	// after Commit or Discard, to allow deferred Discard calls.
	Discard()
}

// UnwrapWriteTx unwraps (if possible) the WriteTx using Unwrap method
func UnwrapWriteTx(tx WriteTx) WriteTx {
	for {
		wtx, ok := tx.(interface{ Unwrap() WriteTx })
		if !ok {
			return tx
		}
		tx = wtx.Unwrap()
	}
}

// PrefixUpperBound returns the smallest key that is greater than every key
// starting with prefix, or nil when there is no such key.
func PrefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i] = end[i] + 1
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
