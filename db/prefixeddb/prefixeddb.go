// Package prefixeddb namespaces a db.Database by prefixing every key.
package prefixeddb

import (
	"github.com/vocdoni/zkvote-node/db"
)

func prefixSlice(prefix, v []byte) []byte {
	jointPrefix := make([]byte, 0, len(prefix)+len(v))
	jointPrefix = append(jointPrefix, prefix...)
	jointPrefix = append(jointPrefix, v...)
	// fixed capacity, so later appends never share memory
	return jointPrefix[:len(jointPrefix):len(jointPrefix)]
}

// PrefixedReader wraps a db.Reader prefixing all keys with `prefix`.
type PrefixedReader struct {
	prefix []byte
	reader db.Reader
}

// check that PrefixedReader implements the db.Reader interface
var _ db.Reader = (*PrefixedReader)(nil)

// NewPrefixedReader creates a new PrefixedReader. Nested prefixed readers
// are flattened.
func NewPrefixedReader(reader db.Reader, prefix []byte) *PrefixedReader {
	if pr, ok := reader.(*PrefixedReader); ok {
		return &PrefixedReader{prefixSlice(pr.prefix, prefix), pr.reader}
	}
	return &PrefixedReader{prefix, reader}
}

// Get implements the db.Reader.Get interface method
func (r *PrefixedReader) Get(key []byte) ([]byte, error) {
	return r.reader.Get(prefixSlice(r.prefix, key))
}

// Iterate implements the db.Reader.Iterate interface method
func (r *PrefixedReader) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return r.reader.Iterate(prefixSlice(r.prefix, prefix), callback)
}

// PrefixedDatabase wraps a db.Database prefixing all keys with `prefix`.
type PrefixedDatabase struct {
	prefix []byte
	db     db.Database
}

// check that PrefixedDatabase implements the db.Database interface
var _ db.Database = (*PrefixedDatabase)(nil)

// NewPrefixedDatabase creates a new PrefixedDatabase. If the db is already a
// PrefixedDatabase, instead of wrapping again, the prefixes are appended to
// avoid unnecessary layers.
func NewPrefixedDatabase(database db.Database, prefix []byte) *PrefixedDatabase {
	if pdb, ok := database.(*PrefixedDatabase); ok {
		return &PrefixedDatabase{prefixSlice(pdb.prefix, prefix), pdb.db}
	}
	return &PrefixedDatabase{prefix, database}
}

// Close implements the db.Database.Close interface method. Notice that this
// method also closes the wrapped db.Database.
func (d *PrefixedDatabase) Close() error {
	return d.db.Close()
}

// Compact implements the db.Database.Compact interface method.
func (d *PrefixedDatabase) Compact() error {
	return d.db.Compact()
}

// Get implements the db.Reader.Get interface method
func (d *PrefixedDatabase) Get(key []byte) ([]byte, error) {
	return d.db.Get(prefixSlice(d.prefix, key))
}

// WriteTx returns a db.WriteTx
func (d *PrefixedDatabase) WriteTx() db.WriteTx {
	return NewPrefixedWriteTx(d.db.WriteTx(), d.prefix)
}

// Iterate implements the db.Database.Iterate interface method
func (d *PrefixedDatabase) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return d.db.Iterate(prefixSlice(d.prefix, prefix), callback)
}

// PrefixedWriteTx wraps a WriteTx prefixing all keys with `prefix`.
type PrefixedWriteTx struct {
	prefix []byte
	tx     db.WriteTx
}

// check that PrefixedWriteTx implements the db.WriteTx interface
var _ db.WriteTx = (*PrefixedWriteTx)(nil)

// NewPrefixedWriteTx creates a new db.WriteTx. If the tx is already a
// PrefixedWriteTx, instead of wrapping again, the prefixes are appended to
// avoid unnecessary layers.
func NewPrefixedWriteTx(tx db.WriteTx, prefix []byte) *PrefixedWriteTx {
	if ptx, ok := tx.(*PrefixedWriteTx); ok {
		return &PrefixedWriteTx{prefixSlice(ptx.prefix, prefix), ptx.tx}
	}
	return &PrefixedWriteTx{prefix, tx}
}

// Unwrap returns the wrapped db.WriteTx.
func (t *PrefixedWriteTx) Unwrap() db.WriteTx {
	return t.tx
}

// Get implements the db.WriteTx.Get interface method
func (t *PrefixedWriteTx) Get(key []byte) ([]byte, error) {
	return t.tx.Get(prefixSlice(t.prefix, key))
}

// Iterate implements the db.WriteTx.Iterate interface method
func (t *PrefixedWriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return t.tx.Iterate(prefixSlice(t.prefix, prefix), callback)
}

// Set implements the db.WriteTx.Set interface method
func (t *PrefixedWriteTx) Set(key []byte, value []byte) error {
	return t.tx.Set(prefixSlice(t.prefix, key), value)
}

// Delete implements the db.WriteTx.Delete interface method
func (t *PrefixedWriteTx) Delete(key []byte) error {
	return t.tx.Delete(prefixSlice(t.prefix, key))
}

// Apply implements the db.WriteTx.Apply interface method. The pending writes
// of other are copied with their full keys.
func (t *PrefixedWriteTx) Apply(other db.WriteTx) error {
	return t.tx.Apply(other)
}

// Commit implements the db.WriteTx.Commit interface method. Notice that this
// method also commits the wrapped db.WriteTx.
func (t *PrefixedWriteTx) Commit() error {
	return t.tx.Commit()
}

// Discard implements the db.WriteTx.Discard interface method. Notice that this
// method also discards the wrapped db.WriteTx.
func (t *PrefixedWriteTx) Discard() {
	t.tx.Discard()
}
