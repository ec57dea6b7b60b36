// Package goleveldb implements db.Database on top of syndtr/goleveldb.
package goleveldb

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
	"github.com/vocdoni/zkvote-node/db"
)

// LevelDB implements the db.Database interface.
type LevelDB struct {
	db *leveldb.DB
}

// Ensure that LevelDB implements the db.Database interface
var _ db.Database = (*LevelDB)(nil)

// New returns a LevelDB which implements the db.Database interface
func New(opts db.Options) (*LevelDB, error) {
	ldb, err := leveldb.OpenFile(opts.Path, &opt.Options{})
	if err != nil {
		return nil, fmt.Errorf("could not open leveldb: %w", err)
	}
	return &LevelDB{db: ldb}, nil
}

// Close closes the underlying leveldb.
func (d *LevelDB) Close() error {
	return d.db.Close()
}

// WriteTx returns a new batch-backed db.WriteTx.
func (d *LevelDB) WriteTx() db.WriteTx {
	return &WriteTx{
		db:      d.db,
		batch:   new(leveldb.Batch),
		pending: make(map[string]*[]byte),
	}
}

// Get implements the db.Reader.Get interface method
func (d *LevelDB) Get(key []byte) ([]byte, error) {
	val, err := d.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Iterate implements the db.Reader.Iterate interface method
func (d *LevelDB) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	iter := d.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		if !callback(iter.Key()[len(prefix):], iter.Value()) {
			break
		}
	}
	return iter.Error()
}

// Compact implements the db.Database.Compact interface method.
func (d *LevelDB) Compact() error {
	return d.db.CompactRange(util.Range{})
}

// WriteTx implements the interface db.WriteTx for goleveldb. Pending writes
// are tracked next to the batch so reads on the transaction observe them.
type WriteTx struct {
	db      *leveldb.DB
	batch   *leveldb.Batch
	pending map[string]*[]byte
	done    bool
}

// check that WriteTx implements the db.WriteTx interface
var _ db.WriteTx = (*WriteTx)(nil)

// Get implements the db.WriteTx.Get interface method
func (tx *WriteTx) Get(k []byte) ([]byte, error) {
	if v, ok := tx.pending[string(k)]; ok {
		if v == nil {
			return nil, db.ErrKeyNotFound
		}
		return bytes.Clone(*v), nil
	}
	val, err := tx.db.Get(k, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, db.ErrKeyNotFound
	}
	return val, err
}

// Iterate implements the db.WriteTx.Iterate interface method
func (tx *WriteTx) Iterate(prefix []byte, callback func(k, v []byte) bool) error {
	entries := make(map[string][]byte)
	iter := tx.db.NewIterator(util.BytesPrefix(prefix), nil)
	for iter.Next() {
		entries[string(iter.Key())] = bytes.Clone(iter.Value())
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return err
	}
	for k, v := range tx.pending {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if v == nil {
			delete(entries, k)
			continue
		}
		entries[k] = *v
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if !callback([]byte(k[len(prefix):]), entries[k]) {
			break
		}
	}
	return nil
}

// Set implements the db.WriteTx.Set interface method
func (tx *WriteTx) Set(k, v []byte) error {
	vcopy := bytes.Clone(v)
	tx.batch.Put(k, vcopy)
	tx.pending[string(k)] = &vcopy
	return nil
}

// Delete implements the db.WriteTx.Delete interface method
func (tx *WriteTx) Delete(k []byte) error {
	tx.batch.Delete(k)
	tx.pending[string(k)] = nil
	return nil
}

// Apply implements the db.WriteTx.Apply interface method
func (tx *WriteTx) Apply(other db.WriteTx) error {
	otherLevel, ok := db.UnwrapWriteTx(other).(*WriteTx)
	if !ok {
		return fmt.Errorf("cannot apply %T into a leveldb tx", other)
	}
	for k, v := range otherLevel.pending {
		if v == nil {
			if err := tx.Delete([]byte(k)); err != nil {
				return err
			}
			continue
		}
		if err := tx.Set([]byte(k), *v); err != nil {
			return err
		}
	}
	return nil
}

// Commit writes the batch atomically.
func (tx *WriteTx) Commit() error {
	if tx.done {
		return fmt.Errorf("cannot commit leveldb tx: already committed or discarded")
	}
	tx.done = true
	return tx.db.Write(tx.batch, &opt.WriteOptions{Sync: true})
}

// Discard implements the db.WriteTx.Discard interface method
func (tx *WriteTx) Discard() {
	tx.batch.Reset()
	tx.pending = make(map[string]*[]byte)
	tx.done = true
}
