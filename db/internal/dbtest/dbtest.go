// Package dbtest holds the conformance tests every db.Database backend must
// pass.
package dbtest

import (
	"fmt"
	"strconv"
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/zkvote-node/db"
)

func TestWriteTx(t *testing.T, database db.Database) {
	c := qt.New(t)
	wTx := database.WriteTx()

	_, err := wTx.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)

	c.Assert(wTx.Set([]byte("a"), []byte("b")), qt.IsNil)

	v, err := wTx.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("b"))

	// not visible outside the tx before commit
	_, err = database.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)

	c.Assert(wTx.Commit(), qt.IsNil)

	// Discard should not give any problem
	wTx.Discard()

	v, err = database.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("b"))

	// a WriteTx can be used where a db.Reader is expected
	wTx = database.WriteTx()
	useReader(c, wTx)

	c.Assert(wTx.Delete([]byte("a")), qt.IsNil)
	_, err = wTx.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
	c.Assert(wTx.Commit(), qt.IsNil)

	_, err = database.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
}

func useReader(c *qt.C, r db.Reader) {
	v, err := r.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("b"))
}

func TestIterate(t *testing.T, d db.Database) {
	c := qt.New(t)
	prefix0 := []byte("a")
	prefix0NumKeys := 20
	prefix1 := []byte("b")
	prefix1NumKeys := 30

	wTx := d.WriteTx()
	for i := range prefix0NumKeys {
		c.Assert(wTx.Set(append(prefix0, []byte(strconv.Itoa(i))...), []byte(strconv.Itoa(i))), qt.IsNil)
	}
	for i := range prefix1NumKeys {
		c.Assert(wTx.Set(append(prefix1, []byte(strconv.Itoa(i))...), []byte(strconv.Itoa(i))), qt.IsNil)
	}
	c.Assert(wTx.Commit(), qt.IsNil)

	noPrefixKeysFound := 0
	c.Assert(d.Iterate(nil, func(k, v []byte) bool {
		noPrefixKeysFound++
		return true
	}), qt.IsNil)
	c.Assert(noPrefixKeysFound, qt.Equals, prefix0NumKeys+prefix1NumKeys)

	prefix0KeysFound := 0
	c.Assert(d.Iterate(prefix0, func(k, v []byte) bool {
		// keys are passed without the iterated prefix
		c.Assert(string(k), qt.Equals, string(v))
		prefix0KeysFound++
		return true
	}), qt.IsNil)
	c.Assert(prefix0KeysFound, qt.Equals, prefix0NumKeys)

	prefix1KeysFound := 0
	c.Assert(d.Iterate(prefix1, func(k, v []byte) bool {
		prefix1KeysFound++
		return true
	}), qt.IsNil)
	c.Assert(prefix1KeysFound, qt.Equals, prefix1NumKeys)

	// ordered and stoppable
	var first []string
	c.Assert(d.Iterate(prefix1, func(k, _ []byte) bool {
		first = append(first, string(k))
		return len(first) < 3
	}), qt.IsNil)
	c.Assert(first, qt.DeepEquals, []string{"0", "1", "10"})

	// pending writes are visible when iterating a tx
	wTx = d.WriteTx()
	defer wTx.Discard()
	c.Assert(wTx.Set([]byte("a99"), []byte("99")), qt.IsNil)
	c.Assert(wTx.Delete([]byte("a0")), qt.IsNil)
	txKeysFound := 0
	c.Assert(wTx.Iterate(prefix0, func(k, _ []byte) bool {
		c.Assert(string(k), qt.Not(qt.Equals), "0")
		txKeysFound++
		return true
	}), qt.IsNil)
	c.Assert(txKeysFound, qt.Equals, prefix0NumKeys)
}

func TestWriteTxApply(t *testing.T, database db.Database) {
	c := qt.New(t)
	wTx := database.WriteTx()
	c.Assert(wTx.Set([]byte("a"), []byte("a")), qt.IsNil)

	other := database.WriteTx()
	c.Assert(other.Set([]byte("b"), []byte("b")), qt.IsNil)

	c.Assert(wTx.Apply(other), qt.IsNil)
	other.Discard()
	c.Assert(wTx.Commit(), qt.IsNil)

	for _, k := range []string{"a", "b"} {
		v, err := database.Get([]byte(k))
		c.Assert(err, qt.IsNil)
		c.Assert(v, qt.DeepEquals, []byte(k))
	}
}

func TestWriteTxApplyPrefixed(t *testing.T, database, prefixed db.Database) {
	c := qt.New(t)
	wTx := database.WriteTx()
	c.Assert(wTx.Set([]byte("a"), []byte("a")), qt.IsNil)

	other := prefixed.WriteTx()
	c.Assert(other.Set([]byte("b"), []byte("b")), qt.IsNil)

	c.Assert(wTx.Apply(other), qt.IsNil)
	other.Discard()
	c.Assert(wTx.Commit(), qt.IsNil)

	v, err := database.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("a"))

	v, err = prefixed.Get([]byte("b"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("b"))

	_, err = database.Get([]byte("b"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
}

func TestDiscard(t *testing.T, database db.Database) {
	c := qt.New(t)
	wTx := database.WriteTx()
	c.Assert(wTx.Set([]byte("discarded"), []byte("x")), qt.IsNil)
	wTx.Discard()
	wTx.Discard()

	_, err := database.Get([]byte("discarded"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
	c.Assert(wTx.Commit(), qt.Not(qt.IsNil))
}

// TestConcurrentWriteTx checks that a backend with conflict detection lets
// exactly one of several transactions that read and write the same key
// commit.
func TestConcurrentWriteTx(t *testing.T, database db.Database) {
	c := qt.New(t)
	key := []byte("counter")

	const n = 8
	txs := make([]db.WriteTx, n)
	for i := range txs {
		txs[i] = database.WriteTx()
		_, err := txs[i].Get(key)
		c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
		c.Assert(txs[i].Set(key, fmt.Appendf(nil, "%d", i)), qt.IsNil)
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, tx := range txs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- tx.Commit()
		}()
	}
	wg.Wait()
	close(errs)

	committed := 0
	for err := range errs {
		if err == nil {
			committed++
			continue
		}
		c.Assert(err, qt.ErrorIs, db.ErrConflict)
	}
	c.Assert(committed, qt.Equals, 1)
}
