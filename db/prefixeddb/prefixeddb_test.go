package prefixeddb

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/zkvote-node/db"
	"github.com/vocdoni/zkvote-node/db/inmemory"
	"github.com/vocdoni/zkvote-node/db/internal/dbtest"
)

func newDB(t *testing.T) db.Database {
	database, err := inmemory.New(db.Options{})
	qt.Assert(t, err, qt.IsNil)
	return database
}

func TestWriteTx(t *testing.T) {
	dbtest.TestWriteTx(t, NewPrefixedDatabase(newDB(t), []byte("a/")))
}

func TestIterate(t *testing.T) {
	dbtest.TestIterate(t, NewPrefixedDatabase(newDB(t), []byte("a/")))
}

func TestIsolation(t *testing.T) {
	c := qt.New(t)
	base := newDB(t)
	candidates := NewPrefixedDatabase(base, []byte("c/"))
	voters := NewPrefixedDatabase(base, []byte("v/"))

	wTx := candidates.WriteTx()
	c.Assert(wTx.Set([]byte("1"), []byte("alice")), qt.IsNil)
	c.Assert(wTx.Commit(), qt.IsNil)

	_, err := voters.Get([]byte("1"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)

	v, err := base.Get([]byte("c/1"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("alice"))

	var keys []string
	c.Assert(NewPrefixedReader(base, []byte("c/")).Iterate(nil, func(k, _ []byte) bool {
		keys = append(keys, string(k))
		return true
	}), qt.IsNil)
	c.Assert(keys, qt.DeepEquals, []string{"1"})
}

func TestNestedPrefixes(t *testing.T) {
	c := qt.New(t)
	base := newDB(t)
	nested := NewPrefixedDatabase(NewPrefixedDatabase(base, []byte("x")), []byte("y"))

	wTx := NewPrefixedWriteTx(NewPrefixedWriteTx(base.WriteTx(), []byte("x")), []byte("y"))
	c.Assert(wTx.Set([]byte("k"), []byte("v")), qt.IsNil)
	c.Assert(wTx.Commit(), qt.IsNil)

	v, err := nested.Get([]byte("k"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("v"))
	_, err = base.Get([]byte("xyk"))
	c.Assert(err, qt.IsNil)
}
