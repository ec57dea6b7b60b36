package metadb

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/zkvote-node/db"
)

func TestNew(t *testing.T) {
	c := qt.New(t)

	for _, typ := range []string{db.TypePebble, db.TypeLevelDB, db.TypeInMemory} {
		database, err := New(typ, t.TempDir())
		c.Assert(err, qt.IsNil, qt.Commentf("type %s", typ))
		c.Assert(database.Close(), qt.IsNil)
	}

	_, err := New("badger", t.TempDir())
	c.Assert(err, qt.ErrorMatches, `invalid dbType: "badger".*`)
}

func TestNewTest(t *testing.T) {
	database := NewTest(t)
	wTx := database.WriteTx()
	qt.Assert(t, wTx.Set([]byte("k"), []byte("v")), qt.IsNil)
	qt.Assert(t, wTx.Commit(), qt.IsNil)
}
