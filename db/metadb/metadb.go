// Package metadb opens a db.Database by backend name.
package metadb

import (
	"cmp"
	"fmt"
	"os"
	"testing"

	"github.com/vocdoni/zkvote-node/db"
	"github.com/vocdoni/zkvote-node/db/goleveldb"
	"github.com/vocdoni/zkvote-node/db/inmemory"
	"github.com/vocdoni/zkvote-node/db/mongodb"
	"github.com/vocdoni/zkvote-node/db/pebbledb"
)

// New opens the database of type typ at dir.
func New(typ, dir string) (db.Database, error) {
	opts := db.Options{Path: dir}
	switch typ {
	case db.TypePebble:
		return pebbledb.New(opts)
	case db.TypeLevelDB:
		return goleveldb.New(opts)
	case db.TypeMongo:
		return mongodb.New(opts)
	case db.TypeInMemory:
		return inmemory.New(opts)
	default:
		return nil, fmt.Errorf("invalid dbType: %q. Available types: %q %q %q %q",
			typ, db.TypePebble, db.TypeLevelDB, db.TypeMongo, db.TypeInMemory)
	}
}

// ForTest returns the backend used by tests, $ZKVOTE_DB_TYPE or pebble.
func ForTest() (typ string) {
	return cmp.Or(os.Getenv("ZKVOTE_DB_TYPE"), db.TypePebble)
}

// NewTest opens a database for tb in a temporary directory, closed on
// cleanup.
func NewTest(tb testing.TB) db.Database {
	database, err := New(ForTest(), tb.TempDir())
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() { _ = database.Close() })
	return database
}
