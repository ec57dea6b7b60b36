package storage

import (
	"errors"

	"github.com/vocdoni/zkvote-node/db"
)

func isNotFound(err error) bool {
	return errors.Is(err, db.ErrKeyNotFound)
}
