package storage

import (
	"fmt"

	"github.com/vocdoni/zkvote-node/types"
)

// NullifierLedger is the append-only set of spent nullifiers.
type NullifierLedger struct {
	s *Storage
}

// IsSpent reports whether the nullifier was already used by an accepted
// vote.
func (l *NullifierLedger) IsSpent(nullifier types.Nullifier) (bool, error) {
	var spent bool
	err := l.s.View(func(tx *Tx) error {
		var err error
		spent, err = tx.IsNullifierSpent(nullifier)
		return err
	})
	return spent, err
}

// Spend records the nullifier as used.
func (l *NullifierLedger) Spend(nullifier types.Nullifier) error {
	return l.s.Update(func(tx *Tx) error {
		return tx.SpendNullifier(nullifier)
	})
}

// Count returns the number of spent nullifiers.
func (l *NullifierLedger) Count() (int, error) {
	n := 0
	err := l.s.db.Iterate(nullifierPrefix, func(_, _ []byte) bool {
		n++
		return true
	})
	return n, err
}

// IsNullifierSpent reports whether the nullifier is in the ledger.
func (tx *Tx) IsNullifierSpent(nullifier types.Nullifier) (bool, error) {
	return tx.has(nullifierPrefix, nullifier.Bytes())
}

// SpendNullifier adds the nullifier to the ledger, failing with
// ErrNullifierAlreadySpent if it is already there.
func (tx *Tx) SpendNullifier(nullifier types.Nullifier) error {
	spent, err := tx.IsNullifierSpent(nullifier)
	if err != nil {
		return err
	}
	if spent {
		return fmt.Errorf("%w: %s", ErrNullifierAlreadySpent, nullifier.Hex())
	}
	return tx.prefixed(nullifierPrefix).Set(nullifier.Bytes(), []byte{1})
}
