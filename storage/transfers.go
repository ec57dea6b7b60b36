package storage

import (
	"github.com/vocdoni/zkvote-node/types"
)

// RecordTransfer appends a transfer to the audit trail. Records are keyed by
// timestamp first, so they list in chronological order.
func (tx *Tx) RecordTransfer(t *types.Transfer) error {
	key := append(encodeUint64(uint64(t.Timestamp)), []byte(t.ID)...)
	return tx.setArtifact(transferPrefix, key, t)
}

// Transfers returns the audit trail of vote transfers, oldest first.
func (s *Storage) Transfers() ([]*types.Transfer, error) {
	var (
		list      []*types.Transfer
		decodeErr error
	)
	if err := s.db.Iterate(transferPrefix, func(_, v []byte) bool {
		t := &types.Transfer{}
		if decodeErr = DecodeArtifact(v, t); decodeErr != nil {
			return false
		}
		list = append(list, t)
		return true
	}); err != nil {
		return nil, err
	}
	return list, decodeErr
}
