/*
Package storage persists the voting ledger on a key-value database.

# Storage Organization

The storage uses a key-value database with prefixed namespaces:

  - c/  : candidateID (8 bytes, big endian) → Candidate
  - m/  : metadata, such as the last assigned candidate ID
  - v/  : voter address → Voter
  - n/  : nullifier → empty value, one entry per spent nullifier
  - tr/ : timestamp (8 bytes) + transfer ID → Transfer audit record

Candidates, voters and nullifiers are exposed through three registries
(CandidateRegistry, VoterRegistry and NullifierLedger). Every mutation goes
through Update, which runs under the storage lock and commits all the writes
of the callback in a single database transaction, or none of them.
*/
package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/vocdoni/zkvote-node/db"
	"github.com/vocdoni/zkvote-node/db/prefixeddb"
	"github.com/vocdoni/zkvote-node/log"
)

var (
	candidatePrefix = []byte("c/")
	metadataPrefix  = []byte("m/")
	voterPrefix     = []byte("v/")
	nullifierPrefix = []byte("n/")
	transferPrefix  = []byte("tr/")

	lastCandidateIDKey = []byte("lastCandidateID")
)

// ErrCommit is returned by Update when the database refused to commit the
// transaction. Nothing was written.
var ErrCommit = errors.New("storage commit failed")

// Storage manages the ledger records.
type Storage struct {
	db         db.Database
	globalLock sync.Mutex
}

// New creates a new Storage instance on top of database.
func New(database db.Database) *Storage {
	return &Storage{db: database}
}

// Close closes the underlying database.
func (s *Storage) Close() {
	if err := s.db.Close(); err != nil {
		log.Warnw("failed to close storage", "error", err)
	}
}

// Candidates returns the candidate registry.
func (s *Storage) Candidates() *CandidateRegistry {
	return &CandidateRegistry{s: s}
}

// Voters returns the voter registry.
func (s *Storage) Voters() *VoterRegistry {
	return &VoterRegistry{s: s}
}

// Nullifiers returns the nullifier ledger.
func (s *Storage) Nullifiers() *NullifierLedger {
	return &NullifierLedger{s: s}
}

// Update runs fn under the storage lock with a fresh transaction. If fn
// returns an error the transaction is discarded and the error is returned
// unchanged. Otherwise the transaction is committed; a commit failure is
// returned wrapping ErrCommit.
func (s *Storage) Update(fn func(tx *Tx) error) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	wtx := s.db.WriteTx()
	defer wtx.Discard()
	if err := fn(&Tx{wtx: wtx}); err != nil {
		return err
	}
	if err := wtx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrCommit, err)
	}
	return nil
}

// View runs fn against the committed state, without taking the storage lock.
// Writes made by fn are discarded.
func (s *Storage) View(fn func(tx *Tx) error) error {
	wtx := s.db.WriteTx()
	defer wtx.Discard()
	return fn(&Tx{wtx: wtx})
}

// Tx groups the reads and writes of one atomic ledger update.
type Tx struct {
	wtx db.WriteTx
}

func (tx *Tx) prefixed(prefix []byte) db.WriteTx {
	return prefixeddb.NewPrefixedWriteTx(tx.wtx, prefix)
}

// getArtifact reads and decodes the record stored under prefix+key.
func (tx *Tx) getArtifact(prefix, key []byte, out any) error {
	data, err := tx.prefixed(prefix).Get(key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return ErrNotFound
		}
		return err
	}
	return DecodeArtifact(data, out)
}

// setArtifact encodes and stores a record under prefix+key.
func (tx *Tx) setArtifact(prefix, key []byte, artifact any) error {
	data, err := EncodeArtifact(artifact)
	if err != nil {
		return err
	}
	return tx.prefixed(prefix).Set(key, data)
}

// has reports whether prefix+key exists.
func (tx *Tx) has(prefix, key []byte) (bool, error) {
	_, err := tx.prefixed(prefix).Get(key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, db.ErrKeyNotFound) {
		return false, nil
	}
	return false, err
}
