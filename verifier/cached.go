package verifier

import (
	"context"
	"crypto/sha256"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vocdoni/zkvote-node/types"
)

// DefaultCacheSize is the number of verdicts kept by a Cached verifier when
// no size is given.
const DefaultCacheSize = 4096

// Cached remembers the verdicts of the wrapped verifier, keyed by the hash of
// the proof and its public inputs. Errors are never cached.
type Cached struct {
	next  Verifier
	cache *lru.Cache[[sha256.Size]byte, bool]
}

var _ Verifier = (*Cached)(nil)

// NewCached wraps next with a verdict cache of the given size.
func NewCached(next Verifier, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[[sha256.Size]byte, bool](size)
	if err != nil {
		return nil, err
	}
	return &Cached{next: next, cache: cache}, nil
}

// Verify implements Verifier.
func (c *Cached) Verify(ctx context.Context, proof []byte, root types.CensusRoot, nullifier types.Nullifier) (bool, error) {
	key := cacheKey(proof, root, nullifier)
	if ok, found := c.cache.Get(key); found {
		return ok, nil
	}
	ok, err := c.next.Verify(ctx, proof, root, nullifier)
	if err != nil {
		return false, err
	}
	c.cache.Add(key, ok)
	return ok, nil
}

// Len returns the number of cached verdicts.
func (c *Cached) Len() int {
	return c.cache.Len()
}

func cacheKey(proof []byte, root types.CensusRoot, nullifier types.Nullifier) [sha256.Size]byte {
	h := sha256.New()
	h.Write(root[:])
	h.Write(nullifier[:])
	h.Write(proof)
	var key [sha256.Size]byte
	copy(key[:], h.Sum(nil))
	return key
}
