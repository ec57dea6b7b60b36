package verifier

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/zkvote-node/types"
)

// countingVerifier accepts proofs equal to "ok" and counts its calls.
type countingVerifier struct {
	calls atomic.Int64
	err   error
}

func (v *countingVerifier) Verify(_ context.Context, proof []byte, _ types.CensusRoot, _ types.Nullifier) (bool, error) {
	v.calls.Add(1)
	if v.err != nil {
		return false, v.err
	}
	return string(proof) == "ok", nil
}

var (
	testRoot      = common.HexToHash("0x01")
	testNullifier = common.HexToHash("0x02")
)

func TestFunc(t *testing.T) {
	c := qt.New(t)
	var v Verifier = Func(func(_ context.Context, proof []byte, _ types.CensusRoot, _ types.Nullifier) (bool, error) {
		return len(proof) > 0, nil
	})
	ok, err := v.Verify(context.Background(), []byte{1}, testRoot, testNullifier)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
}

func TestCached(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	next := &countingVerifier{}
	v, err := NewCached(next, 0)
	c.Assert(err, qt.IsNil)

	for range 3 {
		ok, err := v.Verify(ctx, []byte("ok"), testRoot, testNullifier)
		c.Assert(err, qt.IsNil)
		c.Assert(ok, qt.IsTrue)
	}
	c.Assert(next.calls.Load(), qt.Equals, int64(1))

	// negative verdicts are cached too, keyed by the public inputs
	for range 2 {
		ok, err := v.Verify(ctx, []byte("bad"), testRoot, testNullifier)
		c.Assert(err, qt.IsNil)
		c.Assert(ok, qt.IsFalse)
	}
	c.Assert(next.calls.Load(), qt.Equals, int64(2))

	ok, err := v.Verify(ctx, []byte("ok"), testRoot, common.HexToHash("0x03"))
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
	c.Assert(next.calls.Load(), qt.Equals, int64(3))
	c.Assert(v.Len(), qt.Equals, 3)

	// errors are not cached
	failing := &countingVerifier{err: errors.New("boom")}
	v, err = NewCached(failing, 8)
	c.Assert(err, qt.IsNil)
	for range 2 {
		_, err := v.Verify(ctx, []byte("ok"), testRoot, testNullifier)
		c.Assert(err, qt.ErrorMatches, "boom")
	}
	c.Assert(failing.calls.Load(), qt.Equals, int64(2))
	c.Assert(v.Len(), qt.Equals, 0)
}

// blockingVerifier tracks how many verifications run at once.
type blockingVerifier struct {
	running atomic.Int64
	peak    atomic.Int64
	release chan struct{}
}

func (v *blockingVerifier) Verify(ctx context.Context, _ []byte, _ types.CensusRoot, _ types.Nullifier) (bool, error) {
	n := v.running.Add(1)
	defer v.running.Add(-1)
	for {
		peak := v.peak.Load()
		if n <= peak || v.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	select {
	case <-v.release:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func TestPool(t *testing.T) {
	c := qt.New(t)
	next := &blockingVerifier{release: make(chan struct{})}
	pool := NewPool(next, 2)

	var wg sync.WaitGroup
	for range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := pool.Verify(context.Background(), nil, testRoot, testNullifier)
			c.Check(err, qt.IsNil)
			c.Check(ok, qt.IsTrue)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(next.release)
	wg.Wait()
	c.Assert(next.peak.Load(), qt.Equals, int64(2))

	// waiting for a slot honours the context
	busy := &blockingVerifier{release: make(chan struct{})}
	pool = NewPool(busy, 1)
	go func() { _, _ = pool.Verify(context.Background(), nil, testRoot, testNullifier) }()
	time.Sleep(20 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := pool.Verify(ctx, nil, testRoot, testNullifier)
	c.Assert(err, qt.ErrorIs, context.DeadlineExceeded)
	close(busy.release)
}

func TestRootSet(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	next := &countingVerifier{}
	rs := NewRootSet(next, testRoot)

	ok, err := rs.Verify(ctx, []byte("ok"), testRoot, testNullifier)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)

	other := common.HexToHash("0x99")
	ok, err = rs.Verify(ctx, []byte("ok"), other, testNullifier)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)
	c.Assert(next.calls.Load(), qt.Equals, int64(1))

	c.Assert(rs.Contains(testRoot), qt.IsTrue)
	c.Assert(rs.Contains(other), qt.IsFalse)

	rs = NewRootSet(next, other, testRoot, testRoot)
	c.Assert(rs.Roots(), qt.DeepEquals, []types.CensusRoot{testRoot, other})
	ok, err = rs.Verify(ctx, []byte("ok"), other, testNullifier)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
}
