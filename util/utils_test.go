package util

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestRandom(t *testing.T) {
	c := qt.New(t)

	c.Assert(RandomBytes(16), qt.HasLen, 16)
	c.Assert(RandomHex(8), qt.HasLen, 16)

	for range 100 {
		n := RandomInt(3, 7)
		c.Assert(n >= 3 && n < 7, qt.IsTrue, qt.Commentf("got %d", n))

		b := RandomBigInt(big.NewInt(10), big.NewInt(20))
		c.Assert(b.Cmp(big.NewInt(10)) >= 0 && b.Cmp(big.NewInt(20)) < 0, qt.IsTrue)
	}
}

func TestTrimHex(t *testing.T) {
	c := qt.New(t)
	c.Assert(TrimHex("0xabc"), qt.Equals, "abc")
	c.Assert(TrimHex("0Xabc"), qt.Equals, "abc")
	c.Assert(TrimHex("abc"), qt.Equals, "abc")
	c.Assert(TrimHex("0"), qt.Equals, "0")
}
