// Package census builds the fixed-depth MiMC Merkle tree that commits to the
// set of eligible voters, and derives the nullifiers voters present when
// casting a vote.
//
// Every value is a BN254 scalar field element serialized as 32 big-endian
// bytes. A voter holds a random secret; its leaf is MiMC(secret) and its
// nullifier for a given election scope is MiMC(secret, scope).
package census

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/zkvote-node/types"
	"github.com/vocdoni/zkvote-node/util"
)

// Depth is the number of levels of the census tree, so a census holds at
// most 2^Depth members.
const Depth = 16

// MaxSize is the maximum number of members of a census.
const MaxSize = 1 << Depth

var (
	ErrCensusFull      = errors.New("census is full")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrNotInField      = errors.New("value is not a canonical field element")
)

// zeroHashes[i] is the root of an empty subtree of height i.
var zeroHashes = func() [Depth + 1]fr.Element {
	var z [Depth + 1]fr.Element
	for i := 1; i <= Depth; i++ {
		z[i] = hash(&z[i-1], &z[i-1])
	}
	return z
}()

// hash returns the MiMC hash of the given elements.
func hash(elems ...*fr.Element) fr.Element {
	h := mimc.NewMiMC()
	for _, e := range elems {
		b := e.Bytes()
		// canonical elements never fail to be written
		if _, err := h.Write(b[:]); err != nil {
			panic(err)
		}
	}
	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}

func toElement(b *big.Int) fr.Element {
	var e fr.Element
	e.SetBigInt(b)
	return e
}

func elementToHash(e *fr.Element) common.Hash {
	return common.Hash(e.Bytes())
}

// HashToElement parses a 32-byte hash as a field element. It fails when the
// value is not lower than the field modulus.
func HashToElement(h common.Hash) (fr.Element, error) {
	var e fr.Element
	if err := e.SetBytesCanonical(h[:]); err != nil {
		return e, fmt.Errorf("%w: %s", ErrNotInField, h.Hex())
	}
	return e, nil
}

// NewSecret returns a random non-zero voter secret.
func NewSecret() *big.Int {
	return util.RandomBigInt(big.NewInt(1), fr.Modulus())
}

// Scope maps an election name to the field element that binds nullifiers to
// that election.
func Scope(name string) *big.Int {
	var e fr.Element
	e.SetBytes(crypto.Keccak256([]byte(name)))
	return e.BigInt(new(big.Int))
}

// Commitment returns the census leaf of the voter holding secret.
func Commitment(secret *big.Int) common.Hash {
	s := toElement(secret)
	leaf := hash(&s)
	return elementToHash(&leaf)
}

// Nullifier returns the one-time token of the voter holding secret for the
// election identified by scope.
func Nullifier(secret, scope *big.Int) types.Nullifier {
	s, sc := toElement(secret), toElement(scope)
	n := hash(&s, &sc)
	return elementToHash(&n)
}

// Proof is a Merkle inclusion proof of a census leaf.
type Proof struct {
	Index    uint64             `json:"index"`
	Leaf     common.Hash        `json:"leaf"`
	Siblings [Depth]common.Hash `json:"siblings"`
}

// PathBits returns the position of the proven node at every level, 1 when it
// is the right child.
func (p *Proof) PathBits() [Depth]uint {
	var bits [Depth]uint
	for i := range Depth {
		bits[i] = uint(p.Index>>i) & 1
	}
	return bits
}

// Root recomputes the census root the proof leads to.
func (p *Proof) Root() (types.CensusRoot, error) {
	node, err := HashToElement(p.Leaf)
	if err != nil {
		return common.Hash{}, err
	}
	bits := p.PathBits()
	for i := range Depth {
		sibling, err := HashToElement(p.Siblings[i])
		if err != nil {
			return common.Hash{}, err
		}
		if bits[i] == 1 {
			node = hash(&sibling, &node)
		} else {
			node = hash(&node, &sibling)
		}
	}
	return elementToHash(&node), nil
}

// Verify reports whether the proof shows leaf inclusion under root.
func (p *Proof) Verify(root types.CensusRoot) bool {
	got, err := p.Root()
	return err == nil && got == root
}

// Tree is an append-only census of voter commitments. It is safe for
// concurrent use.
type Tree struct {
	mu     sync.RWMutex
	leaves []fr.Element
}

// NewTree returns an empty census.
func NewTree() *Tree {
	return &Tree{}
}

// Add appends a commitment and returns its index.
func (t *Tree) Add(commitment common.Hash) (uint64, error) {
	leaf, err := HashToElement(commitment)
	if err != nil {
		return 0, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.leaves) >= MaxSize {
		return 0, ErrCensusFull
	}
	t.leaves = append(t.leaves, leaf)
	return uint64(len(t.leaves) - 1), nil
}

// Size returns the number of members.
func (t *Tree) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.leaves)
}

// levels returns every level of the tree, from the leaves up to the root,
// trimmed to the nodes that cover at least one leaf.
func (t *Tree) levels() [][]fr.Element {
	levels := make([][]fr.Element, 0, Depth+1)
	nodes := append([]fr.Element(nil), t.leaves...)
	levels = append(levels, nodes)
	for level := range Depth {
		next := make([]fr.Element, (len(nodes)+1)/2)
		for i := range next {
			right := zeroHashes[level]
			if 2*i+1 < len(nodes) {
				right = nodes[2*i+1]
			}
			next[i] = hash(&nodes[2*i], &right)
		}
		nodes = next
		levels = append(levels, nodes)
	}
	return levels
}

// Root returns the census root.
func (t *Tree) Root() types.CensusRoot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.leaves) == 0 {
		return elementToHash(&zeroHashes[Depth])
	}
	levels := t.levels()
	return elementToHash(&levels[Depth][0])
}

// Proof returns the inclusion proof of the leaf at index.
func (t *Tree) Proof(index uint64) (*Proof, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if index >= uint64(len(t.leaves)) {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	levels := t.levels()
	p := &Proof{Index: index, Leaf: elementToHash(&t.leaves[index])}
	pos := index
	for level := range Depth {
		sibling := zeroHashes[level]
		if s := pos ^ 1; s < uint64(len(levels[level])) {
			sibling = levels[level][s]
		}
		p.Siblings[level] = elementToHash(&sibling)
		pos >>= 1
	}
	return p, nil
}

// MarshalJSON encodes the census as its ordered list of commitments.
func (t *Tree) MarshalJSON() ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	leaves := make([]common.Hash, len(t.leaves))
	for i := range t.leaves {
		leaves[i] = elementToHash(&t.leaves[i])
	}
	return json.Marshal(leaves)
}

// UnmarshalJSON rebuilds a census from its ordered list of commitments.
func (t *Tree) UnmarshalJSON(data []byte) error {
	var leaves []common.Hash
	if err := json.Unmarshal(data, &leaves); err != nil {
		return err
	}
	fresh := NewTree()
	for _, l := range leaves {
		if _, err := fresh.Add(l); err != nil {
			return err
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.leaves = fresh.leaves
	return nil
}
