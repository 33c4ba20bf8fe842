package model

import (
	"crypto/sha256"
	"fmt"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/shieldnode/shieldnode/errors"
	"golang.org/x/crypto/blake2b"
)

// ShieldedType names one of the shielded value pools.
type ShieldedType uint8

const (
	Sprout ShieldedType = iota
	Sapling
	Orchard
)

var AllShieldedTypes = []ShieldedType{Sprout, Sapling, Orchard}

func (t ShieldedType) String() string {
	switch t {
	case Sprout:
		return "sprout"
	case Sapling:
		return "sapling"
	case Orchard:
		return "orchard"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

func (t ShieldedType) Valid() bool {
	return t <= Orchard
}

// TreeDepth is the depth of the note commitment tree of the pool.
func (t ShieldedType) TreeDepth() int {
	if t == Sprout {
		return 29
	}

	return 32
}

var (
	emptyRoots = map[ShieldedType][]chainhash.Hash{}
)

func init() {
	for _, pool := range AllShieldedTypes {
		depth := pool.TreeDepth()
		roots := make([]chainhash.Hash, depth+1)
		roots[0] = uncommitted(pool)

		for d := 1; d <= depth; d++ {
			roots[d] = combineNodes(pool, d-1, roots[d-1], roots[d-1])
		}

		emptyRoots[pool] = roots
	}
}

// uncommitted is the leaf value of an empty position in the tree.
func uncommitted(pool ShieldedType) chainhash.Hash {
	var h chainhash.Hash

	switch pool {
	case Sapling:
		h[0] = 1
	case Orchard:
		h[0] = 2
	}

	return h
}

// combineNodes hashes two siblings at the given level into their parent.
func combineNodes(pool ShieldedType, level int, left, right chainhash.Hash) chainhash.Hash {
	if pool == Sprout {
		return sha256.Sum256(append(left[:], right[:]...))
	}

	key := []byte("shieldnode.merkle." + pool.String())

	h, err := blake2b.New256(key)
	if err != nil {
		panic(err)
	}

	h.Write([]byte{byte(level)})
	h.Write(left[:])
	h.Write(right[:])

	var out chainhash.Hash

	copy(out[:], h.Sum(nil))

	return out
}

// EmptyRoot returns the root of the empty note commitment tree of pool.
func EmptyRoot(pool ShieldedType) chainhash.Hash {
	roots := emptyRoots[pool]
	return roots[len(roots)-1]
}

// NoteCommitmentTree is an append-only incremental Merkle tree holding only the frontier needed to
// compute its root and to append the next commitment.
type NoteCommitmentTree struct {
	pool    ShieldedType
	left    *chainhash.Hash
	right   *chainhash.Hash
	parents []*chainhash.Hash
}

func NewNoteCommitmentTree(pool ShieldedType) *NoteCommitmentTree {
	return &NoteCommitmentTree{pool: pool}
}

func (t *NoteCommitmentTree) Pool() ShieldedType {
	return t.pool
}

// Size returns the number of commitments appended so far.
func (t *NoteCommitmentTree) Size() uint64 {
	var size uint64

	if t.left != nil {
		size++
	}

	if t.right != nil {
		size++
	}

	for i, p := range t.parents {
		if p != nil {
			size += 1 << (i + 1)
		}
	}

	return size
}

func (t *NoteCommitmentTree) isComplete() bool {
	if t.left == nil || t.right == nil || len(t.parents) != t.pool.TreeDepth()-1 {
		return false
	}

	for _, p := range t.parents {
		if p == nil {
			return false
		}
	}

	return true
}

// Append adds a note commitment at the next free position.
func (t *NoteCommitmentTree) Append(cm chainhash.Hash) error {
	if t.isComplete() {
		return errors.NewProcessingError("%s note commitment tree is full", t.pool)
	}

	if t.left == nil {
		t.left = &cm
		return nil
	}

	if t.right == nil {
		t.right = &cm
		return nil
	}

	combined := combineNodes(t.pool, 0, *t.left, *t.right)
	t.left = &cm
	t.right = nil

	for i := range t.parents {
		if t.parents[i] == nil {
			t.parents[i] = &combined
			return nil
		}

		combined = combineNodes(t.pool, i+1, *t.parents[i], combined)
		t.parents[i] = nil
	}

	t.parents = append(t.parents, &combined)

	return nil
}

// Root returns the root of the tree padded with empty subtrees up to the pool depth.
func (t *NoteCommitmentTree) Root() chainhash.Hash {
	empty := emptyRoots[t.pool]
	depth := t.pool.TreeDepth()

	left := empty[0]
	if t.left != nil {
		left = *t.left
	}

	right := empty[0]
	if t.right != nil {
		right = *t.right
	}

	root := combineNodes(t.pool, 0, left, right)

	d := 1

	for i, p := range t.parents {
		if p != nil {
			root = combineNodes(t.pool, i+1, *p, root)
		} else {
			root = combineNodes(t.pool, i+1, root, empty[i+1])
		}

		d++
	}

	for ; d < depth; d++ {
		root = combineNodes(t.pool, d, root, empty[d])
	}

	return root
}

// DynamicMemoryUsage approximates the heap bytes held by the frontier.
func (t *NoteCommitmentTree) DynamicMemoryUsage() int {
	return (2 + cap(t.parents)) * (chainhash.HashSize + 8)
}

func (t *NoteCommitmentTree) Clone() *NoteCommitmentTree {
	c := &NoteCommitmentTree{pool: t.pool}

	if t.left != nil {
		l := *t.left
		c.left = &l
	}

	if t.right != nil {
		r := *t.right
		c.right = &r
	}

	if t.parents != nil {
		c.parents = make([]*chainhash.Hash, len(t.parents))

		for i, p := range t.parents {
			if p != nil {
				h := *p
				c.parents[i] = &h
			}
		}
	}

	return c
}

func (t *NoteCommitmentTree) Equal(other *NoteCommitmentTree) bool {
	if t == nil || other == nil {
		return t == other
	}

	return t.pool == other.pool && t.Size() == other.Size() && t.Root() == other.Root()
}

func (t *NoteCommitmentTree) Bytes() []byte {
	w := &writer{}

	w.b = append(w.b, byte(t.pool))
	writeOptionalHash(w, t.left)
	writeOptionalHash(w, t.right)

	w.varInt(uint64(len(t.parents)))

	for _, p := range t.parents {
		writeOptionalHash(w, p)
	}

	return w.b
}

func NewNoteCommitmentTreeFromBytes(b []byte) (*NoteCommitmentTree, error) {
	r := newReader(b)

	if !r.need(1) {
		return nil, r.err
	}

	pool := ShieldedType(r.b[0])
	r.pos++

	if !pool.Valid() {
		return nil, errors.NewSerializationError("invalid shielded pool %d", pool)
	}

	t := &NoteCommitmentTree{pool: pool}
	t.left = readOptionalHash(r)
	t.right = readOptionalHash(r)

	n := r.count(1)
	if n > pool.TreeDepth() {
		return nil, errors.NewSerializationError("%s tree has %d parents", pool, n)
	}

	for i := 0; i < n && r.err == nil; i++ {
		t.parents = append(t.parents, readOptionalHash(r))
	}

	if err := r.done(); err != nil {
		return nil, err
	}

	return t, nil
}

func writeOptionalHash(w *writer, h *chainhash.Hash) {
	w.bool(h != nil)

	if h != nil {
		w.hash(*h)
	}
}

func readOptionalHash(r *reader) *chainhash.Hash {
	if !r.bool() {
		return nil
	}

	h := r.hash()

	return &h
}
