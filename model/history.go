package model

import (
	"encoding/binary"
	"fmt"
	"hash"
	"math/big"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"golang.org/x/crypto/blake2b"
)

// Epoch identifies a network upgrade by its consensus branch id. Each epoch has its own history tree.
type Epoch uint32

// HistoryIndex is the position of a node in the flattened MMR of an epoch.
type HistoryIndex uint64

// HistoryNode is one node of the chain history Merkle mountain range. A leaf summarises one block,
// an inner node summarises the range of blocks below it.
type HistoryNode struct {
	SubtreeCommitment chainhash.Hash
	StartTime         uint32
	EndTime           uint32
	StartTarget       uint32
	EndTarget         uint32
	StartSaplingRoot  chainhash.Hash
	EndSaplingRoot    chainhash.Hash
	StartOrchardRoot  chainhash.Hash
	EndOrchardRoot    chainhash.Hash
	SubtreeTotalWork  *big.Int
	StartHeight       uint64
	EndHeight         uint64
	SaplingTxCount    uint64
	OrchardTxCount    uint64
}

// NewHistoryLeaf builds the leaf node committing to one block.
func NewHistoryLeaf(block *Block, saplingRoot, orchardRoot chainhash.Hash, saplingTxs, orchardTxs uint64) HistoryNode {
	return HistoryNode{
		SubtreeCommitment: *block.Hash(),
		StartTime:         block.Header.Timestamp,
		EndTime:           block.Header.Timestamp,
		StartTarget:       block.Header.Bits,
		EndTarget:         block.Header.Bits,
		StartSaplingRoot:  saplingRoot,
		EndSaplingRoot:    saplingRoot,
		StartOrchardRoot:  orchardRoot,
		EndOrchardRoot:    orchardRoot,
		SubtreeTotalWork:  block.Header.Work(),
		StartHeight:       uint64(block.Height),
		EndHeight:         uint64(block.Height),
		SaplingTxCount:    saplingTxs,
		OrchardTxCount:    orchardTxs,
	}
}

func (n HistoryNode) work() *big.Int {
	if n.SubtreeTotalWork == nil {
		return new(big.Int)
	}

	return n.SubtreeTotalWork
}

// CombineHistoryNodes returns the parent of two adjacent subtrees.
func CombineHistoryNodes(epoch Epoch, left, right HistoryNode) HistoryNode {
	h := newHistoryHasher(epoch)
	h.Write(left.Bytes())
	h.Write(right.Bytes())

	var commitment chainhash.Hash

	copy(commitment[:], h.Sum(nil))

	return HistoryNode{
		SubtreeCommitment: commitment,
		StartTime:         left.StartTime,
		EndTime:           right.EndTime,
		StartTarget:       left.StartTarget,
		EndTarget:         right.EndTarget,
		StartSaplingRoot:  left.StartSaplingRoot,
		EndSaplingRoot:    right.EndSaplingRoot,
		StartOrchardRoot:  left.StartOrchardRoot,
		EndOrchardRoot:    right.EndOrchardRoot,
		SubtreeTotalWork:  new(big.Int).Add(left.work(), right.work()),
		StartHeight:       left.StartHeight,
		EndHeight:         right.EndHeight,
		SaplingTxCount:    left.SaplingTxCount + right.SaplingTxCount,
		OrchardTxCount:    left.OrchardTxCount + right.OrchardTxCount,
	}
}

// HashHistoryNode returns the epoch-personalised hash of a node, used for the root.
func HashHistoryNode(epoch Epoch, n HistoryNode) chainhash.Hash {
	h := newHistoryHasher(epoch)
	h.Write(n.Bytes())

	var out chainhash.Hash

	copy(out[:], h.Sum(nil))

	return out
}

func newHistoryHasher(epoch Epoch) hash.Hash {
	key := make([]byte, 0, 16)
	key = append(key, "ShieldHistory"...)
	key = binary.LittleEndian.AppendUint32(key, uint32(epoch))

	h, err := blake2b.New256(key)
	if err != nil {
		panic(err)
	}

	return h
}

func (n HistoryNode) Equal(other HistoryNode) bool {
	return n.SubtreeCommitment == other.SubtreeCommitment &&
		n.StartTime == other.StartTime && n.EndTime == other.EndTime &&
		n.StartTarget == other.StartTarget && n.EndTarget == other.EndTarget &&
		n.StartSaplingRoot == other.StartSaplingRoot && n.EndSaplingRoot == other.EndSaplingRoot &&
		n.StartOrchardRoot == other.StartOrchardRoot && n.EndOrchardRoot == other.EndOrchardRoot &&
		n.work().Cmp(other.work()) == 0 &&
		n.StartHeight == other.StartHeight && n.EndHeight == other.EndHeight &&
		n.SaplingTxCount == other.SaplingTxCount && n.OrchardTxCount == other.OrchardTxCount
}

func (n HistoryNode) String() string {
	return fmt.Sprintf("HistoryNode(%s, heights %d-%d)", n.SubtreeCommitment, n.StartHeight, n.EndHeight)
}

func (n HistoryNode) Bytes() []byte {
	w := &writer{b: make([]byte, 0, 256)}

	w.hash(n.SubtreeCommitment)
	w.uint32(n.StartTime)
	w.uint32(n.EndTime)
	w.uint32(n.StartTarget)
	w.uint32(n.EndTarget)
	w.hash(n.StartSaplingRoot)
	w.hash(n.EndSaplingRoot)
	w.hash(n.StartOrchardRoot)
	w.hash(n.EndOrchardRoot)
	w.bytes(n.work().Bytes())
	w.varInt(n.StartHeight)
	w.varInt(n.EndHeight)
	w.varInt(n.SaplingTxCount)
	w.varInt(n.OrchardTxCount)

	return w.b
}

func NewHistoryNodeFromBytes(b []byte) (HistoryNode, error) {
	r := newReader(b)

	n := HistoryNode{
		SubtreeCommitment: r.hash(),
		StartTime:         r.uint32(),
		EndTime:           r.uint32(),
		StartTarget:       r.uint32(),
		EndTarget:         r.uint32(),
		StartSaplingRoot:  r.hash(),
		EndSaplingRoot:    r.hash(),
		StartOrchardRoot:  r.hash(),
		EndOrchardRoot:    r.hash(),
		SubtreeTotalWork:  new(big.Int).SetBytes(r.bytes()),
		StartHeight:       r.varInt(),
		EndHeight:         r.varInt(),
		SaplingTxCount:    r.varInt(),
		OrchardTxCount:    r.varInt(),
	}

	if err := r.done(); err != nil {
		return HistoryNode{}, err
	}

	return n, nil
}
