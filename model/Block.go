package model

import (
	"fmt"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/shieldnode/shieldnode/errors"
)

// Block is a header, its height and the transactions it confirms, coinbase first.
type Block struct {
	Header            *BlockHeader
	Height            uint32
	ConsensusBranchID uint32
	Txs               []*Tx

	// local
	hash *chainhash.Hash
}

func NewBlock(header *BlockHeader, height uint32, branchID uint32, txs []*Tx) *Block {
	return &Block{
		Header:            header,
		Height:            height,
		ConsensusBranchID: branchID,
		Txs:               txs,
	}
}

func (b *Block) Hash() *chainhash.Hash {
	if b.hash != nil {
		return b.hash
	}

	b.hash = b.Header.Hash()

	return b.hash
}

func (b *Block) String() string {
	return fmt.Sprintf("%s (height %d, %d txs)", b.Hash(), b.Height, len(b.Txs))
}

// Epoch is the history tree the block belongs to.
func (b *Block) Epoch() Epoch {
	return Epoch(b.ConsensusBranchID)
}

// CalculateMerkleRoot hashes the txids pairwise up to a single root, duplicating the last node of
// odd-length levels.
func (b *Block) CalculateMerkleRoot() chainhash.Hash {
	if len(b.Txs) == 0 {
		return chainhash.Hash{}
	}

	level := make([]chainhash.Hash, len(b.Txs))
	for i, tx := range b.Txs {
		level[i] = tx.TxID()
	}

	buf := make([]byte, 2*chainhash.HashSize)

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}

		next := make([]chainhash.Hash, 0, len(level)/2)

		for i := 0; i < len(level); i += 2 {
			copy(buf, level[i][:])
			copy(buf[chainhash.HashSize:], level[i+1][:])
			next = append(next, chainhash.DoubleHashH(buf))
		}

		level = next
	}

	return level[0]
}

func (b *Block) CheckMerkleRoot() error {
	if b.Header.HashMerkleRoot == nil {
		return errors.NewBlockInvalidError("block %s has no merkle root", b.Hash())
	}

	root := b.CalculateMerkleRoot()
	if !root.IsEqual(b.Header.HashMerkleRoot) {
		return errors.NewBlockInvalidError("merkle root mismatch for block %s: calculated %s", b.Hash(), root)
	}

	return nil
}

// CheckDuplicateTransactions rejects blocks that contain the same transaction twice.
func (b *Block) CheckDuplicateTransactions() error {
	seen := make(map[chainhash.Hash]struct{}, len(b.Txs))

	for _, tx := range b.Txs {
		txid := tx.TxID()
		if _, ok := seen[txid]; ok {
			return errors.NewBlockInvalidError("block %s contains duplicate transaction %s", b.Hash(), txid)
		}

		seen[txid] = struct{}{}
	}

	return nil
}
