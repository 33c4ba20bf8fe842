package model

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// OutPoint identifies one transparent output of a transaction.
type OutPoint struct {
	Hash  chainhash.Hash
	Index uint32
}

func NewOutPoint(hash chainhash.Hash, index uint32) OutPoint {
	return OutPoint{Hash: hash, Index: index}
}

// NullOutPoint is the prevout used by coinbase inputs.
func NullOutPoint() OutPoint {
	return OutPoint{Index: math.MaxUint32}
}

func (o OutPoint) IsNull() bool {
	return o.Hash == chainhash.Hash{} && o.Index == math.MaxUint32
}

func (o OutPoint) String() string {
	return fmt.Sprintf("%s:%d", o.Hash, o.Index)
}

type TxIn struct {
	PrevOut   OutPoint
	ScriptSig []byte
	Sequence  uint32
}

// TxOut is a transparent output. A spent output held in a Coins record is tombstoned with SetNull.
type TxOut struct {
	Value  Amount
	Script []byte
}

func (o *TxOut) SetNull() {
	o.Value = -1
	o.Script = nil
}

func (o *TxOut) IsNull() bool {
	return o.Value == -1
}

func (o *TxOut) Clone() *TxOut {
	c := &TxOut{Value: o.Value}
	if o.Script != nil {
		c.Script = append([]byte(nil), o.Script...)
	}

	return c
}

// JSDescription is a Sprout joinsplit: two nullifiers in, two note commitments out.
type JSDescription struct {
	Anchor      chainhash.Hash
	Nullifiers  [2]chainhash.Hash
	Commitments [2]chainhash.Hash
	VPubOld     Amount
	VPubNew     Amount
}

type SpendDescription struct {
	Anchor    chainhash.Hash
	Nullifier chainhash.Hash
}

type OutputDescription struct {
	Cmu chainhash.Hash
}

type OrchardAction struct {
	Nullifier chainhash.Hash
	Cmx       chainhash.Hash
}

// OrchardBundle carries all Orchard actions of a transaction; they share one anchor.
type OrchardBundle struct {
	Actions      []OrchardAction
	Anchor       chainhash.Hash
	ValueBalance Amount
}

type Tx struct {
	Version             int32
	ConsensusBranchID   uint32
	LockTime            uint32
	ExpiryHeight        uint32
	Inputs              []*TxIn
	Outputs             []*TxOut
	JoinSplits          []*JSDescription
	SaplingSpends       []*SpendDescription
	SaplingOutputs      []*OutputDescription
	SaplingValueBalance Amount
	Orchard             *OrchardBundle

	txid atomic.Pointer[chainhash.Hash]
}

// TxID returns the double SHA-256 of the canonical encoding. The result is memoised, so a Tx must
// not be mutated after it has been hashed.
func (tx *Tx) TxID() chainhash.Hash {
	if h := tx.txid.Load(); h != nil {
		return *h
	}

	h := chainhash.DoubleHashH(tx.Bytes())
	tx.txid.Store(&h)

	return h
}

func (tx *Tx) TxIDChainHash() *chainhash.Hash {
	h := tx.TxID()
	return &h
}

func (tx *Tx) IsCoinbase() bool {
	return len(tx.Inputs) == 1 && tx.Inputs[0].PrevOut.IsNull()
}

func (tx *Tx) Size() int {
	return len(tx.Bytes())
}

// IsExpired reports whether the transaction can no longer be mined at height.
func (tx *Tx) IsExpired(height uint32) bool {
	if tx.ExpiryHeight == 0 || tx.IsCoinbase() {
		return false
	}

	return height > tx.ExpiryHeight
}

// GetValueOut sums the transparent outputs and every value leaving the transparent pool into a
// shielded pool.
func (tx *Tx) GetValueOut() Amount {
	var total Amount

	for _, out := range tx.Outputs {
		total += out.Value
	}

	for _, js := range tx.JoinSplits {
		total += js.VPubOld
	}

	if tx.SaplingValueBalance < 0 {
		total -= tx.SaplingValueBalance
	}

	if tx.Orchard != nil && tx.Orchard.ValueBalance < 0 {
		total -= tx.Orchard.ValueBalance
	}

	return total
}

// GetShieldedValueIn sums the value entering the transparent pool from the shielded pools.
func (tx *Tx) GetShieldedValueIn() Amount {
	var total Amount

	for _, js := range tx.JoinSplits {
		total += js.VPubNew
	}

	if tx.SaplingValueBalance > 0 {
		total += tx.SaplingValueBalance
	}

	if tx.Orchard != nil && tx.Orchard.ValueBalance > 0 {
		total += tx.Orchard.ValueBalance
	}

	return total
}

// Nullifiers lists the nullifiers the transaction reveals in pool.
func (tx *Tx) Nullifiers(pool ShieldedType) []chainhash.Hash {
	var nfs []chainhash.Hash

	switch pool {
	case Sprout:
		for _, js := range tx.JoinSplits {
			nfs = append(nfs, js.Nullifiers[0], js.Nullifiers[1])
		}
	case Sapling:
		for _, spend := range tx.SaplingSpends {
			nfs = append(nfs, spend.Nullifier)
		}
	case Orchard:
		if tx.Orchard != nil {
			for _, action := range tx.Orchard.Actions {
				nfs = append(nfs, action.Nullifier)
			}
		}
	}

	return nfs
}

// NoteCommitments lists the note commitments the transaction appends to the tree of pool.
func (tx *Tx) NoteCommitments(pool ShieldedType) []chainhash.Hash {
	var cms []chainhash.Hash

	switch pool {
	case Sprout:
		for _, js := range tx.JoinSplits {
			cms = append(cms, js.Commitments[0], js.Commitments[1])
		}
	case Sapling:
		for _, out := range tx.SaplingOutputs {
			cms = append(cms, out.Cmu)
		}
	case Orchard:
		if tx.Orchard != nil {
			for _, action := range tx.Orchard.Actions {
				cms = append(cms, action.Cmx)
			}
		}
	}

	return cms
}

// HasShieldedSpends reports whether the transaction reveals any nullifier.
func (tx *Tx) HasShieldedSpends() bool {
	return len(tx.JoinSplits) > 0 || len(tx.SaplingSpends) > 0 || (tx.Orchard != nil && len(tx.Orchard.Actions) > 0)
}

// CalculateModifiedSize discounts the scriptSig bytes of every input so that priority does not
// penalise spending many outputs.
func (tx *Tx) CalculateModifiedSize(size int) int {
	if size == 0 {
		size = tx.Size()
	}

	for _, in := range tx.Inputs {
		offset := 41 + min(110, len(in.ScriptSig))
		if size > offset {
			size -= offset
		}
	}

	return size
}

// ComputePriority returns the coin-age weighted value per modified byte.
func (tx *Tx) ComputePriority(priorityInputs float64, size int) float64 {
	if priorityInputs == 0 {
		return 0
	}

	modSize := tx.CalculateModifiedSize(size)
	if modSize == 0 {
		return 0
	}

	return priorityInputs / float64(modSize)
}

func (tx *Tx) String() string {
	return fmt.Sprintf("Tx(%s, ins=%d, outs=%d, joinsplits=%d, sapling=%d/%d, orchard=%v)",
		tx.TxID(), len(tx.Inputs), len(tx.Outputs), len(tx.JoinSplits),
		len(tx.SaplingSpends), len(tx.SaplingOutputs), tx.Orchard != nil)
}

// Bytes returns the canonical encoding of the transaction.
func (tx *Tx) Bytes() []byte {
	w := &writer{b: make([]byte, 0, 256)}

	w.uint32(uint32(tx.Version))
	w.uint32(tx.ConsensusBranchID)
	w.uint32(tx.LockTime)
	w.uint32(tx.ExpiryHeight)

	w.varInt(uint64(len(tx.Inputs)))

	for _, in := range tx.Inputs {
		w.hash(in.PrevOut.Hash)
		w.uint32(in.PrevOut.Index)
		w.bytes(in.ScriptSig)
		w.uint32(in.Sequence)
	}

	w.varInt(uint64(len(tx.Outputs)))

	for _, out := range tx.Outputs {
		w.amount(out.Value)
		w.bytes(out.Script)
	}

	w.varInt(uint64(len(tx.JoinSplits)))

	for _, js := range tx.JoinSplits {
		w.hash(js.Anchor)
		w.hash(js.Nullifiers[0])
		w.hash(js.Nullifiers[1])
		w.hash(js.Commitments[0])
		w.hash(js.Commitments[1])
		w.amount(js.VPubOld)
		w.amount(js.VPubNew)
	}

	w.varInt(uint64(len(tx.SaplingSpends)))

	for _, spend := range tx.SaplingSpends {
		w.hash(spend.Anchor)
		w.hash(spend.Nullifier)
	}

	w.varInt(uint64(len(tx.SaplingOutputs)))

	for _, out := range tx.SaplingOutputs {
		w.hash(out.Cmu)
	}

	w.amount(tx.SaplingValueBalance)

	w.bool(tx.Orchard != nil)

	if tx.Orchard != nil {
		w.varInt(uint64(len(tx.Orchard.Actions)))

		for _, action := range tx.Orchard.Actions {
			w.hash(action.Nullifier)
			w.hash(action.Cmx)
		}

		w.hash(tx.Orchard.Anchor)
		w.amount(tx.Orchard.ValueBalance)
	}

	return w.b
}

func NewTxFromBytes(b []byte) (*Tx, error) {
	r := newReader(b)
	tx := &Tx{}

	tx.Version = int32(r.uint32())
	tx.ConsensusBranchID = r.uint32()
	tx.LockTime = r.uint32()
	tx.ExpiryHeight = r.uint32()

	nIn := r.count(41)
	for i := 0; i < nIn && r.err == nil; i++ {
		in := &TxIn{}
		in.PrevOut.Hash = r.hash()
		in.PrevOut.Index = r.uint32()
		in.ScriptSig = r.bytes()
		in.Sequence = r.uint32()
		tx.Inputs = append(tx.Inputs, in)
	}

	nOut := r.count(9)
	for i := 0; i < nOut && r.err == nil; i++ {
		tx.Outputs = append(tx.Outputs, &TxOut{Value: r.amount(), Script: r.bytes()})
	}

	nJS := r.count(5*chainhash.HashSize + 16)
	for i := 0; i < nJS && r.err == nil; i++ {
		js := &JSDescription{}
		js.Anchor = r.hash()
		js.Nullifiers[0] = r.hash()
		js.Nullifiers[1] = r.hash()
		js.Commitments[0] = r.hash()
		js.Commitments[1] = r.hash()
		js.VPubOld = r.amount()
		js.VPubNew = r.amount()
		tx.JoinSplits = append(tx.JoinSplits, js)
	}

	nSpends := r.count(2 * chainhash.HashSize)
	for i := 0; i < nSpends && r.err == nil; i++ {
		tx.SaplingSpends = append(tx.SaplingSpends, &SpendDescription{Anchor: r.hash(), Nullifier: r.hash()})
	}

	nOutputs := r.count(chainhash.HashSize)
	for i := 0; i < nOutputs && r.err == nil; i++ {
		tx.SaplingOutputs = append(tx.SaplingOutputs, &OutputDescription{Cmu: r.hash()})
	}

	tx.SaplingValueBalance = r.amount()

	if r.bool() {
		bundle := &OrchardBundle{}

		nActions := r.count(2 * chainhash.HashSize)
		for i := 0; i < nActions && r.err == nil; i++ {
			bundle.Actions = append(bundle.Actions, OrchardAction{Nullifier: r.hash(), Cmx: r.hash()})
		}

		bundle.Anchor = r.hash()
		bundle.ValueBalance = r.amount()
		tx.Orchard = bundle
	}

	if err := r.done(); err != nil {
		return nil, err
	}

	return tx, nil
}
