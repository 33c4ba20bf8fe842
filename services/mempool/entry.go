package mempool

import (
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/shieldnode/shieldnode/model"
)

// MempoolHeight is the height at which coins created by mempool transactions appear in the overlay
// view.
const MempoolHeight uint32 = 0x7FFFFFFF

// CoinbaseMaturity is the number of confirmations a coinbase output needs before it can be spent.
const CoinbaseMaturity = 100

// per-entry bookkeeping held next to the transaction itself
const entryOverhead = 256

// TxMempoolEntry is an immutable record of a transaction accepted into the pool, apart from the fee
// delta which follows the prioritisation table.
type TxMempoolEntry struct {
	tx                *model.Tx
	txid              chainhash.Hash
	fee               model.Amount
	size              int
	modSize           int
	usage             int
	time              time.Time
	priority          float64
	height            uint32
	inChainInputValue model.Amount
	hadNoDependencies bool
	spendsCoinbase    bool
	sigOpCount        uint32
	branchID          uint32
	feeDelta          model.Amount
}

// NewTxMempoolEntry builds the entry for tx. priority is the coin-age priority computed at height
// and inChainInputValue the part of the inputs already confirmed, which lets the priority grow as
// the chain advances.
func NewTxMempoolEntry(tx *model.Tx, fee model.Amount, t time.Time, priority float64, height uint32,
	hadNoDependencies bool, inChainInputValue model.Amount, spendsCoinbase bool, sigOpCount uint32, branchID uint32) *TxMempoolEntry {
	size := tx.Size()

	return &TxMempoolEntry{
		tx:                tx,
		txid:              tx.TxID(),
		fee:               fee,
		size:              size,
		modSize:           tx.CalculateModifiedSize(size),
		usage:             size + entryOverhead,
		time:              t,
		priority:          priority,
		height:            height,
		inChainInputValue: inChainInputValue,
		hadNoDependencies: hadNoDependencies,
		spendsCoinbase:    spendsCoinbase,
		sigOpCount:        sigOpCount,
		branchID:          branchID,
	}
}

func (e *TxMempoolEntry) Tx() *model.Tx           { return e.tx }
func (e *TxMempoolEntry) TxID() chainhash.Hash    { return e.txid }
func (e *TxMempoolEntry) Fee() model.Amount       { return e.fee }
func (e *TxMempoolEntry) Size() int               { return e.size }
func (e *TxMempoolEntry) Time() time.Time         { return e.time }
func (e *TxMempoolEntry) Height() uint32          { return e.height }
func (e *TxMempoolEntry) HadNoDependencies() bool { return e.hadNoDependencies }
func (e *TxMempoolEntry) SpendsCoinbase() bool    { return e.spendsCoinbase }
func (e *TxMempoolEntry) SigOpCount() uint32      { return e.sigOpCount }
func (e *TxMempoolEntry) BranchID() uint32        { return e.branchID }
func (e *TxMempoolEntry) FeeDelta() model.Amount  { return e.feeDelta }

func (e *TxMempoolEntry) DynamicMemoryUsage() int { return e.usage }

// ModifiedFee is the fee including any prioritisation delta.
func (e *TxMempoolEntry) ModifiedFee() model.Amount {
	return e.fee + e.feeDelta
}

func (e *TxMempoolEntry) FeeRate() model.FeeRate {
	return model.NewFeeRate(e.fee, e.size)
}

// Priority returns the priority the entry would have at currentHeight: the confirmed inputs keep
// aging while the transaction waits.
func (e *TxMempoolEntry) Priority(currentHeight uint32) float64 {
	if currentHeight <= e.height || e.modSize == 0 {
		return e.priority
	}

	delta := float64(currentHeight-e.height) * float64(e.inChainInputValue) / float64(e.modSize)

	return e.priority + delta
}

// StartingPriority is the priority at admission.
func (e *TxMempoolEntry) StartingPriority() float64 {
	return e.priority
}

// TxMempoolInfo is the summary handed to relay and RPC code.
type TxMempoolInfo struct {
	Tx      *model.Tx
	Time    time.Time
	FeeRate model.FeeRate
}

// TxSnapshot is an immutable copy of the fields block template assembly reads while walking the pool.
type TxSnapshot struct {
	Tx          *model.Tx
	TxID        chainhash.Hash
	Fee         model.Amount
	ModifiedFee model.Amount
	Size        int
	SigOpCount  uint32
	Priority    float64
	Time        time.Time
}

func (e *TxMempoolEntry) snapshot(currentHeight uint32) TxSnapshot {
	return TxSnapshot{
		Tx:          e.tx,
		TxID:        e.txid,
		Fee:         e.fee,
		ModifiedFee: e.ModifiedFee(),
		Size:        e.size,
		SigOpCount:  e.sigOpCount,
		Priority:    e.Priority(currentHeight),
		Time:        e.time,
	}
}
