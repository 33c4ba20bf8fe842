package mempool

import (
	"bytes"
	"encoding/binary"
	"io"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/shieldnode/shieldnode/errors"
	"github.com/shieldnode/shieldnode/model"
)

const (
	// estimateFeeDepth is the largest confirmation target that is tracked.
	estimateFeeDepth = 25

	// estimateFeeBinSize is the number of samples kept per confirmation bin.
	estimateFeeBinSize = 100

	// estimateFeeMaxReplacements caps how many samples one block may replace in a bin.
	estimateFeeMaxReplacements = 10

	DefaultEstimateFeeMaxRollback         = 2
	DefaultEstimateFeeMinRegisteredBlocks = 3

	// unminedHeight marks heights not known yet.
	unminedHeight int32 = 0x7FFFFFFF

	feeEstimatesVersion uint32 = 2
)

type observedTransaction struct {
	hash chainhash.Hash

	// fee paid per 1000 bytes, in zatoshis
	feeRate float64

	priority float64

	// heights at which the transaction was seen in the pool and mined
	observed int32
	mined    int32
}

type registeredBlock struct {
	hash         chainhash.Hash
	transactions []*observedTransaction
}

// FeeEstimator learns how long transactions of a given fee rate and priority take to confirm. Every
// pool admission is observed, every connected block moves the observed transactions it confirms into
// the bin of their confirmation delay, and estimates read the median of the bins up to a target.
type FeeEstimator struct {
	mu sync.Mutex

	maxRollback         uint32
	binSize             int32
	maxReplacements     int32
	minRegisteredBlocks uint32

	lastKnownHeight     int32
	numBlocksRegistered uint32

	observed map[chainhash.Hash]*observedTransaction
	bin      [estimateFeeDepth][]*observedTransaction

	cachedFees       []float64
	cachedPriorities []float64

	// samples pushed out of the bins by recent blocks, kept so those blocks can be rolled back
	dropped []*registeredBlock

	rng *rand.Rand
}

func NewFeeEstimator(maxRollback, minRegisteredBlocks uint32, rng *rand.Rand) *FeeEstimator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &FeeEstimator{
		maxRollback:         maxRollback,
		binSize:             estimateFeeBinSize,
		maxReplacements:     estimateFeeMaxReplacements,
		minRegisteredBlocks: minRegisteredBlocks,
		lastKnownHeight:     unminedHeight,
		observed:            map[chainhash.Hash]*observedTransaction{},
		dropped:             make([]*registeredBlock, 0, maxRollback),
		rng:                 rng,
	}
}

// ObserveTransaction records an admitted transaction. Nothing is recorded before the first block,
// since the admission height would be unknown.
func (fe *FeeEstimator) ObserveTransaction(entry *TxMempoolEntry) {
	fe.mu.Lock()
	defer fe.mu.Unlock()

	if fe.lastKnownHeight == unminedHeight {
		return
	}

	if _, ok := fe.observed[entry.txid]; ok {
		return
	}

	fe.observed[entry.txid] = &observedTransaction{
		hash:     entry.txid,
		feeRate:  float64(entry.fee) * 1000 / float64(max(entry.size, 1)),
		priority: entry.priority,
		observed: int32(entry.height),
		mined:    unminedHeight,
	}
}

// RemoveTransaction forgets a transaction that left the pool without being mined.
func (fe *FeeEstimator) RemoveTransaction(txid chainhash.Hash) {
	fe.mu.Lock()
	defer fe.mu.Unlock()

	if o, ok := fe.observed[txid]; ok && o.mined == unminedHeight {
		delete(fe.observed, txid)
	}
}

func (fe *FeeEstimator) LastKnownHeight() int32 {
	fe.mu.Lock()
	defer fe.mu.Unlock()

	return fe.lastKnownHeight
}

// Restart keeps the learned bins but forgets the pending observations and the rollback history, and
// continues from height. It is used when a block was missed.
func (fe *FeeEstimator) Restart(height int32) {
	fe.mu.Lock()
	defer fe.mu.Unlock()

	fe.observed = map[chainhash.Hash]*observedTransaction{}

	for i := range fe.bin {
		for _, o := range fe.bin[i] {
			fe.observed[o.hash] = o
		}
	}

	fe.dropped = fe.dropped[:0]
	fe.lastKnownHeight = height
	fe.cachedFees, fe.cachedPriorities = nil, nil
}

// RegisterBlock moves the observed transactions confirmed by the block at height into their bins.
func (fe *FeeEstimator) RegisterBlock(blockHash chainhash.Hash, height int32, txids []chainhash.Hash) error {
	fe.mu.Lock()
	defer fe.mu.Unlock()

	if fe.lastKnownHeight != unminedHeight && height != fe.lastKnownHeight+1 {
		return errors.NewProcessingError("intermediate block not recorded; current height is %d; new height is %d", fe.lastKnownHeight, height)
	}

	fe.cachedFees, fe.cachedPriorities = nil, nil
	fe.lastKnownHeight = height
	fe.numBlocksRegistered++

	var replacementCounts [estimateFeeDepth]int

	dropped := &registeredBlock{hash: blockHash}

	for _, txid := range txids {
		o, ok := fe.observed[txid]
		if !ok || o.mined != unminedHeight {
			continue
		}

		blocksToConfirm := height - o.observed - 1

		// a transaction seen at height X can be mined below X after a reorg
		if blocksToConfirm >= estimateFeeDepth || blocksToConfirm < 0 {
			continue
		}

		if replacementCounts[blocksToConfirm] == int(fe.maxReplacements) {
			continue
		}

		o.mined = height
		replacementCounts[blocksToConfirm]++

		bin := fe.bin[blocksToConfirm]

		if len(bin) == int(fe.binSize) {
			// never drop a sample added by this same block
			l := int(fe.binSize) - replacementCounts[blocksToConfirm]
			drop := fe.rng.IntN(l)
			dropped.transactions = append(dropped.transactions, bin[drop])

			bin[drop] = bin[l-1]
			bin[l-1] = o
		} else {
			bin = append(bin, o)
		}

		fe.bin[blocksToConfirm] = bin
	}

	for hash, o := range fe.observed {
		if o.mined == unminedHeight && height-o.observed >= estimateFeeDepth {
			delete(fe.observed, hash)
		}
	}

	if fe.maxRollback == 0 {
		fe.forget(dropped)
		return nil
	}

	if uint32(len(fe.dropped)) == fe.maxRollback {
		fe.forget(fe.dropped[0])
		fe.dropped = append(fe.dropped[1:], dropped)
	} else {
		fe.dropped = append(fe.dropped, dropped)
	}

	return nil
}

// forget releases the samples of a block that can no longer be rolled back.
func (fe *FeeEstimator) forget(rb *registeredBlock) {
	for _, o := range rb.transactions {
		if fe.observed[o.hash] == o {
			delete(fe.observed, o.hash)
		}
	}
}

// Rollback undoes the registration of blockHash and every block registered after it.
func (fe *FeeEstimator) Rollback(blockHash chainhash.Hash) error {
	fe.mu.Lock()
	defer fe.mu.Unlock()

	n := 1
	for ; n <= len(fe.dropped); n++ {
		if fe.dropped[len(fe.dropped)-n].hash == blockHash {
			break
		}
	}

	if n > len(fe.dropped) {
		return errors.NewNotFoundError("block %s was not recently registered", blockHash)
	}

	for i := 0; i < n; i++ {
		if err := fe.rollback(); err != nil {
			return err
		}
	}

	return nil
}

func (fe *FeeEstimator) rollback() error {
	fe.cachedFees, fe.cachedPriorities = nil, nil

	last := len(fe.dropped) - 1
	if last < 0 {
		return nil
	}

	dropped := fe.dropped[last]

	var counters [estimateFeeDepth]int

	// put every dropped sample back in the slot taken by a transaction of the rolled back block
	for _, o := range dropped.transactions {
		blocksToConfirm := o.mined - o.observed - 1
		bin := fe.bin[blocksToConfirm]
		counter := counters[blocksToConfirm]

		for {
			if counter >= len(bin) {
				return errors.NewProcessingError("cannot roll back dropped transaction %s", o.hash)
			}

			prev := bin[counter]
			counter++

			if prev.mined == fe.lastKnownHeight {
				prev.mined = unminedHeight
				bin[counter-1] = o

				break
			}
		}

		counters[blocksToConfirm] = counter
	}

	// the rest of the block's transactions were appended without replacing anything
	for i, j := range counters {
		for j < len(fe.bin[i]) {
			prev := fe.bin[i][j]

			if prev.mined == fe.lastKnownHeight {
				prev.mined = unminedHeight
				fe.bin[i] = append(fe.bin[i][:j], fe.bin[i][j+1:]...)

				continue
			}

			j++
		}
	}

	fe.dropped = fe.dropped[:last]
	fe.numBlocksRegistered--
	fe.lastKnownHeight--

	return nil
}

// medianIndex picks, in a list sorted best first, the middle sample of the bin for target.
func medianIndex(bins [estimateFeeDepth]int, total, target int) int {
	lo := 0
	for i := 0; i < target-1; i++ {
		lo += bins[i]
	}

	hi := max(lo+bins[target-1]-1, lo)

	return min((lo+hi)/2, total-1)
}

func (fe *FeeEstimator) estimates() ([]float64, []float64) {
	var (
		bins       [estimateFeeDepth]int
		fees       []float64
		priorities []float64
	)

	for i, b := range fe.bin {
		bins[i] = len(b)

		for _, o := range b {
			fees = append(fees, o.feeRate)
			priorities = append(priorities, o.priority)
		}
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(fees)))
	sort.Sort(sort.Reverse(sort.Float64Slice(priorities)))

	feeEstimates := make([]float64, estimateFeeDepth)
	priorityEstimates := make([]float64, estimateFeeDepth)

	if len(fees) == 0 {
		return feeEstimates, priorityEstimates
	}

	for target := 1; target <= estimateFeeDepth; target++ {
		idx := medianIndex(bins, len(fees), target)
		feeEstimates[target-1] = fees[idx]
		priorityEstimates[target-1] = priorities[idx]
	}

	// a shorter target must never be cheaper than a longer one
	for i := estimateFeeDepth - 2; i >= 0; i-- {
		feeEstimates[i] = max(feeEstimates[i], feeEstimates[i+1])
		priorityEstimates[i] = max(priorityEstimates[i], priorityEstimates[i+1])
	}

	return feeEstimates, priorityEstimates
}

func (fe *FeeEstimator) ready(nBlocks int) (int, bool) {
	if fe.numBlocksRegistered < fe.minRegisteredBlocks || nBlocks > estimateFeeDepth {
		return 0, false
	}

	if fe.cachedFees == nil {
		fe.cachedFees, fe.cachedPriorities = fe.estimates()
	}

	return max(nBlocks, 1) - 1, true
}

// EstimateFee returns the fee rate needed to confirm within nBlocks, or a zero rate when there is
// not enough data or nBlocks is beyond the tracked depth.
func (fe *FeeEstimator) EstimateFee(nBlocks int) model.FeeRate {
	fe.mu.Lock()
	defer fe.mu.Unlock()

	idx, ok := fe.ready(nBlocks)
	if !ok {
		return model.FeeRate{}
	}

	return model.NewFeeRatePerK(model.Amount(fe.cachedFees[idx]))
}

// EstimatePriority returns the priority needed to confirm within nBlocks without paying a fee, or -1
// when there is no estimate.
func (fe *FeeEstimator) EstimatePriority(nBlocks int) float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()

	idx, ok := fe.ready(nBlocks)
	if !ok {
		return -1
	}

	return fe.cachedPriorities[idx]
}

// Write serialises the estimator. Observed transactions are written once, sorted by hash, and
// referenced by position from the bins and the rollback stack.
func (fe *FeeEstimator) Write(w io.Writer) error {
	fe.mu.Lock()
	defer fe.mu.Unlock()

	ew := &errWriter{w: w}

	ew.write(feeEstimatesVersion)
	ew.write(fe.maxRollback)
	ew.write(fe.binSize)
	ew.write(fe.maxReplacements)
	ew.write(fe.minRegisteredBlocks)
	ew.write(fe.lastKnownHeight)
	ew.write(fe.numBlocksRegistered)

	ots := make([]*observedTransaction, 0, len(fe.observed))
	for _, o := range fe.observed {
		ots = append(ots, o)
	}

	sort.Slice(ots, func(i, j int) bool { return bytes.Compare(ots[i].hash[:], ots[j].hash[:]) < 0 })

	positions := make(map[*observedTransaction]uint32, len(ots))

	ew.write(uint32(len(ots)))

	for i, o := range ots {
		ew.write(o.hash)
		ew.write(o.feeRate)
		ew.write(o.priority)
		ew.write(o.observed)
		ew.write(o.mined)

		positions[o] = uint32(i)
	}

	for _, bin := range fe.bin {
		ew.write(uint32(len(bin)))

		for _, o := range bin {
			ew.write(positions[o])
		}
	}

	ew.write(uint32(len(fe.dropped)))

	for _, rb := range fe.dropped {
		ew.write(rb.hash)
		ew.write(uint32(len(rb.transactions)))

		for _, o := range rb.transactions {
			ew.write(positions[o])
		}
	}

	return ew.err
}

// ReadFeeEstimator restores an estimator written by Write. Any malformed input is reported as
// ErrFeeEstimatesInvalid.
func ReadFeeEstimator(r io.Reader, rng *rand.Rand) (*FeeEstimator, error) {
	er := &errReader{r: r}

	var version uint32

	er.read(&version)

	if er.err != nil {
		return nil, errors.NewFeeEstimatesInvalidError("cannot read fee estimates version", er.err)
	}

	if version != feeEstimatesVersion {
		return nil, errors.NewFeeEstimatesInvalidError("incorrect fee estimates version: expected %d found %d", feeEstimatesVersion, version)
	}

	fe := NewFeeEstimator(0, 0, rng)

	er.read(&fe.maxRollback)
	er.read(&fe.binSize)
	er.read(&fe.maxReplacements)
	er.read(&fe.minRegisteredBlocks)
	er.read(&fe.lastKnownHeight)
	er.read(&fe.numBlocksRegistered)

	var numObserved uint32

	er.read(&numObserved)

	if er.err == nil && (fe.binSize <= 0 || fe.maxReplacements <= 0 || fe.binSize > 1<<16) {
		return nil, errors.NewFeeEstimatesInvalidError("invalid fee estimator parameters")
	}

	observed := make([]*observedTransaction, 0, min(numObserved, 1<<16))

	for i := uint32(0); i < numObserved && er.err == nil; i++ {
		o := &observedTransaction{}

		er.read(&o.hash)
		er.read(&o.feeRate)
		er.read(&o.priority)
		er.read(&o.observed)
		er.read(&o.mined)

		observed = append(observed, o)
		fe.observed[o.hash] = o
	}

	lookup := func(pos uint32) (*observedTransaction, error) {
		if int(pos) >= len(observed) {
			return nil, errors.NewFeeEstimatesInvalidError("invalid transaction reference %d", pos)
		}

		return observed[pos], nil
	}

	for i := 0; i < estimateFeeDepth && er.err == nil; i++ {
		var n uint32

		er.read(&n)

		if n > uint32(fe.binSize) {
			return nil, errors.NewFeeEstimatesInvalidError("bin %d holds %d samples", i, n)
		}

		bin := make([]*observedTransaction, 0, n)

		for j := uint32(0); j < n && er.err == nil; j++ {
			var pos uint32

			er.read(&pos)

			if er.err != nil {
				break
			}

			o, err := lookup(pos)
			if err != nil {
				return nil, err
			}

			if o.mined == unminedHeight || o.mined-o.observed-1 != int32(i) {
				return nil, errors.NewFeeEstimatesInvalidError("transaction %s does not belong in bin %d", o.hash, i)
			}

			bin = append(bin, o)
		}

		fe.bin[i] = bin
	}

	var numDropped uint32

	er.read(&numDropped)

	if numDropped > fe.maxRollback {
		return nil, errors.NewFeeEstimatesInvalidError("%d rollback blocks exceed the limit of %d", numDropped, fe.maxRollback)
	}

	for i := uint32(0); i < numDropped && er.err == nil; i++ {
		rb := &registeredBlock{}

		var n uint32

		er.read(&rb.hash)
		er.read(&n)

		for j := uint32(0); j < n && er.err == nil; j++ {
			var pos uint32

			er.read(&pos)

			if er.err != nil {
				break
			}

			o, err := lookup(pos)
			if err != nil {
				return nil, err
			}

			rb.transactions = append(rb.transactions, o)
		}

		fe.dropped = append(fe.dropped, rb)
	}

	if er.err != nil {
		return nil, errors.NewFeeEstimatesInvalidError("truncated fee estimates", er.err)
	}

	return fe, nil
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) write(v any) {
	if ew.err != nil {
		return
	}

	ew.err = binary.Write(ew.w, binary.BigEndian, v)
}

type errReader struct {
	r   io.Reader
	err error
}

func (er *errReader) read(v any) {
	if er.err != nil {
		return
	}

	er.err = binary.Read(er.r, binary.BigEndian, v)
}
