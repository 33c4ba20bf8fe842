package mempool_test

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/shieldnode/shieldnode/errors"
	"github.com/shieldnode/shieldnode/model"
	"github.com/shieldnode/shieldnode/services/mempool"
	"github.com/shieldnode/shieldnode/stores/coins/tests"
	"github.com/shieldnode/shieldnode/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ranks = 10

func blockHash(height int32) chainhash.Hash {
	return tests.Hash(fmt.Sprintf("block-%d", height))
}

// estimatorEntry builds a transaction seen at height whose fee and priority fall with rank.
func estimatorEntry(height int32, rank int) *mempool.TxMempoolEntry {
	tx := tests.Tx(fmt.Sprintf("fe-%d-%d", height, rank), []model.OutPoint{model.NewOutPoint(tests.Hash(fmt.Sprintf("in-%d-%d", height, rank)), 0)}, 1000)

	fee := model.Amount((ranks-rank)*1000 + int(height))
	priority := float64(ranks-rank) * 1e6

	return mempool.NewTxMempoolEntry(tx, fee, time.Unix(0, 0), priority, uint32(height), true, 0, false, 1, uint32(tests.TestEpoch))
}

// stage feeds an estimator block by block. Each block, one transaction per rank is observed and the
// transaction of rank i confirms i blocks later than the earliest possible block.
type stage struct {
	pending map[int32][]chainhash.Hash
}

func newStage() *stage {
	return &stage{pending: map[int32][]chainhash.Hash{}}
}

func (s *stage) block(t *testing.T, fe *mempool.FeeEstimator, height int32) {
	for rank := 0; rank < ranks; rank++ {
		entry := estimatorEntry(height-1, rank)
		fe.ObserveTransaction(entry)

		at := height + int32(rank)
		s.pending[at] = append(s.pending[at], entry.TxID())
	}

	require.NoError(t, fe.RegisterBlock(blockHash(height), height, s.pending[height]))
	delete(s.pending, height)
}

func warmEstimator(t *testing.T, blocks int32) (*mempool.FeeEstimator, *stage) {
	fe := mempool.NewFeeEstimator(mempool.DefaultEstimateFeeMaxRollback, mempool.DefaultEstimateFeeMinRegisteredBlocks, rand.New(rand.NewPCG(3, 4)))
	require.NoError(t, fe.RegisterBlock(blockHash(100), 100, nil))

	s := newStage()
	for h := int32(101); h <= 100+blocks; h++ {
		s.block(t, fe, h)
	}

	return fe, s
}

func feeEstimates(fe *mempool.FeeEstimator) ([]model.Amount, []float64) {
	var (
		fees       []model.Amount
		priorities []float64
	)

	for n := 1; n <= 30; n++ {
		fees = append(fees, fe.EstimateFee(n).GetFeePerK())
		priorities = append(priorities, fe.EstimatePriority(n))
	}

	return fees, priorities
}

func TestFeeEstimatorCold(t *testing.T) {
	fe := mempool.NewFeeEstimator(2, 3, nil)

	assert.Equal(t, model.Amount(0), fe.EstimateFee(1).GetFeePerK())
	assert.InDelta(t, -1.0, fe.EstimatePriority(1), 1e-9)

	// observations before the first block are ignored
	fe.ObserveTransaction(estimatorEntry(10, 0))

	require.NoError(t, fe.RegisterBlock(blockHash(11), 11, nil))
	require.NoError(t, fe.RegisterBlock(blockHash(12), 12, nil))

	assert.Equal(t, model.Amount(0), fe.EstimateFee(1).GetFeePerK())

	require.NoError(t, fe.RegisterBlock(blockHash(13), 13, nil))

	// enough blocks, but nothing was ever confirmed
	assert.Equal(t, model.Amount(0), fe.EstimateFee(1).GetFeePerK())
	assert.InDelta(t, 0.0, fe.EstimatePriority(1), 1e-9)
}

func TestFeeEstimatorRejectsGap(t *testing.T) {
	fe := mempool.NewFeeEstimator(2, 3, nil)

	require.NoError(t, fe.RegisterBlock(blockHash(10), 10, nil))
	require.Error(t, fe.RegisterBlock(blockHash(12), 12, nil))
	assert.Equal(t, int32(10), fe.LastKnownHeight())

	fe.Restart(12)
	require.NoError(t, fe.RegisterBlock(blockHash(13), 13, nil))
}

func TestFeeEstimatorStagedConfirmations(t *testing.T) {
	fe, _ := warmEstimator(t, 60)

	fees, priorities := feeEstimates(fe)

	for n := 0; n < len(fees)-1; n++ {
		assert.GreaterOrEqual(t, fees[n], fees[n+1], "fee target %d", n+1)
		assert.GreaterOrEqual(t, priorities[n], priorities[n+1], "priority target %d", n+1)
	}

	assert.Greater(t, fees[0], fees[3])
	assert.Greater(t, priorities[0], priorities[3])
	assert.Positive(t, fees[0])

	// beyond the tracked depth there is no estimate
	assert.Equal(t, model.Amount(0), fees[25])
	assert.InDelta(t, -1.0, priorities[29], 1e-9)

	// targets below one read like one
	assert.Equal(t, fees[0], fe.EstimateFee(0).GetFeePerK())
}

func TestFeeEstimatorRoundTrip(t *testing.T) {
	// enough blocks to fill the fastest bins, so replacements are persisted too
	fe, _ := warmEstimator(t, 130)

	var buf bytes.Buffer
	require.NoError(t, fe.Write(&buf))

	restored, err := mempool.ReadFeeEstimator(bytes.NewReader(buf.Bytes()), rand.New(rand.NewPCG(5, 6)))
	require.NoError(t, err)

	assert.Equal(t, fe.LastKnownHeight(), restored.LastKnownHeight())

	wantFees, wantPriorities := feeEstimates(fe)
	gotFees, gotPriorities := feeEstimates(restored)

	assert.Equal(t, wantFees, gotFees)
	assert.Equal(t, wantPriorities, gotPriorities)

	var again bytes.Buffer
	require.NoError(t, restored.Write(&again))
	assert.Equal(t, buf.Bytes(), again.Bytes())
}

func TestFeeEstimatorReadRejectsBadInput(t *testing.T) {
	fe, _ := warmEstimator(t, 30)

	var buf bytes.Buffer
	require.NoError(t, fe.Write(&buf))

	good := buf.Bytes()

	wrongVersion := bytes.Clone(good)
	binary.BigEndian.PutUint32(wrongVersion, 1)

	badParams := bytes.Clone(good)
	binary.BigEndian.PutUint32(badParams[8:], 0)

	cases := map[string][]byte{
		"empty":         nil,
		"garbage":       []byte("not a fee estimates file"),
		"wrong version": wrongVersion,
		"bad params":    badParams,
		"truncated":     good[:len(good)/2],
		"one byte less": good[:len(good)-1],
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := mempool.ReadFeeEstimator(bytes.NewReader(data), nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrFeeEstimatesInvalid))
		})
	}
}

func TestFeeEstimatorRollback(t *testing.T) {
	fe, s := warmEstimator(t, 130)

	wantFees, wantPriorities := feeEstimates(fe)

	s.block(t, fe, 231)
	s.block(t, fe, 232)

	assert.Equal(t, int32(232), fe.LastKnownHeight())

	require.NoError(t, fe.Rollback(blockHash(231)))
	assert.Equal(t, int32(230), fe.LastKnownHeight())

	gotFees, gotPriorities := feeEstimates(fe)
	assert.Equal(t, wantFees, gotFees)
	assert.Equal(t, wantPriorities, gotPriorities)

	// only the last blocks can be rolled back
	err := fe.Rollback(blockHash(150))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestFeeEstimatorForgetsUnminedTransactions(t *testing.T) {
	fe := mempool.NewFeeEstimator(0, 1, nil)
	require.NoError(t, fe.RegisterBlock(blockHash(100), 100, nil))

	entry := estimatorEntry(100, 0)
	fe.ObserveTransaction(entry)
	fe.RemoveTransaction(entry.TxID())

	// a removed transaction confirming later teaches nothing
	require.NoError(t, fe.RegisterBlock(blockHash(101), 101, []chainhash.Hash{entry.TxID()}))
	assert.Equal(t, model.Amount(0), fe.EstimateFee(1).GetFeePerK())

	other := estimatorEntry(101, 0)
	fe.ObserveTransaction(other)
	require.NoError(t, fe.RegisterBlock(blockHash(102), 102, []chainhash.Hash{other.TxID()}))

	assert.Equal(t, model.NewFeeRate(other.Fee(), other.Size()).GetFeePerK(), fe.EstimateFee(1).GetFeePerK())
}

func TestMempoolFeeEstimatesPersistence(t *testing.T) {
	f := newFixture(t)

	f.mp.RemoveForBlock(blockHash(100), nil, 100, true)

	for h := uint32(101); h <= 105; h++ {
		tx := f.spend(fmt.Sprintf("tx-%d", h), f.fund(5000), 4000)
		entry := mempool.NewTxMempoolEntry(tx, 2000, f.clock.Now(), 0, h-1, true, 0, false, 1, uint32(tests.TestEpoch))
		require.NoError(t, f.mp.AddUnchecked(entry, true))

		f.mp.RemoveForBlock(blockHash(int32(h)), []*model.Tx{tx}, h, true)
	}

	want := f.mp.EstimateFee(1)
	assert.Positive(t, want.GetFeePerK())

	var buf bytes.Buffer
	require.NoError(t, f.mp.WriteFeeEstimates(&buf))

	restored := newFixture(t)
	assert.Equal(t, model.Amount(0), restored.mp.EstimateFee(1).GetFeePerK())

	restored.mp.ReadFeeEstimates(bytes.NewReader(buf.Bytes()))
	assert.Equal(t, want, restored.mp.EstimateFee(1))

	require.NoError(t, restored.mp.RollbackFeeEstimates(blockHash(105)))

	// unreadable estimates leave the pool cold
	restored.mp.ReadFeeEstimates(bytes.NewReader([]byte("garbage")))
	assert.Equal(t, model.Amount(0), restored.mp.EstimateFee(1).GetFeePerK())
	assert.InDelta(t, -1.0, restored.mp.EstimatePriority(1), 1e-9)
}

func TestMempoolEstimatorSurvivesMissedBlock(t *testing.T) {
	mp := mempool.New(ulogger.TestLogger{}, testSettings())

	mp.RemoveForBlock(blockHash(100), nil, 100, true)

	// a gap restarts the estimator at the new height instead of failing
	mp.RemoveForBlock(blockHash(105), nil, 105, true)
	require.Error(t, mp.RollbackFeeEstimates(blockHash(105)))

	mp.RemoveForBlock(blockHash(106), nil, 106, true)
	require.NoError(t, mp.RollbackFeeEstimates(blockHash(106)))
}
