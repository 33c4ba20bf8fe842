package coins

import (
	"context"
	"math/bits"
	"sort"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/shieldnode/shieldnode/errors"
	"github.com/shieldnode/shieldnode/model"
)

// HistoryCache holds the pending changes to the history tree of one epoch. Appends only ever holds
// indexes at or above UpdateDepth; everything below it is unchanged in the parent view.
type HistoryCache struct {
	Appends     map[model.HistoryIndex]model.HistoryNode
	Length      model.HistoryIndex
	UpdateDepth model.HistoryIndex
	Root        chainhash.Hash
	Epoch       model.Epoch
}

func NewHistoryCache(length model.HistoryIndex, root chainhash.Hash, epoch model.Epoch) *HistoryCache {
	return &HistoryCache{
		Appends:     map[model.HistoryIndex]model.HistoryNode{},
		Length:      length,
		UpdateDepth: length,
		Root:        root,
		Epoch:       epoch,
	}
}

func (h *HistoryCache) Extend(node model.HistoryNode) {
	h.Appends[h.Length] = node
	h.Length++
}

func (h *HistoryCache) Truncate(newLength model.HistoryIndex) {
	for idx := newLength; idx < h.Length; idx++ {
		delete(h.Appends, idx)
	}

	if newLength < h.Length {
		h.Length = newLength
	}

	h.UpdateDepth = min(h.UpdateDepth, newLength)
}

// SortedAppends returns the appended indexes in ascending order.
func (h *HistoryCache) SortedAppends() []model.HistoryIndex {
	indexes := make([]model.HistoryIndex, 0, len(h.Appends))
	for idx := range h.Appends {
		indexes = append(indexes, idx)
	}

	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })

	return indexes
}

type mmrPeak struct {
	pos model.HistoryIndex
	alt uint
}

// historyPeaks splits a tree of length nodes into its perfect subtrees, left to right. Altitudes
// must strictly decrease, otherwise the length does not describe a valid tree.
func historyPeaks(length model.HistoryIndex) ([]mmrPeak, error) {
	var (
		peaks     []mmrPeak
		start     model.HistoryIndex
		remaining = length
	)

	for remaining > 0 {
		alt := uint(bits.Len64(uint64(remaining)+1) - 2)
		size := model.HistoryIndex(1)<<(alt+1) - 1

		if len(peaks) > 0 && alt >= peaks[len(peaks)-1].alt {
			return nil, errors.NewHistoryInvalidError("%d is not a valid history tree length", length)
		}

		peaks = append(peaks, mmrPeak{pos: start + size - 1, alt: alt})
		start += size
		remaining -= size
	}

	return peaks, nil
}

// bagPeaks folds the peaks right to left into one node and hashes it.
func bagPeaks(epoch model.Epoch, peaks []model.HistoryNode) chainhash.Hash {
	root := peaks[len(peaks)-1]

	for i := len(peaks) - 2; i >= 0; i-- {
		root = model.CombineHistoryNodes(epoch, peaks[i], root)
	}

	return model.HashHistoryNode(epoch, root)
}

func (c *Cache) selectHistoryCache(ctx context.Context, epoch model.Epoch) (*HistoryCache, error) {
	if hc, ok := c.history[epoch]; ok {
		return hc, nil
	}

	length, err := c.base.GetHistoryLength(ctx, epoch)
	if err != nil {
		return nil, err
	}

	root, err := c.base.GetHistoryRoot(ctx, epoch)
	if err != nil {
		return nil, err
	}

	hc := NewHistoryCache(length, root, epoch)
	c.history[epoch] = hc

	return hc, nil
}

func (c *Cache) historyNodeAt(ctx context.Context, hc *HistoryCache, index model.HistoryIndex) (model.HistoryNode, error) {
	node, found, err := c.getHistoryAt(ctx, hc, index)
	if err != nil {
		return model.HistoryNode{}, err
	}

	if !found {
		return model.HistoryNode{}, errors.NewHistoryInvalidError("history node %d of epoch %d is missing", index, hc.Epoch)
	}

	return node, nil
}

// preloadHistoryTree reads the peaks of the tree and, when extra is set, the children along the right
// slope of the last peak, which a pop needs to rebuild the peaks.
func (c *Cache) preloadHistoryTree(ctx context.Context, hc *HistoryCache, extra bool) (map[model.HistoryIndex]model.HistoryNode, []mmrPeak, error) {
	peaks, err := historyPeaks(hc.Length)
	if err != nil {
		return nil, nil, err
	}

	nodes := make(map[model.HistoryIndex]model.HistoryNode, len(peaks)+64)

	load := func(pos model.HistoryIndex) error {
		node, err := c.historyNodeAt(ctx, hc, pos)
		if err != nil {
			return err
		}

		nodes[pos] = node

		return nil
	}

	for _, peak := range peaks {
		if err = load(peak.pos); err != nil {
			return nil, nil, err
		}
	}

	if !extra {
		prometheusHistoryPreloads.Observe(float64(len(nodes)))
		return nodes, peaks, nil
	}

	last := peaks[len(peaks)-1]
	pos, alt := last.pos, last.alt

	for alt > 0 {
		left := pos - model.HistoryIndex(1)<<alt
		right := pos - 1
		alt--

		if err = load(left); err != nil {
			return nil, nil, err
		}

		if err = load(right); err != nil {
			return nil, nil, err
		}

		pos = right
	}

	prometheusHistoryPreloads.Observe(float64(len(nodes)))

	return nodes, peaks, nil
}

// PushHistoryNode appends a block leaf to the history tree of epoch, merging equal-height peaks.
func (c *Cache) PushHistoryNode(ctx context.Context, epoch model.Epoch, leaf model.HistoryNode) error {
	hc, err := c.selectHistoryCache(ctx, epoch)
	if err != nil {
		return err
	}

	if hc.Length == 0 {
		hc.Extend(leaf)
		hc.Root = model.HashHistoryNode(epoch, leaf)

		return nil
	}

	nodes, peaks, err := c.preloadHistoryTree(ctx, hc, false)
	if err != nil {
		return err
	}

	type stackItem struct {
		node model.HistoryNode
		alt  uint
	}

	stack := make([]stackItem, 0, len(peaks)+1)
	for _, peak := range peaks {
		stack = append(stack, stackItem{node: nodes[peak.pos], alt: peak.alt})
	}

	current := stackItem{node: leaf}
	appended := []model.HistoryNode{leaf}

	for len(stack) > 0 && stack[len(stack)-1].alt == current.alt {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		current = stackItem{node: model.CombineHistoryNodes(epoch, top.node, current.node), alt: current.alt + 1}
		appended = append(appended, current.node)
	}

	stack = append(stack, current)

	for _, node := range appended {
		hc.Extend(node)
	}

	peakNodes := make([]model.HistoryNode, len(stack))
	for i, item := range stack {
		peakNodes[i] = item.node
	}

	hc.Root = bagPeaks(epoch, peakNodes)

	return nil
}

// PopHistoryNode removes the last leaf of the history tree of epoch together with every node that
// covered it.
func (c *Cache) PopHistoryNode(ctx context.Context, epoch model.Epoch) error {
	hc, err := c.selectHistoryCache(ctx, epoch)
	if err != nil {
		return err
	}

	switch hc.Length {
	case 0, 1:
		// popping from an empty tree happens when a rollback crosses into an epoch the disconnected
		// chain never activated
		hc.Truncate(0)
		hc.Root = chainhash.Hash{}

		return nil
	case 2:
		return errors.NewHistoryInvalidError("a history tree cannot have two nodes")
	case 3:
		node, err := c.historyNodeAt(ctx, hc, 0)
		if err != nil {
			return err
		}

		hc.Truncate(1)
		hc.Root = model.HashHistoryNode(epoch, node)

		return nil
	}

	nodes, peaks, err := c.preloadHistoryTree(ctx, hc, true)
	if err != nil {
		return err
	}

	last := peaks[len(peaks)-1]

	peakNodes := make([]model.HistoryNode, 0, len(peaks)+int(last.alt))
	for _, peak := range peaks[:len(peaks)-1] {
		peakNodes = append(peakNodes, nodes[peak.pos])
	}

	pos, alt := last.pos, last.alt

	for alt > 0 {
		left := pos - model.HistoryIndex(1)<<alt
		right := pos - 1

		if !model.CombineHistoryNodes(epoch, nodes[left], nodes[right]).Equal(nodes[pos]) {
			return errors.NewHistoryInvalidError("history node %d of epoch %d does not match its children", pos, epoch)
		}

		peakNodes = append(peakNodes, nodes[left])
		pos = right
		alt--
	}

	hc.Truncate(hc.Length - model.HistoryIndex(last.alt+1))
	hc.Root = bagPeaks(epoch, peakNodes)

	return nil
}

func (c *Cache) getHistoryAt(ctx context.Context, hc *HistoryCache, index model.HistoryIndex) (model.HistoryNode, bool, error) {
	if index >= hc.Length {
		return model.HistoryNode{}, false, nil
	}

	if index >= hc.UpdateDepth {
		node, ok := hc.Appends[index]
		return node, ok, nil
	}

	return c.base.GetHistoryAt(ctx, hc.Epoch, index)
}

func (c *Cache) GetHistoryLength(ctx context.Context, epoch model.Epoch) (model.HistoryIndex, error) {
	hc, err := c.selectHistoryCache(ctx, epoch)
	if err != nil {
		return 0, err
	}

	return hc.Length, nil
}

func (c *Cache) GetHistoryAt(ctx context.Context, epoch model.Epoch, index model.HistoryIndex) (model.HistoryNode, bool, error) {
	hc, err := c.selectHistoryCache(ctx, epoch)
	if err != nil {
		return model.HistoryNode{}, false, err
	}

	return c.getHistoryAt(ctx, hc, index)
}

func (c *Cache) GetHistoryRoot(ctx context.Context, epoch model.Epoch) (chainhash.Hash, error) {
	hc, err := c.selectHistoryCache(ctx, epoch)
	if err != nil {
		return chainhash.Hash{}, err
	}

	return hc.Root, nil
}
