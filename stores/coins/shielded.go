package coins

import (
	"context"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/shieldnode/shieldnode/errors"
	"github.com/shieldnode/shieldnode/model"
)

type UnsatisfiedShieldedReqKind uint8

const (
	DuplicateNullifier UnsatisfiedShieldedReqKind = iota
	UnknownAnchor
)

func (k UnsatisfiedShieldedReqKind) String() string {
	if k == DuplicateNullifier {
		return "duplicate-nullifier"
	}

	return "unknown-anchor"
}

// UnsatisfiedShieldedReq describes why a transaction cannot be applied on top of the current shielded
// state. Index is the joinsplit, spend or action position within the pool's bundle.
type UnsatisfiedShieldedReq struct {
	Pool  model.ShieldedType
	Kind  UnsatisfiedShieldedReqKind
	Index int
}

func (u *UnsatisfiedShieldedReq) String() string {
	return u.Pool.String() + " " + u.Kind.String()
}

// AsError converts the result into the rejection error handed to peers and RPC callers.
func (u *UnsatisfiedShieldedReq) AsError() error {
	return errors.NewShieldedReqError(errors.ERR_SHIELDED_REQUIREMENT_UNSATISFIED, u.Pool.String(), u.Kind.String(), u.Index)
}

func (c *Cache) GetAnchorAt(ctx context.Context, pool model.ShieldedType, root chainhash.Hash) (*model.NoteCommitmentTree, bool, error) {
	if entry, ok := c.anchors[pool][root]; ok {
		if !entry.Entered {
			return nil, false, nil
		}

		return entry.Tree.Clone(), true, nil
	}

	tree, found, err := c.base.GetAnchorAt(ctx, pool, root)
	if err != nil || !found {
		return nil, false, err
	}

	c.anchors[pool][root] = &AnchorEntry{Entered: true, Tree: tree}
	c.cachedCoinsUsage += tree.DynamicMemoryUsage()

	return tree.Clone(), true, nil
}

func (c *Cache) GetBestAnchor(ctx context.Context, pool model.ShieldedType) (chainhash.Hash, error) {
	if root, ok := c.bestAnchors[pool]; ok && root != (chainhash.Hash{}) {
		return root, nil
	}

	root, err := c.base.GetBestAnchor(ctx, pool)
	if err != nil {
		return chainhash.Hash{}, err
	}

	c.bestAnchors[pool] = root

	return root, nil
}

// PushAnchor makes tree the best anchor of its pool.
func (c *Cache) PushAnchor(ctx context.Context, tree *model.NoteCommitmentTree) error {
	pool := tree.Pool()
	newRoot := tree.Root()

	current, err := c.GetBestAnchor(ctx, pool)
	if err != nil {
		return err
	}

	// blocks without shielded outputs leave the tree unchanged
	if current == newRoot {
		return nil
	}

	entry, ok := c.anchors[pool][newRoot]
	if !ok {
		_, found, err := c.base.GetAnchorAt(ctx, pool, newRoot)
		if err != nil {
			return err
		}

		entry = &AnchorEntry{}
		if !found {
			entry.Flags = FRESH
		}

		c.anchors[pool][newRoot] = entry
	} else if entry.Tree != nil {
		c.cachedCoinsUsage -= entry.Tree.DynamicMemoryUsage()
	}

	entry.Entered = true
	entry.Tree = tree.Clone()
	entry.Flags |= DIRTY
	c.cachedCoinsUsage += entry.Tree.DynamicMemoryUsage()

	c.bestAnchors[pool] = newRoot

	return nil
}

// PopAnchor withdraws the current best anchor of pool and makes newRoot the best anchor.
func (c *Cache) PopAnchor(ctx context.Context, pool model.ShieldedType, newRoot chainhash.Hash) error {
	current, err := c.GetBestAnchor(ctx, pool)
	if err != nil {
		return err
	}

	if current == newRoot {
		return nil
	}

	// the anchor must be loaded so that its entry can be marked
	if _, found, err := c.GetAnchorAt(ctx, pool, current); err != nil {
		return err
	} else if !found {
		return errors.NewAnchorNotFoundError("%s anchor %s cannot be popped, it is not known", pool, current)
	}

	entry := c.anchors[pool][current]

	if entry.Flags&FRESH != 0 {
		if entry.Tree != nil {
			c.cachedCoinsUsage -= entry.Tree.DynamicMemoryUsage()
		}

		delete(c.anchors[pool], current)
	} else {
		entry.Entered = false
		entry.Flags |= DIRTY
	}

	c.bestAnchors[pool] = newRoot

	return nil
}

func (c *Cache) GetNullifier(ctx context.Context, pool model.ShieldedType, nf chainhash.Hash) (bool, error) {
	if entry, ok := c.nullifiers[pool][nf]; ok {
		return entry.Entered, nil
	}

	spent, err := c.base.GetNullifier(ctx, pool, nf)
	if err != nil {
		return false, err
	}

	c.nullifiers[pool][nf] = &NullifierEntry{Entered: spent}

	return spent, nil
}

// SetNullifiers marks every nullifier revealed by tx as spent, or unspent when a block is disconnected.
func (c *Cache) SetNullifiers(_ context.Context, tx *model.Tx, spent bool) {
	for _, pool := range model.AllShieldedTypes {
		for _, nf := range tx.Nullifiers(pool) {
			entry, ok := c.nullifiers[pool][nf]
			if !ok {
				entry = &NullifierEntry{}
				c.nullifiers[pool][nf] = entry
			}

			entry.Entered = spent
			entry.Flags |= DIRTY
		}
	}
}

// CheckShieldedRequirements verifies that no nullifier of tx has been revealed before and that every
// anchor it references is a known tree root. It returns nil when tx can be applied.
func (c *Cache) CheckShieldedRequirements(ctx context.Context, tx *model.Tx) (*UnsatisfiedShieldedReq, error) {
	return CheckShieldedRequirements(ctx, c, tx)
}

// ShieldedView is the part of a View needed to check the shielded requirements of a transaction.
type ShieldedView interface {
	GetAnchorAt(ctx context.Context, pool model.ShieldedType, root chainhash.Hash) (*model.NoteCommitmentTree, bool, error)
	GetNullifier(ctx context.Context, pool model.ShieldedType, nf chainhash.Hash) (bool, error)
}

// CheckShieldedRequirements runs the nullifier and anchor checks of tx against view.
func CheckShieldedRequirements(ctx context.Context, view ShieldedView, tx *model.Tx) (*UnsatisfiedShieldedReq, error) {
	seen := map[model.ShieldedType]map[chainhash.Hash]struct{}{}
	for _, pool := range model.AllShieldedTypes {
		seen[pool] = map[chainhash.Hash]struct{}{}
	}

	checkNullifier := func(pool model.ShieldedType, nf chainhash.Hash) (bool, error) {
		if _, dup := seen[pool][nf]; dup {
			return false, nil
		}

		seen[pool][nf] = struct{}{}

		spent, err := view.GetNullifier(ctx, pool, nf)
		if err != nil {
			return false, err
		}

		return !spent, nil
	}

	// a joinsplit may use the tree produced by an earlier joinsplit of the same transaction
	intermediates := map[chainhash.Hash]*model.NoteCommitmentTree{}

	for i, js := range tx.JoinSplits {
		for _, nf := range js.Nullifiers {
			ok, err := checkNullifier(model.Sprout, nf)
			if err != nil {
				return nil, err
			}

			if !ok {
				return &UnsatisfiedShieldedReq{Pool: model.Sprout, Kind: DuplicateNullifier, Index: i}, nil
			}
		}

		tree, ok := intermediates[js.Anchor]
		if ok {
			tree = tree.Clone()
		} else {
			var err error

			tree, ok, err = view.GetAnchorAt(ctx, model.Sprout, js.Anchor)
			if err != nil {
				return nil, err
			}

			if !ok {
				return &UnsatisfiedShieldedReq{Pool: model.Sprout, Kind: UnknownAnchor, Index: i}, nil
			}
		}

		for _, cm := range js.Commitments {
			if err := tree.Append(cm); err != nil {
				return nil, err
			}
		}

		intermediates[tree.Root()] = tree
	}

	for i, spend := range tx.SaplingSpends {
		ok, err := checkNullifier(model.Sapling, spend.Nullifier)
		if err != nil {
			return nil, err
		}

		if !ok {
			return &UnsatisfiedShieldedReq{Pool: model.Sapling, Kind: DuplicateNullifier, Index: i}, nil
		}

		_, found, err := view.GetAnchorAt(ctx, model.Sapling, spend.Anchor)
		if err != nil {
			return nil, err
		}

		if !found {
			return &UnsatisfiedShieldedReq{Pool: model.Sapling, Kind: UnknownAnchor, Index: i}, nil
		}
	}

	if tx.Orchard != nil && len(tx.Orchard.Actions) > 0 {
		for i, action := range tx.Orchard.Actions {
			ok, err := checkNullifier(model.Orchard, action.Nullifier)
			if err != nil {
				return nil, err
			}

			if !ok {
				return &UnsatisfiedShieldedReq{Pool: model.Orchard, Kind: DuplicateNullifier, Index: i}, nil
			}
		}

		_, found, err := view.GetAnchorAt(ctx, model.Orchard, tx.Orchard.Anchor)
		if err != nil {
			return nil, err
		}

		if !found {
			return &UnsatisfiedShieldedReq{Pool: model.Orchard, Kind: UnknownAnchor, Index: 0}, nil
		}
	}

	return nil, nil
}
