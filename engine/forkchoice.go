package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/blockberries/devberry/types"
)

// Decision is the outcome of fork choice for a valid block
type Decision int

const (
	// DecisionIgnore leaves the chain head where it is
	DecisionIgnore Decision = iota
	// DecisionCommit extends or replaces the head at the same height
	DecisionCommit
	// DecisionSwitchFork commits a block on a competing fork below the head
	DecisionSwitchFork
)

// String returns the decision name
func (d Decision) String() string {
	switch d {
	case DecisionIgnore:
		return "ignore"
	case DecisionCommit:
		return "commit"
	case DecisionSwitchFork:
		return "switch_fork"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Commits returns true if the decision results in a commit
func (d Decision) Commits() bool {
	return d == DecisionCommit || d == DecisionSwitchFork
}

// BlockGetter looks blocks up by identifier
type BlockGetter interface {
	GetBlock(id types.BlockID) (types.Block, error)
}

// ForkChoice picks between the chain head and a newly valid block.
// Higher blocks win; at equal height the greater identifier wins.
type ForkChoice struct {
	blocks       BlockGetter
	maxForkDepth uint64
	log          *zap.SugaredLogger
}

// NewForkChoice creates a resolver. maxForkDepth of zero means no limit.
func NewForkChoice(blocks BlockGetter, maxForkDepth uint64, logger *zap.Logger) *ForkChoice {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ForkChoice{
		blocks:       blocks,
		maxForkDepth: maxForkDepth,
		log:          logger.Sugar(),
	}
}

// Resolve decides what to do with block given the current head.
// Errors come only from block lookups during the walk back from head.
func (fc *ForkChoice) Resolve(block, head types.Block) (Decision, error) {
	if block.BlockNum > head.BlockNum ||
		(block.BlockNum == head.BlockNum && block.ID.Compare(head.ID) > 0) {
		return DecisionCommit, nil
	}

	if block.BlockNum == head.BlockNum {
		return DecisionIgnore, nil
	}

	depth := head.BlockNum - block.BlockNum
	if fc.maxForkDepth > 0 && depth > fc.maxForkDepth {
		fc.log.Warnw("fork deeper than limit", "block", block, "head", head, "depth", depth)
		return DecisionIgnore, nil
	}

	ancestor, err := fc.ancestorAt(head, block.BlockNum)
	if err != nil {
		return DecisionIgnore, err
	}

	if block.ID.Compare(ancestor.ID) > 0 {
		return DecisionSwitchFork, nil
	}
	return DecisionIgnore, nil
}

// ancestorAt walks back from head to the block at height. Heights strictly
// decrease along the chain, so at most head.BlockNum-height steps are taken.
func (fc *ForkChoice) ancestorAt(head types.Block, height uint64) (types.Block, error) {
	current := head
	for steps := head.BlockNum - height; steps > 0; steps-- {
		if current.PreviousID.IsNull() {
			return types.Block{}, fmt.Errorf("%w: reached genesis at %s looking for height %d",
				ErrBrokenAncestry, current, height)
		}

		prev, err := fc.blocks.GetBlock(current.PreviousID)
		if err != nil {
			return types.Block{}, err
		}
		if prev.BlockNum >= current.BlockNum {
			return types.Block{}, fmt.Errorf("%w: %s has predecessor %s at non-decreasing height",
				ErrBrokenAncestry, current, prev)
		}
		current = prev

		if current.BlockNum == height {
			return current, nil
		}
		if current.BlockNum < height {
			return types.Block{}, fmt.Errorf("%w: skipped from height %d past %d",
				ErrBrokenAncestry, current.BlockNum, height)
		}
	}
	return types.Block{}, fmt.Errorf("%w: no block at height %d below %s", ErrBrokenAncestry, height, head)
}
