package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/blockberries/devberry/types"
)

// DefaultRetryInterval is how long the adapter sleeps between attempts
// while the pending block is not ready
const DefaultRetryInterval = time.Second

// condition identifies a transient state whose onset is logged once
type condition int

const (
	notReadyToSummarize condition = iota
	notReadyToFinalize
)

func (c condition) String() string {
	switch c {
	case notReadyToSummarize:
		return "block not ready to summarize"
	case notReadyToFinalize:
		return "block not ready to finalize"
	default:
		return fmt.Sprintf("condition(%d)", int(c))
	}
}

// logGuard remembers which conditions have already been logged so that a
// retry loop logs the transition into a condition once, not every attempt
type logGuard struct {
	active map[condition]bool
}

// onset marks the condition active and returns true if it was not already
func (g *logGuard) onset(c condition) bool {
	if g.active[c] {
		return false
	}
	if g.active == nil {
		g.active = make(map[condition]bool)
	}
	g.active[c] = true
	return true
}

func (g *logGuard) clear(c condition) {
	delete(g.active, c)
}

// Adapter wraps a Service with the engine's failure contract: every call is
// fail-fast except summarize/finalize, which wait out ErrBlockNotReady, and
// cancel, which treats ErrInvalidState as nothing to cancel.
//
// Adapter is not safe for concurrent use; it belongs to a single engine loop.
type Adapter struct {
	svc           Service
	retryInterval time.Duration
	guard         logGuard
	log           *zap.SugaredLogger
}

// NewAdapter creates an Adapter around svc
func NewAdapter(svc Service, retryInterval time.Duration, logger *zap.Logger) *Adapter {
	if retryInterval <= 0 {
		retryInterval = DefaultRetryInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		svc:           svc,
		retryInterval: retryInterval,
		log:           logger.Named("service").Sugar(),
	}
}

// GetChainHead returns the current chain head
func (a *Adapter) GetChainHead() (types.Block, error) {
	a.log.Debug("getting chain head")
	head, err := a.svc.GetChainHead()
	if err != nil {
		return types.Block{}, fmt.Errorf("failed to get chain head: %w", err)
	}
	return head, nil
}

// GetBlock returns a single block by identifier
func (a *Adapter) GetBlock(id types.BlockID) (types.Block, error) {
	a.log.Debugw("getting block", "block_id", id)
	blocks, err := a.svc.GetBlocks([]types.BlockID{id})
	if err != nil {
		return types.Block{}, fmt.Errorf("failed to get block %s: %w", id, err)
	}
	for _, b := range blocks {
		if b.ID.Equal(id) {
			return b, nil
		}
	}
	return types.Block{}, fmt.Errorf("failed to get block %s: %w", id, ErrUnknownBlock)
}

// InitializeBlock starts a new pending block on top of the chain head
func (a *Adapter) InitializeBlock() error {
	a.log.Debug("initializing block")
	if err := a.svc.InitializeBlock(nil); err != nil {
		return fmt.Errorf("failed to initialize block: %w", err)
	}
	return nil
}

// SummarizeBlock returns the pending block's summary, waiting while the
// block is not ready
func (a *Adapter) SummarizeBlock(ctx context.Context) ([]byte, error) {
	a.log.Debug("summarizing block")
	summary, err := retryNotReady(ctx, a, notReadyToSummarize, a.svc.SummarizeBlock)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize block: %w", err)
	}
	a.log.Debug("block has been summarized successfully")
	return summary, nil
}

// FinalizeBlock seals the pending block with consensus, waiting while the
// block is not ready. The same payload is resubmitted on every attempt.
func (a *Adapter) FinalizeBlock(ctx context.Context, consensus []byte) (types.BlockID, error) {
	a.log.Debug("finalizing block")
	id, err := retryNotReady(ctx, a, notReadyToFinalize, func() (types.BlockID, error) {
		return a.svc.FinalizeBlock(consensus)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to finalize block: %w", err)
	}
	a.log.Debugw("block has been finalized successfully", "block_id", id)
	return id, nil
}

// CancelBlock abandons the pending block. Having no pending block is not an error.
func (a *Adapter) CancelBlock() error {
	a.log.Debug("canceling block")
	err := a.svc.CancelBlock()
	if err == nil || errors.Is(err, ErrInvalidState) {
		return nil
	}
	return fmt.Errorf("failed to cancel block: %w", err)
}

// CheckBlock forwards a block for validation
func (a *Adapter) CheckBlock(id types.BlockID) error {
	a.log.Debugw("checking block", "block_id", id)
	if err := a.svc.CheckBlocks([]types.BlockID{id}); err != nil {
		return fmt.Errorf("failed to check block %s: %w", id, err)
	}
	return nil
}

// FailBlock marks a block invalid
func (a *Adapter) FailBlock(id types.BlockID) error {
	a.log.Debugw("failing block", "block_id", id)
	if err := a.svc.FailBlock(id); err != nil {
		return fmt.Errorf("failed to fail block %s: %w", id, err)
	}
	return nil
}

// IgnoreBlock drops a valid block
func (a *Adapter) IgnoreBlock(id types.BlockID) error {
	a.log.Debugw("ignoring block", "block_id", id)
	if err := a.svc.IgnoreBlock(id); err != nil {
		return fmt.Errorf("failed to ignore block %s: %w", id, err)
	}
	return nil
}

// CommitBlock commits a block as the new chain head
func (a *Adapter) CommitBlock(id types.BlockID) error {
	a.log.Debugw("committing block", "block_id", id)
	if err := a.svc.CommitBlock(id); err != nil {
		return fmt.Errorf("failed to commit block %s: %w", id, err)
	}
	return nil
}

// GetSettings reads settings as of the given block. Errors are returned to the
// caller, which decides whether they matter.
func (a *Adapter) GetSettings(id types.BlockID, keys []string) (map[string]string, error) {
	settings, err := a.svc.GetSettings(id, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return settings, nil
}

// Broadcast sends a message to every peer
func (a *Adapter) Broadcast(messageType string, payload []byte) error {
	a.log.Debugw("broadcasting", "type", messageType, "payload", types.BlockID(payload))
	if err := a.svc.Broadcast(messageType, payload); err != nil {
		return fmt.Errorf("failed to broadcast %s: %w", messageType, err)
	}
	return nil
}

// SendTo sends a message to one peer
func (a *Adapter) SendTo(peer types.PeerID, messageType string, payload []byte) error {
	a.log.Debugw("sending", "type", messageType, "peer", peer, "payload", types.BlockID(payload))
	if err := a.svc.SendTo(peer, messageType, payload); err != nil {
		return fmt.Errorf("failed to send %s to %s: %w", messageType, peer, err)
	}
	return nil
}

// retryNotReady calls op until it returns something other than ErrBlockNotReady,
// sleeping retryInterval between attempts. The onset of the wait is logged once.
func retryNotReady[T any](ctx context.Context, a *Adapter, cond condition, op func() (T, error)) (T, error) {
	defer a.guard.clear(cond)

	for {
		v, err := op()
		if !errors.Is(err, ErrBlockNotReady) {
			return v, err
		}

		if a.guard.onset(cond) {
			a.log.Debug(cond.String())
		}

		timer := time.NewTimer(a.retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}
