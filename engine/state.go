package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/blockberries/devberry/service"
	"github.com/blockberries/devberry/tag"
	"github.com/blockberries/devberry/types"
)

// consensusState is the engine's state machine. It is owned by the single
// goroutine running run and is never shared.
type consensusState struct {
	config *Config

	// Components
	svc        *service.Adapter
	blocks     BlockGetter
	waitPolicy *WaitTimePolicy
	forkChoice *ForkChoice
	metrics    *Metrics
	log        *zap.SugaredLogger
	now        func() time.Time

	// Current consensus state
	peers     *PeerSet
	timer     *PublishTimer
	published bool
}

func newConsensusState(config *Config, svc *service.Adapter, logger *zap.Logger, metrics *Metrics) *consensusState {
	blocks := newBlockCache(svc, config.BlockCacheSize)
	return &consensusState{
		config:     config,
		svc:        svc,
		blocks:     blocks,
		waitPolicy: NewWaitTimePolicy(svc, logger),
		forkChoice: NewForkChoice(blocks, config.MaxForkDepth, logger),
		metrics:    metrics,
		log:        logger.Sugar(),
		now:        time.Now,
		peers:      NewPeerSet(),
	}
}

// run is the main event loop:
//  1. wait up to PollInterval for an update
//  2. stop on Shutdown
//  3. handle the update
//  4. publish if the wait has expired and nothing was published at this height
func (cs *consensusState) run(ctx context.Context, updates <-chan types.Update, startup types.StartupState) error {
	head := startup.ChainHead
	cs.metrics.observeHead(head.BlockNum)
	for _, p := range startup.Peers {
		cs.peers.AddPeer(p.PeerID, cs.now())
	}
	cs.metrics.PeersConnected.Set(float64(cs.peers.Size()))
	cs.startPublishCycle(head.ID)

	if err := cs.svc.InitializeBlock(); err != nil {
		return err
	}

	ticker := time.NewTicker(cs.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case update, ok := <-updates:
			if !ok {
				cs.log.Error("disconnected from validator")
				return ErrDisconnected
			}
			cs.log.Debugw("received update", "type", update.Kind())

			if _, ok := update.(types.Shutdown); ok {
				cs.log.Info("shutting down")
				return nil
			}
			if err := cs.handleUpdate(update); err != nil {
				return err
			}

		case <-ticker.C:
		}

		if err := cs.maybePublish(ctx); err != nil {
			return err
		}
	}
}

func (cs *consensusState) handleUpdate(update types.Update) error {
	switch u := update.(type) {
	case types.BlockNew:
		return cs.handleBlockNew(u.Block)
	case types.BlockValid:
		return cs.handleBlockValid(u.BlockID)
	case types.BlockCommit:
		return cs.handleBlockCommit(u.BlockID)
	case types.PeerMessageReceived:
		return cs.handlePeerMessage(u.Message, u.SenderID)
	case types.PeerConnected:
		cs.peers.AddPeer(u.Peer.PeerID, cs.now())
		cs.metrics.PeersConnected.Set(float64(cs.peers.Size()))
		return nil
	case types.PeerDisconnected:
		if p := cs.peers.GetPeer(u.PeerID); p != nil {
			cs.log.Infow("peer disconnected",
				"peer", u.PeerID,
				"last_seen", p.LastSeen,
				"last_published", p.LastPublished,
				"published", p.Messages[GossipPublished],
				"received", p.Messages[GossipReceived],
				"acks", p.Messages[GossipAck])
		}
		cs.peers.RemovePeer(u.PeerID)
		cs.metrics.PeersConnected.Set(float64(cs.peers.Size()))
		return nil
	default:
		// Invalid blocks do not affect devmode
		return nil
	}
}

// handleBlockNew runs the consensus check on a block the validator received
func (cs *consensusState) handleBlockNew(block types.Block) error {
	cs.log.Infow("checking consensus data", "block", block)

	if block.IsGenesisChild() {
		cs.log.Warnw("received genesis block; ignoring", "block", block)
		cs.metrics.BlockChecks.WithLabelValues(checkGenesis).Inc()
		return nil
	}

	if tag.Verify(block) {
		cs.log.Infow("passed consensus check", "block", block)
		cs.metrics.BlockChecks.WithLabelValues(checkPassed).Inc()
		return cs.svc.CheckBlock(block.ID)
	}

	cs.log.Infow("failed consensus check", "block", block)
	cs.metrics.BlockChecks.WithLabelValues(checkFailed).Inc()
	return cs.svc.FailBlock(block.ID)
}

// handleBlockValid acknowledges the block to its signer and runs fork choice
// against a freshly read chain head
func (cs *consensusState) handleBlockValid(id types.BlockID) error {
	block, err := cs.blocks.GetBlock(id)
	if err != nil {
		return err
	}

	if err := cs.svc.SendTo(block.SignerID, GossipReceived.String(), block.ID); err != nil {
		return err
	}

	head, err := cs.svc.GetChainHead()
	if err != nil {
		return err
	}
	cs.metrics.observeHead(head.BlockNum)

	cs.log.Infow("choosing between chain heads", "current", head, "new", block)

	decision, err := cs.forkChoice.Resolve(block, head)
	if err != nil {
		return fmt.Errorf("fork choice for %s: %w", block, err)
	}
	cs.metrics.ForkChoice.WithLabelValues(decision.String()).Inc()

	if !decision.Commits() {
		cs.log.Infow("ignoring", "block", block)
		return cs.svc.IgnoreBlock(id)
	}
	if decision == DecisionSwitchFork {
		cs.log.Infow("switching to new fork", "block", block)
	} else {
		cs.log.Infow("committing", "block", block)
	}
	return cs.svc.CommitBlock(id)
}

// handleBlockCommit abandons the block in progress and starts a new publish
// cycle on top of the new chain head
func (cs *consensusState) handleBlockCommit(newHead types.BlockID) error {
	cs.log.Infow("chain head updated, abandoning block in progress", "chain_head", newHead)

	if err := cs.svc.CancelBlock(); err != nil {
		return err
	}

	cs.startPublishCycle(newHead)

	return cs.svc.InitializeBlock()
}

func (cs *consensusState) handlePeerMessage(msg types.PeerMessage, sender types.PeerID) error {
	kind, err := ParseGossipKind(msg.Header.MessageType)
	if err != nil {
		return fmt.Errorf("message from %s: %w", sender, err)
	}
	cs.metrics.PeerMessages.WithLabelValues(kind.String()).Inc()

	blockID := types.BlockID(msg.Content)
	cs.peers.ApplyMessage(sender, kind, blockID, cs.now())
	cs.metrics.PeersConnected.Set(float64(cs.peers.Size()))
	switch kind {
	case GossipPublished:
		cs.log.Infow("received block published message", "sender", sender, "block_id", blockID)
	case GossipReceived:
		cs.log.Infow("received block received message", "sender", sender, "block_id", blockID)
		return cs.svc.SendTo(sender, GossipAck.String(), msg.Content)
	case GossipAck:
		cs.log.Infow("received ack message", "sender", sender, "block_id", blockID)
	}
	return nil
}

// startPublishCycle replaces the wait deadline and clears the published flag
func (cs *consensusState) startPublishCycle(chainHead types.BlockID) {
	wait := cs.waitPolicy.Compute(chainHead)
	if cs.timer == nil {
		cs.timer = NewPublishTimer(cs.now(), wait)
	} else {
		cs.timer.Reset(cs.now(), wait)
	}
	cs.published = false
	cs.metrics.observeWait(wait)
	cs.log.Debugw("publish cycle started", "chain_head", chainHead, "remaining", cs.timer.Remaining(cs.now()))
}

// maybePublish finalizes the pending block once the wait has expired, at most
// once per publish cycle
func (cs *consensusState) maybePublish(ctx context.Context) error {
	if cs.published || !cs.timer.Expired(cs.now()) {
		return nil
	}
	cs.log.Info("timer expired, publishing block")

	summary, err := cs.svc.SummarizeBlock(ctx)
	if err != nil {
		return err
	}
	blockID, err := cs.svc.FinalizeBlock(ctx, tag.Make(summary))
	if err != nil {
		return err
	}
	cs.published = true
	cs.metrics.BlocksPublished.Inc()

	return cs.svc.Broadcast(GossipPublished.String(), blockID)
}
