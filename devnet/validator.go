package devnet

import (
	"fmt"
	"maps"
	"sync"

	"go.uber.org/zap"

	"github.com/blockberries/devberry/service"
	"github.com/blockberries/devberry/types"
	"github.com/blockberries/devberry/wal"
)

// BlockStatus is the validator's view of a stored block
type BlockStatus uint8

const (
	StatusUnknown BlockStatus = iota
	// StatusReceived blocks were stored and announced with BlockNew
	StatusReceived
	// StatusValid blocks passed the consensus check and were validated
	StatusValid
	StatusInvalid
	StatusIgnored
	StatusCommitted
)

func (s BlockStatus) String() string {
	switch s {
	case StatusReceived:
		return "received"
	case StatusValid:
		return "valid"
	case StatusInvalid:
		return "invalid"
	case StatusIgnored:
		return "ignored"
	case StatusCommitted:
		return "committed"
	default:
		return "unknown"
	}
}

// Config configures an in-process validator
type Config struct {
	// LocalID identifies the validator on its network
	LocalID types.PeerID

	// Settings are returned by GetSettings for every block
	Settings map[string]string

	// Log persists stored blocks and commits. The validator starts from the
	// state it recovered. Nil keeps everything in memory.
	Log BlockLog
}

// BlockLog is durable storage for a validator's blocks and chain head
type BlockLog interface {
	Recovered() wal.State
	AppendBlock(block types.Block) error
	AppendCommit(id types.BlockID) error
}

// Envelope is a consensus message sent by the engine. To is nil for broadcasts.
type Envelope struct {
	To          types.PeerID
	MessageType string
	Payload     []byte
}

type pendingBlock struct {
	previous types.Block
	content  []byte
	summary  []byte
}

// Validator is an in-process validator implementing service.Service.
// It is safe for concurrent use.
type Validator struct {
	mu sync.Mutex

	id       types.PeerID
	settings map[string]string
	net      *Network
	store    BlockLog

	blocks  map[string]types.Block
	status  map[string]BlockStatus
	head    types.BlockID
	pending *pendingBlock
	batches uint64

	// Not-ready injection: number of calls to answer with ErrBlockNotReady
	notReadySummarize int
	notReadyFinalize  int

	sent    []Envelope
	updates *updateQueue

	log *zap.SugaredLogger
}

var _ service.Service = (*Validator)(nil)

// NewValidator creates a validator whose chain holds only the genesis block.
// A nil logger disables logging.
func NewValidator(cfg Config, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	genesis := Genesis()
	v := &Validator{
		id:       cfg.LocalID,
		settings: maps.Clone(cfg.Settings),
		store:    cfg.Log,
		blocks:   map[string]types.Block{string(genesis.ID): genesis},
		status:   map[string]BlockStatus{string(genesis.ID): StatusCommitted},
		head:     genesis.ID,
		updates:  newUpdateQueue(),
		log:      logger.Named("devnet").Sugar().With("node", cfg.LocalID),
	}
	if v.store != nil {
		v.restore(v.store.Recovered())
	}
	return v
}

// restore loads recovered blocks and marks the recovered chain committed
func (v *Validator) restore(state wal.State) {
	for _, b := range state.Blocks {
		v.blocks[string(b.ID)] = b
		v.status[string(b.ID)] = StatusReceived
	}
	if state.Head == nil {
		return
	}
	if _, ok := v.blocks[string(state.Head)]; !ok {
		v.log.Warnw("recovered head is not stored; starting from genesis", "head", state.Head)
		return
	}
	v.head = state.Head
	for id := v.head; !id.IsNull(); {
		b, ok := v.blocks[string(id)]
		if !ok {
			break
		}
		v.status[string(id)] = StatusCommitted
		id = b.PreviousID
	}
	v.log.Infow("restored chain", "blocks", len(state.Blocks), "head", v.blocks[string(v.head)])
}

// ID returns the validator's peer identifier
func (v *Validator) ID() types.PeerID {
	return v.id
}

// Updates returns the channel the engine consumes. It is closed by Close.
func (v *Validator) Updates() <-chan types.Update {
	return v.updates.out
}

// StartupState returns the state handed to an engine on registration
func (v *Validator) StartupState() types.StartupState {
	v.mu.Lock()
	head := v.blocks[string(v.head)]
	net := v.net
	v.mu.Unlock()

	var peers []types.PeerInfo
	if net != nil {
		for _, p := range net.peersOf(v.id) {
			peers = append(peers, types.PeerInfo{PeerID: p.id})
		}
	}
	return types.StartupState{
		ChainHead:     head,
		Peers:         peers,
		LocalPeerInfo: types.PeerInfo{PeerID: v.id},
	}
}

// Head returns the current chain head
func (v *Validator) Head() types.Block {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.blocks[string(v.head)]
}

// Block returns a stored block
func (v *Validator) Block(id types.BlockID) (types.Block, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	b, ok := v.blocks[string(id)]
	return b, ok
}

// Status returns the validator's view of a block
func (v *Validator) Status(id types.BlockID) BlockStatus {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status[string(id)]
}

// Chain returns the committed chain from genesis to the head
func (v *Validator) Chain() []types.Block {
	v.mu.Lock()
	defer v.mu.Unlock()

	var chain []types.Block
	for id := v.head; !id.IsNull(); {
		b, ok := v.blocks[string(id)]
		if !ok {
			break
		}
		chain = append(chain, b)
		id = b.PreviousID
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Envelopes returns every message the engine sent, in order
func (v *Validator) Envelopes() []Envelope {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Envelope(nil), v.sent...)
}

// SetNotReady makes the next summarize and finalize calls report
// ErrBlockNotReady the given number of times
func (v *Validator) SetNotReady(summarize, finalize int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notReadySummarize = summarize
	v.notReadyFinalize = finalize
}

// SubmitBlock stores a block produced elsewhere and announces it with
// BlockNew. Blocks already stored are ignored. The block's signer must be
// reachable through the network: once the block is valid the engine sends
// it a received notice, and a failed send stops the engine.
func (v *Validator) SubmitBlock(block types.Block) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	key := string(block.ID)
	if _, ok := v.blocks[key]; ok {
		return nil
	}
	if err := v.persistBlock(block); err != nil {
		return err
	}
	v.blocks[key] = block
	v.status[key] = StatusReceived
	v.log.Debugw("received block", "block", block)
	v.updates.push(types.BlockNew{Block: block})
	return nil
}

// persistBlock writes a block to the log. Caller must hold v.mu.
func (v *Validator) persistBlock(block types.Block) error {
	if v.store == nil {
		return nil
	}
	if err := v.store.AppendBlock(block); err != nil {
		return fmt.Errorf("failed to persist block %s: %w", block.ID, err)
	}
	return nil
}

// Shutdown asks the engine to stop
func (v *Validator) Shutdown() {
	v.updates.push(types.Shutdown{})
}

// Close closes the update channel. An engine still running sees a disconnect.
func (v *Validator) Close() {
	v.updates.close()
}

func (v *Validator) deliver(sender types.PeerID, messageType string, payload []byte) {
	v.updates.push(types.PeerMessageReceived{
		Message: types.PeerMessage{
			Header:  types.MessageHeader{MessageType: messageType, SignerID: sender},
			Content: append([]byte(nil), payload...),
		},
		SenderID: sender,
	})
}

func (v *Validator) connected(peer types.PeerID) {
	v.updates.push(types.PeerConnected{Peer: types.PeerInfo{PeerID: peer}})
}

func (v *Validator) network() *Network {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.net
}

// lookup returns a stored block. Caller must hold v.mu.
func (v *Validator) lookup(id types.BlockID) (types.Block, error) {
	b, ok := v.blocks[string(id)]
	if !ok {
		return types.Block{}, fmt.Errorf("%w: %s", service.ErrUnknownBlock, id)
	}
	return b, nil
}

// SendTo implements service.Service. Messages to the local peer are recorded
// but not delivered.
func (v *Validator) SendTo(peer types.PeerID, messageType string, payload []byte) error {
	var target *Validator
	if net := v.network(); net != nil && !peer.Equal(v.id) {
		target = net.lookup(peer)
	}
	if target == nil && !peer.Equal(v.id) {
		return fmt.Errorf("%w: %s", service.ErrUnknownPeer, peer)
	}

	v.mu.Lock()
	v.sent = append(v.sent, Envelope{To: peer, MessageType: messageType, Payload: payload})
	v.mu.Unlock()

	if target != nil {
		target.deliver(v.id, messageType, payload)
	}
	return nil
}

// Broadcast implements service.Service
func (v *Validator) Broadcast(messageType string, payload []byte) error {
	v.mu.Lock()
	v.sent = append(v.sent, Envelope{MessageType: messageType, Payload: payload})
	net := v.net
	v.mu.Unlock()

	if net != nil {
		for _, p := range net.peersOf(v.id) {
			p.deliver(v.id, messageType, payload)
		}
	}
	return nil
}

// InitializeBlock implements service.Service. A nil previousID builds on the
// current chain head.
func (v *Validator) InitializeBlock(previousID types.BlockID) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.pending != nil {
		return fmt.Errorf("%w: block already in progress", service.ErrInvalidState)
	}
	if previousID == nil {
		previousID = v.head
	}
	previous, err := v.lookup(previousID)
	if err != nil {
		return err
	}

	v.batches++
	content := fmt.Appendf(nil, "%s batch %d", v.id, v.batches)
	v.pending = &pendingBlock{
		previous: previous,
		content:  content,
		summary:  summarize(previous.ID, previous.BlockNum+1, content),
	}
	v.log.Debugw("initialized block", "previous", previous)
	return nil
}

// SummarizeBlock implements service.Service
func (v *Validator) SummarizeBlock() ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.pending == nil {
		return nil, fmt.Errorf("%w: no block in progress", service.ErrInvalidState)
	}
	if v.notReadySummarize > 0 {
		v.notReadySummarize--
		return nil, service.ErrBlockNotReady
	}
	return append([]byte(nil), v.pending.summary...), nil
}

// FinalizeBlock implements service.Service. The finalized block is announced
// locally with BlockNew and relayed to every peer on the network.
func (v *Validator) FinalizeBlock(data []byte) (types.BlockID, error) {
	v.mu.Lock()
	if v.pending == nil {
		v.mu.Unlock()
		return nil, fmt.Errorf("%w: no block in progress", service.ErrInvalidState)
	}
	if v.notReadyFinalize > 0 {
		v.notReadyFinalize--
		v.mu.Unlock()
		return nil, service.ErrBlockNotReady
	}

	p := v.pending
	num := p.previous.BlockNum + 1
	payload := append([]byte(nil), data...)
	block := types.Block{
		ID:         blockID(p.previous.ID, num, p.summary, payload),
		PreviousID: p.previous.ID,
		SignerID:   v.id,
		BlockNum:   num,
		Payload:    payload,
		Summary:    p.summary,
		Content:    p.content,
	}
	if err := v.persistBlock(block); err != nil {
		v.mu.Unlock()
		return nil, err
	}
	v.pending = nil
	v.blocks[string(block.ID)] = block
	v.status[string(block.ID)] = StatusReceived
	v.updates.push(types.BlockNew{Block: block})
	net := v.net
	v.mu.Unlock()

	v.log.Infow("finalized block", "block", block)

	if net != nil {
		for _, p := range net.peersOf(v.id) {
			if err := p.SubmitBlock(block); err != nil {
				v.log.Warnw("failed to relay block", "peer", p.id, "block", block, "err", err)
			}
		}
	}
	return block.ID, nil
}

// CancelBlock implements service.Service
func (v *Validator) CancelBlock() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.pending == nil {
		return fmt.Errorf("%w: no block in progress", service.ErrInvalidState)
	}
	v.pending = nil
	return nil
}

// CheckBlocks implements service.Service. Every block passes validation.
func (v *Validator) CheckBlocks(priority []types.BlockID) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, id := range priority {
		if _, err := v.lookup(id); err != nil {
			return err
		}
	}
	for _, id := range priority {
		v.status[string(id)] = StatusValid
		v.updates.push(types.BlockValid{BlockID: id})
	}
	return nil
}

// CommitBlock implements service.Service
func (v *Validator) CommitBlock(blockID types.BlockID) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	block, err := v.lookup(blockID)
	if err != nil {
		return err
	}
	if v.store != nil {
		if err := v.store.AppendCommit(block.ID); err != nil {
			return fmt.Errorf("failed to persist commit of %s: %w", block.ID, err)
		}
	}
	v.head = block.ID
	v.status[string(block.ID)] = StatusCommitted
	v.log.Infow("committed block", "block", block)
	v.updates.push(types.BlockCommit{BlockID: block.ID})
	return nil
}

// IgnoreBlock implements service.Service
func (v *Validator) IgnoreBlock(blockID types.BlockID) error {
	return v.setStatus(blockID, StatusIgnored)
}

// FailBlock implements service.Service
func (v *Validator) FailBlock(blockID types.BlockID) error {
	if err := v.setStatus(blockID, StatusInvalid); err != nil {
		return err
	}
	v.updates.push(types.BlockInvalid{BlockID: blockID})
	return nil
}

func (v *Validator) setStatus(id types.BlockID, status BlockStatus) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, err := v.lookup(id); err != nil {
		return err
	}
	v.status[string(id)] = status
	return nil
}

// GetBlocks implements service.Service
func (v *Validator) GetBlocks(ids []types.BlockID) ([]types.Block, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	blocks := make([]types.Block, 0, len(ids))
	for _, id := range ids {
		b, err := v.lookup(id)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// GetChainHead implements service.Service
func (v *Validator) GetChainHead() (types.Block, error) {
	return v.Head(), nil
}

// GetSettings implements service.Service. Keys without a value are omitted.
func (v *Validator) GetSettings(blockID types.BlockID, keys []string) (map[string]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, err := v.lookup(blockID); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if val, ok := v.settings[k]; ok {
			out[k] = val
		}
	}
	return out, nil
}
