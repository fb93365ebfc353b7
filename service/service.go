package service

import (
	"errors"

	"github.com/blockberries/devberry/types"
)

// Service errors
var (
	// ErrBlockNotReady is returned by SummarizeBlock and FinalizeBlock while the
	// validator is still executing the pending block. It is the only retryable error.
	ErrBlockNotReady = errors.New("block not ready")

	// ErrInvalidState is returned when an operation does not apply to the
	// current pending-block state (e.g. cancel with nothing in progress)
	ErrInvalidState = errors.New("invalid state")

	// ErrUnknownBlock is returned when a block identifier is not known to the validator
	ErrUnknownBlock = errors.New("unknown block")

	// ErrUnknownPeer is returned when a message is addressed to an unknown peer
	ErrUnknownPeer = errors.New("unknown peer")
)

// Service is the set of operations the validator offers to a consensus engine
type Service interface {
	// SendTo sends a consensus message to a single peer
	SendTo(peer types.PeerID, messageType string, payload []byte) error

	// Broadcast sends a consensus message to all peers
	Broadcast(messageType string, payload []byte) error

	// InitializeBlock starts building a block on top of previousID,
	// or on top of the current chain head when previousID is nil
	InitializeBlock(previousID types.BlockID) error

	// SummarizeBlock returns the digest of the pending block
	SummarizeBlock() ([]byte, error)

	// FinalizeBlock seals the pending block with the given consensus payload
	// and returns its identifier
	FinalizeBlock(data []byte) (types.BlockID, error)

	// CancelBlock abandons the pending block
	CancelBlock() error

	// CheckBlocks forwards blocks for validation, in priority order
	CheckBlocks(priority []types.BlockID) error

	// CommitBlock makes the block the new chain head
	CommitBlock(blockID types.BlockID) error

	// IgnoreBlock drops a valid block that will not be committed
	IgnoreBlock(blockID types.BlockID) error

	// FailBlock marks a block as invalid
	FailBlock(blockID types.BlockID) error

	// GetBlocks returns the requested blocks
	GetBlocks(blockIDs []types.BlockID) ([]types.Block, error)

	// GetChainHead returns the current chain head
	GetChainHead() (types.Block, error)

	// GetSettings reads on-chain settings as of the given block
	GetSettings(blockID types.BlockID, keys []string) (map[string]string, error)
}
