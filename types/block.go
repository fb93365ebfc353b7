package types

import "fmt"

// Block is a block as reported by the validator.
// Blocks are immutable once observed; the engine refers to them by ID.
type Block struct {
	ID         BlockID
	PreviousID BlockID
	SignerID   PeerID
	BlockNum   uint64

	// Payload holds the consensus tag attached by the publishing engine
	Payload []byte

	// Summary is the digest of the block contents
	Summary []byte

	Content []byte
}

// IsGenesisChild reports whether the block references the null identifier
// as its predecessor. Such blocks are never checked by consensus.
func (b Block) IsGenesisChild() bool {
	return b.PreviousID.IsNull()
}

// String renders the block number and identifiers for logging
func (b Block) String() string {
	return fmt.Sprintf("Block(%d, id: %s, prev: %s)", b.BlockNum, b.ID, b.PreviousID)
}

// PeerInfo describes a connected peer
type PeerInfo struct {
	PeerID PeerID
}

// StartupState is handed to the engine when it registers with the validator
type StartupState struct {
	ChainHead     Block
	Peers         []PeerInfo
	LocalPeerInfo PeerInfo
}
