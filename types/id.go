package types

import (
	"bytes"
	"encoding/hex"
)

// NullBlockIDSize is the length of the null block identifier
const NullBlockIDSize = 8

// NullBlockID is the predecessor identifier carried by the genesis block.
// Blocks that reference it are never standard blocks.
var NullBlockID = BlockID(make([]byte, NullBlockIDSize))

// BlockID is an opaque, globally unique block identifier
type BlockID []byte

// NewBlockID creates a BlockID from bytes.
// Copies input data so the caller can reuse its buffer.
func NewBlockID(data []byte) BlockID {
	if data == nil {
		return nil
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	return BlockID(copied)
}

// Equal compares two block identifiers
func (id BlockID) Equal(other BlockID) bool {
	return bytes.Equal(id, other)
}

// Compare orders block identifiers byte-lexicographically.
// Returns -1, 0 or +1.
func (id BlockID) Compare(other BlockID) int {
	return bytes.Compare(id, other)
}

// IsNull returns true if the identifier is the null block identifier
func (id BlockID) IsNull() bool {
	return bytes.Equal(id, NullBlockID)
}

// String returns the hex-encoded identifier
func (id BlockID) String() string {
	return hex.EncodeToString(id)
}

// PeerID identifies a peer (validator) on the network
type PeerID []byte

// Equal compares two peer identifiers
func (id PeerID) Equal(other PeerID) bool {
	return bytes.Equal(id, other)
}

// String returns the hex-encoded identifier
func (id PeerID) String() string {
	return hex.EncodeToString(id)
}
