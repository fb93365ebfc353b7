package devnet

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"

	"github.com/blockberries/devberry/types"
)

var genesisSeed = []byte("devberry genesis")

// Genesis returns the genesis block shared by every devnet validator
func Genesis() types.Block {
	id := blake2b.Sum256(genesisSeed)
	return types.Block{
		ID:         types.NewBlockID(id[:]),
		PreviousID: types.NullBlockID,
		BlockNum:   0,
	}
}

// summarize digests the pending block's position and content
func summarize(previousID types.BlockID, blockNum uint64, content []byte) []byte {
	h, _ := blake2b.New256(nil)
	h.Write(previousID)
	h.Write(binary.BigEndian.AppendUint64(nil, blockNum))
	h.Write(content)
	return h.Sum(nil)
}

// blockID derives a block identifier from everything the block commits to
func blockID(previousID types.BlockID, blockNum uint64, summary, payload []byte) types.BlockID {
	h, _ := blake2b.New256(nil)
	h.Write(previousID)
	h.Write(binary.BigEndian.AppendUint64(nil, blockNum))
	h.Write(summary)
	h.Write(payload)
	return types.BlockID(h.Sum(nil))
}
