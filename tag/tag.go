// Package tag produces and checks the consensus payload attached to devmode blocks.
//
// The tag is the constant "Devmode" followed by the block summary. It is not a
// signature: anyone can forge it. It only keeps blocks built under a different
// consensus policy from being accepted into a devmode chain.
package tag

import (
	"bytes"

	"github.com/blockberries/devberry/types"
)

// Prefix is the identifier every devmode consensus payload starts with
const Prefix = "Devmode"

// Make builds the consensus payload for a block with the given summary
func Make(summary []byte) []byte {
	payload := make([]byte, 0, len(Prefix)+len(summary))
	payload = append(payload, Prefix...)
	return append(payload, summary...)
}

// Verify returns true if the block's payload matches the tag recomputed
// from its summary
func Verify(block types.Block) bool {
	return bytes.Equal(block.Payload, Make(block.Summary))
}
