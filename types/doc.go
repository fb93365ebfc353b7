// Package types defines the data exchanged between the devmode consensus engine
// and the validator that hosts it.
//
// # Core Types
//
// BlockID, PeerID: Opaque byte identifiers. BlockIDs have a total byte-lexicographic
// order used by fork choice to break ties between blocks at the same height.
//
// Block: A block as reported by the validator. The engine never builds or stores
// blocks itself; it refers to them by identifier and asks the validator for the rest.
//
// PeerMessage: A gossip message exchanged between engines on different validators.
// The content is always a block identifier.
//
// Update: The closed set of notifications the validator delivers on the update
// channel (peer connect/disconnect, peer message, new/valid/invalid/committed block,
// shutdown). Consumers switch on the concrete type.
//
// # Genesis
//
// The genesis block has NullBlockID (8 zero bytes) as its predecessor. Blocks that
// reference NullBlockID are never passed through the consensus check.
package types
