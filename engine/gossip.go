package engine

import "fmt"

// GossipKind identifies a devmode engine-to-engine message
type GossipKind uint8

const (
	// GossipPublished announces a block this engine just published
	GossipPublished GossipKind = iota + 1
	// GossipReceived tells a block's signer that the block arrived
	GossipReceived
	// GossipAck answers a received notice
	GossipAck
)

// Wire tags for each gossip kind
const (
	tagPublished = "published"
	tagReceived  = "received"
	tagAck       = "ack"
)

// ParseGossipKind parses a wire message type. Unknown types indicate a peer
// running a different protocol and are rejected.
func ParseGossipKind(messageType string) (GossipKind, error) {
	switch messageType {
	case tagPublished:
		return GossipPublished, nil
	case tagReceived:
		return GossipReceived, nil
	case tagAck:
		return GossipAck, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMessageType, messageType)
	}
}

// String returns the wire tag
func (k GossipKind) String() string {
	switch k {
	case GossipPublished:
		return tagPublished
	case GossipReceived:
		return tagReceived
	case GossipAck:
		return tagAck
	default:
		return fmt.Sprintf("gossip(%d)", uint8(k))
	}
}
