package engine

import (
	"time"

	"github.com/blockberries/devberry/types"
)

// PeerState tracks what the engine has heard from one peer
type PeerState struct {
	PeerID      types.PeerID
	ConnectedAt time.Time
	LastSeen    time.Time

	// LastPublished is the last block the peer announced
	LastPublished types.BlockID
	Messages      map[GossipKind]uint64
}

// PeerSet tracks connected peers. It is owned by the engine loop and is not
// safe for concurrent use.
type PeerSet struct {
	peers map[string]*PeerState
}

// NewPeerSet creates an empty peer set
func NewPeerSet() *PeerSet {
	return &PeerSet{peers: make(map[string]*PeerState)}
}

// AddPeer records a connected peer. Adding a known peer keeps its history.
func (ps *PeerSet) AddPeer(id types.PeerID, now time.Time) *PeerState {
	key := string(id)
	if p, ok := ps.peers[key]; ok {
		return p
	}
	p := &PeerState{
		PeerID:      types.PeerID(append([]byte(nil), id...)),
		ConnectedAt: now,
		LastSeen:    now,
		Messages:    make(map[GossipKind]uint64),
	}
	ps.peers[key] = p
	return p
}

// RemovePeer forgets a peer
func (ps *PeerSet) RemovePeer(id types.PeerID) {
	delete(ps.peers, string(id))
}

// GetPeer returns the peer's state, or nil if it is not connected
func (ps *PeerSet) GetPeer(id types.PeerID) *PeerState {
	return ps.peers[string(id)]
}

// Size returns the number of connected peers
func (ps *PeerSet) Size() int {
	return len(ps.peers)
}

// ApplyMessage records a gossip message. Messages from unknown senders add
// the sender, since the validator may deliver gossip before the connect
// notification.
func (ps *PeerSet) ApplyMessage(sender types.PeerID, kind GossipKind, blockID types.BlockID, now time.Time) {
	p := ps.AddPeer(sender, now)
	p.LastSeen = now
	p.Messages[kind]++
	if kind == GossipPublished {
		p.LastPublished = types.NewBlockID(blockID)
	}
}
