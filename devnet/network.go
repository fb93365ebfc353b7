package devnet

import (
	"errors"
	"sync"

	"github.com/blockberries/devberry/types"
)

// ErrAlreadyJoined is returned when a validator joins a network twice or its
// identifier is taken
var ErrAlreadyJoined = errors.New("validator already joined")

// Network connects in-process validators. Finalized blocks are relayed to
// every other member and gossip is delivered as PeerMessageReceived updates.
type Network struct {
	mu    sync.RWMutex
	nodes []*Validator
}

// NewNetwork creates an empty network
func NewNetwork() *Network {
	return &Network{}
}

// Join adds v to the network. v and the existing members are told about
// each other with PeerConnected updates.
func (n *Network) Join(v *Validator) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, node := range n.nodes {
		if node == v || node.id.Equal(v.id) {
			return ErrAlreadyJoined
		}
	}

	v.mu.Lock()
	if v.net != nil {
		v.mu.Unlock()
		return ErrAlreadyJoined
	}
	v.net = n
	v.mu.Unlock()

	for _, node := range n.nodes {
		node.connected(v.id)
		v.connected(node.id)
	}
	n.nodes = append(n.nodes, v)
	return nil
}

// Validators returns the members in join order
func (n *Network) Validators() []*Validator {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]*Validator(nil), n.nodes...)
}

func (n *Network) lookup(id types.PeerID) *Validator {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, node := range n.nodes {
		if node.id.Equal(id) {
			return node
		}
	}
	return nil
}

// peersOf returns every member except the one with the given identifier
func (n *Network) peersOf(id types.PeerID) []*Validator {
	n.mu.RLock()
	defer n.mu.RUnlock()
	peers := make([]*Validator, 0, len(n.nodes))
	for _, node := range n.nodes {
		if !node.id.Equal(id) {
			peers = append(peers, node)
		}
	}
	return peers
}
