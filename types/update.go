package types

// MessageHeader carries the routing metadata of a peer message
type MessageHeader struct {
	// MessageType is the wire tag chosen by the sending engine
	MessageType string
	SignerID    PeerID
}

// PeerMessage is an engine-to-engine message relayed by the validator
type PeerMessage struct {
	Header  MessageHeader
	Content []byte
}

// Update is a notification delivered by the validator to the engine.
// The set of updates is closed; see the variants below.
type Update interface {
	// Kind returns the update name used in logs
	Kind() string

	isUpdate()
}

// PeerConnected reports a newly connected peer
type PeerConnected struct {
	Peer PeerInfo
}

// PeerDisconnected reports a peer that went away
type PeerDisconnected struct {
	PeerID PeerID
}

// PeerMessageReceived delivers a message sent by another engine
type PeerMessageReceived struct {
	Message  PeerMessage
	SenderID PeerID
}

// BlockNew reports a block that needs a consensus check
type BlockNew struct {
	Block Block
}

// BlockValid reports a block that passed validation
type BlockValid struct {
	BlockID BlockID
}

// BlockInvalid reports a block that failed validation
type BlockInvalid struct {
	BlockID BlockID
}

// BlockCommit reports that the chain head changed
type BlockCommit struct {
	BlockID BlockID
}

// Shutdown asks the engine to stop
type Shutdown struct{}

func (PeerConnected) Kind() string       { return "PeerConnected" }
func (PeerDisconnected) Kind() string    { return "PeerDisconnected" }
func (PeerMessageReceived) Kind() string { return "PeerMessage" }
func (BlockNew) Kind() string            { return "BlockNew" }
func (BlockValid) Kind() string          { return "BlockValid" }
func (BlockInvalid) Kind() string        { return "BlockInvalid" }
func (BlockCommit) Kind() string         { return "BlockCommit" }
func (Shutdown) Kind() string            { return "Shutdown" }

func (PeerConnected) isUpdate()       {}
func (PeerDisconnected) isUpdate()    {}
func (PeerMessageReceived) isUpdate() {}
func (BlockNew) isUpdate()            {}
func (BlockValid) isUpdate()          {}
func (BlockInvalid) isUpdate()        {}
func (BlockCommit) isUpdate()         {}
func (Shutdown) isUpdate()            {}
