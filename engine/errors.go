package engine

import "errors"

// Consensus errors
var (
	ErrInvalidConfig      = errors.New("invalid engine config")
	ErrAlreadyStarted     = errors.New("consensus already started")
	ErrNotStarted         = errors.New("consensus not started")
	ErrDisconnected       = errors.New("disconnected from validator")
	ErrUnknownMessageType = errors.New("unknown consensus message type")
	// The chain head's ancestry does not reach the height of a competing block
	ErrBrokenAncestry = errors.New("chain ancestry does not reach fork height")
)
