package coordinator

import "errors"

var (
	ErrDisposed     = errors.New("coordinator disposed")
	ErrEmptyMessage = errors.New("Cannot send empty message")
	ErrNotConnected = errors.New("Not connected to chat server")
	ErrNoActiveRoom = errors.New("no active room")
)
