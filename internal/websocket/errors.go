package websocket

import "errors"

// Connection-related errors
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrWriteTimeout     = errors.New("write timeout")
	ErrInvalidJSON      = errors.New("invalid JSON data")
)

// Session errors. Their text is what chat screens show.
var (
	ErrNotConnected     = errors.New("Not connected to chat server")
	ErrConnectionFailed = errors.New("Connection failed")
	ErrAuthFailed       = errors.New("Authentication failed")
)
