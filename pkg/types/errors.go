package types

import "errors"

var (
	ErrInvalidRoomID      = errors.New("room ID must be 1-100 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooLarge    = errors.New("message body exceeds 5000 characters")
	ErrEmptyMessage       = errors.New("message is empty and carries no attachment")
	ErrInvalidUserID      = errors.New("user ID must be positive")
)
