package ack

import "errors"

var (
	ErrAckTimeout = errors.New("Message sending timeout - please check your connection")
	ErrSendFailed = errors.New("Failed to send message")
	ErrDropped    = errors.New("pending send dropped on disconnect")
)
