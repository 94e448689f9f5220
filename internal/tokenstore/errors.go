package tokenstore

import "errors"

var (
	ErrEmptyKey      = errors.New("token store key cannot be empty")
	ErrUnknownDriver = errors.New("unknown token store driver")
	ErrStoreClosed   = errors.New("token store is closed")
)
