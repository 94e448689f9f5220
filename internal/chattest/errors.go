package chattest

import "errors"

var (
	errSlowPeer      = errors.New("peer send buffer full")
	errNoSuchRoom    = errors.New("no members in room")
	errNotAuthorized = errors.New("unknown token")
)
