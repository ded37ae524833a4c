package server

import "errors"

// Registry failure taxonomy. Every one of these is requester-scoped: it is
// converted to a room error event for the offending connection and never
// broadcast or surfaced to other users.
var (
	ErrInvalidRoomName = errors.New("room name must be between 2 and 30 characters")
	ErrDuplicateRoom   = errors.New("room already exists")
	ErrRoomCapacity    = errors.New("room limit reached")
	ErrRoomNotFound    = errors.New("room not found")
	ErrWrongPassword   = errors.New("wrong room password")
	ErrRoomFull        = errors.New("room is full")
	ErrNotMember       = errors.New("not a member of room")
	ErrNotInRoom       = errors.New("message sent to a room the connection has not joined")
	ErrRateLimited     = errors.New("message rate limit exceeded")
	ErrInvalidIdentity = errors.New("invalid user identity")
)
