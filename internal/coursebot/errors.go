package coursebot

import "errors"

var (
	// ErrNotAuthorized is returned when the chat service rejects a privileged call.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrNoSuchEntity is returned for unknown channels, surveys, counters or memberships.
	ErrNoSuchEntity = errors.New("no such entity")
	// ErrInvalidArgument is returned for malformed filters and triggers.
	ErrInvalidArgument = errors.New("invalid argument")
)
