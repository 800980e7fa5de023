package agent

import "errors"

var (
	// ErrUnknownKind is returned by Create for an unregistered agent kind.
	ErrUnknownKind = errors.New("agent kind not registered")

	// ErrInvalidRole is returned when appending a message with an unknown role.
	ErrInvalidRole = errors.New("invalid message role")

	// ErrDuplicateSystem is returned when a second system message is appended.
	ErrDuplicateSystem = errors.New("conversation already has a system message")

	// ErrStopped is the captured error of a run interrupted by Stop.
	ErrStopped = errors.New("agent stopped")

	// ErrInvalidConfig wraps agent construction failures.
	ErrInvalidConfig = errors.New("invalid agent config")
)
