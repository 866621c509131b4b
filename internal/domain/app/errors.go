package app

import (
	"errors"
	"fmt"

	"github.com/cubiclauncher/kepler/internal/shared/types"
)

var (
	ErrEmptyVersion           = errors.New("version string cannot be empty")
	ErrInvalidVersionFormat   = errors.New("invalid version format")
	ErrInvalidState           = errors.New("application is in an invalid state")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrPresence               = errors.New("presence client error")
)

// VersionFormatError reports a version that is too long or has forbidden characters
type VersionFormatError struct {
	Reason string
}

func (e *VersionFormatError) Error() string {
	return fmt.Sprintf("invalid version format: %s", e.Reason)
}

func (e *VersionFormatError) Is(target error) bool {
	return target == ErrInvalidVersionFormat
}

// InvalidStateError is returned by Validate when the manager's invariant is broken
type InvalidStateError struct {
	Reason string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("application is in an invalid state: %s", e.Reason)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

// StateTransitionError is reserved for transitions the manager refuses.
// Idle and Playing are currently reachable from each other, so nothing returns it.
type StateTransitionError struct {
	From types.Activity
	To   types.Activity
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

func (e *StateTransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}

// PresenceError wraps a failure returned by the presence client
type PresenceError struct {
	Op  string // "set_activity" or "disconnect"
	Err error
}

func (e *PresenceError) Error() string {
	return fmt.Sprintf("presence client error: %s: %v", e.Op, e.Err)
}

func (e *PresenceError) Unwrap() error {
	return e.Err
}

func (e *PresenceError) Is(target error) bool {
	return target == ErrPresence
}
