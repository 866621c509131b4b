package discord

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

var (
	// ErrUnavailable means no Discord IPC endpoint accepted a connection
	ErrUnavailable = errors.New("discord is not running")
	// ErrClosed is returned after Disconnect
	ErrClosed = errors.New("discord client is closed")
	// ErrUnexpectedResponse means Discord answered with something other than what was asked
	ErrUnexpectedResponse = errors.New("unexpected response from discord")
	// ErrClosedByRemote means Discord sent a close frame; the connection is gone
	ErrClosedByRemote = errors.New("discord closed the connection")
)

// Error is an error reported by Discord itself, either as an ERROR event
// or in a close frame.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("discord error %d: %s", e.Code, e.Message)
}

func decodeError(body []byte) error {
	var e Error
	if err := sonic.Unmarshal(body, &e); err != nil {
		return fmt.Errorf("%w: undecodable error payload: %v", ErrUnexpectedResponse, err)
	}
	return &e
}

// closedByRemote builds the error for a close frame. The decoded *Error stays
// reachable through errors.As.
func closedByRemote(body []byte) error {
	return fmt.Errorf("%w: %w", ErrClosedByRemote, decodeError(body))
}

// isRemoteError reports whether err came from Discord rather than the transport.
// Remote errors leave the connection usable; a close frame does not.
func isRemoteError(err error) bool {
	if errors.Is(err, ErrClosedByRemote) {
		return false
	}
	var e *Error
	return errors.As(err, &e)
}
