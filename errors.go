package rews

import (
	"errors"
	"fmt"
)

var (
	// ErrReleased is returned by every operation after Release.
	ErrReleased = errors.New("rews: client resources released")
	// ErrInvalidConfiguration is returned for invalid builder settings.
	ErrInvalidConfiguration = errors.New("rews: invalid configuration")
	// ErrNotConnected is returned when sending without a live session.
	ErrNotConnected = errors.New("rews: websocket client is not connected")
	// ErrSendFailed is returned when the transport rejects a binary send.
	ErrSendFailed = errors.New("rews: send rejected by transport")
)

// TransportError wraps a failure reported by a transport. Session failures are
// delivered through Observer.OnFailure; Connect only returns one when the
// transport refuses to start a session.
type TransportError struct {
	Op  string // Operation that failed, e.g. "dial", "read", "write", "ping".
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("rews: transport %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError wraps err as a *TransportError unless it already is one.
func NewTransportError(op string, err error) error {
	if err == nil {
		return nil
	}

	var te *TransportError
	if errors.As(err, &te) {
		return err
	}

	return &TransportError{Op: op, Err: err}
}
