package delay

import (
	"context"
	"errors"
	"fmt"

	"github.com/bhandras/delaydeck/internal/obsws"
)

var (
	// ErrNotConnected is returned when an operation needs a connected
	// session.
	ErrNotConnected = errors.New("not connected to the switcher")

	// ErrAlreadyActive is returned by Activate when the delay is already
	// active (or activating) and the reentry policy rejects it.
	ErrAlreadyActive = errors.New("delay already active")

	// ErrCallTimeout marks a remote call that exceeded the per-call timeout.
	ErrCallTimeout = errors.New("remote call timed out")

	// ErrInvalidDelay is returned for a delay outside [5, 300] seconds or not
	// a multiple of 5.
	ErrInvalidDelay = errors.New("invalid delay")
)

// ConnectErrorKind classifies why a connection attempt failed.
type ConnectErrorKind int

const (
	// ConnectNetwork covers unreachable hosts, refused connections and
	// broken handshakes.
	ConnectNetwork ConnectErrorKind = iota
	// ConnectAuthFailed means the password was missing or wrong.
	ConnectAuthFailed
	// ConnectVersionMismatch means the server cannot speak our RPC version.
	ConnectVersionMismatch
)

// String implements fmt.Stringer.
func (k ConnectErrorKind) String() string {
	switch k {
	case ConnectNetwork:
		return "network"
	case ConnectAuthFailed:
		return "auth failed"
	case ConnectVersionMismatch:
		return "version mismatch"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ConnectError is returned by ConnectionManager.Connect.
type ConnectError struct {
	Kind ConnectErrorKind
	Err  error
}

// Error implements error.
func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect (%s): %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectError) Unwrap() error { return e.Err }

func classifyConnectError(err error) *ConnectError {
	switch {
	case errors.Is(err, obsws.ErrAuthFailed):
		return &ConnectError{Kind: ConnectAuthFailed, Err: err}
	case errors.Is(err, obsws.ErrUnsupportedRPCVersion):
		return &ConnectError{Kind: ConnectVersionMismatch, Err: err}
	default:
		return &ConnectError{Kind: ConnectNetwork, Err: err}
	}
}

// RemoteCallError wraps any failure of a single remote operation.
type RemoteCallError struct {
	Op      string
	Err     error
	Timeout bool
}

// Error implements error.
func (e *RemoteCallError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: %v: %v", e.Op, ErrCallTimeout, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *RemoteCallError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrCallTimeout) match timed-out calls.
func (e *RemoteCallError) Is(target error) bool {
	return target == ErrCallTimeout && e.Timeout
}

func newRemoteCallError(op string, err error) *RemoteCallError {
	timeout := errors.Is(err, obsws.ErrRequestTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
	return &RemoteCallError{Op: op, Err: err, Timeout: timeout}
}
