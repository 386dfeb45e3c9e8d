package obsws

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned when a request cannot complete because the
	// connection has been closed.
	ErrClosed = errors.New("obs-websocket connection closed")

	// ErrAuthFailed is returned when the server rejects (or requires) a
	// password.
	ErrAuthFailed = errors.New("obs-websocket authentication failed")

	// ErrUnsupportedRPCVersion is returned when the server cannot speak
	// RPCVersion.
	ErrUnsupportedRPCVersion = errors.New("obs-websocket rpc version not supported")

	// ErrRequestTimeout is returned when a request gets no response within the
	// per-request timeout.
	ErrRequestTimeout = errors.New("obs-websocket request timed out")

	// ErrHandshake is returned when the server sends an unexpected frame while
	// the session is being identified.
	ErrHandshake = errors.New("obs-websocket handshake failed")
)

// RequestError is a request the server answered with requestStatus.result=false.
type RequestError struct {
	RequestType string
	Code        int
	Comment     string
}

// Error implements error.
func (e *RequestError) Error() string {
	if e.Comment == "" {
		return fmt.Sprintf("%s failed with status %d", e.RequestType, e.Code)
	}
	return fmt.Sprintf("%s failed with status %d: %s", e.RequestType, e.Code, e.Comment)
}
