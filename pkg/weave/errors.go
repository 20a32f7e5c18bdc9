package weave

import (
	"errors"
	"fmt"
	"strings"

	"github.com/weavelabs/weave-go/pkg/wire"
)

// ErrConnectionLost rejects every pending request when a Ready session's
// transport closes. A later Connect can re-establish the session.
var ErrConnectionLost = errors.New("weave: connection lost")

// ConnectionError reports a transport failure before the session reached
// Ready. Authenticated distinguishes a failure during the initial dial from
// one after the handshake was already accepted.
type ConnectionError struct {
	Authenticated bool
	Err           error
}

func (e *ConnectionError) Error() string {
	if e.Authenticated {
		return fmt.Sprintf("weave: connection failed after authentication: %v", e.Err)
	}
	return fmt.Sprintf("weave: connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthenticationError reports an explicit handshake rejection. Message is
// mapped from the service's error code to something a user can act on.
type AuthenticationError struct {
	Code    string
	Message string
}

func (e *AuthenticationError) Error() string {
	return "weave: authentication failed: " + e.Message
}

// ProtocolError reports a frame that could not be decoded. Malformed frames
// are dropped and logged; this error never fails a call.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("weave: malformed frame: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// RemoteExecutionError carries the error string a remote command handler or
// workflow produced. It is always a plain message, never a structured error
// from the far side.
type RemoteExecutionError struct {
	Message string
}

func (e *RemoteExecutionError) Error() string {
	return "weave: remote execution failed: " + e.Message
}

// authError maps a rejected handshake to a descriptive AuthenticationError.
func authError(hr wire.HandshakeResponse) *AuthenticationError {
	msg := hr.Message
	switch hr.ErrorCode {
	case wire.ErrCodeInvalidAPIKey:
		msg = "the API key is invalid or has expired; generate a new key and retry"
	case wire.ErrCodeWorldNotFound, wire.ErrCodeWorldNotFoundHandshake:
		msg = "the requested world does not exist; check the worldId"
	default:
		if strings.Contains(hr.Message, "Actors require a worldId") {
			msg = "joining as an actor requires a worldId"
		} else if msg == "" {
			msg = "the service rejected the handshake"
		}
	}
	return &AuthenticationError{Code: hr.ErrorCode, Message: msg}
}
