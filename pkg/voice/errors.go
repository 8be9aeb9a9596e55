package voice

import (
	"errors"
	"fmt"
)

// Sentinel errors for the voice package.
var (
	// ErrNotConnected indicates the session is not open; frames sent
	// in this state are dropped.
	ErrNotConnected = errors.New("voice: session not connected")

	// ErrAlreadyStarted indicates Start was called on a live session.
	ErrAlreadyStarted = errors.New("voice: session already started")

	// ErrMissingCredentials indicates neither an API key nor a token
	// endpoint was configured.
	ErrMissingCredentials = errors.New("voice: API key or token URL required")
)

// AuthError indicates the backend rejected the credential.
type AuthError struct {
	// StatusCode is the HTTP status code, if applicable.
	StatusCode int

	// Cause is the underlying error.
	Cause error
}

func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("voice: authentication failed: %v", e.Cause)
	}
	return fmt.Sprintf("voice: authentication failed (HTTP %d)", e.StatusCode)
}

func (e *AuthError) Unwrap() error { return e.Cause }

// NetworkError indicates the backend could not be reached.
type NetworkError struct {
	Cause error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("voice: network error: %v", e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// ProtocolError indicates the backend rejected the session
// configuration or sent an unusable message.
type ProtocolError struct {
	Reason string
	Cause  error
}

func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("voice: protocol error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("voice: protocol error: %s", e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Cause }

// IsAuth returns true if the error is an authentication failure.
func IsAuth(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsNetwork returns true if the error is a connectivity failure.
func IsNetwork(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsProtocol returns true if the error is a protocol-level failure.
func IsProtocol(err error) bool {
	var protoErr *ProtocolError
	return errors.As(err, &protoErr)
}
