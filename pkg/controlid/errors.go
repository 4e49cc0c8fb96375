package controlid

import (
	"fmt"

	"github.com/pkg/errors"
)

// AuthenticationError is returned when a device rejects the stored credentials.
type AuthenticationError struct {
	DeviceID string
	Message  string
}

func NewAuthenticationError(deviceID, message string) error {
	return &AuthenticationError{
		DeviceID: deviceID,
		Message:  message,
	}
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: device: %s: %s", e.DeviceID, e.Message)
}

func IsAuthenticationError(e error) bool {
	_, ok := errors.Cause(e).(*AuthenticationError)
	return ok
}

// SessionExpiredError is returned when a device no longer accepts a session token.
type SessionExpiredError struct {
	DeviceID string
}

func NewSessionExpiredError(deviceID string) error {
	return &SessionExpiredError{
		DeviceID: deviceID,
	}
}

func (e *SessionExpiredError) Error() string {
	return fmt.Sprintf("session expired: device: %s", e.DeviceID)
}

func IsSessionExpiredError(e error) bool {
	_, ok := errors.Cause(e).(*SessionExpiredError)
	return ok
}

// NetworkError covers transport failures, timeouts and server side errors.
// They are considered transient.
type NetworkError struct {
	DeviceID string
	Err      error
}

func NewNetworkError(deviceID string, err error) error {
	return &NetworkError{
		DeviceID: deviceID,
		Err:      err,
	}
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: device: %s: %v", e.DeviceID, e.Err)
}

func IsNetworkError(e error) bool {
	_, ok := errors.Cause(e).(*NetworkError)
	return ok
}

// ProtocolError is returned when a device answers with something that cannot
// be understood. Payload holds the raw response.
type ProtocolError struct {
	DeviceID string
	Message  string
	Payload  []byte
}

func NewProtocolError(deviceID, message string, payload []byte) error {
	return &ProtocolError{
		DeviceID: deviceID,
		Message:  message,
		Payload:  payload,
	}
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: device: %s: %s", e.DeviceID, e.Message)
}

func IsProtocolError(e error) bool {
	_, ok := errors.Cause(e).(*ProtocolError)
	return ok
}
