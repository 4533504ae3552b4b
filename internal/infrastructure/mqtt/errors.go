package mqtt

import (
	"errors"
	"fmt"
)

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when attempting operations on a disconnected session.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed is returned when a connection attempt fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrInvalidQoS is returned when an invalid QoS level is specified.
	// Valid QoS levels are 0, 1, or 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned when an empty or wildcard topic is provided.
	ErrInvalidTopic = errors.New("mqtt: invalid publish topic")
)

// ReturnCode is the outcome code of a publish request that the client
// library or broker completed without success.
type ReturnCode int

// Return codes surfaced by the transport.
const (
	CodeSuccess      ReturnCode = 0
	CodeNoConnection ReturnCode = 4
	CodeTimeout      ReturnCode = 7
)

func (c ReturnCode) String() string {
	switch c {
	case CodeSuccess:
		return "success"
	case CodeNoConnection:
		return "no connection"
	case CodeTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("code %d", int(c))
	}
}

// ReturnCodeError reports a publish that completed with a non-success code.
//
// It wraps ErrPublishFailed so callers that only care about failure can use
// errors.Is, while callers that want the code use errors.As.
type ReturnCodeError struct {
	Code ReturnCode
	Err  error
}

func (e *ReturnCodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mqtt: publish returned %s (%d): %v", e.Code, int(e.Code), e.Err)
	}
	return fmt.Sprintf("mqtt: publish returned %s (%d)", e.Code, int(e.Code))
}

// Unwrap exposes both the publish failure sentinel and the underlying cause.
func (e *ReturnCodeError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrPublishFailed, e.Err}
	}
	return []error{ErrPublishFailed}
}
