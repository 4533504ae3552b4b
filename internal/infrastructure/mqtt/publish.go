package mqtt

import (
	"fmt"
	"strings"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// Publish sends a message to the specified MQTT topic.
//
// Parameters:
//   - topic: The topic to publish to (no wildcards)
//   - payload: The message payload (max 1MB)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message for new subscribers
//
// Returns:
//   - nil when the publish was acknowledged
//   - *ReturnCodeError when it completed with a non-success code
//   - an error wrapping ErrPublishFailed for anything else, including a
//     panic inside the transport
func (s *Session) Publish(topic string, payload []byte, qos byte, retained bool) (err error) {
	if topic == "" || strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !s.IsConnected() {
		return &ReturnCodeError{Code: CodeNoConnection, Err: ErrNotConnected}
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: transport panic: %v", ErrPublishFailed, r)
		}
	}()

	return s.transport.Publish(topic, qos, retained, payload)
}
