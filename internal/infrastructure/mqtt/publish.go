package mqtt

import (
	"fmt"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// Publish hands a message to the broker without waiting for acknowledgement.
//
// Errors paho reports immediately (for example a closed connection) are
// returned; a failure that surfaces after Publish has returned is logged.
//
// Parameters:
//   - topic: The topic to publish to (e.g., "ac/remote/command")
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message for new subscribers
//   - payload: The message payload (typically JSON, max 1MB)
//
// Returns:
//   - error: nil if the message was queued, or wrapped error describing the failure
func (t *Transport) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if err := validateTopic(topic); err != nil {
		return err
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %d bytes exceeds maximum %d", ErrPayloadTooLarge, len(payload), maxPayloadSize)
	}

	client, _, _ := t.active()
	if client == nil {
		return ErrNotConnected
	}

	token := client.Publish(topic, qos, retained, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("%w: %w", ErrPublishFailed, err)
		}
		return nil
	default:
	}

	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			if logger := t.getLogger(); logger != nil {
				logger.Warn("MQTT publish not acknowledged",
					"topic", topic,
					"error", err,
				)
			}
		}
	}()

	return nil
}
