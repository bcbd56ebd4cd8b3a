package mqtt

import (
	"errors"
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Gowrisankar10354/ac-remote-final/internal/link"
)

// subackFailure is the SUBACK return code for a refused subscription.
const subackFailure = 0x80

var errSubscriptionRefused = errors.New("broker refused subscription")

// Subscribe requests delivery of topic to the session's OnMessage handler.
//
// Messages are delivered in broker order on paho's router goroutine.
// A refusal by the broker is reported via OnSubscribeFailure.
//
// Parameters:
//   - topic: The topic to subscribe to
//   - qos: Maximum QoS level for received messages (0, 1, or 2)
//
// Returns:
//   - error: If the arguments are invalid or there is no session
func (t *Transport) Subscribe(topic string, qos byte) error {
	if err := validateTopic(topic); err != nil {
		return err
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}

	client, session, handlers := t.active()
	if client == nil {
		return ErrNotConnected
	}

	token := client.Subscribe(topic, qos, t.wrapHandler(session, handlers))
	go func() {
		<-token.Done()
		err := token.Error()
		if err == nil {
			if st, ok := token.(*pahomqtt.SubscribeToken); ok {
				if code, found := st.Result()[topic]; found && code == subackFailure {
					err = errSubscriptionRefused
				}
			}
		}
		if err == nil || !t.current(session) {
			return
		}
		handlers.OnSubscribeFailure(topic, fmt.Errorf("%w: %w", ErrSubscribeFailed, err))
	}()

	return nil
}

// Unsubscribe stops delivery for topic. Failures are logged, not returned,
// since the session is usually about to close.
//
// Returns:
//   - error: If the topic is invalid or there is no session
func (t *Transport) Unsubscribe(topic string) error {
	if err := validateTopic(topic); err != nil {
		return err
	}

	client, _, _ := t.active()
	if client == nil {
		return ErrNotConnected
	}

	token := client.Unsubscribe(topic)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			if logger := t.getLogger(); logger != nil {
				logger.Warn("MQTT unsubscribe failed",
					"topic", topic,
					"error", fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err),
				)
			}
		}
	}()

	return nil
}

// wrapHandler adapts the session's handlers to a paho callback with panic
// recovery. Messages for a superseded session are dropped.
func (t *Transport) wrapHandler(session uint64, handlers link.Handlers) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := t.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if !t.current(session) {
			return
		}
		handlers.OnMessage(msg.Topic(), msg.Payload())
	}
}
