package link

// Transport is the publish/subscribe capability the controller drives.
//
// Implementations own the broker connection. They must report completions
// through Handlers from their own goroutines and never invoke a handler
// synchronously from inside one of these methods.
type Transport interface {
	// Connect starts a broker session with the given last will.
	// It returns immediately; the outcome arrives via OnConnect or
	// OnConnectFailure. A returned error means the attempt could not start.
	Connect(will Will, handlers Handlers) error

	// Disconnect tears the session down. Completion is reported with
	// OnConnectionLost(nil). Calling it without a session is a no-op.
	Disconnect()

	// Subscribe requests delivery of messages on topic via OnMessage.
	// Broker-side rejection is reported later via OnSubscribeFailure.
	Subscribe(topic string, qos byte) error

	// Unsubscribe stops delivery for topic.
	Unsubscribe(topic string) error

	// Publish hands a message to the broker without waiting for acknowledgement.
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Handlers receives transport events.
type Handlers interface {
	// OnConnect is called each time a broker session is established,
	// including automatic reconnects.
	OnConnect()

	// OnConnectFailure is called when a requested session could not be established.
	OnConnectFailure(err error)

	// OnConnectionLost is called when a session ends. err is nil when the
	// session ended because Disconnect was called.
	OnConnectionLost(err error)

	// OnMessage is called for every message on a subscribed topic.
	OnMessage(topic string, payload []byte)

	// OnSubscribeFailure is called when the broker rejects a subscription.
	OnSubscribeFailure(topic string, err error)
}

// Will is the last-will message the broker publishes if the session dies
// without a clean disconnect.
type Will struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// Topics names the three device channels. They are configuration, not protocol.
type Topics struct {
	// Command carries JSON commands from the controller to the device.
	Command string

	// Status carries device data, forwarded verbatim to the data listener.
	Status string

	// Ready is the retained readiness channel; "online" means ready.
	Ready string
}
