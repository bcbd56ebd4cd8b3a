package link

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Controller defaults.
const (
	// DefaultReadyTimeout is how long the device has to publish "online"
	// after the broker session comes up.
	DefaultReadyTimeout = 10 * time.Second

	// maxQoS is the highest MQTT delivery guarantee.
	maxQoS byte = 2
)

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures a Controller.
type Options struct {
	// Transport is the broker capability. Required.
	Transport Transport

	// Topics names the command, status and ready channels. All required.
	Topics Topics

	// ReadyTimeout bounds the wait for the device readiness signal.
	// Default: DefaultReadyTimeout.
	ReadyTimeout time.Duration

	// QoS is the delivery guarantee for subscriptions and commands (0-2).
	// The zero value means QoS 0. The last will always uses at least QoS 1.
	QoS byte

	// OnStatus receives every status notification. Optional.
	OnStatus StatusListener

	// OnData receives payloads from the status topic. Optional.
	OnData DataListener

	// Logger is an optional structured logger.
	Logger Logger
}

// Controller is the connection-and-readiness state machine for one device.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Transitions are serialized; listeners run outside the internal lock.
type Controller struct {
	transport Transport
	topics    Topics
	qos       byte
	onStatus  StatusListener
	onData    DataListener
	logger    Logger

	// mu serializes every transition and guards the fields below.
	mu              sync.Mutex
	state           State
	brokerConnected bool
	deviceConfirmed bool
	wantConnected   bool // set by Connect, cleared by Disconnect or connect failure
	sessionID       string
	status          Status
	dog             *watchdog

	// Notifications queued in transition order, drained outside mu.
	outMu    sync.Mutex
	outbox   []func()
	draining bool
}

// New creates a Controller in StateIdle.
//
// Returns:
//   - *Controller: Ready for Connect
//   - error: ErrTransportUnavailable if no transport is given, or a
//     description of invalid options
func New(opts Options) (*Controller, error) {
	if opts.Transport == nil {
		return nil, ErrTransportUnavailable
	}
	if opts.Topics.Command == "" || opts.Topics.Status == "" || opts.Topics.Ready == "" {
		return nil, fmt.Errorf("link: command, status and ready topics are required")
	}
	if opts.Topics.Status == opts.Topics.Ready {
		return nil, fmt.Errorf("link: status and ready topics must differ")
	}
	if opts.QoS > maxQoS {
		return nil, fmt.Errorf("link: invalid QoS %d (must be 0, 1, or 2)", opts.QoS)
	}

	timeout := opts.ReadyTimeout
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	c := &Controller{
		transport: opts.Transport,
		topics:    opts.Topics,
		qos:       opts.QoS,
		onStatus:  opts.OnStatus,
		onData:    opts.OnData,
		logger:    logger,
		state:     StateIdle,
	}
	c.status = Status{State: StateIdle, Time: time.Now().UTC()}
	c.dog = newWatchdog(timeout, func(gen uint64) {
		c.dispatch(watchdogFired{gen: gen}) //nolint:errcheck // watchdog events never return errors
	})

	return c, nil
}

// Connect requests a broker session. It returns immediately; progress is
// reported through the status listener. Calling it while a session is being
// set up or is already up does nothing.
func (c *Controller) Connect() {
	c.dispatch(connectRequested{}) //nolint:errcheck // connect reports through the status listener
}

// Disconnect unsubscribes, cancels the watchdog and tears the session down.
// It is accepted in every state.
func (c *Controller) Disconnect() {
	c.dispatch(disconnectRequested{}) //nolint:errcheck // disconnect reports through the status listener
}

// Publish sends one JSON command to the device's command topic.
//
// cmd is JSON-encoded unless it is already []byte or json.RawMessage, in
// which case it must be valid JSON and is sent as is. Nothing is retried.
//
// Returns:
//   - error: ErrNotConnected without a broker session (nothing is sent),
//     ErrInvalidCommand if cmd cannot be encoded, ErrPublishFailed if the
//     transport rejects the message
func (c *Controller) Publish(cmd any) error {
	payload, err := encodeCommand(cmd)
	if err != nil {
		return err
	}
	return c.dispatch(publishRequested{payload: payload})
}

// ForceDeviceOnlineConfirmation marks the device ready on the word of an
// out-of-band channel, for when readiness was confirmed outside the broker.
//
// Returns:
//   - error: ErrNotConnected without a broker session, ErrAlreadyConfirmed
//     if the device is already confirmed
func (c *Controller) ForceDeviceOnlineConfirmation() error {
	return c.dispatch(forceConfirmation{})
}

// IsBrokerConnected reports whether a broker session is established.
func (c *Controller) IsBrokerConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.brokerConnected
}

// IsFullyConnected reports whether the broker session is up and the device confirmed.
func (c *Controller) IsFullyConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.brokerConnected && c.deviceConfirmed
}

// Status returns the snapshot produced by the latest transition.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// HealthCheck reports whether the device is fully reachable.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - error: nil if fully connected, ErrNotConnected or ErrDeviceUnconfirmed otherwise
func (c *Controller) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("link health check: %w", ctx.Err())
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.brokerConnected {
		return ErrNotConnected
	}
	if !c.deviceConfirmed {
		return fmt.Errorf("%w: state %s", ErrDeviceUnconfirmed, c.state)
	}
	return nil
}

// dispatch is the single entry point into the state machine.
func (c *Controller) dispatch(ev event) error {
	c.mu.Lock()
	err := c.handle(ev)
	c.mu.Unlock()

	c.drain()
	return err
}

// handle applies one event. Caller holds mu.
func (c *Controller) handle(ev event) error {
	switch e := ev.(type) {
	case connectRequested:
		c.handleConnect()
	case disconnectRequested:
		c.handleDisconnect()
	case publishRequested:
		return c.handlePublish(e.payload)
	case forceConfirmation:
		return c.handleForceConfirmation()
	case brokerConnected:
		c.handleBrokerConnected()
	case brokerConnectFailed:
		c.handleConnectFailure(e.err)
	case connectionLost:
		c.handleConnectionLost(e.err)
	case messageArrived:
		c.handleMessage(e.topic, e.payload)
	case subscribeFailed:
		c.logger.Warn("subscription rejected by broker",
			"topic", e.topic,
			"error", e.err,
		)
	case watchdogFired:
		c.handleWatchdog(e.gen)
	case fromSession:
		if e.session != c.sessionID {
			c.logger.Debug("event from superseded session dropped",
				"event", fmt.Sprintf("%T", e.ev),
				"session_id", e.session,
			)
			return nil
		}
		return c.handle(e.ev)
	default:
		c.logger.Error("unknown link event", "event", fmt.Sprintf("%T", ev))
	}
	return nil
}

func (c *Controller) handleConnect() {
	if c.state.brokerActive() {
		c.logger.Info("connect ignored, session already in progress", "state", c.state)
		return
	}

	c.wantConnected = true
	c.sessionID = uuid.New().String()
	c.transition(StateConnecting, MsgConnecting)

	will := Will{
		Topic:    c.topics.Ready,
		Payload:  []byte(PayloadOffline),
		QoS:      max(c.qos, 1),
		Retained: true,
	}
	if err := c.transport.Connect(will, transportEvents{c: c, session: c.sessionID}); err != nil {
		c.logger.Error("transport refused connect", "error", err)
		c.wantConnected = false
		c.transition(StateConnectionError, msgConnectFailedPrefix+err.Error())
	}
}

func (c *Controller) handleBrokerConnected() {
	if !c.wantConnected {
		// Late completion of an attempt the host already abandoned.
		c.logger.Info("discarding broker session nobody asked for", "state", c.state)
		c.transport.Disconnect()
		return
	}
	if c.brokerConnected {
		c.logger.Debug("duplicate broker connect ignored", "state", c.state)
		return
	}

	c.brokerConnected = true
	c.deviceConfirmed = false
	c.subscribe(c.topics.Status)
	c.subscribe(c.topics.Ready)
	c.dog.arm()
	c.transition(StateAwaitingDevice, MsgAwaitingDevice)
}

func (c *Controller) handleConnectFailure(err error) {
	if c.state != StateConnecting {
		c.logger.Debug("connect failure ignored", "state", c.state, "error", err)
		return
	}

	reason := "unknown error"
	if err != nil {
		reason = err.Error()
	}
	c.logger.Warn("broker connection failed", "error", err)
	c.wantConnected = false
	c.transition(StateConnectionError, msgConnectFailedPrefix+reason)
}

func (c *Controller) handleConnectionLost(err error) {
	if !c.brokerConnected && c.state != StateConnecting {
		c.logger.Debug("connection lost ignored", "state", c.state, "error", err)
		return
	}

	c.dog.stop()
	c.brokerConnected = false
	c.deviceConfirmed = false

	if err == nil {
		c.transition(StateDisconnected, MsgDisconnected)
		return
	}
	c.logger.Warn("broker connection lost", "error", err)
	c.transition(StateDisconnected, MsgConnectionLost)
}

func (c *Controller) handleDisconnect() {
	c.wantConnected = false

	if c.brokerConnected {
		for _, topic := range []string{c.topics.Status, c.topics.Ready} {
			if err := c.transport.Unsubscribe(topic); err != nil {
				c.logger.Warn("unsubscribe failed", "topic", topic, "error", err)
			}
		}
	}
	c.dog.stop()

	if c.state != StateIdle {
		c.transport.Disconnect()
	}

	c.brokerConnected = false
	c.deviceConfirmed = false
	c.transition(StateDisconnected, MsgDisconnected)
}

func (c *Controller) handlePublish(payload []byte) error {
	if !c.brokerConnected {
		return ErrNotConnected
	}

	if err := c.transport.Publish(c.topics.Command, c.qos, false, payload); err != nil {
		c.logger.Warn("command publish failed", "topic", c.topics.Command, "error", err)
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	if !c.deviceConfirmed {
		c.logger.Warn("command sent to unconfirmed device, delivery is best-effort",
			"topic", c.topics.Command,
			"state", c.state,
		)
		c.notify(MsgUnconfirmedSend)
	}
	return nil
}

func (c *Controller) handleForceConfirmation() error {
	if !c.brokerConnected {
		return ErrNotConnected
	}
	if c.deviceConfirmed {
		return ErrAlreadyConfirmed
	}

	c.dog.stop()
	c.deviceConfirmed = true
	c.transition(StateFullyConnected, MsgDeviceOnlineAlt)
	return nil
}

func (c *Controller) handleMessage(topic string, payload []byte) {
	if !c.brokerConnected {
		c.logger.Debug("message dropped without broker session", "topic", topic)
		return
	}

	switch topic {
	case c.topics.Ready:
		c.handleReady(strings.TrimSpace(string(payload)) == PayloadOnline)
	case c.topics.Status:
		if c.onData != nil {
			onData := c.onData
			c.enqueue(func() { onData(payload) })
		}
	default:
		c.logger.Debug("message on unexpected topic", "topic", topic)
	}
}

func (c *Controller) handleReady(online bool) {
	switch c.state {
	case StateAwaitingDevice, StateDeviceNotResponding:
		if !online {
			c.transition(c.state, MsgDeviceOffline)
			return
		}
		c.dog.stop()
		c.deviceConfirmed = true
		c.transition(StateFullyConnected, MsgDeviceOnline)

	case StateFullyConnected:
		if online {
			return
		}
		c.deviceConfirmed = false
		c.dog.arm()
		c.transition(StateAwaitingDevice, MsgDeviceOffline)
	}
}

func (c *Controller) handleWatchdog(gen uint64) {
	if !c.dog.expire(gen) {
		c.logger.Debug("stale watchdog expiry discarded", "generation", gen)
		return
	}
	// Confirmation that won the race already stopped the timer; this guards
	// any path that confirms without going through it.
	if c.deviceConfirmed || c.state != StateAwaitingDevice {
		return
	}

	c.logger.Warn("device did not report ready in time", "ready_topic", c.topics.Ready)
	c.transition(StateDeviceNotResponding, MsgDeviceNotResponding)
}

// subscribe requests a topic; failure degrades that channel but keeps the session.
func (c *Controller) subscribe(topic string) {
	if err := c.transport.Subscribe(topic, c.qos); err != nil {
		c.logger.Warn("subscribe failed", "topic", topic, "error", err)
	}
}

// transition records the new state and queues a status notification.
// Flags must already reflect the new state.
func (c *Controller) transition(to State, message string) {
	from := c.state
	c.state = to
	c.status = Status{
		State:           to,
		BrokerConnected: c.brokerConnected,
		DeviceConfirmed: c.deviceConfirmed,
		Message:         message,
		SessionID:       c.sessionID,
		Time:            time.Now().UTC(),
	}

	if from != to {
		c.logger.Info("link state changed", "from", from, "to", to, "message", message)
	}

	if c.onStatus != nil {
		onStatus := c.onStatus
		status := c.status
		c.enqueue(func() { onStatus(status) })
	}
}

// notify queues a status notification carrying message without changing
// the state or the snapshot returned by Status.
func (c *Controller) notify(message string) {
	if c.onStatus == nil {
		return
	}
	status := c.status
	status.Message = message
	status.Time = time.Now().UTC()
	onStatus := c.onStatus
	c.enqueue(func() { onStatus(status) })
}

// enqueue adds a notification to the outbox.
func (c *Controller) enqueue(fn func()) {
	c.outMu.Lock()
	c.outbox = append(c.outbox, fn)
	c.outMu.Unlock()
}

// drain delivers queued notifications in order. Only one goroutine drains at
// a time; a listener that re-enters the controller leaves its notifications
// to the drainer already running.
func (c *Controller) drain() {
	c.outMu.Lock()
	if c.draining {
		c.outMu.Unlock()
		return
	}
	c.draining = true

	for len(c.outbox) > 0 {
		fn := c.outbox[0]
		c.outbox = c.outbox[1:]
		c.outMu.Unlock()
		c.deliver(fn)
		c.outMu.Lock()
	}

	c.draining = false
	c.outMu.Unlock()
}

// deliver runs one listener call with panic recovery.
func (c *Controller) deliver(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("link listener panic recovered", "panic", r)
		}
	}()
	fn()
}

// encodeCommand converts a host command into its wire payload.
func encodeCommand(cmd any) ([]byte, error) {
	switch v := cmd.(type) {
	case nil:
		return nil, fmt.Errorf("%w: command is nil", ErrInvalidCommand)
	case []byte:
		if !json.Valid(v) {
			return nil, fmt.Errorf("%w: payload is not valid JSON", ErrInvalidCommand)
		}
		return v, nil
	case json.RawMessage:
		if !json.Valid(v) {
			return nil, fmt.Errorf("%w: payload is not valid JSON", ErrInvalidCommand)
		}
		return v, nil
	}

	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	return payload, nil
}

// nopLogger discards everything.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
