package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Gowrisankar10354/ac-remote-final/internal/infrastructure/config"
	"github.com/Gowrisankar10354/ac-remote-final/internal/link"
)

// Transport drives an MQTT broker session on behalf of a link.Controller.
//
// Every Connect builds a fresh paho client carrying the caller's last will.
// Callbacks from a client that has since been replaced or disconnected are
// dropped, so the controller never hears about a session it already gave up.
//
// No method blocks waiting for the broker: outcomes are reported through
// link.Handlers from paho's goroutines.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Transport struct {
	cfg config.MQTTConfig

	mu       sync.Mutex
	client   pahomqtt.Client
	session  uint64
	handlers link.Handlers

	// teardown tracks clients still being disconnected.
	teardown sync.WaitGroup

	// logger for error/panic logging (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex

	// newClient is swapped in tests.
	newClient func(*pahomqtt.ClientOptions) pahomqtt.Client
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

var _ link.Transport = (*Transport)(nil)

// New creates a Transport for the configured broker. It does not connect.
func New(cfg config.MQTTConfig) *Transport {
	return &Transport{
		cfg:       cfg,
		newClient: pahomqtt.NewClient,
	}
}

// SetLogger sets a logger for connection and delivery diagnostics.
// If not set, they are silently discarded.
func (t *Transport) SetLogger(logger Logger) {
	t.loggerMu.Lock()
	t.logger = logger
	t.loggerMu.Unlock()
}

func (t *Transport) getLogger() Logger {
	t.loggerMu.RLock()
	defer t.loggerMu.RUnlock()
	return t.logger
}

// Connect starts a new broker session registered with will.
//
// Any previous client is abandoned and torn down in the background. The
// result arrives via handlers.OnConnect or handlers.OnConnectFailure.
//
// Returns:
//   - error: If the will is invalid; nothing was started
func (t *Transport) Connect(will link.Will, handlers link.Handlers) error {
	if handlers == nil {
		return fmt.Errorf("%w: handlers cannot be nil", ErrConnectionFailed)
	}

	opts := buildClientOptions(t.cfg)
	if err := configureWill(opts, will); err != nil {
		return err
	}

	t.mu.Lock()
	old := t.client
	t.session++
	session := t.session

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		if t.current(session) {
			handlers.OnConnect()
		}
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		if err == nil {
			err = ErrNotConnected
		}
		if t.current(session) {
			handlers.OnConnectionLost(err)
		}
	})
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		if logger := t.getLogger(); logger != nil && t.current(session) {
			logger.Info("reconnecting to MQTT broker", "broker", brokerURL(t.cfg))
		}
	})

	client := t.newClient(opts)
	t.client = client
	t.handlers = handlers
	t.mu.Unlock()

	if old != nil {
		t.teardown.Add(1)
		go func() {
			defer t.teardown.Done()
			old.Disconnect(0)
		}()
	}

	token := client.Connect()
	go func() {
		<-token.Done()
		err := token.Error()
		if err == nil {
			return
		}
		if !t.release(session) {
			return
		}
		handlers.OnConnectFailure(fmt.Errorf("%w: %w", ErrConnectionFailed, err))
	}()

	return nil
}

// Disconnect ends the current session.
//
// paho's Disconnect waits for in-flight message handlers, which may be
// blocked on the controller that called us, so teardown runs in its own
// goroutine and completion is reported with OnConnectionLost(nil). The
// report is skipped if Connect started a newer session in the meantime.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	client := t.client
	handlers := t.handlers
	t.client = nil
	t.handlers = nil
	t.session++
	ended := t.session
	t.mu.Unlock()

	if client == nil {
		return
	}

	t.teardown.Add(1)
	go func() {
		defer t.teardown.Done()
		client.Disconnect(defaultDisconnectQuiesce)
		if !t.idleSince(ended) {
			if logger := t.getLogger(); logger != nil {
				logger.Info("teardown finished after a new session started; not reported")
			}
			return
		}
		handlers.OnConnectionLost(nil)
	}()
}

// WaitIdle blocks until every client handed to Disconnect has finished
// closing, or ctx is done. Call it on shutdown so the broker sees a clean
// DISCONNECT instead of a dropped socket.
func (t *Transport) WaitIdle(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.teardown.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for MQTT teardown: %w", ctx.Err())
	}
}

// HealthCheck verifies the MQTT connection is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (t *Transport) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !t.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether the current client has an open connection.
func (t *Transport) IsConnected() bool {
	client, _, _ := t.active()
	return client != nil && client.IsConnectionOpen()
}

// active returns the current client, its session number and handlers.
func (t *Transport) active() (pahomqtt.Client, uint64, link.Handlers) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client, t.session, t.handlers
}

// current reports whether session is still the live one.
func (t *Transport) current(session uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client != nil && t.session == session
}

// idleSince reports whether no session has started since Disconnect
// produced session.
func (t *Transport) idleSince(session uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client == nil && t.session == session
}

// release drops the client for a session whose connect attempt failed.
// It returns false if the session was already superseded.
func (t *Transport) release(session uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil || t.session != session {
		return false
	}
	t.client = nil
	t.handlers = nil
	return true
}
