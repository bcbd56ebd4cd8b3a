package mqtt

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Gowrisankar10354/ac-remote-final/internal/infrastructure/config"
	"github.com/Gowrisankar10354/ac-remote-final/internal/link"
)

// Connection constants.
const (
	// defaultConnectTimeout bounds a single connection attempt.
	defaultConnectTimeout = 10 * time.Second

	// defaultWriteTimeout bounds how long paho may block handing a packet to
	// its outbound queue.
	defaultWriteTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultKeepAlive is used when the configuration leaves keep_alive at 0.
	defaultKeepAlive = 30 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// brokerURL returns the tcp:// or ssl:// URL for the configured broker.
func brokerURL(cfg config.MQTTConfig) string {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)
}

// buildClientOptions creates paho MQTT options from the AC remote config.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID for identification
//   - Authentication credentials (if provided)
//   - Automatic reconnection after an established session drops
//   - TLS configuration (if enabled)
//   - Clean session mode
//
// ConnectRetry stays off: a failed first attempt is reported to the link
// controller, which decides whether to try again.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(brokerURL(cfg))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// Subscriptions are re-established by the link controller on every
	// connect, so the broker keeps no session for us.
	opts.SetCleanSession(true)
	opts.SetResumeSubs(false)

	opts.SetAutoReconnect(cfg.Reconnect.Enabled)
	opts.SetConnectRetry(false)
	if cfg.Reconnect.MaxDelay > 0 {
		opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	}

	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetWriteTimeout(defaultWriteTimeout)

	keepAlive := time.Duration(cfg.KeepAlive) * time.Second
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	opts.SetKeepAlive(keepAlive)

	// Ready and status messages must reach the controller in broker order.
	opts.SetOrderMatters(true)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	return opts
}

// configureWill registers the link controller's last will.
//
// The broker publishes it if this client vanishes without a clean
// disconnect, so subscribers to the ready topic see "offline".
func configureWill(opts *pahomqtt.ClientOptions, will link.Will) error {
	if err := validateTopic(will.Topic); err != nil {
		return fmt.Errorf("will: %w", err)
	}
	if will.QoS > maxQoS {
		return fmt.Errorf("will: %w", ErrInvalidQoS)
	}
	opts.SetBinaryWill(will.Topic, will.Payload, will.QoS, will.Retained)
	return nil
}

// validateTopic rejects topics that cannot be used for publishing.
func validateTopic(topic string) error {
	if strings.TrimSpace(topic) == "" {
		return ErrInvalidTopic
	}
	return nil
}
