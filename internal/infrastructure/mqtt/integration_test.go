//go:build integration

package mqtt

import (
	"sync"
	"testing"
	"time"

	"github.com/Gowrisankar10354/ac-remote-final/internal/infrastructure/config"
	"github.com/Gowrisankar10354/ac-remote-final/internal/link"
)

// Integration tests against a real broker.
// These tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func integrationConfig(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: clientID,
		},
		KeepAlive: 5,
	}
}

func integrationTopics(t *testing.T) link.Topics {
	base := "acremote/int/" + config.GenerateClientID()
	return link.Topics{
		Command: base + "/command",
		Status:  base + "/status",
		Ready:   base + "/ready",
	}
}

// statusLog collects controller notifications.
type statusLog struct {
	mu       sync.Mutex
	statuses []link.Status
}

func (l *statusLog) add(s link.Status) {
	l.mu.Lock()
	l.statuses = append(l.statuses, s)
	l.mu.Unlock()
}

func (l *statusLog) waitState(t *testing.T, want link.State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		l.mu.Lock()
		n := len(l.statuses)
		var last link.State
		if n > 0 {
			last = l.statuses[n-1].State
		}
		l.mu.Unlock()
		if n > 0 && last == want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s", want)
}

// device plays the AC unit: it publishes retained readiness.
func device(t *testing.T, topics link.Topics) *Transport {
	t.Helper()
	tr := New(integrationConfig(config.GenerateClientID()))
	h := &recordingHandlers{}
	if err := tr.Connect(link.Will{Topic: topics.Ready, Payload: []byte("offline"), QoS: 1, Retained: true}, h); err != nil {
		t.Fatalf("device Connect() error = %v", err)
	}
	waitFor(t, "device session", func() bool { return tr.IsConnected() })
	t.Cleanup(tr.Disconnect)
	return tr
}

func TestIntegration_ControllerConfirmsDevice(t *testing.T) {
	topics := integrationTopics(t)
	dev := device(t, topics)
	if err := dev.Publish(topics.Ready, 1, true, []byte("online")); err != nil {
		t.Fatalf("device Publish() error = %v", err)
	}

	log := &statusLog{}
	ctrl, err := link.New(link.Options{
		Transport:    New(integrationConfig(config.GenerateClientID())),
		Topics:       topics,
		ReadyTimeout: 3 * time.Second,
		OnStatus:     log.add,
	})
	if err != nil {
		t.Fatalf("link.New() error = %v", err)
	}

	ctrl.Connect()
	log.waitState(t, link.StateFullyConnected)

	if err := ctrl.Publish(map[string]string{"power": "on"}); err != nil {
		t.Errorf("Publish() error = %v", err)
	}

	ctrl.Disconnect()
	log.waitState(t, link.StateDisconnected)

	// Clear the retained flag for the next run.
	_ = dev.Publish(topics.Ready, 1, true, nil)
}

func TestIntegration_WatchdogWithoutDevice(t *testing.T) {
	topics := integrationTopics(t)

	log := &statusLog{}
	ctrl, err := link.New(link.Options{
		Transport:    New(integrationConfig(config.GenerateClientID())),
		Topics:       topics,
		ReadyTimeout: time.Second,
		OnStatus:     log.add,
	})
	if err != nil {
		t.Fatalf("link.New() error = %v", err)
	}
	defer ctrl.Disconnect()

	ctrl.Connect()
	log.waitState(t, link.StateAwaitingDevice)
	log.waitState(t, link.StateDeviceNotResponding)
}

func TestIntegration_ConnectRefused(t *testing.T) {
	cfg := integrationConfig(config.GenerateClientID())
	cfg.Broker.Port = 19999

	log := &statusLog{}
	ctrl, err := link.New(link.Options{
		Transport: New(cfg),
		Topics:    integrationTopics(t),
		OnStatus:  log.add,
	})
	if err != nil {
		t.Fatalf("link.New() error = %v", err)
	}

	ctrl.Connect()
	log.waitState(t, link.StateConnectionError)
}
