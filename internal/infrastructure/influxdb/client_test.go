package influxdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/Gowrisankar10354/ac-remote-final/internal/infrastructure/config"
	"github.com/Gowrisankar10354/ac-remote-final/internal/link"
)

// fakeInflux answers /ping and records /api/v2/write bodies.
type fakeInflux struct {
	*httptest.Server

	mu       sync.Mutex
	writes   []string
	writeErr bool
}

func newFakeInflux(t *testing.T) *fakeInflux {
	t.Helper()
	f := &fakeInflux{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			body, _ := io.ReadAll(r.Body) //nolint:errcheck // Test server
			f.mu.Lock()
			f.writes = append(f.writes, string(body))
			fail := f.writeErr
			f.mu.Unlock()
			if fail {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"code":"invalid","message":"bad point"}`)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeInflux) body() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.writes, "\n")
}

func (f *fakeInflux) config() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           f.URL,
		Token:         "test-token",
		Org:           "home",
		Bucket:        "acremote",
		BatchSize:     1,
		FlushInterval: 1,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// =============================================================================
// Point Tests
// =============================================================================

func TestLinkPoint(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p := linkPoint("living-room-ac", link.Status{
		State:           link.StateFullyConnected,
		BrokerConnected: true,
		DeviceConfirmed: true,
		Message:         link.MsgDeviceOnline,
		Time:            at,
	})

	line := write.PointToLineProtocol(p, time.Nanosecond)

	for _, want := range []string{
		"device_link,device_id=living-room-ac,state=FULLY_CONNECTED ",
		"broker_connected=true",
		"device_confirmed=true",
		"fully_connected=1i",
		`message="Device Online"`,
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line protocol %q missing %q", line, want)
		}
	}
	if !p.Time().Equal(at) {
		t.Errorf("point time = %v, want %v", p.Time(), at)
	}
}

func TestLinkPoint_NotFullyConnected(t *testing.T) {
	p := linkPoint("ac", link.Status{State: link.StateDeviceNotResponding, BrokerConnected: true})

	line := write.PointToLineProtocol(p, time.Nanosecond)
	if !strings.Contains(line, "fully_connected=0i") {
		t.Errorf("line protocol %q missing fully_connected=0i", line)
	}
	if p.Time().IsZero() {
		t.Error("zero status time not replaced with now")
	}
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := Connect(config.InfluxDBConfig{Enabled: true, URL: url, Org: "o", Bucket: "b"})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWriteLinkStatus(t *testing.T) {
	srv := newFakeInflux(t)

	client, err := Connect(srv.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck // Test cleanup

	client.WriteLinkStatus("ac", link.Status{State: link.StateAwaitingDevice, BrokerConnected: true})
	client.Flush()

	waitFor(t, "write request", func() bool {
		return strings.Contains(srv.body(), "device_link,device_id=ac,state=BROKER_CONNECTED_AWAITING_DEVICE")
	})
}

func TestWriteLinkStatus_ErrorCallback(t *testing.T) {
	srv := newFakeInflux(t)
	srv.writeErr = true

	client, err := Connect(srv.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck // Test cleanup

	var mu sync.Mutex
	var got error
	client.SetOnError(func(err error) {
		mu.Lock()
		got = err
		mu.Unlock()
	})

	client.WriteLinkStatus("ac", link.Status{State: link.StateIdle})
	client.Flush()

	waitFor(t, "error callback", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got != nil
	})
	mu.Lock()
	defer mu.Unlock()
	if !errors.Is(got, ErrWriteFailed) {
		t.Errorf("callback error = %v, want ErrWriteFailed", got)
	}
}

func TestHealthCheck(t *testing.T) {
	srv := newFakeInflux(t)

	client, err := Connect(srv.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}

	// Writes and flushes after Close are dropped quietly.
	client.WriteLinkStatus("ac", link.Status{})
	client.Flush()
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestClose_Nil(t *testing.T) {
	var client *Client
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}
