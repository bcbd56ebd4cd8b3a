package history

import (
	"context"
	"sync"
	"time"

	"github.com/Gowrisankar10354/ac-remote-final/internal/link"
)

const (
	// DefaultBuffer is the number of notifications queued before Observe
	// starts dropping.
	DefaultBuffer = 64

	writeTimeout = 5 * time.Second
)

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Recorder persists status notifications on its own goroutine so the
// controller's listeners never wait on SQLite.
//
// Thread Safety:
//   - Observe and Close are safe for concurrent use.
type Recorder struct {
	repo     Repository
	deviceID string
	logger   Logger

	mu     sync.RWMutex
	closed bool
	queue  chan link.Status
	done   chan struct{}
}

// NewRecorder starts a recorder writing to repo. Close must be called to
// flush queued notifications and stop the worker.
//
// Parameters:
//   - repo: Destination repository
//   - deviceID: Device ID stamped on every row
//   - logger: Optional; receives dropped-row and write-failure reports
//   - buffer: Queue length; values below 1 use DefaultBuffer
func NewRecorder(repo Repository, deviceID string, logger Logger, buffer int) *Recorder {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	r := &Recorder{
		repo:     repo,
		deviceID: deviceID,
		logger:   logger,
		queue:    make(chan link.Status, buffer),
		done:     make(chan struct{}),
	}
	go r.run()
	return r
}

// Observe queues a status for persistence. It never blocks; when the queue
// is full the notification is dropped and a warning logged.
// Its signature matches link.StatusListener.
func (r *Recorder) Observe(status link.Status) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}

	select {
	case r.queue <- status:
	default:
		if r.logger != nil {
			r.logger.Warn("history queue full, dropping link event",
				"device_id", r.deviceID,
				"state", status.State.String(),
			)
		}
	}
}

// Close stops accepting notifications and waits until queued ones are written.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)

	for status := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := r.repo.Record(ctx, r.deviceID, status)
		cancel()
		if err != nil && r.logger != nil {
			r.logger.Error("recording link event failed",
				"device_id", r.deviceID,
				"state", status.State.String(),
				"error", err,
			)
		}
	}
}
