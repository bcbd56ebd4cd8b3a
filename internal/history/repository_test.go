package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gowrisankar10354/ac-remote-final/internal/infrastructure/database"
	"github.com/Gowrisankar10354/ac-remote-final/internal/link"
	_ "github.com/Gowrisankar10354/ac-remote-final/migrations"
)

func openTestRepo(t *testing.T) (*SQLiteRepository, *sql.DB) {
	t.Helper()
	db, err := database.Open(database.Config{Path: database.MemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	require.NoError(t, db.Migrate(context.Background()))
	return NewSQLiteRepository(db.DB), db.DB
}

func status(state link.State, at time.Time) link.Status {
	return link.Status{
		State:           state,
		BrokerConnected: state == link.StateAwaitingDevice || state == link.StateFullyConnected,
		DeviceConfirmed: state == link.StateFullyConnected,
		Message:         "msg " + state.String(),
		SessionID:       "session-1",
		Time:            at,
	}
}

// =============================================================================
// Repository
// =============================================================================

func TestRecordAndRecent(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Record(ctx, "ac", status(link.StateConnecting, base)))
	require.NoError(t, repo.Record(ctx, "ac", status(link.StateAwaitingDevice, base.Add(time.Second))))
	require.NoError(t, repo.Record(ctx, "ac", status(link.StateFullyConnected, base.Add(1500*time.Millisecond))))
	require.NoError(t, repo.Record(ctx, "other", status(link.StateConnecting, base)))

	entries, err := repo.Recent(ctx, "ac", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	newest := entries[0]
	assert.Equal(t, "FULLY_CONNECTED", newest.State)
	assert.True(t, newest.BrokerConnected)
	assert.True(t, newest.DeviceConfirmed)
	assert.Equal(t, "session-1", newest.SessionID)
	assert.Equal(t, "msg FULLY_CONNECTED", newest.Message)
	assert.True(t, newest.CreatedAt.Equal(base.Add(1500*time.Millisecond)))

	assert.Equal(t, "BROKER_CONNECTED_AWAITING_DEVICE", entries[1].State)
	assert.Equal(t, "CONNECTING", entries[2].State)
	assert.False(t, entries[2].BrokerConnected)
}

func TestRecord_ZeroTimeUsesNow(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	before := time.Now().UTC().Add(-time.Second)
	require.NoError(t, repo.Record(ctx, "ac", link.Status{State: link.StateIdle}))

	entries, err := repo.Recent(ctx, "ac", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].CreatedAt.After(before))
}

func TestRecord_RequiresDeviceID(t *testing.T) {
	repo, _ := openTestRepo(t)

	err := repo.Record(context.Background(), "", link.Status{})
	assert.ErrorIs(t, err, ErrDeviceIDRequired)

	_, err = repo.Recent(context.Background(), "", 10)
	assert.ErrorIs(t, err, ErrDeviceIDRequired)
}

func TestRecent_LimitClamping(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()
	base := time.Now().UTC()

	for i := range maxLimit + 10 {
		require.NoError(t, repo.Record(ctx, "ac", status(link.StateConnecting, base.Add(time.Duration(i)*time.Millisecond))))
	}

	tests := []struct {
		limit int
		want  int
	}{
		{0, defaultLimit},
		{-1, defaultLimit},
		{5, 5},
		{maxLimit + 100, maxLimit},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("limit=%d", tt.limit), func(t *testing.T) {
			entries, err := repo.Recent(ctx, "ac", tt.limit)
			require.NoError(t, err)
			assert.Len(t, entries, tt.want)
		})
	}
}

func TestPrune(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Record(ctx, "ac", status(link.StateConnecting, now.Add(-48*time.Hour))))
	require.NoError(t, repo.Record(ctx, "ac", status(link.StateAwaitingDevice, now.Add(-2*time.Hour))))
	require.NoError(t, repo.Record(ctx, "ac", status(link.StateFullyConnected, now)))

	deleted, err := repo.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	entries, err := repo.Recent(ctx, "ac", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	_, err = repo.Prune(ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidRetention)
}

// =============================================================================
// Recorder
// =============================================================================

// memoryRepo is an in-process Repository with an optional failure.
type memoryRepo struct {
	mu      sync.Mutex
	entries []link.Status
	gate    chan struct{}
	err     error
}

func (m *memoryRepo) Record(_ context.Context, _ string, s link.Status) error {
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, s)
	return nil
}

func (m *memoryRepo) Recent(context.Context, string, int) ([]Entry, error) { return nil, nil }

func (m *memoryRepo) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

type countingLogger struct {
	mu          sync.Mutex
	warn, error int
}

func (l *countingLogger) Warn(string, ...any) {
	l.mu.Lock()
	l.warn++
	l.mu.Unlock()
}

func (l *countingLogger) Error(string, ...any) {
	l.mu.Lock()
	l.error++
	l.mu.Unlock()
}

func TestRecorder_FlushesOnClose(t *testing.T) {
	repo := &memoryRepo{}
	rec := NewRecorder(repo, "ac", nil, 0)

	for range 10 {
		rec.Observe(link.Status{State: link.StateConnecting})
	}
	rec.Close()

	assert.Equal(t, 10, repo.len())

	rec.Observe(link.Status{State: link.StateIdle})
	rec.Close()
	assert.Equal(t, 10, repo.len(), "Observe after Close must be ignored")
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	repo := &memoryRepo{gate: make(chan struct{})}
	logger := &countingLogger{}
	rec := NewRecorder(repo, "ac", logger, 1)

	// The worker takes the first and blocks on the gate; the second fills the
	// queue; the third is dropped.
	rec.Observe(link.Status{State: link.StateConnecting})
	require.Eventually(t, func() bool { return len(rec.queue) == 0 }, time.Second, time.Millisecond)
	rec.Observe(link.Status{State: link.StateAwaitingDevice})
	rec.Observe(link.Status{State: link.StateFullyConnected})

	close(repo.gate)
	rec.Close()

	assert.Equal(t, 2, repo.len())
	logger.mu.Lock()
	assert.Equal(t, 1, logger.warn)
	logger.mu.Unlock()
}

func TestRecorder_LogsWriteFailures(t *testing.T) {
	repo := &memoryRepo{err: assert.AnError}
	logger := &countingLogger{}
	rec := NewRecorder(repo, "ac", logger, 4)

	rec.Observe(link.Status{State: link.StateConnecting})
	rec.Close()

	logger.mu.Lock()
	defer logger.mu.Unlock()
	assert.Equal(t, 1, logger.error)
}

func TestRecorder_WithSQLite(t *testing.T) {
	repo, _ := openTestRepo(t)
	rec := NewRecorder(repo, "ac", nil, 0)

	rec.Observe(status(link.StateConnecting, time.Now()))
	rec.Observe(status(link.StateAwaitingDevice, time.Now().Add(time.Millisecond)))
	rec.Close()

	entries, err := repo.Recent(context.Background(), "ac", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
