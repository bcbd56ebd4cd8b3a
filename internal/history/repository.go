package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Gowrisankar10354/ac-remote-final/internal/link"
)

const (
	defaultLimit = 50
	maxLimit     = 200

	// timeLayout is fixed-width so created_at sorts and compares as text.
	timeLayout = "2006-01-02T15:04:05.000000Z"
)

// Entry is one recorded status notification.
type Entry struct {
	ID              int64     `json:"id"`
	DeviceID        string    `json:"device_id"`
	SessionID       string    `json:"session_id,omitempty"`
	State           string    `json:"state"`
	BrokerConnected bool      `json:"broker_connected"`
	DeviceConfirmed bool      `json:"device_confirmed"`
	Message         string    `json:"message"`
	CreatedAt       time.Time `json:"created_at"`
}

// Repository stores and retrieves link history.
//
// Implementations must be safe for concurrent use and store UTC timestamps.
type Repository interface {
	// Record appends a status notification for deviceID.
	Record(ctx context.Context, deviceID string, status link.Status) error

	// Recent returns up to limit entries for deviceID, newest first.
	Recent(ctx context.Context, deviceID string, limit int) ([]Entry, error)
}

// SQLiteRepository implements Repository on the link_events table.
type SQLiteRepository struct {
	db *sql.DB
}

var _ Repository = (*SQLiteRepository)(nil)

// NewSQLiteRepository creates a repository over an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts a status notification.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - deviceID: Device the controller is tracking
//   - status: Snapshot delivered to the status listener; a zero Time means now
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteRepository) Record(ctx context.Context, deviceID string, status link.Status) error {
	if deviceID == "" {
		return ErrDeviceIDRequired
	}

	at := status.Time
	if at.IsZero() {
		at = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO link_events
		   (device_id, session_id, state, broker_connected, device_confirmed, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		deviceID,
		status.SessionID,
		status.State.String(),
		status.BrokerConnected,
		status.DeviceConfirmed,
		status.Message,
		at.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting link event: %w", err)
	}
	return nil
}

// Recent returns the latest entries for a device, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - deviceID: Device identifier
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []Entry: Entries ordered by created_at DESC (may be empty)
//   - error: nil on success, otherwise the underlying query error
func (r *SQLiteRepository) Recent(ctx context.Context, deviceID string, limit int) ([]Entry, error) {
	if deviceID == "" {
		return nil, ErrDeviceIDRequired
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, session_id, state, broker_connected, device_confirmed, message, created_at
		 FROM link_events
		 WHERE device_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		deviceID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying link events: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.SessionID, &e.State,
			&e.BrokerConnected, &e.DeviceConfirmed, &e.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning link event: %w", err)
		}
		if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating link events: %w", err)
	}

	return entries, nil
}

// Prune deletes entries older than now-olderThan for every device.
//
// Returns:
//   - int64: Number of rows deleted
//   - error: ErrInvalidRetention or the underlying database error
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, ErrInvalidRetention
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(timeLayout)
	result, err := r.db.ExecContext(ctx, "DELETE FROM link_events WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting link events: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}
