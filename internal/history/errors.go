package history

import "errors"

var (
	// ErrDeviceIDRequired is returned when a record or query has no device ID.
	ErrDeviceIDRequired = errors.New("history: device id is required")

	// ErrInvalidRetention is returned by Prune for a non-positive duration.
	ErrInvalidRetention = errors.New("history: retention must be positive")
)
