package link

import "errors"

// Domain errors for the link controller.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrTransportUnavailable is returned by New when no transport is supplied.
	// It is fatal for that controller instance.
	ErrTransportUnavailable = errors.New("link: transport unavailable")

	// ErrNotConnected is returned when an operation needs a broker session.
	ErrNotConnected = errors.New("link: not connected to broker")

	// ErrDeviceUnconfirmed is returned by HealthCheck while the broker session
	// is up but the device has not announced readiness.
	ErrDeviceUnconfirmed = errors.New("link: device not confirmed")

	// ErrAlreadyConfirmed is returned when forcing confirmation of a device
	// that is already confirmed.
	ErrAlreadyConfirmed = errors.New("link: device already confirmed")

	// ErrPublishFailed is returned when the transport rejects a command.
	ErrPublishFailed = errors.New("link: publish failed")

	// ErrInvalidCommand is returned when a command cannot be encoded as JSON.
	ErrInvalidCommand = errors.New("link: invalid command")
)
