package link

import "time"

// State is a position in the connection-and-readiness state machine.
type State uint8

const (
	// StateIdle is the initial state; no connection has been requested yet.
	StateIdle State = iota

	// StateConnecting means a broker session has been requested.
	StateConnecting

	// StateAwaitingDevice means the broker session is up and the watchdog is
	// waiting for the device to publish "online" on its ready topic.
	StateAwaitingDevice

	// StateFullyConnected means broker session and device readiness are both confirmed.
	StateFullyConnected

	// StateDeviceNotResponding means the watchdog expired before the device
	// reported ready. A late "online" still recovers to StateFullyConnected.
	StateDeviceNotResponding

	// StateDisconnected means the broker session ended, deliberately or not.
	StateDisconnected

	// StateConnectionError means the broker rejected or could not be reached.
	StateConnectionError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateAwaitingDevice:
		return "BROKER_CONNECTED_AWAITING_DEVICE"
	case StateFullyConnected:
		return "FULLY_CONNECTED"
	case StateDeviceNotResponding:
		return "DEVICE_NOT_RESPONDING"
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnectionError:
		return "CONNECTION_ERROR"
	default:
		return "UNKNOWN"
	}
}

// brokerActive reports whether a broker session exists or is being set up.
// Connect is a no-op in these states.
func (s State) brokerActive() bool {
	switch s {
	case StateConnecting, StateAwaitingDevice, StateFullyConnected, StateDeviceNotResponding:
		return true
	default:
		return false
	}
}

// Status messages delivered to the status listener.
const (
	MsgConnecting          = "Connecting"
	MsgAwaitingDevice      = "Awaiting Device"
	MsgDeviceOnline        = "Device Online"
	MsgDeviceOnlineAlt     = "Device Online (Confirmed Alt)"
	MsgDeviceOffline       = "Device Offline"
	MsgDeviceNotResponding = "Device Not Responding"
	MsgConnectionLost      = "Connection Lost"
	MsgDisconnected        = "Disconnected"
	MsgUnconfirmedSend     = "Command Sent (Device Unconfirmed)"

	// msgConnectFailedPrefix precedes the transport's failure reason.
	msgConnectFailedPrefix = "Connection Failed: "
)

// Ready topic payloads.
const (
	// PayloadOnline is the only ready payload that confirms the device.
	PayloadOnline = "online"

	// PayloadOffline is the last-will payload registered on every session.
	PayloadOffline = "offline"
)

// Status is a snapshot of the controller, delivered on every notification
// and returned by Controller.Status.
type Status struct {
	// State is the state after the transition that produced this status.
	State State `json:"state"`

	// BrokerConnected is true while a broker session is established.
	BrokerConnected bool `json:"broker_connected"`

	// DeviceConfirmed is true once the device readiness signal was observed.
	// It is never true while BrokerConnected is false.
	DeviceConfirmed bool `json:"device_confirmed"`

	// Message is the human-readable notification text.
	Message string `json:"message"`

	// SessionID identifies the Connect call this status belongs to.
	// Empty before the first Connect.
	SessionID string `json:"session_id,omitempty"`

	// Time is when the transition happened (UTC).
	Time time.Time `json:"time"`
}

// FullyConnected reports whether the broker session is up and the device confirmed.
func (s Status) FullyConnected() bool {
	return s.BrokerConnected && s.DeviceConfirmed
}

// StatusListener receives every status notification.
type StatusListener func(status Status)

// DataListener receives status-topic payloads from the device, verbatim.
type DataListener func(payload []byte)
