// Package link tracks the liveness of a single remote device that is only
// reachable through an MQTT broker.
//
// It separates two facts that are easy to conflate:
//   - the controller holds a session with the broker
//   - the device itself has announced readiness on its ready topic
//
// # State Machine
//
//	IDLE ──Connect──▶ CONNECTING ──ok──▶ AWAITING_DEVICE ──"online"──▶ FULLY_CONNECTED
//	                     │                   │      ▲                      │
//	                     ▼ fail              │      └──── not "online" ────┘
//	              CONNECTION_ERROR           ▼ watchdog
//	                                  DEVICE_NOT_RESPONDING
//
// Any broker loss moves to DISCONNECTED and clears both flags in the same
// transition. Disconnect is accepted in every state. The controller cycles
// through these states indefinitely; it is created once and reused.
//
// # Last Will
//
// Every session is opened with a retained "offline" will on the device ready
// topic, so an ungraceful loss of the controller's session is visible to any
// other subscriber without a local timeout.
//
// # Concurrency
//
// Transport callbacks, host commands and watchdog expiries all enter the
// state machine through one serialized entry point. Status and data
// notifications are delivered in transition order outside the internal lock,
// so listeners may call back into the Controller.
//
// # Usage
//
//	ctrl, err := link.New(link.Options{
//	    Transport:    transport,
//	    Topics:       link.Topics{Command: "ac/cmd", Status: "ac/status", Ready: "ac/ready"},
//	    ReadyTimeout: 10 * time.Second,
//	    OnStatus:     func(s link.Status) { log.Info("link", "state", s.State, "msg", s.Message) },
//	    OnData:       func(payload []byte) { log.Info("device data", "payload", string(payload)) },
//	})
//	if err != nil {
//	    return err
//	}
//	ctrl.Connect()
//	...
//	err = ctrl.Publish(map[string]any{"power": "on"})
package link
