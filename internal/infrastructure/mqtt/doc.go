// Package mqtt is the broker transport for the AC remote link controller.
//
// Transport implements link.Transport on top of paho.mqtt.golang:
//   - One paho client per Connect, registered with the controller's last will
//   - Non-blocking connect, subscribe and publish; outcomes reported via link.Handlers
//   - Automatic reconnection after an established session drops (configurable)
//   - Ordered message delivery so readiness updates are seen in broker order
//   - Connection health checks
//
// # Architecture
//
//	link.Controller ↔ mqtt.Transport ↔ MQTT Broker ↔ AC device
//
// The controller holds its own lock while it calls into the transport, and
// the transport's callbacks take that same lock. For that reason nothing in
// this package waits on a paho token from inside a Transport method, and
// Disconnect tears the client down on a separate goroutine.
//
// # Security Considerations
//
//   - Use TLS outside the local network (cfg.Broker.TLS=true)
//   - Credentials are checked against the broker ACL
//   - Anonymous access is only for local development
//
// # Usage
//
//	transport := mqtt.New(cfg.MQTT)
//	transport.SetLogger(logger.With("component", "mqtt"))
//
//	ctrl, err := link.New(link.Options{Transport: transport, Topics: topics})
//	if err != nil {
//	    return err
//	}
//	ctrl.Connect()
package mqtt
