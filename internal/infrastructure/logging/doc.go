// Package logging provides structured logging for the AC remote.
//
// This package wraps Go's standard log/slog package so every component
// (link controller, MQTT transport, history store) logs with the same
// shape and default fields.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stderr"   # stdout, stderr
//
// When the interactive console is active the output setting is ignored and
// log lines are written through the console so the prompt stays intact.
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("connecting", "broker", cfg.MQTT.Broker.Host)
//	logger.Error("publish failed", "error", err)
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
