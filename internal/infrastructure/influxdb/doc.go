// Package influxdb exports link liveness to InfluxDB v2.
//
// Each status notification from the link controller becomes a device_link
// point tagged with the device and state, so availability can be graphed
// over time next to other home telemetry.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.SetOnError(func(err error) { logger.Warn("influx write", "error", err) })
//	client.WriteLinkStatus(cfg.Device.ID, ctrl.Status())
//
// Writes are non-blocking and batched (batch_size, flush_interval); batch
// failures arrive through the SetOnError callback.
package influxdb
