package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/Gowrisankar10354/ac-remote-final/internal/link"
)

// linkMeasurement is the measurement name for link status points.
const linkMeasurement = "device_link"

// WriteLinkStatus records one status notification as a device_link point.
//
// The state is a tag so dashboards can group by it; the flags are fields,
// with fully_connected as 0/1 for graphing availability.
//
// Example:
//
//	OnStatus: func(s link.Status) { influx.WriteLinkStatus(cfg.Device.ID, s) }
func (c *Client) WriteLinkStatus(deviceID string, status link.Status) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(linkPoint(deviceID, status))
}

// linkPoint builds the device_link point for a status.
func linkPoint(deviceID string, status link.Status) *write.Point {
	at := status.Time
	if at.IsZero() {
		at = time.Now()
	}

	fully := 0
	if status.FullyConnected() {
		fully = 1
	}

	return write.NewPoint(
		linkMeasurement,
		map[string]string{
			"device_id": deviceID,
			"state":     status.State.String(),
		},
		map[string]interface{}{
			"broker_connected": status.BrokerConnected,
			"device_confirmed": status.DeviceConfirmed,
			"fully_connected":  fully,
			"message":          status.Message,
		},
		at,
	)
}
