package influxdb

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementRequest = "relay_request"
	measurementTrigger = "relay_trigger"
)

// WriteRequestMetric records an API request outcome.
//
// Tags (indexed): endpoint, status. Fields: duration_ms.
// The write is buffered and flushed asynchronously.
func (c *Client) WriteRequestMetric(endpoint, status string, durationMs float64) {
	point := influxdb2.NewPoint(
		measurementRequest,
		map[string]string{
			"endpoint": endpoint,
			"status":   status,
		},
		map[string]interface{}{
			"duration_ms": durationMs,
		},
		time.Now(),
	)
	c.WritePoint(point)
}

// WriteTriggerMetric records a hardware trigger attempt.
//
// Tags: machine_id, outcome (ok or failed). Fields: duration_ms.
func (c *Client) WriteTriggerMetric(machineID, outcome string, durationMs float64) {
	point := influxdb2.NewPoint(
		measurementTrigger,
		map[string]string{
			"machine_id": machineID,
			"outcome":    outcome,
		},
		map[string]interface{}{
			"duration_ms": durationMs,
		},
		time.Now(),
	)
	c.WritePoint(point)
}

// WritePoint buffers a point for asynchronous writing.
// No-op after Close.
func (c *Client) WritePoint(point *write.Point) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	c.writeAPI.WritePoint(point)
}
