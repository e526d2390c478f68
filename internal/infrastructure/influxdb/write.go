package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteAuthEvent records the outcome of a challenge verification.
//
// This is the primary method for auth telemetry. The write is
// non-blocking; data is batched and sent asynchronously. Outcomes feed
// the security dashboard's failure-rate panels.
//
// Parameters:
//   - deviceID: The device that attempted verification
//   - outcome: "verified" or "failed"
//   - reason: failure reason, empty on success (e.g., "challenge_expired")
//
// Example:
//
//	client.WriteAuthEvent("scanner-reception-01", "failed", "invalid_signature")
func (c *Client) WriteAuthEvent(deviceID, outcome, reason string) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{
		"device_id": deviceID,
		"outcome":   outcome,
	}
	if reason != "" {
		tags["reason"] = reason
	}

	point := write.NewPoint(
		"device_auth",
		tags,
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteChallengeIssued records a challenge being handed to a device.
//
// A high issued-to-verified ratio indicates devices failing or
// abandoning authentication.
func (c *Client) WriteChallengeIssued(deviceID string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_challenge",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteReportFiled records a report being filed by a device.
//
// Parameters:
//   - deviceID: The reporting device
//   - category: "find" or "issue"
func (c *Client) WriteReportFiled(deviceID, category string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"report_filed",
		map[string]string{
			"device_id": deviceID,
			"category":  category,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "foyer-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
