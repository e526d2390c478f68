package mqtt

import (
	"encoding/json"
	"fmt"
	"time"
)

// DeviceLifecycleEvent announces a change to a device's lifecycle state.
type DeviceLifecycleEvent struct {
	DeviceID  string `json:"device_id"`
	Event     string `json:"event"` // seeded, registered, activated, revoked, roles_changed
	Actor     string `json:"actor,omitempty"`
	Status    string `json:"status,omitempty"`
	Timestamp string `json:"timestamp"`
}

// DeviceAuthEvent announces the outcome of a challenge verification.
// Nonces, signatures and tokens never appear on the bus.
type DeviceAuthEvent struct {
	DeviceID  string `json:"device_id"`
	Outcome   string `json:"outcome"` // verified, failed
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// ReportEvent announces a report being filed or resolved.
type ReportEvent struct {
	ReportID  string `json:"report_id"`
	Category  string `json:"category"`
	Status    string `json:"status"`
	DeviceID  string `json:"device_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

// PublishDeviceLifecycle publishes a lifecycle event for a device.
func (c *Client) PublishDeviceLifecycle(event DeviceLifecycleEvent) error {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return c.publishJSON(Topics{}.DeviceLifecycle(event.DeviceID), event)
}

// PublishDeviceAuth publishes an auth outcome event for a device.
func (c *Client) PublishDeviceAuth(event DeviceAuthEvent) error {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return c.publishJSON(Topics{}.DeviceAuth(event.DeviceID), event)
}

// PublishReport publishes a report workflow event.
func (c *Client) PublishReport(event ReportEvent) error {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return c.publishJSON(Topics{}.Report(event.ReportID), event)
}

// publishJSON marshals the event and publishes at the configured QoS.
// Events are never retained.
func (c *Client) publishJSON(topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: marshalling event: %w", ErrPublishFailed, err)
	}
	return c.Publish(topic, payload, byte(c.cfg.QoS), false)
}
