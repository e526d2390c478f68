package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the Foyer event bus.
//
// All topics use the scheme: foyer/{category}/...
// Property systems (door controllers, dashboards, the night-audit job)
// subscribe to these topics to follow device and report activity.
const (
	// TopicPrefixEvent is the base for all event topics.
	TopicPrefixEvent = "foyer/event"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "foyer/system"
)

// Topics provides builders for Foyer MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	topic := topics.DeviceLifecycle("scanner-reception-01")
//	// Returns: "foyer/event/device/scanner-reception-01/lifecycle"
type Topics struct{}

// topicSegmentEscaper neutralises the MQTT structural characters.
// Device IDs are operator-chosen free-form strings; one containing "/"
// or a wildcard must not change the topic shape.
var topicSegmentEscaper = strings.NewReplacer("/", "_", "+", "_", "#", "_")

// escapeSegment makes an identifier safe to embed as one topic level.
func escapeSegment(id string) string {
	return topicSegmentEscaper.Replace(id)
}

// DeviceLifecycle returns the topic for device lifecycle events
// (seeded, registered, activated, revoked, roles changed).
//
// Example: foyer/event/device/scanner-reception-01/lifecycle
func (Topics) DeviceLifecycle(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/lifecycle", TopicPrefixEvent, escapeSegment(deviceID))
}

// DeviceAuth returns the topic for authentication outcome events
// (challenge verified, verification failed).
//
// Example: foyer/event/device/scanner-reception-01/auth
func (Topics) DeviceAuth(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/auth", TopicPrefixEvent, escapeSegment(deviceID))
}

// Report returns the topic for report workflow events (filed, resolved).
//
// Example: foyer/event/report/rpt-9f2c1a84b3d0e7f6
func (Topics) Report(reportID string) string {
	return fmt.Sprintf("%s/report/%s", TopicPrefixEvent, escapeSegment(reportID))
}

// SystemStatus returns the service status topic. Published retained so
// new subscribers immediately learn whether Foyer is online.
//
// Example: foyer/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllDeviceLifecycle returns a pattern matching lifecycle events for
// every device.
//
// Pattern: foyer/event/device/+/lifecycle
func (Topics) AllDeviceLifecycle() string {
	return fmt.Sprintf("%s/device/+/lifecycle", TopicPrefixEvent)
}

// AllDeviceAuth returns a pattern matching auth events for every device.
//
// Pattern: foyer/event/device/+/auth
func (Topics) AllDeviceAuth() string {
	return fmt.Sprintf("%s/device/+/auth", TopicPrefixEvent)
}

// AllReports returns a pattern matching all report events.
//
// Pattern: foyer/event/report/+
func (Topics) AllReports() string {
	return fmt.Sprintf("%s/report/+", TopicPrefixEvent)
}

// AllEvents returns a pattern matching every event topic.
//
// Pattern: foyer/event/#
func (Topics) AllEvents() string {
	return TopicPrefixEvent + "/#"
}

// AllTopics returns a pattern matching all Foyer topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: foyer/#
func (Topics) AllTopics() string {
	return "foyer/#"
}
