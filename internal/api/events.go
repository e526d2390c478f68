package api

import (
	"net/http"

	"github.com/tomvassey/foyer-core/internal/audit"
	"github.com/tomvassey/foyer-core/internal/deviceauth"
	"github.com/tomvassey/foyer-core/internal/infrastructure/mqtt"
	"github.com/tomvassey/foyer-core/internal/report"
)

// WebSocket broadcast channels for the operator event stream.
const (
	channelDeviceLifecycle = "device.lifecycle"
	channelDeviceAuth      = "device.auth"
	channelReport          = "report"
)

// recordAudit appends an audit event, logging (never failing the
// request) if the write does not land.
func (s *Server) recordAudit(r *http.Request, actor, action, deviceID, detail string) {
	event := &audit.Event{
		Actor:    actor,
		Action:   action,
		DeviceID: deviceID,
		Detail:   detail,
	}
	if err := s.audit.Create(r.Context(), event); err != nil {
		s.logger.Error("audit write failed",
			"action", action,
			"device_id", deviceID,
			"error", err,
		)
	}
}

// notifyLifecycle fans a device lifecycle change out to WebSocket
// clients and the MQTT bus.
func (s *Server) notifyLifecycle(device *deviceauth.Device, event, actor string) {
	payload := map[string]any{
		"device_id": device.DeviceID,
		"event":     event,
		"status":    device.Status,
		"actor":     actor,
	}
	if s.hub != nil {
		s.hub.Broadcast(channelDeviceLifecycle, payload)
	}
	if s.mqtt != nil {
		err := s.mqtt.PublishDeviceLifecycle(mqtt.DeviceLifecycleEvent{
			DeviceID: device.DeviceID,
			Event:    event,
			Actor:    actor,
			Status:   string(device.Status),
		})
		if err != nil {
			s.logger.Warn("lifecycle event publish failed", "device_id", device.DeviceID, "error", err)
		}
	}
}

// notifyAuth fans an authentication outcome out to WebSocket clients,
// the MQTT bus, and telemetry. Nonces and tokens never leave the service.
func (s *Server) notifyAuth(deviceID, outcome, reason string) {
	payload := map[string]any{
		"device_id": deviceID,
		"outcome":   outcome,
	}
	if reason != "" {
		payload["reason"] = reason
	}
	if s.hub != nil {
		s.hub.Broadcast(channelDeviceAuth, payload)
	}
	if s.mqtt != nil {
		err := s.mqtt.PublishDeviceAuth(mqtt.DeviceAuthEvent{
			DeviceID: deviceID,
			Outcome:  outcome,
			Reason:   reason,
		})
		if err != nil {
			s.logger.Warn("auth event publish failed", "device_id", deviceID, "error", err)
		}
	}
	if s.telemetry != nil {
		s.telemetry.WriteAuthEvent(deviceID, outcome, reason)
	}
}

// notifyReport fans a report workflow change out to WebSocket clients
// and the MQTT bus.
func (s *Server) notifyReport(rep *report.Report) {
	payload := map[string]any{
		"report_id": rep.ID,
		"category":  rep.Category,
		"status":    rep.Status,
		"device_id": rep.ReportedBy,
	}
	if s.hub != nil {
		s.hub.Broadcast(channelReport, payload)
	}
	if s.mqtt != nil {
		err := s.mqtt.PublishReport(mqtt.ReportEvent{
			ReportID: rep.ID,
			Category: string(rep.Category),
			Status:   string(rep.Status),
			DeviceID: rep.ReportedBy,
		})
		if err != nil {
			s.logger.Warn("report event publish failed", "report_id", rep.ID, "error", err)
		}
	}
}
