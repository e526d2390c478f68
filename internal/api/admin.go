package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tomvassey/foyer-core/internal/audit"
)

// seedDeviceRequest is the request body for POST /admin/devices.
type seedDeviceRequest struct {
	DeviceID    string   `json:"device_id"`
	DisplayName string   `json:"display_name,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

// assignRolesRequest is the request body for PUT /admin/devices/{id}/roles.
type assignRolesRequest struct {
	Roles []string `json:"roles"`
}

// operatorSubject returns the authenticated operator's subject for
// audit attribution, or "operator" if claims are somehow absent.
func operatorSubject(r *http.Request) string {
	if claims := operatorFromContext(r.Context()); claims != nil {
		return claims.Subject
	}
	return "operator"
}

// handleAdminListDevices lists every seeded device.
func (s *Server) handleAdminListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.ListDevices(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleAdminSeedDevice provisions a device row in PENDING state.
// The device itself attaches its key later via /device/register.
func (s *Server) handleAdminSeedDevice(w http.ResponseWriter, r *http.Request) {
	var req seedDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	actor := operatorSubject(r)
	device, err := s.devices.CreateDevice(r.Context(), req.DeviceID, req.DisplayName, req.Roles)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.recordAudit(r, actor, audit.ActionDeviceSeeded, device.DeviceID, "")
	s.notifyLifecycle(device, "seeded", actor)

	writeJSON(w, http.StatusCreated, device)
}

// handleAdminGetDevice returns the full admin view of a device.
func (s *Server) handleAdminGetDevice(w http.ResponseWriter, r *http.Request) {
	device, err := s.devices.GetDevice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, device)
}

// handleAdminActivateDevice moves a PENDING device to ACTIVE.
// Activating an already-active device is a no-op, not an error.
func (s *Server) handleAdminActivateDevice(w http.ResponseWriter, r *http.Request) {
	actor := operatorSubject(r)
	device, err := s.devices.Activate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.recordAudit(r, actor, audit.ActionDeviceActivated, device.DeviceID, "")
	s.notifyLifecycle(device, "activated", actor)

	writeJSON(w, http.StatusOK, device)
}

// handleAdminRevokeDevice terminally disables a device. Outstanding
// bearer tokens die with it; protected calls made with one are rejected
// as revoked.
func (s *Server) handleAdminRevokeDevice(w http.ResponseWriter, r *http.Request) {
	actor := operatorSubject(r)
	device, err := s.devices.Revoke(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.recordAudit(r, actor, audit.ActionDeviceRevoked, device.DeviceID, "")
	s.notifyLifecycle(device, "revoked", actor)

	writeJSON(w, http.StatusOK, device)
}

// handleAdminAssignRoles replaces a device's role set.
func (s *Server) handleAdminAssignRoles(w http.ResponseWriter, r *http.Request) {
	var req assignRolesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	actor := operatorSubject(r)
	device, err := s.devices.AssignRoles(r.Context(), chi.URLParam(r, "id"), req.Roles)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.recordAudit(r, actor, audit.ActionRolesChanged, device.DeviceID, strings.Join(req.Roles, ","))
	s.notifyLifecycle(device, "roles_changed", actor)

	writeJSON(w, http.StatusOK, device)
}

// handleAdminListAudit returns paginated audit events.
func (s *Server) handleAdminListAudit(w http.ResponseWriter, r *http.Request) {
	filter := audit.Filter{
		Action:   r.URL.Query().Get("action"),
		DeviceID: r.URL.Query().Get("device_id"),
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		filter.Limit = limit
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
		filter.Offset = offset
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
