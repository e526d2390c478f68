package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomvassey/foyer-core/internal/audit"
	"github.com/tomvassey/foyer-core/internal/deviceauth"
)

// registerRequest is the request body for POST /device/register.
type registerRequest struct {
	DeviceID    string `json:"device_id"`
	PublicKey   string `json:"public_key"`
	DisplayName string `json:"display_name,omitempty"`
}

// challengeRequest is the request body for POST /device/challenge.
type challengeRequest struct {
	DeviceID string `json:"device_id"`
}

// verifyRequest is the request body for POST /device/verify.
type verifyRequest struct {
	DeviceID  string `json:"device_id"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"` // standard base64
}

// verifyResponse is the response body for a successful verification.
type verifyResponse struct {
	Token    string            `json:"token"`
	DeviceID string            `json:"device_id"`
	Roles    []deviceauth.Role `json:"roles"`
}

// handleDeviceRegister attaches a device's public key to its seeded row.
//
// Registration is closed by design: a device ID an operator has not
// seeded gets REGISTRATION_DISABLED, not a new row. The same ID with
// the same key is an idempotent no-op so devices can safely retry.
func (s *Server) handleDeviceRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	device, err := s.devices.Register(r.Context(), req.DeviceID, req.PublicKey, req.DisplayName)
	if err != nil {
		if errors.Is(err, deviceauth.ErrDeviceNotFound) {
			writeError(w, http.StatusForbidden, ErrCodeRegistrationDisabled,
				"device has not been provisioned by an operator")
			return
		}
		writeServiceError(w, err)
		return
	}

	s.recordAudit(r, device.DeviceID, audit.ActionDeviceRegister, device.DeviceID, string(device.PublicKeyAlg))
	s.notifyLifecycle(device, "registered", device.DeviceID)

	writeJSON(w, http.StatusOK, device)
}

// handleDeviceChallenge issues a fresh authentication challenge.
// Issuing a new challenge invalidates any outstanding one.
func (s *Server) handleDeviceChallenge(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	challenge, err := s.devices.IssueChallenge(r.Context(), req.DeviceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if s.telemetry != nil {
		s.telemetry.WriteChallengeIssued(req.DeviceID)
	}

	writeJSON(w, http.StatusOK, challenge)
}

// handleDeviceVerify checks the signature over the outstanding challenge
// and mints a bearer token on success. Every outcome, success or
// failure, lands in the audit trail and telemetry.
func (s *Server) handleDeviceVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	signature, err := base64.StdEncoding.DecodeString(req.Signature)
	if err != nil {
		writeBadRequest(w, "signature is not valid base64")
		return
	}

	token, err := s.devices.Verify(r.Context(), req.DeviceID, req.Nonce, signature)
	if err != nil {
		reason := verifyFailureReason(err)
		s.recordAudit(r, req.DeviceID, audit.ActionAuthFailure, req.DeviceID, reason)
		s.notifyAuth(req.DeviceID, "failed", reason)
		writeServiceError(w, err)
		return
	}

	device, err := s.devices.GetDevice(r.Context(), req.DeviceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.recordAudit(r, req.DeviceID, audit.ActionAuthSuccess, req.DeviceID, "")
	s.notifyAuth(req.DeviceID, "verified", "")

	writeJSON(w, http.StatusOK, verifyResponse{
		Token:    token,
		DeviceID: device.DeviceID,
		Roles:    device.Roles,
	})
}

// handleDeviceStatus returns the public view of a device's lifecycle state.
func (s *Server) handleDeviceStatus(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	device, err := s.devices.GetDevice(r.Context(), deviceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": device.DeviceID,
		"status":    device.Status,
		"has_key":   device.HasKey(),
	})
}

// verifyFailureReason converts a verification error into the short
// reason string used in audit entries and telemetry tags.
func verifyFailureReason(err error) string {
	switch {
	case errors.Is(err, deviceauth.ErrChallengeExpired):
		return "challenge_expired"
	case errors.Is(err, deviceauth.ErrChallengeMismatch):
		return "challenge_mismatch"
	case errors.Is(err, deviceauth.ErrChallengeNotFound):
		return "challenge_not_found"
	case errors.Is(err, deviceauth.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, deviceauth.ErrDeviceRevoked):
		return "device_revoked"
	case errors.Is(err, deviceauth.ErrDeviceNotActive):
		return "device_not_active"
	case errors.Is(err, deviceauth.ErrDeviceKeyMissing):
		return "key_missing"
	case errors.Is(err, deviceauth.ErrDeviceNotFound):
		return "not_registered"
	default:
		return "error"
	}
}
