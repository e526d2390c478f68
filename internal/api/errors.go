package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tomvassey/foyer-core/internal/deviceauth"
	"github.com/tomvassey/foyer-core/internal/operator"
	"github.com/tomvassey/foyer-core/internal/report"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Generic error codes.
const (
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeUnauthorized = "UNAUTHORISED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// Domain error codes. Clients branch on these, so they are part of the
// wire contract and never change.
const (
	ErrCodeRegistrationDisabled = "REGISTRATION_DISABLED"
	ErrCodeDeviceNotRegistered  = "DEVICE_NOT_REGISTERED"
	ErrCodeDeviceRevoked        = "DEVICE_REVOKED"
	ErrCodeDeviceNotActive      = "DEVICE_NOT_ACTIVE"
	ErrCodeDeviceKeyMissing     = "DEVICE_KEY_MISSING"
	ErrCodeDeviceExists         = "DEVICE_EXISTS"
	ErrCodeKeyAlreadyAttached   = "KEY_ALREADY_ATTACHED"
	ErrCodeInvalidPublicKey     = "INVALID_PUBLIC_KEY"
	ErrCodeUnsupportedKeyType   = "UNSUPPORTED_KEY_TYPE"
	ErrCodeInvalidDeviceID      = "INVALID_DEVICE_ID"
	ErrCodeUnknownRole          = "UNKNOWN_ROLE"
	ErrCodeChallengeNotFound    = "CHALLENGE_NOT_FOUND"
	ErrCodeChallengeExpired     = "CHALLENGE_EXPIRED"
	ErrCodeChallengeMismatch    = "CHALLENGE_MISMATCH"
	ErrCodeInvalidSignature     = "INVALID_SIGNATURE"
	ErrCodeDeviceTokenInvalid   = "DEVICE_TOKEN_INVALID"
	ErrCodeRoleForbidden        = "ROLE_FORBIDDEN"
	ErrCodeReportNotFound       = "REPORT_NOT_FOUND"
	ErrCodeInvalidCategory      = "INVALID_CATEGORY"
	ErrCodeMissingTitle         = "MISSING_TITLE"
	ErrCodeReportResolved       = "REPORT_ALREADY_RESOLVED"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// serviceErrorMapping pairs a sentinel error with its wire representation.
type serviceErrorMapping struct {
	target error
	status int
	code   string
}

// serviceErrors maps domain sentinel errors to HTTP responses.
//
// Failure granularity is deliberate: challenge and signature failures
// are distinguishable so device firmware can decide whether to retry
// (expired challenge) or give up (bad key material).
var serviceErrors = []serviceErrorMapping{
	{deviceauth.ErrDeviceNotFound, http.StatusNotFound, ErrCodeDeviceNotRegistered},
	{deviceauth.ErrDeviceRevoked, http.StatusConflict, ErrCodeDeviceRevoked},
	{deviceauth.ErrDeviceNotActive, http.StatusConflict, ErrCodeDeviceNotActive},
	{deviceauth.ErrDeviceKeyMissing, http.StatusConflict, ErrCodeDeviceKeyMissing},
	{deviceauth.ErrDeviceExists, http.StatusConflict, ErrCodeDeviceExists},
	{deviceauth.ErrKeyAlreadyAttached, http.StatusConflict, ErrCodeKeyAlreadyAttached},
	{deviceauth.ErrInvalidPublicKey, http.StatusBadRequest, ErrCodeInvalidPublicKey},
	{deviceauth.ErrUnsupportedKeyType, http.StatusBadRequest, ErrCodeUnsupportedKeyType},
	{deviceauth.ErrInvalidDeviceID, http.StatusBadRequest, ErrCodeInvalidDeviceID},
	{deviceauth.ErrUnknownRole, http.StatusBadRequest, ErrCodeUnknownRole},
	{deviceauth.ErrChallengeNotFound, http.StatusForbidden, ErrCodeChallengeNotFound},
	{deviceauth.ErrChallengeExpired, http.StatusForbidden, ErrCodeChallengeExpired},
	{deviceauth.ErrChallengeMismatch, http.StatusForbidden, ErrCodeChallengeMismatch},
	{deviceauth.ErrInvalidSignature, http.StatusForbidden, ErrCodeInvalidSignature},
	{deviceauth.ErrTokenInvalid, http.StatusUnauthorized, ErrCodeDeviceTokenInvalid},
	{report.ErrNotFound, http.StatusNotFound, ErrCodeReportNotFound},
	{report.ErrInvalidCategory, http.StatusBadRequest, ErrCodeInvalidCategory},
	{report.ErrMissingTitle, http.StatusBadRequest, ErrCodeMissingTitle},
	{report.ErrAlreadyResolved, http.StatusConflict, ErrCodeReportResolved},
	{operator.ErrTokenInvalid, http.StatusUnauthorized, ErrCodeUnauthorized},
}

// writeServiceError maps a service-layer error to its wire form and
// writes it. Unrecognised errors become opaque 500s so internal details
// never leak to devices.
func writeServiceError(w http.ResponseWriter, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.target) {
			writeError(w, m.status, m.code, err.Error())
			return
		}
	}
	writeInternalError(w, "internal server error")
}
