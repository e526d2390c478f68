package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Device protocol endpoints. No bearer auth: the challenge-response
		// protocol itself is the credential.
		r.Route("/device", func(r chi.Router) {
			r.Post("/register", s.handleDeviceRegister)
			r.Post("/challenge", s.handleDeviceChallenge)
			r.Post("/verify", s.handleDeviceVerify)
			r.Get("/status/{id}", s.handleDeviceStatus)
		})

		// Report endpoints (device bearer token required)
		r.Route("/reports", func(r chi.Router) {
			r.Use(s.deviceAuthMiddleware)

			r.Get("/", s.handleListReports)
			r.Post("/", s.handleCreateReport)
			r.Post("/{id}/resolve", s.handleResolveReport)
		})

		// Admin endpoints (operator JWT required)
		r.Route("/admin", func(r chi.Router) {
			// WebSocket authenticates via single-use ticket, validated
			// in the handler (browsers cannot set upgrade headers).
			r.Get("/ws", s.handleWebSocket)

			r.Group(func(r chi.Router) {
				r.Use(s.operatorAuthMiddleware)

				r.Route("/devices", func(r chi.Router) {
					r.Get("/", s.handleAdminListDevices)
					r.Post("/", s.handleAdminSeedDevice)

					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", s.handleAdminGetDevice)
						r.Post("/activate", s.handleAdminActivateDevice)
						r.Post("/revoke", s.handleAdminRevokeDevice)
						r.Put("/roles", s.handleAdminAssignRoles)
					})
				})

				r.Get("/audit", s.handleAdminListAudit)

				// Ticket issuance requires a live operator JWT.
				r.Post("/ws-ticket", s.handleWSTicket)
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
