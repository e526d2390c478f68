package api

import (
	"net/http"
	"testing"
)

func TestHealth(t *testing.T) {
	_, handler := newTestServer(t)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("version = %v, want test", body["version"])
	}
}

func TestNew_MissingDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() with empty deps should fail")
	}
}

func TestAdminRequiresOperatorToken(t *testing.T) {
	_, handler := newTestServer(t)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/admin/devices", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/admin/devices", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status with garbage token = %d, want 401", rec.Code)
	}
}

func TestReportsRequireDeviceToken(t *testing.T) {
	_, handler := newTestServer(t)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/reports", "", nil)
	wantErrorCode(t, rec, http.StatusUnauthorized, ErrCodeDeviceTokenInvalid)

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/reports", "bogus-token", nil)
	wantErrorCode(t, rec, http.StatusUnauthorized, ErrCodeDeviceTokenInvalid)
}

func TestWSTicket(t *testing.T) {
	srv, handler := newTestServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/admin/ws-ticket", operatorToken(t), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	ticket, _ := decodeBody(t, rec)["ticket"].(string) //nolint:errcheck // fatal below on empty
	if ticket == "" {
		t.Fatal("response missing ticket")
	}

	entry, ok := srv.tickets.validate(ticket)
	if !ok {
		t.Fatal("freshly issued ticket should validate")
	}
	if entry.subject != "op-alice" {
		t.Errorf("ticket subject = %q, want op-alice", entry.subject)
	}

	// Tickets are single-use.
	if _, ok := srv.tickets.validate(ticket); ok {
		t.Error("ticket should not validate twice")
	}
}

func TestWebSocketRequiresTicket(t *testing.T) {
	_, handler := newTestServer(t)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/admin/ws", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/admin/ws?ticket=bogus", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status with bogus ticket = %d, want 401", rec.Code)
	}
}
