package api

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tomvassey/foyer-core/internal/audit"
	"github.com/tomvassey/foyer-core/internal/deviceauth"
	"github.com/tomvassey/foyer-core/internal/infrastructure/config"
	"github.com/tomvassey/foyer-core/internal/infrastructure/logging"
	"github.com/tomvassey/foyer-core/internal/operator"
	"github.com/tomvassey/foyer-core/internal/report"
)

// testJWTSecret is the shared operator JWT secret used in tests.
const testJWTSecret = "test-operator-secret-0123456789abcdef"

// testDB creates a temporary SQLite database with the full schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "api-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	migrationSQL := `
		CREATE TABLE devices (
			device_id                TEXT PRIMARY KEY,
			status                   TEXT NOT NULL DEFAULT 'PENDING'
			                         CHECK (status IN ('PENDING', 'ACTIVE', 'REVOKED')),
			display_name             TEXT,
			roles                    TEXT NOT NULL DEFAULT '',
			public_key               BLOB,
			public_key_alg           TEXT,
			token_hash               TEXT,
			last_challenge_nonce     TEXT,
			last_challenge_issued_at TEXT,
			registered_at            TEXT,
			activated_at             TEXT,
			revoked_at               TEXT,
			last_seen_at             TEXT,
			created_at               TEXT NOT NULL,
			updated_at               TEXT NOT NULL
		) STRICT;
		CREATE INDEX idx_devices_token_hash ON devices(token_hash);

		CREATE TABLE reports (
			id          TEXT PRIMARY KEY,
			category    TEXT NOT NULL CHECK (category IN ('find', 'issue')),
			status      TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'resolved')),
			title       TEXT NOT NULL,
			detail      TEXT,
			location    TEXT,
			reported_by TEXT NOT NULL,
			created_at  TEXT NOT NULL,
			resolved_at TEXT
		) STRICT;

		CREATE TABLE audit_events (
			id         TEXT PRIMARY KEY,
			actor      TEXT NOT NULL,
			action     TEXT NOT NULL,
			device_id  TEXT,
			detail     TEXT,
			created_at TEXT NOT NULL
		) STRICT;
	`
	if _, err := db.Exec(migrationSQL); err != nil {
		t.Fatalf("applying test migrations: %v", err)
	}

	return db
}

// newTestServer builds an API server over a fresh database and returns
// it with its router. The listener is never started; tests drive the
// router directly through httptest.
func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()

	db := testDB(t)
	deviceRepo := deviceauth.NewRepository(db)
	devices := deviceauth.NewService(deviceRepo, logging.Default(), 120*time.Second, "test-pepper")

	srv, err := New(Deps{
		Config: config.APIConfig{},
		WS: config.WebSocketConfig{
			MaxMessageSize: 4096,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: config.SecurityConfig{
			OperatorJWT: config.JWTConfig{Secret: testJWTSecret},
		},
		Logger:  logging.Default(),
		Devices: devices,
		Reports: report.NewRepository(db),
		Audit:   audit.NewSQLiteRepository(db),
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return srv, srv.buildRouter()
}

// operatorToken mints a manager JWT for admin requests.
func operatorToken(t *testing.T) string {
	t.Helper()

	token, err := operator.GenerateToken("op-alice", operator.RoleManager, testJWTSecret, time.Hour)
	if err != nil {
		t.Fatalf("generating operator token: %v", err)
	}
	return token
}

// doJSON performs a request against the router with an optional bearer
// token and JSON body, returning the recorder.
func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshalling request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// decodeBody unmarshals the recorder body into a map.
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response body %q: %v", rec.Body.String(), err)
	}
	return out
}

// wantErrorCode asserts the response carries the given status and error code.
func wantErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()

	if rec.Code != status {
		t.Errorf("status = %d, want %d (body: %s)", rec.Code, status, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["code"] != code {
		t.Errorf("error code = %v, want %q", body["code"], code)
	}
}

// testECDSAKey generates a P-256 keypair and returns the private key with
// its public half PEM-encoded.
func testECDSAKey(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating ECDSA key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("marshalling public key: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return priv, string(pemBytes)
}

// signNonce signs the decoded nonce bytes the way a device firmware
// would and returns the base64 signature for the verify request.
func signNonce(t *testing.T, priv *ecdsa.PrivateKey, nonce string) string {
	t.Helper()

	message, err := base64.StdEncoding.DecodeString(nonce)
	if err != nil {
		t.Fatalf("decoding nonce: %v", err)
	}
	digest := sha256.Sum256(message)
	sig, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	if err != nil {
		t.Fatalf("signing nonce: %v", err)
	}
	return base64.StdEncoding.EncodeToString(sig)
}

// provisionDevice walks a device through seed → register → activate via
// the API and returns its private key.
func provisionDevice(t *testing.T, handler http.Handler, deviceID string, roles []string) *ecdsa.PrivateKey {
	t.Helper()

	opToken := operatorToken(t)
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/admin/devices", opToken, map[string]any{
		"device_id": deviceID,
		"roles":     roles,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("seeding device: status = %d (body: %s)", rec.Code, rec.Body.String())
	}

	priv, publicKey := testECDSAKey(t)
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/device/register", "", map[string]any{
		"device_id":  deviceID,
		"public_key": publicKey,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("registering device: status = %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/admin/devices/"+deviceID+"/activate", opToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("activating device: status = %d (body: %s)", rec.Code, rec.Body.String())
	}

	return priv
}

// authenticateDevice runs the challenge-verify exchange and returns the
// bearer token.
func authenticateDevice(t *testing.T, handler http.Handler, deviceID string, priv *ecdsa.PrivateKey) string {
	t.Helper()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/device/challenge", "", map[string]any{
		"device_id": deviceID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("requesting challenge: status = %d (body: %s)", rec.Code, rec.Body.String())
	}
	nonce, _ := decodeBody(t, rec)["nonce"].(string) //nolint:errcheck // fatal below on empty
	if nonce == "" {
		t.Fatal("challenge response missing nonce")
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/device/verify", "", map[string]any{
		"device_id": deviceID,
		"nonce":     nonce,
		"signature": signNonce(t, priv, nonce),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("verifying challenge: status = %d (body: %s)", rec.Code, rec.Body.String())
	}
	token, _ := decodeBody(t, rec)["token"].(string) //nolint:errcheck // fatal below on empty
	if token == "" {
		t.Fatal("verify response missing token")
	}
	return token
}
