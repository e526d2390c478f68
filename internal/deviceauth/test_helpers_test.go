package deviceauth

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"database/sql"
	"encoding/base64"
	"encoding/pem"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tomvassey/foyer-core/internal/infrastructure/logging"
)

// testDB creates a temporary SQLite database with the devices schema applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "deviceauth-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
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
	`
	if _, err := db.Exec(migrationSQL); err != nil {
		t.Fatalf("applying devices migration: %v", err)
	}

	return db
}

// newTestService builds a Service over a fresh test database.
func newTestService(t *testing.T) (*Service, *SQLiteRepository) {
	t.Helper()
	repo := NewRepository(testDB(t))
	svc := NewService(repo, logging.Default(), 120*time.Second, "test-pepper")
	return svc, repo
}

// seedDevice inserts a device row and returns it.
func seedDevice(t *testing.T, repo *SQLiteRepository, deviceID string, roles ...Role) *Device {
	t.Helper()

	device := &Device{
		DeviceID: deviceID,
		Status:   StatusPending,
		Roles:    roles,
	}
	if err := repo.Create(t.Context(), device); err != nil {
		t.Fatalf("seeding device %s: %v", deviceID, err)
	}
	return device
}

// activateDevice flips a seeded device to ACTIVE.
func activateDevice(t *testing.T, repo *SQLiteRepository, deviceID string) {
	t.Helper()
	if err := repo.Activate(t.Context(), deviceID); err != nil {
		t.Fatalf("activating device %s: %v", deviceID, err)
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

// testEd25519Key generates an Ed25519 keypair and returns the private key
// with its public half base64-encoded raw (the 32-byte wire format).
func testEd25519Key(t *testing.T) (ed25519.PrivateKey, string) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating Ed25519 key: %v", err)
	}
	return priv, base64.StdEncoding.EncodeToString(pub)
}

// signNonceECDSA signs the decoded nonce bytes the way a device would:
// ASN.1 DER signature over the SHA-256 digest.
func signNonceECDSA(t *testing.T, priv *ecdsa.PrivateKey, nonce string) []byte {
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
	return sig
}

// signNonceEd25519 signs the decoded nonce bytes with Ed25519.
func signNonceEd25519(t *testing.T, priv ed25519.PrivateKey, nonce string) []byte {
	t.Helper()

	message, err := base64.StdEncoding.DecodeString(nonce)
	if err != nil {
		t.Fatalf("decoding nonce: %v", err)
	}
	return ed25519.Sign(priv, message)
}

// registerAndActivate walks a device through seed → register → activate and
// returns the refreshed device.
func registerAndActivate(t *testing.T, svc *Service, repo *SQLiteRepository, deviceID, publicKey string, roles ...Role) *Device {
	t.Helper()

	seedDevice(t, repo, deviceID, roles...)
	if _, err := svc.Register(t.Context(), deviceID, publicKey, "Test Device"); err != nil {
		t.Fatalf("registering device: %v", err)
	}
	activateDevice(t, repo, deviceID)

	device, err := repo.GetByID(t.Context(), deviceID)
	if err != nil {
		t.Fatalf("reloading device: %v", err)
	}
	return device
}
