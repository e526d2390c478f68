package deviceauth

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device identity persistence.
type Repository interface {
	Create(ctx context.Context, device *Device) error
	GetByID(ctx context.Context, deviceID string) (*Device, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*Device, error)
	List(ctx context.Context) ([]Device, error)
	AttachKey(ctx context.Context, deviceID string, der []byte, alg KeyAlgorithm) error
	SetDisplayName(ctx context.Context, deviceID, name string) error
	SetRoles(ctx context.Context, deviceID string, roles []Role) error
	Activate(ctx context.Context, deviceID string) error
	Revoke(ctx context.Context, deviceID string) error
	UpdateLastSeen(ctx context.Context, deviceID string) error
	StoreChallenge(ctx context.Context, deviceID, nonce string, issuedAt time.Time) error
	ConsumeChallenge(ctx context.Context, deviceID, nonce string) (bool, error)
	StoreTokenHash(ctx context.Context, deviceID, tokenHash string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite-backed device repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// deviceColumns is the column list shared by all device SELECTs.
const deviceColumns = `device_id, status, display_name, roles, public_key, public_key_alg,
	token_hash, last_challenge_nonce, last_challenge_issued_at,
	registered_at, activated_at, revoked_at, last_seen_at, created_at, updated_at`

// Create inserts a new device row in PENDING state. Only operators call this;
// devices cannot create their own identities.
func (r *SQLiteRepository) Create(ctx context.Context, device *Device) error {
	if !IsValidDeviceID(device.DeviceID) {
		return fmt.Errorf("%w: %q", ErrInvalidDeviceID, device.DeviceID)
	}
	if device.Status == "" {
		device.Status = StatusPending
	}

	now := time.Now().UTC()
	device.CreatedAt = now
	device.UpdatedAt = now
	nowStr := now.Format(time.RFC3339)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO devices (device_id, status, display_name, roles, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		device.DeviceID, string(device.Status), nullString(device.DisplayName),
		encodeRoles(device.Roles), nowStr, nowStr,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("creating device: %w", err)
	}
	return nil
}

// GetByID retrieves a device by its identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, deviceID string) (*Device, error) {
	return scanDevice(r.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE device_id = ?`, deviceID))
}

// GetByTokenHash retrieves a device by its token hash (used during bearer
// token resolution).
func (r *SQLiteRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*Device, error) {
	return scanDevice(r.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE token_hash = ?`, tokenHash))
}

// List returns all devices, oldest first.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices ORDER BY created_at ASC, device_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	defer rows.Close()

	devices := []Device{}
	for rows.Next() {
		d, err := scanDeviceRow(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// AttachKey stores the canonical public key exactly once. The WHERE clause
// guards against a concurrent registration winning the race: the update only
// applies while no key is stored.
func (r *SQLiteRepository) AttachKey(ctx context.Context, deviceID string, der []byte, alg KeyAlgorithm) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		`UPDATE devices
		 SET public_key = ?, public_key_alg = ?, registered_at = ?, updated_at = ?
		 WHERE device_id = ? AND public_key IS NULL`,
		der, string(alg), now, now, deviceID,
	)
	if err != nil {
		return fmt.Errorf("attaching key: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrKeyAlreadyAttached
	}
	return nil
}

// SetDisplayName sets the display name if none has been set yet.
// Like the key, the name is attach-once: the device supplies it at first
// registration and cannot rename itself afterwards.
func (r *SQLiteRepository) SetDisplayName(ctx context.Context, deviceID, name string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.ExecContext(ctx,
		`UPDATE devices SET display_name = ?, updated_at = ?
		 WHERE device_id = ? AND display_name IS NULL`,
		name, now, deviceID,
	)
	if err != nil {
		return fmt.Errorf("setting display name: %w", err)
	}
	return nil
}

// SetRoles replaces the device's role set.
func (r *SQLiteRepository) SetRoles(ctx context.Context, deviceID string, roles []Role) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		`UPDATE devices SET roles = ?, updated_at = ? WHERE device_id = ?`,
		encodeRoles(roles), now, deviceID,
	)
	if err != nil {
		return fmt.Errorf("setting roles: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// Activate transitions a PENDING device to ACTIVE. The status guard makes
// the transition atomic; activating a revoked device never succeeds.
func (r *SQLiteRepository) Activate(ctx context.Context, deviceID string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		`UPDATE devices SET status = ?, activated_at = ?, updated_at = ?
		 WHERE device_id = ? AND status = ?`,
		string(StatusActive), now, now, deviceID, string(StatusPending),
	)
	if err != nil {
		return fmt.Errorf("activating device: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return r.explainTransitionFailure(ctx, deviceID, StatusActive)
	}
	return nil
}

// Revoke terminally disables a device. Any outstanding challenge is
// cleared in the same statement. The token hash is deliberately kept:
// a presented token still identifies the revoked device, so the status
// gate can report the revocation instead of a generic bad-token error.
func (r *SQLiteRepository) Revoke(ctx context.Context, deviceID string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		`UPDATE devices
		 SET status = ?, revoked_at = ?, updated_at = ?,
		     last_challenge_nonce = NULL, last_challenge_issued_at = NULL
		 WHERE device_id = ? AND status != ?`,
		string(StatusRevoked), now, now, deviceID, string(StatusRevoked),
	)
	if err != nil {
		return fmt.Errorf("revoking device: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return r.explainTransitionFailure(ctx, deviceID, StatusRevoked)
	}
	return nil
}

// UpdateLastSeen updates the device's last_seen_at timestamp to now.
func (r *SQLiteRepository) UpdateLastSeen(ctx context.Context, deviceID string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.ExecContext(ctx,
		`UPDATE devices SET last_seen_at = ?, updated_at = ? WHERE device_id = ?`,
		now, now, deviceID,
	)
	if err != nil {
		return fmt.Errorf("updating last seen: %w", err)
	}
	return nil
}

// StoreChallenge records a newly issued challenge, overwriting any previous
// one. A device only ever has a single outstanding challenge.
func (r *SQLiteRepository) StoreChallenge(ctx context.Context, deviceID, nonce string, issuedAt time.Time) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		`UPDATE devices
		 SET last_challenge_nonce = ?, last_challenge_issued_at = ?, updated_at = ?
		 WHERE device_id = ?`,
		nonce, issuedAt.UTC().Format(time.RFC3339), now, deviceID,
	)
	if err != nil {
		return fmt.Errorf("storing challenge: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// ConsumeChallenge atomically clears the outstanding challenge if it still
// equals the presented nonce. It returns false when another verification
// already consumed it (or a newer challenge replaced it) - the caller must
// treat that as no challenge outstanding. This conditional update is what
// makes a signed nonce single-use under concurrent verify requests.
func (r *SQLiteRepository) ConsumeChallenge(ctx context.Context, deviceID, nonce string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		`UPDATE devices
		 SET last_challenge_nonce = NULL, last_challenge_issued_at = NULL, updated_at = ?
		 WHERE device_id = ? AND last_challenge_nonce = ?`,
		now, deviceID, nonce,
	)
	if err != nil {
		return false, fmt.Errorf("consuming challenge: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return rows > 0, nil
}

// StoreTokenHash records the hash of a freshly issued bearer token,
// replacing any previous token. One token per device: re-authentication
// invalidates the old token.
func (r *SQLiteRepository) StoreTokenHash(ctx context.Context, deviceID, tokenHash string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		`UPDATE devices SET token_hash = ?, updated_at = ? WHERE device_id = ?`,
		tokenHash, now, deviceID,
	)
	if err != nil {
		return fmt.Errorf("storing token hash: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// explainTransitionFailure maps a guarded-update miss to a precise error.
func (r *SQLiteRepository) explainTransitionFailure(ctx context.Context, deviceID string, target Status) error {
	device, err := r.GetByID(ctx, deviceID)
	if err != nil {
		return err
	}
	if device.Status == StatusRevoked {
		return ErrDeviceRevoked
	}
	if device.Status == target {
		return nil // already there; treat as idempotent
	}
	return fmt.Errorf("device %s is %s, cannot transition to %s", deviceID, device.Status, target)
}

// scanner abstracts *sql.Row and *sql.Rows for shared scanning.
type scanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a device from a single row query.
func scanDevice(row *sql.Row) (*Device, error) {
	d, err := scanDeviceRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrDeviceNotFound
	}
	return d, err
}

// scanDeviceRow scans a device from any scanner.
func scanDeviceRow(s scanner) (*Device, error) {
	var d Device
	var status, rolesRaw, createdAt, updatedAt string
	var displayName, alg, tokenHash, nonce sql.NullString
	var issuedAt, registeredAt, activatedAt, revokedAt, lastSeenAt sql.NullString

	err := s.Scan(&d.DeviceID, &status, &displayName, &rolesRaw, &d.PublicKey, &alg,
		&tokenHash, &nonce, &issuedAt,
		&registeredAt, &activatedAt, &revokedAt, &lastSeenAt, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning device: %w", err)
	}

	d.Status = Status(status)
	d.Roles, _ = decodeRoles(rolesRaw)
	if displayName.Valid {
		d.DisplayName = displayName.String
	}
	if alg.Valid {
		d.PublicKeyAlg = KeyAlgorithm(alg.String)
	}
	if tokenHash.Valid {
		d.TokenHash = tokenHash.String
	}
	if nonce.Valid {
		d.LastChallengeNonce = nonce.String
	}
	d.LastChallengeIssuedAt = parseNullTime(issuedAt)
	d.RegisteredAt = parseNullTime(registeredAt)
	d.ActivatedAt = parseNullTime(activatedAt)
	d.RevokedAt = parseNullTime(revokedAt)
	d.LastSeenAt = parseNullTime(lastSeenAt)
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &d, nil
}

// parseNullTime parses an optional RFC3339 column.
func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

// nullString converts an empty string to SQL NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// isUniqueViolation reports whether the error is a SQLite unique constraint
// failure. String matching avoids importing the driver's error types here.
func isUniqueViolation(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY constraint failed"))
}
