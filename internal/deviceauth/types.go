package deviceauth

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Device identifiers are opaque and chosen by the operator. Only the
// length is constrained.
const (
	minDeviceIDLen = 8
	maxDeviceIDLen = 128
)

// IsValidDeviceID checks if a device identifier meets length requirements.
func IsValidDeviceID(id string) bool {
	return len(id) >= minDeviceIDLen && len(id) <= maxDeviceIDLen
}

// Status represents a device's lifecycle state.
type Status string

const (
	// StatusPending is a seeded device that has not been activated.
	// It may attach its public key but cannot obtain challenges or tokens.
	StatusPending Status = "PENDING"

	// StatusActive is a provisioned device allowed to authenticate.
	StatusActive Status = "ACTIVE"

	// StatusRevoked is a terminally disabled device. Revocation clears any
	// outstanding challenge; the token hash is kept so a presented token
	// fails with the revocation, not as an unknown token. There is no way
	// back to ACTIVE.
	StatusRevoked Status = "REVOKED"
)

// KeyAlgorithm identifies the signature algorithm bound to a device key.
// It is fixed at registration and never taken from the caller afterwards.
type KeyAlgorithm string

const (
	// AlgECDSAP256 is ECDSA over the NIST P-256 curve with SHA-256.
	AlgECDSAP256 KeyAlgorithm = "ECDSA_P256"

	// AlgEd25519 is the Ed25519 signature scheme.
	AlgEd25519 KeyAlgorithm = "ED25519"
)

// Role represents a staff duty a device is assigned to.
type Role string

const (
	RoleFrontDesk    Role = "frontdesk"
	RoleHousekeeping Role = "housekeeping"
	RoleMaintenance  Role = "maintenance"
	RoleBreakfast    Role = "breakfast"
)

// ValidRoles is the closed set of assignable device roles.
var ValidRoles = []Role{RoleFrontDesk, RoleHousekeeping, RoleMaintenance, RoleBreakfast}

// IsValidRole returns true if the role is in the assignable set.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// ParseRoles validates a list of role strings and returns the deduplicated,
// sorted role set. Unknown roles are rejected.
func ParseRoles(names []string) ([]Role, error) {
	seen := make(map[Role]struct{}, len(names))
	var roles []Role
	for _, name := range names {
		r := Role(strings.ToLower(strings.TrimSpace(name)))
		if r == "" {
			continue
		}
		if !IsValidRole(r) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRole, name)
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles, nil
}

// encodeRoles serialises a role set for storage (comma-separated).
func encodeRoles(roles []Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}

// decodeRoles parses a stored role string. Unknown roles in stored data are
// skipped rather than rejected so legacy rows keep resolving; callers that
// care can log the dropped values.
func decodeRoles(raw string) (roles []Role, dropped []string) {
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		r := Role(name)
		if !IsValidRole(r) {
			dropped = append(dropped, name)
			continue
		}
		roles = append(roles, r)
	}
	return roles, dropped
}

// Device represents a staff handheld device identity.
type Device struct {
	DeviceID    string `json:"device_id"`
	Status      Status `json:"status"`
	DisplayName string `json:"display_name,omitempty"`
	Roles       []Role `json:"roles"`

	// PublicKey is the canonical DER-encoded SubjectPublicKeyInfo, set once
	// at registration. Nil until the device has registered.
	PublicKey    []byte       `json:"-"`
	PublicKeyAlg KeyAlgorithm `json:"public_key_alg,omitempty"`

	TokenHash string `json:"-"` // never serialised

	// Challenge bookkeeping. At most one challenge is outstanding per device.
	LastChallengeNonce    string     `json:"-"`
	LastChallengeIssuedAt *time.Time `json:"-"`

	RegisteredAt *time.Time `json:"registered_at,omitempty"`
	ActivatedAt  *time.Time `json:"activated_at,omitempty"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	LastSeenAt   *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// HasKey returns true once a public key has been attached.
func (d *Device) HasKey() bool {
	return len(d.PublicKey) > 0
}

// HasRole returns true if the device carries the given role.
// An empty role set does NOT grant roles; unrestricted access for legacy
// devices is decided by the capability check, not here.
func (d *Device) HasRole(role Role) bool {
	for _, r := range d.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Challenge is an issued authentication challenge.
type Challenge struct {
	// Nonce is the standard base64 encoding of 32 random bytes. The device
	// signs the decoded bytes, not this string.
	Nonce string `json:"nonce"`

	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Sentinel errors for device auth operations.
var (
	ErrInvalidPublicKey   = errors.New("public key could not be parsed")
	ErrUnsupportedKeyType = errors.New("public key type is not supported")
	ErrKeyAlreadyAttached = errors.New("device already has a different public key")
	ErrDeviceNotFound     = errors.New("device not registered")
	ErrDeviceNotActive    = errors.New("device is not active")
	ErrDeviceRevoked      = errors.New("device has been revoked")
	ErrDeviceKeyMissing   = errors.New("device has no public key attached")
	ErrChallengeNotFound  = errors.New("no outstanding challenge for device")
	ErrChallengeExpired   = errors.New("challenge has expired")
	ErrChallengeMismatch  = errors.New("presented nonce does not match outstanding challenge")
	ErrInvalidSignature   = errors.New("signature verification failed")
	ErrTokenInvalid       = errors.New("invalid device token")
	ErrInvalidDeviceID    = errors.New("invalid device identifier")
	ErrUnknownRole        = errors.New("unknown role")
	ErrDeviceExists       = errors.New("device already exists")
)
