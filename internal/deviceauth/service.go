package deviceauth

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/tomvassey/foyer-core/internal/infrastructure/logging"
)

// challengeNonceBytes is the entropy of a challenge nonce (256-bit).
const challengeNonceBytes = 32

// Service implements the device authentication flows on top of a Repository.
//
// All state transitions and gate ordering live here; handlers only translate
// HTTP to service calls and sentinel errors back to response codes.
type Service struct {
	repo         Repository
	logger       *logging.Logger
	challengeTTL time.Duration
	pepper       string

	// now is injectable for expiry tests.
	now func() time.Time
}

// NewService creates a device auth service.
//
// challengeTTL is the single expiry authority for challenges: issuance stamps
// the time, verification enforces the window. pepper keys the at-rest token
// hash; empty means the weaker unkeyed fallback.
func NewService(repo Repository, logger *logging.Logger, challengeTTL time.Duration, pepper string) *Service {
	if pepper == "" {
		logger.Warn("device token pepper not configured; token hashes fall back to unkeyed SHA-256")
	}
	return &Service{
		repo:         repo,
		logger:       logger,
		challengeTTL: challengeTTL,
		pepper:       pepper,
		now:          time.Now,
	}
}

// Register attaches a device's public key to its pre-seeded identity.
//
// The device row must already exist (operators seed it); registration never
// creates identities. Re-registering the byte-identical key is an idempotent
// no-op so devices can safely retry; presenting a different key is rejected.
// The display name, if supplied, is also set-once.
func (s *Service) Register(ctx context.Context, deviceID, publicKey, displayName string) (*Device, error) {
	if !IsValidDeviceID(deviceID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDeviceID, deviceID)
	}

	device, err := s.repo.GetByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if device.Status == StatusRevoked {
		return nil, ErrDeviceRevoked
	}

	der, alg, err := ParsePublicKey(publicKey)
	if err != nil {
		return nil, err
	}

	if device.HasKey() {
		if !bytes.Equal(device.PublicKey, der) {
			return nil, ErrKeyAlreadyAttached
		}
		// Same canonical key presented again: retry of a lost response.
	} else if err := s.repo.AttachKey(ctx, deviceID, der, alg); err != nil {
		return nil, err
	}

	if displayName != "" && device.DisplayName == "" {
		if err := s.repo.SetDisplayName(ctx, deviceID, displayName); err != nil {
			return nil, err
		}
	}

	if err := s.repo.UpdateLastSeen(ctx, deviceID); err != nil {
		s.logger.Warn("last seen update failed", "device_id", deviceID, "error", err)
	}

	s.logger.Info("device registered", "device_id", deviceID, "alg", alg, "status", device.Status)
	return s.repo.GetByID(ctx, deviceID)
}

// IssueChallenge generates and stores a fresh challenge for an active device.
// A new challenge overwrites any outstanding one - at most one challenge is
// live per device.
func (s *Service) IssueChallenge(ctx context.Context, deviceID string) (*Challenge, error) {
	device, err := s.repo.GetByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if err := gateActive(device); err != nil {
		return nil, err
	}

	nonce := make([]byte, challengeNonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating challenge nonce: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(nonce)

	issuedAt := s.now().UTC()
	if err := s.repo.StoreChallenge(ctx, deviceID, encoded, issuedAt); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateLastSeen(ctx, deviceID); err != nil {
		s.logger.Warn("last seen update failed", "device_id", deviceID, "error", err)
	}

	s.logger.Debug("challenge issued", "device_id", deviceID)
	return &Challenge{
		Nonce:     encoded,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(s.challengeTTL),
	}, nil
}

// Verify checks a signed challenge and issues a bearer token.
//
// The gates run in a fixed order: device exists, not revoked, active, key
// attached, challenge outstanding, nonce match (constant time), not expired,
// signature valid. Only then is the challenge consumed - atomically, so a
// concurrent verify with the same nonce loses and gets ErrChallengeNotFound.
func (s *Service) Verify(ctx context.Context, deviceID, nonce string, signature []byte) (string, error) {
	device, err := s.repo.GetByID(ctx, deviceID)
	if err != nil {
		return "", err
	}
	if err := gateActive(device); err != nil {
		return "", err
	}

	if device.LastChallengeNonce == "" || device.LastChallengeIssuedAt == nil {
		return "", ErrChallengeNotFound
	}
	if subtle.ConstantTimeCompare([]byte(nonce), []byte(device.LastChallengeNonce)) != 1 {
		return "", ErrChallengeMismatch
	}
	if s.now().UTC().Sub(*device.LastChallengeIssuedAt) > s.challengeTTL {
		return "", ErrChallengeExpired
	}

	// The canonical signed message is the raw nonce bytes. The stored nonce
	// was encoded by IssueChallenge, so this decode cannot fail for a nonce
	// that passed the comparison above.
	message, err := base64.StdEncoding.DecodeString(device.LastChallengeNonce)
	if err != nil {
		return "", fmt.Errorf("decoding stored nonce: %w", err)
	}

	if err := verifySignature(device.PublicKey, device.PublicKeyAlg, message, signature); err != nil {
		if errors.Is(err, ErrInvalidSignature) {
			s.logger.Warn("signature verification failed", "device_id", deviceID, "alg", device.PublicKeyAlg)
			return "", err
		}
		return "", fmt.Errorf("verifying signature: %w", err)
	}

	consumed, err := s.repo.ConsumeChallenge(ctx, deviceID, nonce)
	if err != nil {
		return "", err
	}
	if !consumed {
		// Another request consumed or replaced the challenge between our
		// read and this update.
		return "", ErrChallengeNotFound
	}

	token, err := NewToken()
	if err != nil {
		return "", err
	}
	if err := s.repo.StoreTokenHash(ctx, deviceID, HashToken(token, s.pepper)); err != nil {
		return "", err
	}

	if err := s.repo.UpdateLastSeen(ctx, deviceID); err != nil {
		s.logger.Warn("last seen update failed", "device_id", deviceID, "error", err)
	}

	s.logger.Info("device authenticated", "device_id", deviceID, "alg", device.PublicKeyAlg)
	return token, nil
}

// Resolve maps a presented bearer token to its device. It is the entry point
// of the device auth gate: the token must hash to a stored value and the
// device must still be ACTIVE.
func (s *Service) Resolve(ctx context.Context, token string) (*Device, error) {
	if token == "" {
		return nil, ErrTokenInvalid
	}

	hash := HashToken(token, s.pepper)
	device, err := s.repo.GetByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}

	// The lookup already matched on the hash; this keeps the final check
	// constant time regardless of how the row was fetched.
	if !hmac.Equal([]byte(device.TokenHash), []byte(hash)) {
		return nil, ErrTokenInvalid
	}

	if device.Status == StatusRevoked {
		return nil, ErrDeviceRevoked
	}
	if device.Status != StatusActive {
		return nil, ErrDeviceNotActive
	}

	if err := s.repo.UpdateLastSeen(ctx, device.DeviceID); err != nil {
		s.logger.Warn("last seen update failed", "device_id", device.DeviceID, "error", err)
	}
	return device, nil
}

// GetDevice returns a device by ID.
func (s *Service) GetDevice(ctx context.Context, deviceID string) (*Device, error) {
	return s.repo.GetByID(ctx, deviceID)
}

// ListDevices returns all devices.
func (s *Service) ListDevices(ctx context.Context) ([]Device, error) {
	return s.repo.List(ctx)
}

// CreateDevice seeds a new PENDING device identity (operator action).
func (s *Service) CreateDevice(ctx context.Context, deviceID, displayName string, roleNames []string) (*Device, error) {
	roles, err := ParseRoles(roleNames)
	if err != nil {
		return nil, err
	}

	device := &Device{
		DeviceID:    deviceID,
		Status:      StatusPending,
		DisplayName: displayName,
		Roles:       roles,
	}
	if err := s.repo.Create(ctx, device); err != nil {
		return nil, err
	}

	s.logger.Info("device seeded", "device_id", deviceID, "roles", roleNames)
	return s.repo.GetByID(ctx, deviceID)
}

// Activate transitions a seeded device to ACTIVE (operator action).
func (s *Service) Activate(ctx context.Context, deviceID string) (*Device, error) {
	if err := s.repo.Activate(ctx, deviceID); err != nil {
		return nil, err
	}
	s.logger.Info("device activated", "device_id", deviceID)
	return s.repo.GetByID(ctx, deviceID)
}

// Revoke terminally disables a device (operator action). Calls bearing
// its token fail as revoked immediately and no further challenges are
// issued.
func (s *Service) Revoke(ctx context.Context, deviceID string) (*Device, error) {
	if err := s.repo.Revoke(ctx, deviceID); err != nil {
		return nil, err
	}
	s.logger.Info("device revoked", "device_id", deviceID)
	return s.repo.GetByID(ctx, deviceID)
}

// AssignRoles replaces a device's role set (operator action).
func (s *Service) AssignRoles(ctx context.Context, deviceID string, roleNames []string) (*Device, error) {
	roles, err := ParseRoles(roleNames)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetRoles(ctx, deviceID, roles); err != nil {
		return nil, err
	}
	s.logger.Info("device roles updated", "device_id", deviceID, "roles", roleNames)
	return s.repo.GetByID(ctx, deviceID)
}

// gateActive enforces the shared status gates in their fixed order.
func gateActive(d *Device) error {
	if d.Status == StatusRevoked {
		return ErrDeviceRevoked
	}
	if d.Status != StatusActive {
		return ErrDeviceNotActive
	}
	if !d.HasKey() {
		return ErrDeviceKeyMissing
	}
	return nil
}
