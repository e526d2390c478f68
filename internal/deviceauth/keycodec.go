package deviceauth

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"
)

// Raw key material sizes accepted by the codec.
const (
	// rawECPointLength is an uncompressed P-256 point: 0x04 || X (32) || Y (32).
	rawECPointLength = 65

	// uncompressedPointPrefix marks an uncompressed SEC1 EC point.
	uncompressedPointPrefix = 0x04
)

// ParsePublicKey accepts a device public key in any supported input format
// and returns the canonical DER-encoded SubjectPublicKeyInfo plus the bound
// algorithm.
//
// Supported inputs:
//   - PEM "PUBLIC KEY" block (SubjectPublicKeyInfo)
//   - base64 DER SubjectPublicKeyInfo
//   - base64 uncompressed P-256 point (65 bytes, 0x04 prefix)
//   - base64 raw Ed25519 key (32 bytes)
//
// The returned DER is re-marshalled from the parsed key, so two encodings of
// the same key always canonicalise to identical bytes.
func ParsePublicKey(input string) ([]byte, KeyAlgorithm, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, "", fmt.Errorf("%w: empty input", ErrInvalidPublicKey)
	}

	if strings.HasPrefix(trimmed, "-----BEGIN") {
		return parsePEM(trimmed)
	}

	raw, err := decodeBase64(trimmed)
	if err != nil {
		return nil, "", fmt.Errorf("%w: not PEM and not valid base64", ErrInvalidPublicKey)
	}

	// Prefer DER SPKI; fall back to raw key material by length.
	if key, parseErr := x509.ParsePKIXPublicKey(raw); parseErr == nil {
		return canonicalise(key)
	}

	switch {
	case len(raw) == rawECPointLength && raw[0] == uncompressedPointPrefix:
		return parseRawECPoint(raw)
	case len(raw) == ed25519.PublicKeySize:
		return canonicalise(ed25519.PublicKey(raw))
	default:
		return nil, "", fmt.Errorf("%w: %d bytes is neither DER SPKI nor raw key material", ErrInvalidPublicKey, len(raw))
	}
}

// parsePEM decodes a PEM block and parses the contained SPKI.
func parsePEM(input string) ([]byte, KeyAlgorithm, error) {
	block, _ := pem.Decode([]byte(input))
	if block == nil {
		return nil, "", fmt.Errorf("%w: malformed PEM", ErrInvalidPublicKey)
	}
	if block.Type != "PUBLIC KEY" {
		return nil, "", fmt.Errorf("%w: PEM block type %q", ErrUnsupportedKeyType, block.Type)
	}

	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return canonicalise(key)
}

// parseRawECPoint builds a P-256 key from an uncompressed SEC1 point.
func parseRawECPoint(raw []byte) ([]byte, KeyAlgorithm, error) {
	key, err := ecdh.P256().NewPublicKey(raw)
	if err != nil {
		return nil, "", fmt.Errorf("%w: point is not on P-256", ErrInvalidPublicKey)
	}
	return canonicalise(key)
}

// canonicalise validates the key type and re-marshals to canonical DER SPKI.
func canonicalise(key any) ([]byte, KeyAlgorithm, error) {
	var alg KeyAlgorithm

	switch k := key.(type) {
	case *ecdsa.PublicKey:
		if k.Curve != elliptic.P256() {
			return nil, "", fmt.Errorf("%w: ECDSA curve %s", ErrUnsupportedKeyType, k.Curve.Params().Name)
		}
		alg = AlgECDSAP256
	case *ecdh.PublicKey:
		if k.Curve() != ecdh.P256() {
			return nil, "", fmt.Errorf("%w: ECDH curve is not P-256", ErrUnsupportedKeyType)
		}
		alg = AlgECDSAP256
	case ed25519.PublicKey:
		alg = AlgEd25519
	default:
		return nil, "", fmt.Errorf("%w: %T", ErrUnsupportedKeyType, key)
	}

	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return der, alg, nil
}

// decodeBase64 tolerates the standard and URL-safe alphabets, padded or
// unpadded. Device firmware in the field uses all four.
func decodeBase64(s string) ([]byte, error) {
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}

	var err error
	for _, enc := range encodings {
		var raw []byte
		if raw, err = enc.DecodeString(s); err == nil {
			return raw, nil
		}
	}
	return nil, err
}
