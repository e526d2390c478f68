package deviceauth

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
)

// verifySignature checks a signature over message using the stored canonical
// DER key. The algorithm comes from the registration record; callers must
// never pass an algorithm derived from request input.
//
// Signature formats:
//   - ECDSA_P256: ASN.1 DER encoded (r, s) over the SHA-256 digest
//   - ED25519: raw 64-byte signature over the message itself
func verifySignature(der []byte, alg KeyAlgorithm, message, sig []byte) error {
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		// Stored keys are canonicalised at registration; a parse failure
		// here means the row was tampered with or corrupted.
		return fmt.Errorf("parsing stored public key: %w", err)
	}

	switch alg {
	case AlgECDSAP256:
		ecKey, ok := key.(*ecdsa.PublicKey)
		if !ok {
			return fmt.Errorf("stored key is %T, registration says %s", key, alg)
		}
		digest := sha256.Sum256(message)
		if !ecdsa.VerifyASN1(ecKey, digest[:], sig) {
			return ErrInvalidSignature
		}
		return nil

	case AlgEd25519:
		edKey, ok := key.(ed25519.PublicKey)
		if !ok {
			return fmt.Errorf("stored key is %T, registration says %s", key, alg)
		}
		if len(sig) != ed25519.SignatureSize || !ed25519.Verify(edKey, message, sig) {
			return ErrInvalidSignature
		}
		return nil

	default:
		return fmt.Errorf("unknown key algorithm %q", alg)
	}
}
