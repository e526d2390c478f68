package deviceauth

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"strings"
	"testing"
)

func TestParsePublicKey_PEM_ECDSA(t *testing.T) {
	_, pemKey := testECDSAKey(t)

	der, alg, err := ParsePublicKey(pemKey)
	if err != nil {
		t.Fatalf("ParsePublicKey() error = %v", err)
	}
	if alg != AlgECDSAP256 {
		t.Errorf("alg = %q, want %q", alg, AlgECDSAP256)
	}
	if _, err := x509.ParsePKIXPublicKey(der); err != nil {
		t.Errorf("returned DER does not parse: %v", err)
	}
}

func TestParsePublicKey_Base64DER(t *testing.T) {
	priv, _ := testECDSAKey(t)
	rawDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("marshalling key: %v", err)
	}

	der, alg, err := ParsePublicKey(base64.StdEncoding.EncodeToString(rawDER))
	if err != nil {
		t.Fatalf("ParsePublicKey() error = %v", err)
	}
	if alg != AlgECDSAP256 {
		t.Errorf("alg = %q, want %q", alg, AlgECDSAP256)
	}
	if !bytes.Equal(der, rawDER) {
		t.Error("canonical DER differs from input DER for the same key")
	}
}

func TestParsePublicKey_RawECPoint(t *testing.T) {
	priv, _ := testECDSAKey(t)
	ecdhKey, err := priv.PublicKey.ECDH()
	if err != nil {
		t.Fatalf("converting to ECDH key: %v", err)
	}
	point := ecdhKey.Bytes() // 65-byte uncompressed point

	der, alg, err := ParsePublicKey(base64.StdEncoding.EncodeToString(point))
	if err != nil {
		t.Fatalf("ParsePublicKey() error = %v", err)
	}
	if alg != AlgECDSAP256 {
		t.Errorf("alg = %q, want %q", alg, AlgECDSAP256)
	}

	// Same key in a different input format must canonicalise identically.
	wantDER, _, err := ParsePublicKey(base64.StdEncoding.EncodeToString(mustMarshal(t, &priv.PublicKey)))
	if err != nil {
		t.Fatalf("parsing DER form: %v", err)
	}
	if !bytes.Equal(der, wantDER) {
		t.Error("raw point and DER forms canonicalise to different SPKI bytes")
	}
}

func TestParsePublicKey_RawEd25519(t *testing.T) {
	_, pubB64 := testEd25519Key(t)

	der, alg, err := ParsePublicKey(pubB64)
	if err != nil {
		t.Fatalf("ParsePublicKey() error = %v", err)
	}
	if alg != AlgEd25519 {
		t.Errorf("alg = %q, want %q", alg, AlgEd25519)
	}

	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		t.Fatalf("returned DER does not parse: %v", err)
	}
	if _, ok := key.(ed25519.PublicKey); !ok {
		t.Errorf("parsed key is %T, want ed25519.PublicKey", key)
	}
}

func TestParsePublicKey_PEMEd25519(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatalf("marshalling key: %v", err)
	}
	pemKey := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	gotDER, alg, err := ParsePublicKey(pemKey)
	if err != nil {
		t.Fatalf("ParsePublicKey() error = %v", err)
	}
	if alg != AlgEd25519 {
		t.Errorf("alg = %q, want %q", alg, AlgEd25519)
	}
	if !bytes.Equal(gotDER, der) {
		t.Error("canonical DER differs for identical key")
	}
}

func TestParsePublicKey_UnpaddedBase64(t *testing.T) {
	_, pubB64 := testEd25519Key(t)
	unpadded := string(bytes.TrimRight([]byte(pubB64), "="))

	_, alg, err := ParsePublicKey(unpadded)
	if err != nil {
		t.Fatalf("ParsePublicKey() error = %v", err)
	}
	if alg != AlgEd25519 {
		t.Errorf("alg = %q, want %q", alg, AlgEd25519)
	}
}

func TestParsePublicKey_URLSafeBase64(t *testing.T) {
	// Find a key whose DER contains bytes that encode differently in the
	// two alphabets, so the URL-safe form actually exercises the fallback.
	var rawDER []byte
	for i := 0; i < 64; i++ {
		priv, _ := testECDSAKey(t)
		der := mustMarshal(t, &priv.PublicKey)
		if strings.ContainsAny(base64.StdEncoding.EncodeToString(der), "+/") {
			rawDER = der
			break
		}
	}
	if rawDER == nil {
		t.Fatal("could not generate a key with +/ bytes in its standard encoding")
	}

	for _, tt := range []struct {
		name  string
		input string
	}{
		{"padded url-safe", base64.URLEncoding.EncodeToString(rawDER)},
		{"unpadded url-safe", base64.RawURLEncoding.EncodeToString(rawDER)},
	} {
		t.Run(tt.name, func(t *testing.T) {
			der, alg, err := ParsePublicKey(tt.input)
			if err != nil {
				t.Fatalf("ParsePublicKey() error = %v", err)
			}
			if alg != AlgECDSAP256 {
				t.Errorf("alg = %q, want %q", alg, AlgECDSAP256)
			}
			if !bytes.Equal(der, rawDER) {
				t.Error("url-safe form canonicalises to different SPKI bytes")
			}
		})
	}
}

func TestParsePublicKey_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{
			name:    "empty input",
			input:   "",
			wantErr: ErrInvalidPublicKey,
		},
		{
			name:    "not base64",
			input:   "!!! definitely not a key !!!",
			wantErr: ErrInvalidPublicKey,
		},
		{
			name:    "truncated PEM",
			input:   "-----BEGIN PUBLIC KEY-----\ngarbage",
			wantErr: ErrInvalidPublicKey,
		},
		{
			name:    "wrong PEM block type",
			input:   string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{0x01}})),
			wantErr: ErrUnsupportedKeyType,
		},
		{
			name:    "wrong raw length",
			input:   base64.StdEncoding.EncodeToString(make([]byte, 40)),
			wantErr: ErrInvalidPublicKey,
		},
		{
			name:    "65 bytes without point prefix",
			input:   base64.StdEncoding.EncodeToString(make([]byte, 65)),
			wantErr: ErrInvalidPublicKey,
		},
		{
			name:    "point not on curve",
			input:   base64.StdEncoding.EncodeToString(append([]byte{0x04}, make([]byte, 64)...)),
			wantErr: ErrInvalidPublicKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParsePublicKey(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParsePublicKey() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParsePublicKey_UnsupportedTypes(t *testing.T) {
	// RSA keys are structurally valid SPKI but not a supported algorithm.
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating RSA key: %v", err)
	}
	rsaPEM := string(pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: mustMarshal(t, &rsaKey.PublicKey),
	}))

	if _, _, err := ParsePublicKey(rsaPEM); !errors.Is(err, ErrUnsupportedKeyType) {
		t.Errorf("RSA key error = %v, want %v", err, ErrUnsupportedKeyType)
	}

	// ECDSA on the wrong curve is likewise rejected.
	p384, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		t.Fatalf("generating P-384 key: %v", err)
	}
	p384PEM := string(pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: mustMarshal(t, &p384.PublicKey),
	}))

	if _, _, err := ParsePublicKey(p384PEM); !errors.Is(err, ErrUnsupportedKeyType) {
		t.Errorf("P-384 key error = %v, want %v", err, ErrUnsupportedKeyType)
	}
}

func TestParsePublicKey_CanonicalAcrossFormats(t *testing.T) {
	priv, pemKey := testECDSAKey(t)

	fromPEM, _, err := ParsePublicKey(pemKey)
	if err != nil {
		t.Fatalf("parsing PEM: %v", err)
	}

	ecdhKey, err := priv.PublicKey.ECDH()
	if err != nil {
		t.Fatalf("converting to ECDH key: %v", err)
	}
	fromPoint, _, err := ParsePublicKey(base64.StdEncoding.EncodeToString(ecdhKey.Bytes()))
	if err != nil {
		t.Fatalf("parsing raw point: %v", err)
	}

	if !bytes.Equal(fromPEM, fromPoint) {
		t.Error("PEM and raw point forms of the same key canonicalise differently")
	}
}

func mustMarshal(t *testing.T, key any) []byte {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		t.Fatalf("marshalling key: %v", err)
	}
	return der
}
