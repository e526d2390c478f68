package deviceauth

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestNewToken(t *testing.T) {
	token, err := NewToken()
	if err != nil {
		t.Fatalf("NewToken() error = %v", err)
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		t.Fatalf("token is not URL-safe base64: %v", err)
	}
	if len(raw) != tokenBytes {
		t.Errorf("token entropy = %d bytes, want %d", len(raw), tokenBytes)
	}
	if strings.ContainsAny(token, "+/=") {
		t.Errorf("token %q contains non-URL-safe characters", token)
	}
}

func TestNewToken_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		token, err := NewToken()
		if err != nil {
			t.Fatalf("NewToken() error = %v", err)
		}
		if _, dup := seen[token]; dup {
			t.Fatalf("duplicate token generated: %q", token)
		}
		seen[token] = struct{}{}
	}
}

func TestHashToken_WithPepper(t *testing.T) {
	h1 := HashToken("some-token", "pepper-a")
	h2 := HashToken("some-token", "pepper-a")
	h3 := HashToken("some-token", "pepper-b")
	h4 := HashToken("other-token", "pepper-a")

	if h1 != h2 {
		t.Error("hash is not deterministic for identical inputs")
	}
	if h1 == h3 {
		t.Error("different peppers produced the same hash")
	}
	if h1 == h4 {
		t.Error("different tokens produced the same hash")
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(h1))
	}
}

func TestHashToken_FallbackWithoutPepper(t *testing.T) {
	h1 := HashToken("some-token", "")
	h2 := HashToken("some-token", "")
	peppered := HashToken("some-token", "pepper")

	if h1 != h2 {
		t.Error("fallback hash is not deterministic")
	}
	if h1 == peppered {
		t.Error("fallback hash should differ from peppered hash")
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(h1))
	}
}
