package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"
)

func hs256Manager(t *testing.T, secret string) *Manager {
	t.Helper()

	m, err := NewManager(Config{
		SigningMethod: MethodHS256,
		PrivateKey:    []byte(secret),
		Issuer:        "vaultgate-test",
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestCreateParseRoundtrip(t *testing.T) {
	m := hs256Manager(t, "0123456789abcdef0123456789abcdef")
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)

	tok, err := m.Create("user-1", "sid-1", "buyer", expiry)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	claims, err := m.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.UID != "user-1" || claims.SID != "sid-1" || claims.Role != "buyer" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if !claims.ExpiresAt.Time.Equal(expiry) {
		t.Fatalf("exp = %v, want %v", claims.ExpiresAt.Time, expiry)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	issuer := hs256Manager(t, "0123456789abcdef0123456789abcdef")
	verifier := hs256Manager(t, "another-secret-another-secret-xx")

	tok, err := issuer.Create("user-1", "sid-1", "buyer", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := verifier.Parse(tok); err == nil {
		t.Fatal("expected token signed with a different secret to be rejected")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	m := hs256Manager(t, "0123456789abcdef0123456789abcdef")

	tok, err := m.Create("user-1", "sid-1", "buyer", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := m.Parse(tok); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestEd25519Roundtrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	m, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	tok, err := m.Create("user-2", "sid-2", "seller", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	claims, err := m.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.UID != "user-2" || claims.SID != "sid-2" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
}

func TestParseRejectsCrossMethodToken(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	edManager, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	tok, err := edManager.Create("user-1", "sid-1", "", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	hsManager := hs256Manager(t, "0123456789abcdef0123456789abcdef")
	if _, err := hsManager.Parse(tok); err == nil {
		t.Fatal("expected token with foreign algorithm to be rejected")
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(Config{SigningMethod: MethodHS256}); err == nil {
		t.Fatal("expected hs256 without a key to be rejected")
	}
	if _, err := NewManager(Config{SigningMethod: "rs256", PrivateKey: []byte("x")}); err == nil {
		t.Fatal("expected unknown signing method to be rejected")
	}
	if _, err := NewManager(Config{
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("secret"),
		Leeway:        time.Hour,
	}); err == nil {
		t.Fatal("expected excessive leeway to be rejected")
	}
}
