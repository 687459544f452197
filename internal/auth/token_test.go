package auth

import (
	"testing"
	"time"

	"printhub/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestGenerateAndVerify(t *testing.T) {
	m := NewTokenManager(&config.Config{JWTSecret: "test-secret", TokenTTL: time.Hour})
	userID := uuid.New()

	token, expiresAt, err := m.Generate(userID, "employee")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expiresAt %v is not in the future", expiresAt)
	}

	id, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if id.UserID != userID || id.Role != "employee" {
		t.Fatalf("identity = %+v, want %s/employee", id, userID)
	}
}

func TestVerifyRejects(t *testing.T) {
	m := NewTokenManager(&config.Config{JWTSecret: "test-secret", TokenTTL: time.Hour})
	other := NewTokenManager(&config.Config{JWTSecret: "another-secret", TokenTTL: time.Hour})

	foreign, _, err := other.Generate(uuid.New(), "admin")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if _, err := m.Verify(foreign); err == nil {
		t.Fatal("token signed with another secret should be rejected")
	}

	expired := NewTokenManager(&config.Config{JWTSecret: "test-secret", TokenTTL: time.Hour})
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.Generate(uuid.New(), "admin")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if _, err := m.Verify(old); err == nil {
		t.Fatal("expired token should be rejected")
	}

	noRole := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString(), Issuer: issuer},
	})
	signed, err := noRole.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(signed); err == nil {
		t.Fatal("token without role should be rejected")
	}

	if _, err := m.Verify("not-a-token"); err == nil {
		t.Fatal("garbage should be rejected")
	}
}
