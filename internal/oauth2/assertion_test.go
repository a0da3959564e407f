package oauth2

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"api-client/internal/common/errors"

	"github.com/golang-jwt/jwt/v5"
)

func TestNewJWTAssertion(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	now := time.Now().Truncate(time.Second)
	signed, err := NewJWTAssertion(JWTAssertionClaims{
		Issuer:   "svc@example.com",
		Subject:  "user@example.com",
		Audience: "https://token.com",
		Scope:    "a b",
	}, key, fixedClock(now))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var claims assertionClaims
	parsed, err := jwt.ParseWithClaims(signed, &claims, func(token *jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil || !parsed.Valid {
		t.Fatalf("assertion does not verify: %v", err)
	}

	if claims.Issuer != "svc@example.com" || claims.Subject != "user@example.com" || claims.Scope != "a b" {
		t.Errorf("unexpected claims %+v", claims)
	}
	if len(claims.Audience) != 1 || claims.Audience[0] != "https://token.com" {
		t.Errorf("unexpected audience %v", claims.Audience)
	}
	if !claims.ExpiresAt.Time.Equal(now.Add(DefaultAssertionLifetime)) {
		t.Errorf("expires at %v, want %v", claims.ExpiresAt.Time, now.Add(DefaultAssertionLifetime))
	}
}

func TestNewJWTAssertion_Invalid(t *testing.T) {
	if _, err := NewJWTAssertion(JWTAssertionClaims{Issuer: "i", Audience: "a"}, nil, nil); !errors.IsType(err, errors.ErrTypeConfig) {
		t.Errorf("expected config error, got %v", err)
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	if _, err := NewJWTAssertion(JWTAssertionClaims{}, key, nil); !errors.IsType(err, errors.ErrTypeValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
