package oauth2

import (
	"crypto/rsa"
	"time"

	"api-client/internal/common/errors"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAssertionLifetime is the validity of a signed assertion
const DefaultAssertionLifetime = time.Hour

// JWTAssertionClaims describes a JWT bearer assertion
type JWTAssertionClaims struct {
	Issuer   string
	Subject  string
	Audience string
	Scope    string
	Lifetime time.Duration
}

type assertionClaims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// NewJWTAssertion signs claims with RS256
func NewJWTAssertion(claims JWTAssertionClaims, key *rsa.PrivateKey, clock Clock) (string, error) {
	if key == nil {
		return "", errors.ConfigError("private key is required to sign an assertion")
	}
	if claims.Issuer == "" || claims.Audience == "" {
		return "", errors.ValidationError("assertion issuer and audience are required")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	lifetime := claims.Lifetime
	if lifetime <= 0 {
		lifetime = DefaultAssertionLifetime
	}

	now := clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, assertionClaims{
		Scope: claims.Scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    claims.Issuer,
			Subject:   claims.Subject,
			Audience:  jwt.ClaimStrings{claims.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		},
	})

	signed, err := token.SignedString(key)
	if err != nil {
		return "", errors.InternalError("failed to sign assertion", err)
	}
	return signed, nil
}
