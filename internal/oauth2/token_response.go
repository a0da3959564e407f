package oauth2

import (
	"fmt"
	"time"
)

// TokenExpirySkew is how long before its nominal expiry a token is already
// treated as expired, so that a request started just before expiry does not
// reach the server with a dead token.
const TokenExpirySkew = 60 * time.Second

// TokenResponse is the credential record returned by a token endpoint and
// persisted per user.
type TokenResponse struct {
	AccessToken  string `json:"access_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	// ExpiresInSeconds is relative to Issued. Nil means the lifetime is unknown.
	ExpiresInSeconds *int64 `json:"expires_in,omitempty"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	Scope            string `json:"scope,omitempty"`
	IDToken          string `json:"id_token,omitempty"`
	// Issued is when the token was obtained.
	Issued time.Time `json:"issued"`
}

// NewTokenResponse returns an empty token issued now
func NewTokenResponse(clock Clock) *TokenResponse {
	if clock == nil {
		clock = SystemClock{}
	}
	return &TokenResponse{Issued: clock.Now()}
}

// IsExpired reports whether the access token must not be used any more. A
// token without an access token or without a lifetime is always expired.
func (t *TokenResponse) IsExpired(clock Clock) bool {
	if t == nil || t.AccessToken == "" || t.ExpiresInSeconds == nil {
		return true
	}
	if clock == nil {
		clock = SystemClock{}
	}

	deadline := t.Issued.Add(time.Duration(*t.ExpiresInSeconds)*time.Second - TokenExpirySkew)
	return !clock.Now().Before(deadline)
}

// ExpiresAt returns the nominal expiry, ignoring the skew
func (t *TokenResponse) ExpiresAt() (time.Time, bool) {
	if t == nil || t.ExpiresInSeconds == nil {
		return time.Time{}, false
	}
	return t.Issued.Add(time.Duration(*t.ExpiresInSeconds) * time.Second), true
}

// TokenErrorResponse is the error body of a token endpoint (RFC 6749 section 5.2)
type TokenErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorURI         string `json:"error_uri,omitempty"`
}

func (r TokenErrorResponse) String() string {
	s := r.Error
	if r.ErrorDescription != "" {
		s += ", Description:\"" + r.ErrorDescription + "\""
	}
	if r.ErrorURI != "" {
		s += ", Uri:\"" + r.ErrorURI + "\""
	}
	return s
}

// TokenResponseError carries the error a token endpoint answered with
type TokenResponseError struct {
	StatusCode int
	Response   TokenErrorResponse
}

func (e *TokenResponseError) Error() string {
	return fmt.Sprintf("token endpoint returned %d: %s", e.StatusCode, e.Response)
}
