package oauth2

import (
	"encoding/json"
	"testing"
	"time"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

func int64Ptr(v int64) *int64 { return &v }

func TestTokenResponse_IsExpired(t *testing.T) {
	clock := fixedClock(t0.Add(100 * time.Second))

	tests := []struct {
		expiresIn int64
		expected  bool
	}{
		{1, true},
		{100, true},
		{158, true},
		{159, true},
		{160, true},
		{161, false},
		{162, false},
	}

	for _, tt := range tests {
		token := &TokenResponse{
			AccessToken:      "a",
			ExpiresInSeconds: int64Ptr(tt.expiresIn),
			Issued:           t0,
		}
		if got := token.IsExpired(clock); got != tt.expected {
			t.Errorf("expires_in=%d: IsExpired() = %v, want %v", tt.expiresIn, got, tt.expected)
		}
	}
}

func TestTokenResponse_IsExpired_MissingFields(t *testing.T) {
	clock := fixedClock(t0)

	tests := []struct {
		name  string
		token *TokenResponse
	}{
		{"nil token", nil},
		{"no access token", &TokenResponse{ExpiresInSeconds: int64Ptr(3600), Issued: t0}},
		{"no lifetime", &TokenResponse{AccessToken: "a", Issued: t0}},
		{"nothing", &TokenResponse{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.token.IsExpired(clock) {
				t.Error("expected token to be expired")
			}
		})
	}
}

func TestTokenResponse_ExpiresAt(t *testing.T) {
	token := &TokenResponse{ExpiresInSeconds: int64Ptr(3600), Issued: t0}
	expiresAt, ok := token.ExpiresAt()
	if !ok || !expiresAt.Equal(t0.Add(time.Hour)) {
		t.Errorf("ExpiresAt() = %v, %v", expiresAt, ok)
	}

	if _, ok := (&TokenResponse{}).ExpiresAt(); ok {
		t.Error("expected no expiry without a lifetime")
	}
}

func TestNewTokenResponse_StampsIssued(t *testing.T) {
	token := NewTokenResponse(fixedClock(t0))
	if !token.Issued.Equal(t0) {
		t.Errorf("Issued = %v, want %v", token.Issued, t0)
	}
}

func TestTokenResponse_JSON(t *testing.T) {
	body := `{"access_token":"a","token_type":"Bearer","expires_in":100,"refresh_token":"r","scope":"b"}`

	var token TokenResponse
	if err := json.Unmarshal([]byte(body), &token); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token.AccessToken != "a" || token.RefreshToken != "r" || token.Scope != "b" || token.TokenType != "Bearer" {
		t.Errorf("unexpected token: %+v", token)
	}
	if token.ExpiresInSeconds == nil || *token.ExpiresInSeconds != 100 {
		t.Errorf("ExpiresInSeconds = %v, want 100", token.ExpiresInSeconds)
	}

	// A stored token keeps its issue time.
	token.Issued = t0
	data, err := json.Marshal(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var restored TokenResponse
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !restored.Issued.Equal(t0) {
		t.Errorf("Issued = %v, want %v", restored.Issued, t0)
	}
}

func TestTokenResponseError_Error(t *testing.T) {
	err := &TokenResponseError{
		StatusCode: 400,
		Response:   TokenErrorResponse{Error: "invalid_grant", ErrorDescription: "expired", ErrorURI: "https://x"},
	}
	want := `token endpoint returned 400: invalid_grant, Description:"expired", Uri:"https://x"`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
