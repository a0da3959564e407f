package oauth2

import (
	stderrors "errors"
	"net/url"
	"testing"

	"api-client/internal/common/errors"
)

func TestAuthorizationCodeRequestURL_Build(t *testing.T) {
	req := &AuthorizationCodeRequestURL{
		AuthorizationServerURL: "https://authorization.com/auth?prompt=consent",
		ClientID:               "id",
		RedirectURI:            "http://127.0.0.1:8080/authorize/",
		ResponseType:           "code",
		Scope:                  "a b",
	}

	u, err := req.Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	q := u.Query()
	expected := map[string]string{
		"prompt":        "consent",
		"client_id":     "id",
		"redirect_uri":  "http://127.0.0.1:8080/authorize/",
		"response_type": "code",
		"scope":         "a b",
	}
	for key, want := range expected {
		if got := q.Get(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
	if q.Has("state") {
		t.Error("state should be absent when empty")
	}
	if u.Host != "authorization.com" || u.Path != "/auth" {
		t.Errorf("unexpected URL %s", u)
	}
}

func TestAuthorizationCodeRequestURL_EmptyScope(t *testing.T) {
	req := &AuthorizationCodeRequestURL{AuthorizationServerURL: "https://a.com", ClientID: "id", ResponseType: "code", State: "xyz"}
	u, err := req.Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Query().Has("scope") {
		t.Error("scope should be absent")
	}
	if u.Query().Get("state") != "xyz" {
		t.Error("state should be sent")
	}
}

func TestAuthorizationCodeResponseURL(t *testing.T) {
	t.Run("code", func(t *testing.T) {
		resp := ParseAuthorizationCodeResponse(url.Values{"code": {"c"}, "state": {"s"}})
		if resp.Code != "c" || resp.State != "s" {
			t.Errorf("unexpected response %+v", resp)
		}
		if err := resp.Err(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("error", func(t *testing.T) {
		resp := ParseAuthorizationCodeResponse(url.Values{
			"error":             {"access_denied"},
			"error_description": {"user said no"},
		})

		err := resp.Err()
		if !errors.IsType(err, errors.ErrTypeTokenEndpoint) {
			t.Fatalf("expected token endpoint error, got %v", err)
		}
		var tokenErr *TokenResponseError
		if !stderrors.As(err, &tokenErr) || tokenErr.Response.Error != "access_denied" {
			t.Errorf("unexpected cause %v", err)
		}
	})

	t.Run("empty", func(t *testing.T) {
		if err := ParseAuthorizationCodeResponse(url.Values{}).Err(); err == nil {
			t.Error("expected an error without code")
		}
	})
}
