package oauth2

import (
	"net/http"
	"testing"
)

func newRequest(t *testing.T, rawURL string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	return req
}

func TestAuthorizationHeader(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		req := newRequest(t, "https://x/path")
		AuthorizationHeader.Intercept(req, "abc")

		if got := req.Header.Get("Authorization"); got != "Bearer abc" {
			t.Errorf("Authorization = %q", got)
		}
		if got := AuthorizationHeader.GetAccessToken(req); got != "abc" {
			t.Errorf("GetAccessToken() = %q, want abc", got)
		}
	})

	t.Run("intercepting twice overwrites", func(t *testing.T) {
		req := newRequest(t, "https://x/path")
		AuthorizationHeader.Intercept(req, "first")
		AuthorizationHeader.Intercept(req, "second")

		if values := req.Header.Values("Authorization"); len(values) != 1 || values[0] != "Bearer second" {
			t.Errorf("Authorization = %v", values)
		}
		if got := AuthorizationHeader.GetAccessToken(req); got != "second" {
			t.Errorf("GetAccessToken() = %q, want second", got)
		}
	})

	t.Run("other schemes are ignored", func(t *testing.T) {
		for _, header := range []string{"Basic abc", "bearer abc", "Bearer", ""} {
			req := newRequest(t, "https://x/path")
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			if got := AuthorizationHeader.GetAccessToken(req); got != "" {
				t.Errorf("header %q: GetAccessToken() = %q, want empty", header, got)
			}
		}
	})
}

func TestQueryParameter(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://x/path", "https://x/path?access_token=abc"},
		{"https://x/path?a=1", "https://x/path?a=1&access_token=abc"},
		{"https://x/path?b=2&a=1", "https://x/path?b=2&a=1&access_token=abc"},
		{"https://x/path?access_token=old&a=1", "https://x/path?a=1&access_token=abc"},
	}

	for _, tt := range tests {
		req := newRequest(t, tt.url)
		QueryParameter.Intercept(req, "abc")

		if got := req.URL.String(); got != tt.expected {
			t.Errorf("Intercept(%s) = %s, want %s", tt.url, got, tt.expected)
		}
		if got := QueryParameter.GetAccessToken(req); got != "abc" {
			t.Errorf("GetAccessToken() = %q, want abc", got)
		}
	}
}

func TestQueryParameter_GetAccessToken(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://x/path", ""},
		{"https://x/path?a=1", ""},
		{"https://x/path?a=1&b=2", ""},
		{"https://x/path?access_token=tok", "tok"},
		{"https://x/path?a=1&access_token=tok&b=2", "tok"},
	}

	for _, tt := range tests {
		if got := QueryParameter.GetAccessToken(newRequest(t, tt.url)); got != tt.expected {
			t.Errorf("GetAccessToken(%s) = %q, want %q", tt.url, got, tt.expected)
		}
	}
}

func TestQueryParameter_EscapesToken(t *testing.T) {
	req := newRequest(t, "https://x/path")
	QueryParameter.Intercept(req, "a+b/c")

	if got := QueryParameter.GetAccessToken(req); got != "a+b/c" {
		t.Errorf("GetAccessToken() = %q", got)
	}
}

func TestParseAccessMethod(t *testing.T) {
	tests := []struct {
		in       string
		expected AccessMethod
		ok       bool
	}{
		{"", AuthorizationHeader, true},
		{"header", AuthorizationHeader, true},
		{"Query", QueryParameter, true},
		{"cookie", AuthorizationHeader, false},
	}
	for _, tt := range tests {
		got, ok := ParseAccessMethod(tt.in)
		if got != tt.expected || ok != tt.ok {
			t.Errorf("ParseAccessMethod(%q) = %v, %v", tt.in, got, ok)
		}
	}
}
