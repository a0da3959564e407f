package oauth2

import (
	"net/http"
	"net/url"
	"strings"
)

// AccessMethod selects how an access token travels with a request
type AccessMethod int

const (
	// AuthorizationHeader sends "Authorization: Bearer <token>"
	AuthorizationHeader AccessMethod = iota
	// QueryParameter appends access_token=<token> to the URL
	QueryParameter
)

const (
	bearerScheme         = "Bearer"
	accessTokenParameter = "access_token"
)

func (m AccessMethod) String() string {
	switch m {
	case AuthorizationHeader:
		return "header"
	case QueryParameter:
		return "query"
	default:
		return "unknown"
	}
}

// ParseAccessMethod maps "header" and "query" to access methods
func ParseAccessMethod(s string) (AccessMethod, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "header":
		return AuthorizationHeader, true
	case "query":
		return QueryParameter, true
	default:
		return AuthorizationHeader, false
	}
}

// Intercept attaches token to req. The header variant replaces any existing
// Authorization header; the query variant replaces any existing access_token
// parameter and keeps the other parameters in order.
func (m AccessMethod) Intercept(req *http.Request, token string) {
	switch m {
	case QueryParameter:
		req.URL.RawQuery = appendAccessToken(req.URL.RawQuery, token)
	default:
		req.Header.Set("Authorization", bearerScheme+" "+token)
	}
}

// GetAccessToken returns the token Intercept attached, or "" when there is none
func (m AccessMethod) GetAccessToken(req *http.Request) string {
	switch m {
	case QueryParameter:
		values, err := url.ParseQuery(req.URL.RawQuery)
		if err != nil {
			return ""
		}
		return values.Get(accessTokenParameter)
	default:
		scheme, token, ok := strings.Cut(req.Header.Get("Authorization"), " ")
		if !ok || scheme != bearerScheme {
			return ""
		}
		return token
	}
}

// appendAccessToken edits the raw query by hand because url.Values.Encode
// sorts keys.
func appendAccessToken(rawQuery, token string) string {
	var kept []string
	if rawQuery != "" {
		for _, part := range strings.Split(rawQuery, "&") {
			if part == "" {
				continue
			}
			key, _, _ := strings.Cut(part, "=")
			if unescaped, err := url.QueryUnescape(key); err == nil && unescaped == accessTokenParameter {
				continue
			}
			kept = append(kept, part)
		}
	}
	kept = append(kept, accessTokenParameter+"="+url.QueryEscape(token))
	return strings.Join(kept, "&")
}
