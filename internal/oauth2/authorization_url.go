package oauth2

import (
	"net/url"

	"api-client/internal/common/errors"
)

// AuthorizationCodeRequestURL is the URL a user visits to grant access
// (RFC 6749 section 4.1.1).
type AuthorizationCodeRequestURL struct {
	AuthorizationServerURL string
	ClientID               string
	RedirectURI            string
	ResponseType           string
	// Scope is space separated; empty omits the parameter.
	Scope string
	// State is sent back unchanged on the redirect; empty omits the parameter.
	State string
}

// Build renders the request onto the authorization server URL, keeping any
// query parameters the server URL already has.
func (r *AuthorizationCodeRequestURL) Build() (*url.URL, error) {
	u, err := url.Parse(r.AuthorizationServerURL)
	if err != nil {
		return nil, errors.ConfigError("invalid authorization server URL: " + err.Error())
	}

	q := u.Query()
	q.Set("response_type", r.ResponseType)
	q.Set("client_id", r.ClientID)
	if r.RedirectURI != "" {
		q.Set("redirect_uri", r.RedirectURI)
	}
	if r.Scope != "" {
		q.Set("scope", r.Scope)
	}
	if r.State != "" {
		q.Set("state", r.State)
	}
	u.RawQuery = q.Encode()
	return u, nil
}

// AuthorizationCodeResponseURL holds the parameters the authorization server
// redirected back with. Either Code or Error is set.
type AuthorizationCodeResponseURL struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
	ErrorURI         string
}

// ParseAuthorizationCodeResponse reads the redirect query
func ParseAuthorizationCodeResponse(query url.Values) *AuthorizationCodeResponseURL {
	return &AuthorizationCodeResponseURL{
		Code:             query.Get("code"),
		State:            query.Get("state"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
		ErrorURI:         query.Get("error_uri"),
	}
}

// Err returns the authorization error as a token endpoint error, or nil
func (r *AuthorizationCodeResponseURL) Err() error {
	if r.Error == "" && r.Code != "" {
		return nil
	}

	resp := TokenErrorResponse{
		Error:            r.Error,
		ErrorDescription: r.ErrorDescription,
		ErrorURI:         r.ErrorURI,
	}
	if resp.Error == "" {
		resp.Error = "invalid_response"
		resp.ErrorDescription = "authorization response carried neither code nor error"
	}
	return errors.TokenEndpointError("authorization was not granted", &TokenResponseError{Response: resp})
}
