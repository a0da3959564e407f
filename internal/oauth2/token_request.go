package oauth2

import "net/url"

// Grant types sent in the grant_type field
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
	GrantTypeJWTBearer         = "urn:ietf:params:oauth:grant-type:jwt-bearer"
)

// TokenRequest is one of AuthorizationCodeTokenRequest, RefreshTokenRequest
// or AssertionTokenRequest.
type TokenRequest interface {
	GrantType() string
	// fields returns the grant specific form fields.
	fields() url.Values
	scope() string
}

// AuthorizationCodeTokenRequest exchanges an authorization code for a token
type AuthorizationCodeTokenRequest struct {
	Code        string
	RedirectURI string
	Scope       string
}

func (r *AuthorizationCodeTokenRequest) GrantType() string { return GrantTypeAuthorizationCode }
func (r *AuthorizationCodeTokenRequest) scope() string     { return r.Scope }

func (r *AuthorizationCodeTokenRequest) fields() url.Values {
	v := url.Values{}
	v.Set("code", r.Code)
	v.Set("redirect_uri", r.RedirectURI)
	return v
}

// RefreshTokenRequest trades a refresh token for a new access token
type RefreshTokenRequest struct {
	RefreshToken string
	Scope        string
}

func (r *RefreshTokenRequest) GrantType() string { return GrantTypeRefreshToken }
func (r *RefreshTokenRequest) scope() string     { return r.Scope }

func (r *RefreshTokenRequest) fields() url.Values {
	v := url.Values{}
	v.Set("refresh_token", r.RefreshToken)
	return v
}

// AssertionTokenRequest presents a signed JWT (RFC 7523)
type AssertionTokenRequest struct {
	Assertion string
	Scope     string
}

func (r *AssertionTokenRequest) GrantType() string { return GrantTypeJWTBearer }
func (r *AssertionTokenRequest) scope() string     { return r.Scope }

func (r *AssertionTokenRequest) fields() url.Values {
	v := url.Values{}
	v.Set("assertion", r.Assertion)
	return v
}

// encodeTokenRequest builds the form body sent to the token endpoint
func encodeTokenRequest(req TokenRequest, secrets ClientSecrets) url.Values {
	form := req.fields()
	form.Set("grant_type", req.GrantType())
	form.Set("client_id", secrets.ClientID)
	form.Set("client_secret", secrets.ClientSecret)
	if s := req.scope(); s != "" {
		form.Set("scope", s)
	}
	return form
}
