package oauth2

import (
	"context"

	xoauth2 "golang.org/x/oauth2"
)

// ToOAuth2Token converts t for libraries built on golang.org/x/oauth2. The
// ID token, when present, is carried as the "id_token" extra.
func (t *TokenResponse) ToOAuth2Token() *xoauth2.Token {
	if t == nil {
		return nil
	}

	token := &xoauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
	}
	if expiresAt, ok := t.ExpiresAt(); ok {
		token.Expiry = expiresAt
	}
	if t.IDToken != "" {
		token = token.WithExtra(map[string]interface{}{"id_token": t.IDToken})
	}
	return token
}

type credentialTokenSource struct {
	ctx        context.Context
	credential *UserCredential
}

// TokenSource exposes the credential as an x/oauth2 TokenSource. Token
// refreshes through the credential, so the refreshed token is persisted and
// shared with requests made through ConfigurableHTTPClient.
func (c *UserCredential) TokenSource(ctx context.Context) xoauth2.TokenSource {
	return &credentialTokenSource{ctx: ctx, credential: c}
}

func (s *credentialTokenSource) Token() (*xoauth2.Token, error) {
	if _, err := s.credential.GetAccessToken(s.ctx); err != nil {
		return nil, err
	}
	return s.credential.Token().ToOAuth2Token(), nil
}
