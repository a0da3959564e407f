package oauth2

import (
	"context"

	"api-client/internal/common/logging"
)

// CodeReceiver obtains an authorization code from the user. It may set the
// redirect URI and state of req before sending the user to it.
type CodeReceiver interface {
	ReceiveCode(ctx context.Context, req *AuthorizationCodeRequestURL) (*AuthorizationCodeResponseURL, error)
}

// InstalledApp authorizes users of a desktop or command line application
type InstalledApp struct {
	flow     *AuthorizationCodeFlow
	receiver CodeReceiver
}

// NewInstalledApp creates an installed application authorizer
func NewInstalledApp(flow *AuthorizationCodeFlow, receiver CodeReceiver) *InstalledApp {
	return &InstalledApp{flow: flow, receiver: receiver}
}

// ShouldRequestAuthorizationCode reports whether token is unusable without
// the user's involvement.
func (a *InstalledApp) ShouldRequestAuthorizationCode(token *TokenResponse) bool {
	return token == nil || (token.RefreshToken == "" && token.IsExpired(a.flow.Clock()))
}

// Authorize returns a credential for userID, sending the user through the
// authorization code grant when no usable token is stored.
func (a *InstalledApp) Authorize(ctx context.Context, userID string) (*UserCredential, error) {
	token, err := a.flow.LoadToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	if a.ShouldRequestAuthorizationCode(token) {
		logging.Info("Requesting authorization from user", logging.String("user_id", userID))

		req := a.flow.CreateAuthorizationCodeRequest("")
		resp, err := a.receiver.ReceiveCode(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := resp.Err(); err != nil {
			return nil, err
		}

		token, err = a.flow.ExchangeCodeForToken(ctx, userID, resp.Code, req.RedirectURI)
		if err != nil {
			return nil, err
		}
	}

	return NewUserCredential(a.flow, userID, token), nil
}
