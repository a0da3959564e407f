package oauth2

import (
	"context"
	"net/http"
	"sync"
	"time"

	"api-client/internal/common/errors"
	commonhttp "api-client/internal/common/http"
	"api-client/internal/common/logging"

	"golang.org/x/sync/singleflight"
)

// refreshTimeout bounds a shared token refresh once it no longer follows the
// context of the caller that started it.
const refreshTimeout = 30 * time.Second

// UserCredential is the token of one user bound to the flow that refreshes
// it. Registered on a ConfigurableHTTPClient it signs every request and
// repairs the first 401 of each request by refreshing the token.
//
// Concurrent refreshes of the same credential share a single token request.
type UserCredential struct {
	flow   *AuthorizationCodeFlow
	userID string
	logger logging.Logger

	mu    sync.RWMutex
	token *TokenResponse

	refreshes singleflight.Group
}

var (
	_ commonhttp.Interceptor                 = (*UserCredential)(nil)
	_ commonhttp.UnsuccessfulResponseHandler = (*UserCredential)(nil)
	_ commonhttp.HTTPClientInitializer       = (*UserCredential)(nil)
)

// NewUserCredential binds token to userID
func NewUserCredential(flow *AuthorizationCodeFlow, userID string, token *TokenResponse) *UserCredential {
	return &UserCredential{
		flow:   flow,
		userID: userID,
		token:  token,
		logger: flow.logger.WithFields(logging.String("user_id", userID)),
	}
}

func (c *UserCredential) UserID() string { return c.userID }

func (c *UserCredential) Flow() *AuthorizationCodeFlow { return c.flow }

// Token returns the current token
func (c *UserCredential) Token() *TokenResponse {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *UserCredential) setToken(token *TokenResponse) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Initialize registers the credential as interceptor and 401 handler
func (c *UserCredential) Initialize(client *commonhttp.ConfigurableHTTPClient) {
	client.AddInterceptor(c)
	client.AddUnsuccessfulResponseHandler(c)
}

// GetAccessToken returns a usable access token, refreshing first when the
// current one is expired.
func (c *UserCredential) GetAccessToken(ctx context.Context) (string, error) {
	token := c.Token()
	if token.IsExpired(c.flow.Clock()) {
		var err error
		if token, err = c.RefreshToken(ctx); err != nil {
			return "", err
		}
	}
	return token.AccessToken, nil
}

// Intercept implements commonhttp.Interceptor
func (c *UserCredential) Intercept(ctx context.Context, req *http.Request) error {
	accessToken, err := c.GetAccessToken(ctx)
	if err != nil {
		return err
	}
	c.flow.AccessMethod().Intercept(req, accessToken)
	return nil
}

// HandleResponse implements commonhttp.UnsuccessfulResponseHandler. Only the
// first 401 of a request is handled, so a request is retried with new
// credentials at most once.
func (c *UserCredential) HandleResponse(ctx context.Context, args *commonhttp.UnsuccessfulResponseArgs) (bool, error) {
	if args.Response.StatusCode != http.StatusUnauthorized || args.UnauthorizedCount > 1 {
		return false, nil
	}

	// Someone else refreshed while this request was in flight.
	sent := c.flow.AccessMethod().GetAccessToken(args.Request)
	if current := c.Token(); current != nil && current.AccessToken != sent {
		return true, nil
	}

	if _, err := c.RefreshToken(ctx); err != nil {
		if errors.IsType(err, errors.ErrTypeAuth) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RefreshToken exchanges the refresh token for a new access token. Callers
// racing on the same credential wait for one shared token request. The shared
// request outlives any single caller: a cancelled ctx only abandons the wait.
func (c *UserCredential) RefreshToken(ctx context.Context) (*TokenResponse, error) {
	ch := c.refreshes.DoChan(c.userID, func() (interface{}, error) {
		current := c.Token()
		if current == nil || current.RefreshToken == "" {
			return nil, errors.AuthError("access token expired and no refresh token is available")
		}

		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		token, err := c.flow.RefreshToken(refreshCtx, c.userID, current.RefreshToken)
		if err != nil {
			return nil, err
		}
		c.setToken(token)
		return token, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("Joined in-flight token refresh")
		}
		return res.Val.(*TokenResponse), nil
	}
}

// Revoke deletes the stored token and forgets the in-memory one
func (c *UserCredential) Revoke(ctx context.Context) error {
	if err := c.flow.DeleteToken(ctx, c.userID); err != nil {
		return err
	}
	c.setToken(nil)
	return nil
}
