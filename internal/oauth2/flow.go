package oauth2

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"api-client/internal/circuitbreaker"
	"api-client/internal/common/errors"
	commonhttp "api-client/internal/common/http"
	"api-client/internal/common/logging"
	"api-client/internal/common/validation"
	"api-client/internal/store"
)

// ClientSecrets identifies the client to the token endpoint
type ClientSecrets struct {
	ClientID     string `json:"client_id" validate:"required"`
	ClientSecret string `json:"client_secret" validate:"required"`
}

// FlowInitializer configures an AuthorizationCodeFlow. Start from
// NewFlowInitializer to get the defaults.
type FlowInitializer struct {
	AuthorizationServerURL string
	TokenServerURL         string
	ClientSecrets          ClientSecrets
	Scopes                 []string

	// DataStore persists tokens per user. Nil disables persistence.
	DataStore store.DataStore[TokenResponse]
	// Clock defaults to the system clock.
	Clock Clock
	// AccessMethod defaults to the Authorization header.
	AccessMethod AccessMethod

	// HTTPClientFactory builds the client used for token requests.
	HTTPClientFactory commonhttp.HTTPClientFactory
	// BackOffPolicy selects the failures the token client retries.
	BackOffPolicy commonhttp.ExponentialBackOffPolicy

	// CircuitBreaker, when set, guards token endpoint calls.
	CircuitBreaker *circuitbreaker.GoBreakerAdapter
	Logger         logging.Logger
}

// NewFlowInitializer returns an initializer with the default clock, access
// method and backoff policy.
func NewFlowInitializer(authorizationServerURL, tokenServerURL string) FlowInitializer {
	return FlowInitializer{
		AuthorizationServerURL: authorizationServerURL,
		TokenServerURL:         tokenServerURL,
		Clock:                  SystemClock{},
		AccessMethod:           AuthorizationHeader,
		BackOffPolicy:          commonhttp.DefaultBackOffPolicy,
	}
}

// flowSettings is the validated subset of FlowInitializer
type flowSettings struct {
	AuthorizationServerURL string `json:"authorization_server_url" validate:"required,absolute_url"`
	TokenServerURL         string `json:"token_server_url" validate:"required,absolute_url"`
	ClientID               string `json:"client_id" validate:"required"`
	ClientSecret           string `json:"client_secret" validate:"required"`
}

// AuthorizationCodeFlow acquires, refreshes and persists tokens for the
// authorization code grant. It is safe for concurrent use; it does not
// serialize refreshes of the same user, see UserCredential for that.
type AuthorizationCodeFlow struct {
	authorizationServerURL string
	tokenServerURL         string
	clientSecrets          ClientSecrets
	scopes                 []string
	dataStore              store.DataStore[TokenResponse]
	clock                  Clock
	accessMethod           AccessMethod
	httpClient             *commonhttp.ConfigurableHTTPClient
	breaker                *circuitbreaker.GoBreakerAdapter
	logger                 logging.Logger
}

// NewAuthorizationCodeFlow validates init and builds a flow. Missing client
// secrets or server URLs are configuration errors.
func NewAuthorizationCodeFlow(init FlowInitializer) (*AuthorizationCodeFlow, error) {
	settings := flowSettings{
		AuthorizationServerURL: init.AuthorizationServerURL,
		TokenServerURL:         init.TokenServerURL,
		ClientID:               init.ClientSecrets.ClientID,
		ClientSecret:           init.ClientSecrets.ClientSecret,
	}
	if err := validation.ValidateStruct(settings); err != nil {
		return nil, configError(err)
	}

	logger := init.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	clock := init.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	factory := init.HTTPClientFactory
	if factory == nil {
		factory = commonhttp.NewDefaultHTTPClientFactory()
	}

	httpClient := factory.CreateHTTPClient(commonhttp.CreateHTTPClientArgs{
		GZipEnabled:   true,
		BackOffPolicy: init.BackOffPolicy,
		Logger:        logger,
	})

	return &AuthorizationCodeFlow{
		authorizationServerURL: init.AuthorizationServerURL,
		tokenServerURL:         init.TokenServerURL,
		clientSecrets:          init.ClientSecrets,
		scopes:                 append([]string(nil), init.Scopes...),
		dataStore:              init.DataStore,
		clock:                  clock,
		accessMethod:           init.AccessMethod,
		httpClient:             httpClient,
		breaker:                init.CircuitBreaker,
		logger:                 logger.WithFields(logging.String("component", "oauth2_flow")),
	}, nil
}

func configError(err error) error {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return errors.ConfigError("invalid flow configuration: " + appErr.Message)
	}
	return errors.ConfigError("invalid flow configuration: " + err.Error())
}

func (f *AuthorizationCodeFlow) AuthorizationServerURL() string { return f.authorizationServerURL }
func (f *AuthorizationCodeFlow) TokenServerURL() string         { return f.tokenServerURL }
func (f *AuthorizationCodeFlow) ClientSecrets() ClientSecrets   { return f.clientSecrets }
func (f *AuthorizationCodeFlow) Clock() Clock                   { return f.clock }
func (f *AuthorizationCodeFlow) AccessMethod() AccessMethod     { return f.accessMethod }

func (f *AuthorizationCodeFlow) DataStore() store.DataStore[TokenResponse] { return f.dataStore }

func (f *AuthorizationCodeFlow) HTTPClient() *commonhttp.ConfigurableHTTPClient { return f.httpClient }

// Scopes returns a copy of the configured scopes
func (f *AuthorizationCodeFlow) Scopes() []string {
	return append([]string(nil), f.scopes...)
}

func (f *AuthorizationCodeFlow) scope() string {
	return strings.Join(f.scopes, " ")
}

// LoadToken returns the stored token of userID. Without a store it returns
// (nil, nil).
func (f *AuthorizationCodeFlow) LoadToken(ctx context.Context, userID string) (*TokenResponse, error) {
	if f.dataStore == nil {
		return nil, nil
	}
	return f.dataStore.Get(ctx, userID)
}

// DeleteToken forgets the stored token of userID
func (f *AuthorizationCodeFlow) DeleteToken(ctx context.Context, userID string) error {
	if f.dataStore == nil {
		return nil
	}
	return f.dataStore.Delete(ctx, userID)
}

// CreateAuthorizationCodeRequest builds the URL a user visits to authorize
// the client. State is left empty for the caller to fill in.
func (f *AuthorizationCodeFlow) CreateAuthorizationCodeRequest(redirectURI string) *AuthorizationCodeRequestURL {
	return &AuthorizationCodeRequestURL{
		AuthorizationServerURL: f.authorizationServerURL,
		ClientID:               f.clientSecrets.ClientID,
		RedirectURI:            redirectURI,
		ResponseType:           "code",
		Scope:                  f.scope(),
	}
}

// ExchangeCodeForToken trades an authorization code for a token and stores it under userID
func (f *AuthorizationCodeFlow) ExchangeCodeForToken(ctx context.Context, userID, code, redirectURI string) (*TokenResponse, error) {
	return f.fetchAndStore(ctx, userID, &AuthorizationCodeTokenRequest{
		Code:        code,
		RedirectURI: redirectURI,
		Scope:       f.scope(),
	})
}

// RefreshToken obtains a new access token and stores it under userID. When
// the server does not rotate the refresh token, the old one is kept.
func (f *AuthorizationCodeFlow) RefreshToken(ctx context.Context, userID, refreshToken string) (*TokenResponse, error) {
	token, err := f.FetchToken(ctx, userID, &RefreshTokenRequest{
		RefreshToken: refreshToken,
		Scope:        f.scope(),
	})
	if err != nil {
		return nil, err
	}
	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}
	if err := f.storeToken(ctx, userID, token); err != nil {
		return nil, err
	}
	return token, nil
}

// ExchangeAssertion trades a signed JWT assertion for a token and stores it under userID
func (f *AuthorizationCodeFlow) ExchangeAssertion(ctx context.Context, userID, assertion string) (*TokenResponse, error) {
	return f.fetchAndStore(ctx, userID, &AssertionTokenRequest{
		Assertion: assertion,
		Scope:     f.scope(),
	})
}

func (f *AuthorizationCodeFlow) fetchAndStore(ctx context.Context, userID string, req TokenRequest) (*TokenResponse, error) {
	token, err := f.FetchToken(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	if err := f.storeToken(ctx, userID, token); err != nil {
		return nil, err
	}
	return token, nil
}

// storeToken writes token unless the caller gave up in the meantime
func (f *AuthorizationCodeFlow) storeToken(ctx context.Context, userID string, token *TokenResponse) error {
	if f.dataStore == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := f.dataStore.Store(ctx, userID, token); err != nil {
		f.logger.Error("Failed to persist token", err, logging.String("user_id", userID))
		return err
	}
	return nil
}

// FetchToken posts req to the token endpoint. A non-success answer is
// returned as a token endpoint error whose cause is a *TokenResponseError.
// Nothing is persisted.
func (f *AuthorizationCodeFlow) FetchToken(ctx context.Context, userID string, req TokenRequest) (*TokenResponse, error) {
	var token *TokenResponse
	call := func() error {
		var err error
		token, err = f.fetchToken(ctx, req)
		return err
	}

	var err error
	if f.breaker != nil {
		err = f.breaker.Execute(ctx, call)
	} else {
		err = call()
	}
	if err != nil {
		f.logger.Warn("Token request failed",
			logging.String("user_id", userID),
			logging.String("grant_type", req.GrantType()),
			logging.Err(err),
		)
		return nil, err
	}

	fields := []logging.Field{
		logging.String("user_id", userID),
		logging.String("grant_type", req.GrantType()),
		logging.Bool("has_refresh_token", token.RefreshToken != ""),
	}
	if token.ExpiresInSeconds != nil {
		fields = append(fields, logging.Int64("expires_in", *token.ExpiresInSeconds))
	}
	if expiresAt, ok := token.ExpiresAt(); ok {
		fields = append(fields, logging.Time("expires_at", expiresAt))
	}
	f.logger.Debug("Token obtained", fields...)
	return token, nil
}

func (f *AuthorizationCodeFlow) fetchToken(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	form := encodeTokenRequest(req, f.clientSecrets)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.tokenServerURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.InternalError("failed to create token request", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.ConnectionError("failed to read token response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp TokenErrorResponse
		if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
			errResp = TokenErrorResponse{
				Error:            "invalid_response",
				ErrorDescription: fmt.Sprintf("token endpoint answered %d without an error body", resp.StatusCode),
			}
		}
		return nil, errors.TokenEndpointError(
			fmt.Sprintf("token request failed: %s", errResp.Error),
			&TokenResponseError{StatusCode: resp.StatusCode, Response: errResp},
		).WithContext("status_code", resp.StatusCode)
	}

	var token TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, errors.DeserializationError("failed to decode token response", err)
	}
	token.Issued = f.clock.Now()
	return &token, nil
}
