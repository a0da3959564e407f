// Package oauth2 implements the client side of the OAuth 2.0 authorization
// code grant: building authorization URLs, exchanging codes and refresh
// tokens at the token endpoint, persisting the resulting tokens per user, and
// attaching them to outgoing requests.
//
// # Tokens
//
// A TokenResponse records when it was issued and how long it lives. It counts
// as expired TokenExpirySkew before its nominal expiry, and always when it
// has no access token or no lifetime.
//
// # Flow
//
//	init := oauth2.NewFlowInitializer(authURL, tokenURL)
//	init.ClientSecrets = oauth2.ClientSecrets{ClientID: id, ClientSecret: secret}
//	init.Scopes = []string{"read", "write"}
//	init.DataStore = tokens
//	flow, err := oauth2.NewAuthorizationCodeFlow(init)
//
// Tokens are written to the data store only after a successful exchange.
// Error answers from the token endpoint surface as token endpoint errors
// wrapping a *TokenResponseError.
//
// # Credentials
//
// A UserCredential binds a user's token to the flow. Registered on a
// commonhttp.ConfigurableHTTPClient it attaches the token with the flow's
// AccessMethod, refreshes expired tokens before sending, and retries a
// request once after refreshing on a 401.
//
// InstalledApp obtains the first token of a command line user through a
// LocalServerCodeReceiver, and Refresher keeps stored tokens fresh on a cron
// schedule.
package oauth2
