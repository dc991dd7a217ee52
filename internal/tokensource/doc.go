// Package tokensource obtains and caches access tokens for the Podio app
// authentication flow.
//
// Podio's app grant deviates from the grants golang.org/x/oauth2 knows how to
// request: the token endpoint expects grant_type=app together with the app id
// and app token. TokenSource therefore performs the exchange itself and hands
// out *oauth2.Token values, so it can be used anywhere an oauth2.TokenSource is
// accepted.
//
// # Caching
//
// The cached token lives in the credentials.Credentials passed to New. While it
// is inside its validity window EnsureToken returns it without I/O. Once stale,
// concurrent callers share a single exchange:
//
//	ts, err := tokensource.New(creds)
//	token, err := ts.EnsureToken(ctx)
//	token.SetAuthHeader(req) // Authorization: OAuth2 <token>
//
// # Custom HTTP Client
//
// Configure the client used for the exchange (e.g., for proxies or custom timeouts):
//
//	ts, err := tokensource.New(creds, tokensource.WithHTTPClient(customClient))
package tokensource
