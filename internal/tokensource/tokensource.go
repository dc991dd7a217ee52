package tokensource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/florianilch/nodio/internal/credentials"
)

const (
	defaultTimeout = 30 * time.Second
	maxTokenBody   = 1 << 20
	flightKey      = "token"
)

// AuthenticationError reports a rejected or unreachable token exchange.
// StatusCode is 0 when no response was received.
type AuthenticationError struct {
	StatusCode int
	Raw        string
	Err        error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %v", e.Err)
	}
	return fmt.Sprintf("authentication failed with status %d: %s", e.StatusCode, e.Raw)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// HTTPDoer is the transport used for the token exchange.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures a TokenSource.
type Option func(*config)

type config struct {
	tokenURL string
	client   HTTPDoer
	logger   *slog.Logger
}

// WithTokenURL overrides the token endpoint.
func WithTokenURL(tokenURL string) Option {
	return func(c *config) {
		c.tokenURL = tokenURL
	}
}

// WithHTTPClient sets the client used for the exchange.
// If not provided, an http.Client with a 30s timeout is used.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *config) {
		if client != nil {
			c.client = client
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// TokenSource hands out the cached access token and renews it when stale.
type TokenSource struct {
	creds    *credentials.Credentials
	tokenURL string
	client   HTTPDoer
	logger   *slog.Logger
	group    singleflight.Group
}

// Compile-time check to ensure TokenSource implements oauth2.TokenSource
var _ oauth2.TokenSource = (*TokenSource)(nil)

// New creates a TokenSource backed by creds. No I/O is performed until a token
// is needed.
func New(creds *credentials.Credentials, opts ...Option) (*TokenSource, error) {
	if creds == nil {
		return nil, fmt.Errorf("missing credentials")
	}

	cfg := &config{
		tokenURL: TokenURL,
		client:   &http.Client{Timeout: defaultTimeout},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.tokenURL == "" {
		return nil, fmt.Errorf("token URL cannot be empty")
	}

	return &TokenSource{
		creds:    creds,
		tokenURL: cfg.tokenURL,
		client:   cfg.client,
		logger:   cfg.logger,
	}, nil
}

// Token implements oauth2.TokenSource. oauth2.TokenSource has no context
// parameter, so the exchange runs with a background context.
func (ts *TokenSource) Token() (*oauth2.Token, error) {
	return ts.EnsureToken(context.Background())
}

// EnsureToken returns a token inside its validity window, exchanging the app
// credentials for a new one if the cached token is absent or stale.
//
// A caller whose ctx ends stops waiting, but a started exchange is not aborted
// and still updates the cache.
func (ts *TokenSource) EnsureToken(ctx context.Context) (*oauth2.Token, error) {
	// Hot path: cache hit, no I/O
	if access, ok := ts.creds.Valid(); ok {
		return ts.oauthToken(access), nil
	}

	ch := ts.group.DoChan(flightKey, func() (any, error) {
		// Another flight may have completed between the check above and this one
		if access, ok := ts.creds.Valid(); ok {
			return access, nil
		}
		return ts.exchange(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return ts.oauthToken(res.Val.(string)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// tokenResponse is the payload returned by the token endpoint.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// exchange performs one token request and stores the result. The credentials
// are left untouched on failure.
func (ts *TokenSource) exchange(ctx context.Context) (string, error) {
	body := ts.creds.Values().Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.tokenURL, strings.NewReader(body))
	if err != nil {
		return "", &AuthenticationError{Err: fmt.Errorf("creating token request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := ts.client.Do(req)
	if err != nil {
		ts.logger.WarnContext(ctx, "token exchange failed", "error", err)
		return "", &AuthenticationError{Err: fmt.Errorf("requesting token: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenBody))
	if err != nil {
		return "", &AuthenticationError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("reading token response: %w", err),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		ts.logger.WarnContext(ctx, "token exchange rejected", "status", resp.StatusCode)
		return "", &AuthenticationError{StatusCode: resp.StatusCode, Raw: string(raw)}
	}

	var payload tokenResponse
	if err := json.Unmarshal(raw, &payload); err != nil || payload.AccessToken == "" {
		ts.logger.WarnContext(ctx, "token exchange returned no access token", "status", resp.StatusCode)
		return "", &AuthenticationError{StatusCode: resp.StatusCode, Raw: string(raw)}
	}

	// expires_in is interpreted as milliseconds
	stored := ts.creds.Store(payload.AccessToken, time.Duration(payload.ExpiresIn)*time.Millisecond)

	ts.logger.DebugContext(ctx, "token exchanged",
		"token", sanitizeToken(stored.AccessToken),
		"expires_in", stored.ExpiresIn,
		"duration", time.Since(start),
	)

	return stored.AccessToken, nil
}

// oauthToken wraps access in an oauth2.Token whose Expiry matches the cache.
func (ts *TokenSource) oauthToken(access string) *oauth2.Token {
	snap := ts.creds.Snapshot()
	expiry := snap.ExpiresAt()
	if snap.AccessToken != access {
		// Replaced concurrently; the caller's token was valid when read
		expiry = time.Time{}
	}
	return &oauth2.Token{
		AccessToken: access,
		TokenType:   TokenType,
		Expiry:      expiry,
	}
}

// sanitizeToken returns a length indicator without exposing token content.
func sanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}
