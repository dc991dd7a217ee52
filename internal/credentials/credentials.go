package credentials

import (
	"fmt"
	"net/url"
	"sync"
	"time"
)

// GrantTypeApp identifies the app authentication flow at the token endpoint.
const GrantTypeApp = "app"

// DefaultExpiresIn is the lifetime assumed for a token before the first exchange.
const DefaultExpiresIn = 100 * time.Millisecond

// Field names as sent to the token endpoint.
const (
	FieldAppID        = "app_id"
	FieldAppToken     = "app_token"
	FieldClientID     = "client_id"
	FieldClientSecret = "client_secret"
	FieldGrantType    = "grant_type"
)

// MissingCredentialError reports a required identity field that was absent
// while no valid access token was available.
type MissingCredentialError struct {
	Field string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("when not providing access_token, you must specify %q within your credentials", e.Field)
}

// Config is the caller-supplied input for New.
type Config struct {
	AppID        string
	AppToken     string
	ClientID     string
	ClientSecret string

	// AccessToken seeds the cache with an already issued token.
	AccessToken string
	// ExpiresIn is the remaining lifetime of AccessToken (defaults to DefaultExpiresIn).
	ExpiresIn time.Duration
}

// Token is a consistent snapshot of the cached token state.
type Token struct {
	AccessToken string
	ExpiresIn   time.Duration
	IssuedAt    time.Time
}

// ExpiresAt returns the first instant at which the token is stale.
func (t Token) ExpiresAt() time.Time {
	return t.IssuedAt.Add(t.ExpiresIn)
}

// ValidAt reports whether the token may be attached to a request at now.
func (t Token) ValidAt(now time.Time) bool {
	return t.AccessToken != "" && now.Before(t.ExpiresAt())
}

// Option configures Credentials.
type Option func(*Credentials)

// WithClock sets the time source used for issue times and validity checks.
func WithClock(now func() time.Time) Option {
	return func(c *Credentials) {
		if now != nil {
			c.now = now
		}
	}
}

// Credentials holds the app identity and the mutable token triple.
type Credentials struct {
	appID        string
	appToken     string
	clientID     string
	clientSecret string
	grantType    string

	now func() time.Time

	mu    sync.RWMutex
	token Token
}

// New merges cfg over the defaults and validates the result. Without a valid
// access token every identity field is required.
func New(cfg Config, opts ...Option) (*Credentials, error) {
	c := &Credentials{
		appID:        cfg.AppID,
		appToken:     cfg.AppToken,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		grantType:    GrantTypeApp,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	expiresIn := cfg.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = DefaultExpiresIn
	}
	c.token = Token{
		AccessToken: cfg.AccessToken,
		ExpiresIn:   expiresIn,
		IssuedAt:    c.now(),
	}

	if !c.token.ValidAt(c.now()) {
		required := []struct{ name, value string }{
			{FieldAppID, c.appID},
			{FieldAppToken, c.appToken},
			{FieldClientID, c.clientID},
			{FieldClientSecret, c.clientSecret},
		}
		for _, r := range required {
			if r.value == "" {
				return nil, &MissingCredentialError{Field: r.name}
			}
		}
	}

	return c, nil
}

// AppID returns the app the credentials belong to.
func (c *Credentials) AppID() string {
	return c.appID
}

// GrantType returns the fixed grant type sent to the token endpoint.
func (c *Credentials) GrantType() string {
	return c.grantType
}

// Now returns the current time according to the configured clock.
func (c *Credentials) Now() time.Time {
	return c.now()
}

// Snapshot returns the current token triple.
func (c *Credentials) Snapshot() Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Valid returns the cached access token if it is inside its validity window.
func (c *Credentials) Valid() (string, bool) {
	t := c.Snapshot()
	if !t.ValidAt(c.now()) {
		return "", false
	}
	return t.AccessToken, true
}

// Store replaces the token triple after a successful exchange and returns the
// stored snapshot. The issue time is taken from the clock.
func (c *Credentials) Store(accessToken string, expiresIn time.Duration) Token {
	t := Token{
		AccessToken: accessToken,
		ExpiresIn:   expiresIn,
		IssuedAt:    c.now(),
	}
	c.mu.Lock()
	c.token = t
	c.mu.Unlock()
	return t
}

// Values renders the token exchange request body.
func (c *Credentials) Values() url.Values {
	return url.Values{
		FieldGrantType:    {c.grantType},
		FieldAppID:        {c.appID},
		FieldAppToken:     {c.appToken},
		FieldClientID:     {c.clientID},
		FieldClientSecret: {c.clientSecret},
	}
}
