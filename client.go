package nodio

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/florianilch/nodio/internal/credentials"
	"github.com/florianilch/nodio/internal/dispatch"
	"github.com/florianilch/nodio/internal/tokensource"
)

// Default endpoints.
const (
	DefaultBaseURL  = dispatch.DefaultBaseURL
	DefaultTokenURL = tokensource.TokenURL
)

// Verb selects the shape of a raw request sent with Client.Handle.
type Verb = dispatch.Verb

// Supported verbs.
const (
	Get      = dispatch.Get
	PostJSON = dispatch.PostJSON
)

// Credentials identifies the Podio app. AccessToken may seed the cache with a
// token obtained elsewhere; it is trusted for ExpiresIn (100ms by default).
type Credentials struct {
	AppID        string
	AppToken     string
	ClientID     string
	ClientSecret string
	AccessToken  string
	ExpiresIn    time.Duration
}

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	baseURL    string
	tokenURL   string
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// WithBaseURL overrides the API root (default https://api.podio.com/).
func WithBaseURL(baseURL string) Option {
	return func(c *clientConfig) {
		c.baseURL = baseURL
	}
}

// WithTokenURL overrides the token endpoint (default https://podio.com/oauth/token).
func WithTokenURL(tokenURL string) Option {
	return func(c *clientConfig) {
		c.tokenURL = tokenURL
	}
}

// WithHTTPClient sets the client used for both token and resource requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithClock sets the time source for token validity decisions.
func WithClock(now func() time.Time) Option {
	return func(c *clientConfig) {
		c.now = now
	}
}

// Client talks to the Podio API on behalf of one app. It is safe for
// concurrent use; clients never share token state.
type Client struct {
	// Items groups item and comment operations.
	Items *Items
	// Tasks groups task operations.
	Tasks *Tasks

	creds      *credentials.Credentials
	dispatcher *dispatch.Dispatcher
}

// New validates creds and creates a Client. No network access happens until
// the first request.
func New(creds Credentials, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		baseURL:  DefaultBaseURL,
		tokenURL: DefaultTokenURL,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var credOpts []credentials.Option
	if cfg.now != nil {
		credOpts = append(credOpts, credentials.WithClock(cfg.now))
	}
	store, err := credentials.New(credentials.Config{
		AppID:        creds.AppID,
		AppToken:     creds.AppToken,
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		AccessToken:  creds.AccessToken,
		ExpiresIn:    creds.ExpiresIn,
	}, credOpts...)
	if err != nil {
		return nil, err
	}

	tsOpts := []tokensource.Option{
		tokensource.WithTokenURL(cfg.tokenURL),
		tokensource.WithLogger(cfg.logger),
	}
	dOpts := []dispatch.Option{
		dispatch.WithBaseURL(cfg.baseURL),
		dispatch.WithLogger(cfg.logger),
	}
	if cfg.httpClient != nil {
		tsOpts = append(tsOpts, tokensource.WithHTTPClient(cfg.httpClient))
		dOpts = append(dOpts, dispatch.WithHTTPClient(cfg.httpClient))
	}

	ts, err := tokensource.New(store, tsOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create token source: %w", err)
	}
	d, err := dispatch.New(ts, dOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	c := &Client{
		creds:      store,
		dispatcher: d,
	}
	c.Items = &Items{client: c}
	c.Tasks = &Tasks{client: c}
	return c, nil
}

// AppID returns the app this client acts for.
func (c *Client) AppID() string {
	return c.creds.AppID()
}

// Handle sends a raw request to relativePath, which is joined to the base URL.
func (c *Client) Handle(ctx context.Context, verb Verb, relativePath string, payload any) (json.RawMessage, error) {
	return c.dispatcher.Handle(ctx, verb, relativePath, payload)
}

// WithStatusRecorder returns a context under which Client calls store the
// HTTP status of the API response in *status, e.g. to tell 200 from 201.
func WithStatusRecorder(ctx context.Context, status *int) context.Context {
	return dispatch.WithStatusRecorder(ctx, status)
}

// Decode unmarshals the result of a Client call into T, passing errors through.
//
//	item, err := nodio.Decode[Item](client.Items.Get(ctx, 42))
func Decode[T any](data json.RawMessage, err error) (T, error) {
	var v T
	if err != nil {
		return v, err
	}
	if len(data) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decoding response: %w", err)
	}
	return v, nil
}
