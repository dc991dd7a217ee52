// Package dispatch sends authenticated requests to the Podio REST API and
// classifies their responses.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
)

// DefaultBaseURL is the root all relative request paths are joined to.
const DefaultBaseURL = "https://api.podio.com/"

const (
	defaultTimeout = 30 * time.Second
	maxBody        = 10 << 20
)

// ErrUnknownVerb is returned for a Verb outside Get and PostJSON.
var ErrUnknownVerb = errors.New("unknown request verb")

// Verb selects the request shape.
type Verb int

const (
	// Get sends the payload, if any, as query parameters.
	Get Verb = iota + 1
	// PostJSON sends the payload as a JSON body.
	PostJSON
)

func (v Verb) String() string {
	switch v {
	case Get:
		return "GET"
	case PostJSON:
		return "POST-JSON"
	default:
		return fmt.Sprintf("Verb(%d)", int(v))
	}
}

// RequestError reports a non-success response or a failed transport.
// StatusCode is 0 when no response was received.
type RequestError struct {
	StatusCode int
	Raw        string
	Err        error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		if e.StatusCode != 0 {
			return fmt.Sprintf("request failed with status %d: %v", e.StatusCode, e.Err)
		}
		return fmt.Sprintf("request failed: %v", e.Err)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Raw)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

type statusKey struct{}

// WithStatusRecorder returns a context under which Handle stores the HTTP
// status of the API response in *status. It is left untouched when no
// response was received.
func WithStatusRecorder(ctx context.Context, status *int) context.Context {
	return context.WithValue(ctx, statusKey{}, status)
}

// TokenProvider supplies a valid access token before each request.
type TokenProvider interface {
	EnsureToken(ctx context.Context) (*oauth2.Token, error)
}

// HTTPDoer executes resource requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures a Dispatcher.
type Option func(*config)

type config struct {
	baseURL string
	client  HTTPDoer
	logger  *slog.Logger
}

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(baseURL string) Option {
	return func(c *config) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the client used for resource requests.
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

// Dispatcher issues requests against the API with a token from its TokenProvider.
// It is safe for concurrent use.
type Dispatcher struct {
	baseURL string
	tokens  TokenProvider
	client  HTTPDoer
	logger  *slog.Logger
}

// New creates a Dispatcher.
func New(tokens TokenProvider, opts ...Option) (*Dispatcher, error) {
	if tokens == nil {
		return nil, fmt.Errorf("missing token provider")
	}

	cfg := &config{
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: defaultTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	base, err := url.Parse(cfg.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host required", cfg.baseURL)
	}

	return &Dispatcher{
		baseURL: strings.TrimRight(base.String(), "/") + "/",
		tokens:  tokens,
		client:  cfg.client,
		logger:  cfg.logger,
	}, nil
}

// Handle ensures a valid token, performs verb against relativePath and returns
// the response body of a 200 or 201 response. Every other outcome is an error:
// token failures as returned by the TokenProvider (no request is sent), and
// response or transport failures as *RequestError.
func (d *Dispatcher) Handle(ctx context.Context, verb Verb, relativePath string, payload any) (json.RawMessage, error) {
	if verb != Get && verb != PostJSON {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVerb, verb)
	}

	token, err := d.tokens.EnsureToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := d.newRequest(ctx, verb, relativePath, payload)
	if err != nil {
		return nil, err
	}
	token.SetAuthHeader(req)

	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)

	logger := d.logger.With("method", req.Method, "path", relativePath, "request_id", requestID)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		logger = logger.With("trace_id", sc.TraceID().String())
	}

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		logger.WarnContext(ctx, "request failed", "error", err, "duration", time.Since(start))
		return nil, &RequestError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if status, ok := ctx.Value(statusKey{}).(*int); ok && status != nil {
		*status = resp.StatusCode
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, &RequestError{StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response body: %w", err)}
	}

	logger.DebugContext(ctx, "request completed", "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &RequestError{StatusCode: resp.StatusCode, Raw: string(raw)}
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, &RequestError{
			StatusCode: resp.StatusCode,
			Raw:        string(raw),
			Err:        errors.New("response body is not valid JSON"),
		}
	}
	return json.RawMessage(raw), nil
}

// newRequest builds the outgoing request for verb. Authorization is added by the caller.
func (d *Dispatcher) newRequest(ctx context.Context, verb Verb, relativePath string, payload any) (*http.Request, error) {
	endpoint := d.baseURL + strings.TrimLeft(relativePath, "/")

	switch verb {
	case Get:
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		if payload != nil {
			query, err := queryValues(payload)
			if err != nil {
				return nil, fmt.Errorf("encoding query: %w", err)
			}
			merged := req.URL.Query()
			for key, values := range query {
				merged[key] = append(merged[key], values...)
			}
			req.URL.RawQuery = merged.Encode()
		}
		req.Header.Set("Accept", "application/json")
		return req, nil

	case PostJSON:
		var body io.Reader
		if payload != nil {
			data, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("encoding body: %w", err)
			}
			body = bytes.NewReader(data)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownVerb, verb)
	}
}
