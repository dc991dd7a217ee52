// Package proxy serves a local HTTP gateway in front of the Podio API, so local
// tools can read and write items without holding the app credentials.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// ItemService is the subset of *nodio.Items the gateway exposes.
type ItemService interface {
	Get(ctx context.Context, itemID int64) (json.RawMessage, error)
	Create(ctx context.Context, fields any) (json.RawMessage, error)
	Filter(ctx context.Context, filters any) (json.RawMessage, error)
	Comments(ctx context.Context, itemID int64) (json.RawMessage, error)
	AddComment(ctx context.Context, itemID int64, text string) (json.RawMessage, error)
}

// TaskService is the subset of *nodio.Tasks the gateway exposes.
type TaskService interface {
	Create(ctx context.Context, task any) (json.RawMessage, error)
}

// Proxy represents the gateway server
type Proxy struct {
	handler  http.Handler
	server   *http.Server
	listener net.Listener
}

// Compile-time check that Proxy implements http.Handler
var _ http.Handler = (*Proxy)(nil)

// New creates a gateway routing requests to items and tasks.
func New(items ItemService, tasks TaskService) (*Proxy, error) {
	if items == nil {
		return nil, fmt.Errorf("missing item service")
	}
	if tasks == nil {
		return nil, fmt.Errorf("missing task service")
	}

	h := &handlers{items: items, tasks: tasks}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /items/{id}", h.getItem)
	mux.HandleFunc("POST /items", h.createItem)
	mux.HandleFunc("POST /items/filter", h.filterItems)
	mux.HandleFunc("GET /items/{id}/comments", h.getComments)
	mux.HandleFunc("POST /items/{id}/comments", h.addComment)
	mux.HandleFunc("POST /tasks", h.createTask)

	return &Proxy{
		handler: applyMiddlewares(mux,
			RequestID,
			Logging(slog.Default()),
			Recovery,
		),
	}, nil
}

// ServeHTTP implements http.Handler interface
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.handler.ServeHTTP(w, r)
}

// Start starts the HTTP server in the background and returns immediately.
// Returns a channel for runtime errors and a startup error if any.
//
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors (network failures during operation) are sent to the error channel.
//
// The caller is responsible for calling Shutdown() to stop the server.
func (p *Proxy) Start(ctx context.Context, address string) (<-chan error, error) {
	// Startup phase: Create listener synchronously to catch port-in-use errors immediately
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	p.listener = listener

	p.server = &http.Server{
		Handler:      p,
		ReadTimeout:  30 * time.Second, // Inbound: Read entire client request
		WriteTimeout: 2 * time.Minute,  // Inbound: Covers a token exchange plus the upstream request
		IdleTimeout:  90 * time.Second, // Inbound: Keep-alive wait for next request from client
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := p.server.Serve(listener)
		// Only report error if not from graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Addr returns the address the server listens on, or "" before Start.
func (p *Proxy) Addr() string {
	if p.listener == nil {
		return ""
	}
	return p.listener.Addr().String()
}

// Shutdown performs graceful shutdown of the HTTP server.
// Returns error if shutdown fails or times out.
func (p *Proxy) Shutdown(ctx context.Context) error {
	if p.server == nil {
		return nil
	}

	if err := p.server.Shutdown(ctx); err != nil {
		// Graceful shutdown failed - force close
		_ = p.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
