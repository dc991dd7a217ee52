package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/florianilch/nodio"
	"github.com/florianilch/nodio/internal/proxy"
	"github.com/florianilch/nodio/internal/secretstore"
)

// App wires configuration, secret storage and the Podio client together.
type App struct {
	cfg    *Config
	client *nodio.Client
}

// New creates a new App instance. Secrets missing from the configuration are
// read from the secret store; credential validation happens here, before any
// request is made.
func New(ctx context.Context, cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := cfg.Secrets.NewSecretStore(cfg.Credentials.AppID)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret store: %w", err)
	}

	creds, err := resolveCredentials(ctx, cfg.Credentials, store)
	if err != nil {
		return nil, err
	}

	client, err := nodio.New(creds,
		nodio.WithBaseURL(cfg.API.BaseURL),
		nodio.WithTokenURL(cfg.API.TokenURL),
		nodio.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
		nodio.WithLogger(slog.Default()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &App{
		cfg:    cfg,
		client: client,
	}, nil
}

// Client returns the configured Podio client.
func (a *App) Client() *nodio.Client {
	return a.client
}

// Serve runs the local gateway and blocks until ctx is canceled or the server fails.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Serve(ctx context.Context) error {
	gateway, err := proxy.New(a.client.Items, a.client.Tasks)
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Server.Host + ":" + strconv.FormatUint(uint64(a.cfg.Server.Port), 10)
	var shutdownFuncs []func(context.Context) error

	// Startup phase: Start services
	slog.InfoContext(gCtx, "starting gateway", "address", address, "app_id", a.client.AppID())
	gatewayErrCh, err := gateway.Start(gCtx, address)
	if err != nil {
		return fmt.Errorf("gateway startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, gateway.Shutdown)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-gatewayErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "gateway runtime error", "error", err)
				return fmt.Errorf("gateway: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "application ready", "address", gateway.Addr())

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}

// resolveCredentials fills empty secrets from store. Absent entries are left
// empty so that client construction reports which field is missing.
func resolveCredentials(ctx context.Context, cfg CredentialsConfig, store secretstore.SecretStore) (nodio.Credentials, error) {
	creds := nodio.Credentials{
		AppID:        cfg.AppID,
		AppToken:     cfg.AppToken,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		AccessToken:  cfg.AccessToken,
	}

	secrets := []struct {
		name  string
		value *string
	}{
		{secretstore.SecretAppToken, &creds.AppToken},
		{secretstore.SecretClientSecret, &creds.ClientSecret},
	}
	for _, s := range secrets {
		if *s.value != "" {
			continue
		}
		value, err := store.Read(ctx, s.name)
		if errors.Is(err, secretstore.ErrNotFound) {
			slog.DebugContext(ctx, "secret not stored", "secret", s.name)
			continue
		}
		if err != nil {
			return nodio.Credentials{}, fmt.Errorf("failed to read %s: %w", s.name, err)
		}
		*s.value = value
	}

	return creds, nil
}
