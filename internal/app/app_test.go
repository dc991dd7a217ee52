package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/florianilch/nodio"
	"github.com/florianilch/nodio/internal/secretstore"
)

// mapStore is an in-memory SecretStore.
type mapStore struct {
	values map[string]string
	err    error
	reads  []string
}

func (m *mapStore) Read(_ context.Context, name string) (string, error) {
	m.reads = append(m.reads, name)
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.values[name]
	if !ok {
		return "", fmt.Errorf("%s: %w", name, secretstore.ErrNotFound)
	}
	return v, nil
}

func (m *mapStore) Write(_ context.Context, name, value string) error {
	m.values[name] = value
	return nil
}

func TestResolveCredentials(t *testing.T) {
	t.Run("fills missing secrets from store", func(t *testing.T) {
		store := &mapStore{values: map[string]string{
			secretstore.SecretAppToken:     "stored-token",
			secretstore.SecretClientSecret: "stored-secret",
		}}
		creds, err := resolveCredentials(context.Background(), CredentialsConfig{AppID: "1", ClientID: "c"}, store)
		if err != nil {
			t.Fatalf("resolveCredentials() error = %v", err)
		}
		if creds.AppToken != "stored-token" || creds.ClientSecret != "stored-secret" {
			t.Errorf("creds = %+v", creds)
		}
		if creds.AppID != "1" || creds.ClientID != "c" {
			t.Errorf("identity not carried over: %+v", creds)
		}
	})

	t.Run("configured values win", func(t *testing.T) {
		store := &mapStore{values: map[string]string{secretstore.SecretAppToken: "stored-token"}}
		creds, err := resolveCredentials(context.Background(), CredentialsConfig{AppToken: "cfg-token", ClientSecret: "cfg-secret"}, store)
		if err != nil {
			t.Fatalf("resolveCredentials() error = %v", err)
		}
		if creds.AppToken != "cfg-token" || creds.ClientSecret != "cfg-secret" {
			t.Errorf("creds = %+v", creds)
		}
		if len(store.reads) != 0 {
			t.Errorf("store read for configured secrets: %v", store.reads)
		}
	})

	t.Run("absent secrets stay empty", func(t *testing.T) {
		store := &mapStore{values: map[string]string{}}
		creds, err := resolveCredentials(context.Background(), CredentialsConfig{AppID: "1"}, store)
		if err != nil {
			t.Fatalf("resolveCredentials() error = %v", err)
		}
		if creds.AppToken != "" || creds.ClientSecret != "" {
			t.Errorf("creds = %+v", creds)
		}
	})

	t.Run("store failure propagates", func(t *testing.T) {
		storeErr := errors.New("permission denied")
		store := &mapStore{err: storeErr}
		if _, err := resolveCredentials(context.Background(), CredentialsConfig{}, store); !errors.Is(err, storeErr) {
			t.Fatalf("error = %v, want %v", err, storeErr)
		}
	})
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	cfg.Secrets.Dir = t.TempDir()
	cfg.Credentials = CredentialsConfig{AppID: "7", AppToken: "at", ClientID: "ci", ClientSecret: "cs"}
	return cfg
}

func TestNewMissingCredential(t *testing.T) {
	cfg := testConfig(t)
	cfg.Credentials.ClientSecret = ""

	_, err := New(context.Background(), cfg)
	var missing *nodio.MissingCredentialError
	if !errors.As(err, &missing) {
		t.Fatalf("error = %v, want MissingCredentialError", err)
	}
	if missing.Field != "client_secret" {
		t.Errorf("Field = %q, want client_secret", missing.Field)
	}
}

func TestNewReadsFileStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Credentials.AppToken = ""

	store, err := secretstore.NewFileStore(cfg.Secrets.Dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	if err := store.Write(context.Background(), secretstore.SecretAppToken, "from-file"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	application, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if application.Client().AppID() != "7" {
		t.Errorf("AppID() = %q", application.Client().AppID())
	}
}

func TestNewInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.LogFormat = "xml"

	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("expected error for invalid configuration")
	}
}

func TestServe(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			fmt.Fprint(w, `{"access_token":"T","expires_in":60000}`)
		case "/item/5":
			fmt.Fprint(w, `{"item_id":5}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(upstream.Close)

	cfg := testConfig(t)
	cfg.API.BaseURL = upstream.URL + "/"
	cfg.API.TokenURL = upstream.URL + "/oauth/token"
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = freePort(t)

	application, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Serve(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/items/5", cfg.Server.Port)
	var resp *http.Response
	for range 50 {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		cancel()
		t.Fatalf("gateway not reachable: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != `{"item_id":5}` {
		t.Errorf("response = %d %s", resp.StatusCode, body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancellation")
	}
}

func freePort(t *testing.T) uint16 {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.Listener.Addr().(*net.TCPAddr)
	srv.Close()
	return uint16(addr.Port)
}
