package secretstore

import (
	"context"
	"errors"
	"fmt"
)

// Secret names.
const (
	SecretAppToken     = "app_token"
	SecretClientSecret = "client_secret"
)

// Names lists every secret nodio may read.
var Names = []string{SecretAppToken, SecretClientSecret}

// SecretStore reads and writes named secrets.
type SecretStore interface {
	// Read returns the named secret. Returns error if it is missing or empty.
	Read(ctx context.Context, name string) (string, error)

	// Write persists the named secret. Returns error if the backend is
	// read-only (e.g., environment variables) or the write fails.
	Write(ctx context.Context, name, value string) error
}

// ErrNotFound is returned by Read when the backend holds no value for a name.
var ErrNotFound = errors.New("secret not found")

// validateName rejects names that could escape a backend's namespace.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("secret name cannot be empty")
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return fmt.Errorf("invalid secret name %q", name)
		}
	}
	return nil
}
