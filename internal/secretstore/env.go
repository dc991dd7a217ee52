package secretstore

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// DefaultEnvPrefix is prepended to the upper-cased secret name.
const DefaultEnvPrefix = "NODIO_SECRET_"

// EnvStore provides read-only access to secrets in environment variables
// named prefix + NAME (e.g., NODIO_SECRET_APP_TOKEN).
type EnvStore struct {
	prefix string
	lookup func(string) (string, bool)
}

// Compile-time check to ensure EnvStore implements SecretStore
var _ SecretStore = (*EnvStore)(nil)

// NewEnvStore creates an EnvStore. An empty prefix selects DefaultEnvPrefix.
func NewEnvStore(prefix string) *EnvStore {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return &EnvStore{
		prefix: prefix,
		lookup: os.LookupEnv,
	}
}

// Key returns the environment variable holding name.
func (e *EnvStore) Key(name string) string {
	return e.prefix + strings.ToUpper(name)
}

// Read returns the secret from the environment. Returns ErrNotFound if the
// variable is unset and an error if it is empty.
func (e *EnvStore) Read(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validateName(name); err != nil {
		return "", err
	}

	key := e.Key(name)
	value, exists := e.lookup(key)
	if !exists {
		return "", fmt.Errorf("environment variable %s not set: %w", key, ErrNotFound)
	}
	if value == "" {
		return "", fmt.Errorf("environment variable %s is empty", key)
	}
	return value, nil
}

// Write is not supported for environment variables (they are read-only).
func (e *EnvStore) Write(ctx context.Context, name, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return fmt.Errorf("environment variable storage is read-only")
}
