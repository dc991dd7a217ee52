package secretstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// DefaultKeyringService is the keyring service secrets are stored under.
const DefaultKeyringService = "nodio"

// KeyringStore provides OS-native secure credential storage for secrets.
// Uses macOS Keychain, Windows Credential Manager, or Linux Secret Service.
// Each secret is stored as the keyring user "<account>/<name>".
type KeyringStore struct {
	service string
	account string
}

// Compile-time check to ensure KeyringStore implements SecretStore
var _ SecretStore = (*KeyringStore)(nil)

// NewKeyringStore creates a KeyringStore. account scopes the secrets, typically
// to one app ID, so several apps can share a service.
func NewKeyringStore(service, account string) (*KeyringStore, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}
	if account == "" {
		return nil, fmt.Errorf("account cannot be empty")
	}

	return &KeyringStore{
		service: service,
		account: account,
	}, nil
}

func (k *KeyringStore) user(name string) string {
	return k.account + "/" + name
}

// Read returns the secret from the system keyring. Returns ErrNotFound if no
// entry exists.
func (k *KeyringStore) Read(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validateName(name); err != nil {
		return "", err
	}

	value, err := keyring.Get(k.service, k.user(name))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("keyring entry %s/%s: %w", k.service, k.user(name), ErrNotFound)
	}
	if err != nil {
		return "", err
	}

	if value == "" {
		return "", fmt.Errorf("empty secret in keyring for service %s, user %s", k.service, k.user(name))
	}

	return value, nil
}

// Write persists the secret to the system keyring, overwriting any existing value.
func (k *KeyringStore) Write(ctx context.Context, name, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateName(name); err != nil {
		return err
	}

	return keyring.Set(k.service, k.user(name), value)
}
