package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/nodio"
	"github.com/florianilch/nodio/internal/observability"
	"github.com/florianilch/nodio/internal/secretstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// SecretStorageType represents the backends supported for app secrets.
type SecretStorageType string

const (
	SecretStorageTypeFile    SecretStorageType = "file"
	SecretStorageTypeEnv     SecretStorageType = "env"
	SecretStorageTypeKeyring SecretStorageType = "keyring"
)

// Default configuration values
const (
	DefaultConfigLogFormat       = LogFormatText
	DefaultConfigLogExporter     = observability.ExporterNone
	DefaultConfigAPIBaseURL      = nodio.DefaultBaseURL
	DefaultConfigAPITokenURL     = nodio.DefaultTokenURL
	DefaultConfigAPITimeout      = 30 * time.Second
	DefaultConfigServerHost      = "127.0.0.1"
	DefaultConfigServerPort      = 4040
	DefaultConfigShutdownTimeout = 5 * time.Second
	DefaultConfigSecretStorage   = SecretStorageTypeFile
)

// APIConfig holds the Podio endpoints.
type APIConfig struct {
	BaseURL  string `json:"base_url" validate:"required,url"`
	TokenURL string `json:"token_url" validate:"required,url"`
	// Timeout bounds each HTTP request, token exchanges included.
	Timeout time.Duration `json:"timeout"`
}

// CredentialsConfig identifies the Podio app. Secrets left empty here are
// read from the configured secret store.
type CredentialsConfig struct {
	AppID        string `json:"app_id"`
	AppToken     string `json:"app_token"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	AccessToken  string `json:"access_token"`
}

// SecretsConfig describes where the app token and client secret are stored.
type SecretsConfig struct {
	Storage SecretStorageType `json:"storage" validate:"required,oneof=file env keyring"`

	// Storage-specific settings (mutually exclusive based on Storage type)
	Dir            string `json:"dir,omitempty"`             // For file storage: directory holding one file per secret
	EnvPrefix      string `json:"env_prefix,omitempty"`      // For env storage: variable prefix
	KeyringService string `json:"keyring_service,omitempty"` // For keyring storage: service name
}

// NewSecretStore creates a SecretStore from the secrets configuration.
// Keyring entries are scoped to appID.
func (s *SecretsConfig) NewSecretStore(appID string) (secretstore.SecretStore, error) {
	switch s.Storage {
	case SecretStorageTypeFile:
		return secretstore.NewFileStore(s.Dir)
	case SecretStorageTypeEnv:
		return secretstore.NewEnvStore(s.EnvPrefix), nil
	case SecretStorageTypeKeyring:
		return secretstore.NewKeyringStore(s.KeyringService, appID)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", s.Storage)
	}
}

// ServerConfig holds gateway server configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel    slog.Level        `json:"log_level"`
	LogFormat   LogFormat         `json:"log_format" validate:"oneof=text json"`
	LogExporter string            `json:"log_exporter" validate:"oneof=none stdout otlp-http otlp-grpc"`
	API         APIConfig         `json:"api"`
	Credentials CredentialsConfig `json:"credentials"`
	Secrets     SecretsConfig     `json:"secrets"`
	Server      ServerConfig      `json:"server"`
	Shutdown    ShutdownConfig    `json:"shutdown"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.LogExporter == "" {
		c.LogExporter = DefaultConfigLogExporter
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultConfigAPIBaseURL
	}
	if c.API.TokenURL == "" {
		c.API.TokenURL = DefaultConfigAPITokenURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultConfigAPITimeout
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Secrets.Storage == "" {
		c.Secrets.Storage = DefaultConfigSecretStorage
	}

	// Dynamic defaults based on storage type
	switch c.Secrets.Storage {
	case SecretStorageTypeFile:
		if c.Secrets.Dir == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("secrets.dir required (auto-detect failed: %w)", err)
			}
			c.Secrets.Dir = filepath.Join(configDir, "nodio", "secrets")
		}
	case SecretStorageTypeEnv:
		if c.Secrets.EnvPrefix == "" {
			c.Secrets.EnvPrefix = secretstore.DefaultEnvPrefix
		}
	case SecretStorageTypeKeyring:
		if c.Secrets.KeyringService == "" {
			c.Secrets.KeyringService = secretstore.DefaultKeyringService
		}
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if c.API.Timeout < 0 {
		return errors.New("api.timeout cannot be negative")
	}

	switch c.Secrets.Storage {
	case SecretStorageTypeFile:
		if c.Secrets.Dir == "" {
			return errors.New("dir required for file storage")
		}
	case SecretStorageTypeEnv:
		if c.Secrets.EnvPrefix == "" {
			return errors.New("env_prefix required for env storage")
		}
	case SecretStorageTypeKeyring:
		if c.Secrets.KeyringService == "" {
			return errors.New("keyring_service required for keyring storage")
		}
		// Keyring entries are scoped per app
		if c.Credentials.AppID == "" {
			return errors.New("credentials.app_id required for keyring storage")
		}
	}

	return nil
}
