// Package secretstore keeps the app token and client secret outside the
// configuration file.
//
// Supports three storage backends with different security and deployment tradeoffs:
//   - File: one file per secret in a private directory, written atomically
//   - Env: read-only environment variables (requires external secret management)
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager, etc.)
//
// Secrets are addressed by name; the names used by nodio are SecretAppToken
// and SecretClientSecret.
package secretstore
