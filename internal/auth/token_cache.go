// Package auth stores the collaborator credentials for this device and
// attaches them to outgoing requests.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
)

const (
	configDirName = "moodmap"
	tokenFileName = "credentials.json"
)

// ErrNilCredentials is returned when saving empty credentials.
var ErrNilCredentials = errors.New("cannot save empty credentials")

// Credentials pairs an opaque identity with its access token.
type Credentials struct {
	UserID  string        `json:"userId"`
	Token   *oauth2.Token `json:"token"`
	SavedAt time.Time     `json:"savedAt"`
}

// TokenCache handles persistent storage of credentials.
type TokenCache struct {
	path string
}

// DefaultTokenCache returns a TokenCache using the default location:
// ~/.config/moodmap/credentials.json
func DefaultTokenCache() (*TokenCache, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("getting user config dir: %w", err)
	}

	path := filepath.Join(configDir, configDirName, tokenFileName)
	return &TokenCache{path: path}, nil
}

// NewTokenCache creates a TokenCache with a custom path.
// An empty path selects the default location.
func NewTokenCache(path string) (*TokenCache, error) {
	if path == "" {
		return DefaultTokenCache()
	}
	return &TokenCache{path: path}, nil
}

// Path returns the file path where credentials are stored.
func (c *TokenCache) Path() string {
	return c.path
}

// Load reads cached credentials from disk.
// Returns (nil, nil) if nothing has been saved.
func (c *TokenCache) Load() (*Credentials, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing credentials file: %w", err)
	}
	if creds.Token == nil || creds.Token.AccessToken == "" {
		return nil, nil
	}

	return &creds, nil
}

// Save writes credentials to disk, creating the parent directory if needed.
func (c *TokenCache) Save(creds *Credentials) error {
	if creds == nil || creds.Token == nil || creds.Token.AccessToken == "" {
		return ErrNilCredentials
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("writing credentials file: %w", err)
	}

	return nil
}

// Delete removes the cached credentials.
// Returns nil if the file does not exist.
func (c *TokenCache) Delete() error {
	err := os.Remove(c.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing credentials file: %w", err)
	}
	return nil
}
