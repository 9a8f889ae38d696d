// Package catalog is the HTTP client for the moodmap backend: the mood
// taxonomy, journey definitions, audio classification and text suggestions.
package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// ErrMissingBaseURL is returned when no backend URL is configured.
var ErrMissingBaseURL = errors.New("missing backend base URL")

const defaultTimeout = 10 * time.Second

// Config holds backend API configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// NewConfig validates baseURL and returns a Config. A non-positive timeout
// uses the default.
func NewConfig(baseURL string, timeout time.Duration) (*Config, error) {
	if baseURL == "" {
		return nil, ErrMissingBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q", baseURL)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Config{BaseURL: baseURL, Timeout: timeout}, nil
}
