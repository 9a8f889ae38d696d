package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Login stores an opaque bearer token for userID.
func Login(cache *TokenCache, userID, accessToken string) error {
	return cache.Save(&Credentials{
		UserID: userID,
		Token: &oauth2.Token{
			AccessToken: accessToken,
			TokenType:   "Bearer",
		},
		SavedAt: time.Now().UTC(),
	})
}

// HTTPClient returns a client that attaches the cached token to every
// request. Without stored credentials it returns base unchanged, so
// collaborators are called anonymously.
func HTTPClient(ctx context.Context, cache *TokenCache, base *http.Client) (*http.Client, error) {
	if base == nil {
		base = http.DefaultClient
	}

	creds, err := cache.Load()
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}
	if creds == nil {
		return base, nil
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(creds.Token))
	client.Timeout = base.Timeout
	return client, nil
}
