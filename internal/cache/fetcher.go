package cache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// HTTPFetcher downloads tracks over HTTP. Remote ids that are absolute
// http(s) URLs are fetched directly; anything else is resolved against
// BaseURL as /tracks/{id}.
type HTTPFetcher struct {
	client  *http.Client
	baseURL string
}

// NewHTTPFetcher creates a fetcher. A nil client uses http.DefaultClient.
func NewHTTPFetcher(client *http.Client, baseURL string) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// URL returns the address a remote id is downloaded from.
func (f *HTTPFetcher) URL(remoteID string) string {
	if u, err := url.Parse(remoteID); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return remoteID
	}
	return f.baseURL + "/tracks/" + url.PathEscape(remoteID)
}

// Fetch streams the track body into w.
func (f *HTTPFetcher) Fetch(ctx context.Context, remoteID string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL(remoteID), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("fetching %s: status %d", remoteID, resp.StatusCode)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("reading body: %w", err)
	}
	return nil
}

var _ Fetcher = (*HTTPFetcher)(nil)
