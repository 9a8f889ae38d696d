package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/justestif/moodmap/internal/mood"
)

const userAgent = "moodmap/1.0"

// errRetryable marks responses worth another attempt.
var errRetryable = errors.New("retryable status")

// Client talks to the moodmap backend. Concurrent catalog and journey
// fetches share a single request.
type Client struct {
	baseURL     string
	timeout     time.Duration
	httpClient  *http.Client
	logger      *zap.Logger
	retryDelays []time.Duration
	group       singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, e.g. one carrying auth.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithRetryDelays sets the waits between attempts on 429/503 responses.
func WithRetryDelays(delays ...time.Duration) Option {
	return func(c *Client) {
		c.retryDelays = delays
	}
}

// NewClient creates a backend client from the provided configuration.
func NewClient(cfg *Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		timeout:     timeout,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      zap.NewNop(),
		retryDelays: []time.Duration{500 * time.Millisecond, 1 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Families fetches the mood taxonomy.
func (c *Client) Families(ctx context.Context) ([]mood.Family, error) {
	v, err := c.shared(ctx, "moods", func(ctx context.Context) (any, error) {
		var resp moodsResponse
		if err := c.getJSON(ctx, "/moods", &resp); err != nil {
			return nil, err
		}
		return resp.Families, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching moods: %w: %w", ErrUnavailable, err)
	}
	return v.([]mood.Family), nil
}

// Journeys fetches the journey definitions.
func (c *Client) Journeys(ctx context.Context) ([]mood.Journey, error) {
	v, err := c.shared(ctx, "journeys", func(ctx context.Context) (any, error) {
		var resp journeysResponse
		if err := c.getJSON(ctx, "/journeys", &resp); err != nil {
			return nil, err
		}
		return resp.Journeys, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching journeys: %w: %w", ErrUnavailable, err)
	}
	return v.([]mood.Journey), nil
}

// shared runs fn once for all concurrent callers of key. The request is
// detached from any single caller's cancellation and bounded by the client
// timeout; a caller whose ctx ends stops waiting without failing the rest.
func (c *Client) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return fn(sctx)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Analyze submits a captured payload for classification. Any failure,
// including a well-formed response missing a required field, wraps
// ErrUnavailable.
func (c *Client) Analyze(ctx context.Context, payload string) (Verdict, error) {
	if payload == "" {
		return Verdict{}, fmt.Errorf("analyzing: %w: empty payload", ErrUnavailable)
	}

	var v Verdict
	if err := c.postJSON(ctx, "/analyze", analyzeRequest{AudioBase64: payload}, &v); err != nil {
		return Verdict{}, fmt.Errorf("analyzing: %w: %w", ErrUnavailable, err)
	}
	if err := v.Validate(); err != nil {
		return Verdict{}, fmt.Errorf("analyzing: %w: %w", ErrUnavailable, err)
	}
	return v, nil
}

// Suggest asks the backend for moods matching free text.
func (c *Client) Suggest(ctx context.Context, text string) ([]mood.Suggestion, error) {
	var resp suggestResponse
	if err := c.postJSON(ctx, "/suggest-moods", suggestRequest{Text: text}, &resp); err != nil {
		return nil, fmt.Errorf("suggesting: %w: %w", ErrUnavailable, err)
	}
	if resp.Suggestions == nil {
		return nil, fmt.Errorf("suggesting: %w: missing suggestions", ErrUnavailable)
	}
	return resp.Suggestions, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parsing %s response: %w", path, err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", path, err)
	}
	body, err := c.doRequest(ctx, http.MethodPost, path, payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing %s response: %w", path, err)
	}
	return nil
}

// doRequest performs a request, retrying on 429 and 503 with the configured delays.
func (c *Client) doRequest(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= len(c.retryDelays); attempt++ {
		// Wait before retry (skip on first attempt)
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelays[attempt-1]):
			}
		}

		body, err := c.doSingleRequest(ctx, method, path, payload)
		if err == nil {
			return body, nil
		}
		if !errors.Is(err, errRetryable) {
			return nil, err
		}
		c.logger.Debug("retrying backend request", zap.String("path", path), zap.Int("attempt", attempt+1))
		lastErr = err
	}

	return nil, lastErr
}

// doSingleRequest performs a single HTTP request and checks the status.
func (c *Client) doSingleRequest(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode == http.StatusServiceUnavailable:
		return nil, fmt.Errorf("%s %s: status %d: %w", method, path, resp.StatusCode, errRetryable)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	return body, nil
}
