package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/justestif/moodmap/internal/auth"
	"github.com/justestif/moodmap/internal/cache"
	"github.com/justestif/moodmap/internal/catalog"
	"github.com/justestif/moodmap/internal/config"
	"github.com/justestif/moodmap/internal/db"
	"github.com/justestif/moodmap/internal/localdb"
	"github.com/justestif/moodmap/internal/mood"
	"github.com/justestif/moodmap/internal/persist"
)

// openStore opens the configured durable store. The returned func closes it.
func openStore(ctx context.Context, cfg *config.Config) (persist.Store, func(), error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		database, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		return database.State(), database.Close, nil
	case config.DriverMemory:
		return persist.NewMemory(), func() {}, nil
	default:
		store, err := localdb.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening local store: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	}
}

// backend is everything the session needs from the remote service.
type backend interface {
	catalog.Fetcher
	Analyze(ctx context.Context, payload string) (catalog.Verdict, error)
	Suggest(ctx context.Context, text string) ([]mood.Suggestion, error)
}

// httpClient returns a client carrying the stored credentials, if any,
// with a total request timeout. Zero means no timeout.
func httpClient(ctx context.Context, cfg *config.Config, timeout time.Duration) (*http.Client, error) {
	tokens, err := auth.NewTokenCache(cfg.TokenPath)
	if err != nil {
		return nil, err
	}
	return auth.HTTPClient(ctx, tokens, &http.Client{Timeout: timeout})
}

// newAssetCache builds the track cache. Track bodies can take far longer
// than an API call, so downloads use a client without a total timeout and
// are bounded by download_timeout instead.
func newAssetCache(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...cache.Option) (*cache.AssetCache, error) {
	hc, err := httpClient(ctx, cfg, 0)
	if err != nil {
		return nil, fmt.Errorf("building download client: %w", err)
	}
	opts = append([]cache.Option{
		cache.WithLogger(logger),
		cache.WithDownloadTimeout(cfg.DownloadTimeout),
	}, opts...)
	return cache.New(cfg.CacheDir, cache.NewHTTPFetcher(hc, cfg.APIURL), opts...), nil
}

// newBackend returns the remote client, or catalog.Offline when no API URL
// is configured.
func newBackend(hc *http.Client, cfg *config.Config, logger *zap.Logger) (backend, error) {
	if cfg.APIURL == "" {
		logger.Info("no backend configured, running offline")
		return catalog.Offline{}, nil
	}
	ccfg, err := catalog.NewConfig(cfg.APIURL, cfg.HTTPTimeout)
	if err != nil {
		return nil, err
	}
	return catalog.NewClient(ccfg,
		catalog.WithHTTPClient(hc),
		catalog.WithLogger(logger.Named("backend")),
	), nil
}
