package session

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/justestif/moodmap/internal/catalog"
	"github.com/justestif/moodmap/internal/history"
	"github.com/justestif/moodmap/internal/mood"
	"github.com/justestif/moodmap/internal/persist"
)

// Restored is the state recovered at startup.
type Restored struct {
	Theme         string
	Favourites    []history.Favourite
	Sessions      []history.SessionRecord
	Reflections   []history.AnswerEntry
	CheckIns      []history.AnswerEntry
	CacheIndex    map[string]string
	Catalog       *mood.Catalog
	CatalogSource catalog.Source
}

// Bootstrap loads persisted state and the catalog concurrently. Unreadable
// keys are logged and left empty. A nil fetcher uses the bundled catalog.
// The only error returned is ctx's.
func Bootstrap(ctx context.Context, store persist.Store, fetcher catalog.Fetcher, logger *zap.Logger) (*Restored, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Restored{
		Theme:         ThemeDark,
		Catalog:       mood.Fallback(),
		CatalogSource: catalog.Source{Moods: catalog.OriginFallback, Journeys: catalog.OriginFallback},
	}

	g, gctx := errgroup.WithContext(ctx)
	load := func(key string, v any) {
		g.Go(func() error {
			if _, err := persist.LoadJSON(gctx, store, key, v); err != nil {
				logger.Warn("restoring state", zap.String("key", key), zap.Error(err))
			}
			return gctx.Err()
		})
	}
	load(persist.KeyTheme, &r.Theme)
	load(persist.KeyFavourites, &r.Favourites)
	load(persist.KeySessionLog, &r.Sessions)
	load(persist.KeyReflections, &r.Reflections)
	load(persist.KeyCheckIns, &r.CheckIns)
	load(persist.KeyCacheIndex, &r.CacheIndex)

	if fetcher != nil {
		g.Go(func() error {
			r.Catalog, r.CatalogSource = catalog.Load(gctx, fetcher, logger)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Info("state restored",
		zap.String("theme", r.Theme),
		zap.Int("favourites", len(r.Favourites)),
		zap.Int("sessions", len(r.Sessions)),
		zap.Int("cached_tracks", len(r.CacheIndex)),
		zap.String("moods", string(r.CatalogSource.Moods)),
		zap.String("journeys", string(r.CatalogSource.Journeys)),
	)
	return r, nil
}
