package catalog

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/justestif/moodmap/internal/mood"
)

// Origin names where part of the catalog came from.
type Origin string

const (
	OriginRemote   Origin = "remote"
	OriginFallback Origin = "fallback"
)

// Source records the origin of each half of a loaded catalog.
type Source struct {
	Moods    Origin `json:"moods"`
	Journeys Origin `json:"journeys"`
}

// Fetcher supplies the remote taxonomy and journeys.
type Fetcher interface {
	Families(ctx context.Context) ([]mood.Family, error)
	Journeys(ctx context.Context) ([]mood.Journey, error)
}

// Load fetches moods and journeys concurrently. Each half falls back to the
// bundled catalog independently, so Load always returns a usable catalog.
func Load(ctx context.Context, f Fetcher, logger *zap.Logger) (*mood.Catalog, Source) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fallback := mood.Fallback()

	families := fallback.Families()
	journeys := fallback.Journeys()
	src := Source{Moods: OriginFallback, Journeys: OriginFallback}

	var g errgroup.Group
	g.Go(func() error {
		remote, err := f.Families(ctx)
		if err != nil {
			logger.Warn("using bundled moods", zap.Error(err))
			return nil
		}
		if mood.NewCatalog(remote, nil).Len() == 0 {
			logger.Warn("using bundled moods", zap.String("reason", "remote catalog has no playable moods"))
			return nil
		}
		families, src.Moods = remote, OriginRemote
		return nil
	})
	g.Go(func() error {
		remote, err := f.Journeys(ctx)
		if err != nil {
			logger.Warn("using bundled journeys", zap.Error(err))
			return nil
		}
		journeys, src.Journeys = remote, OriginRemote
		return nil
	})
	_ = g.Wait()

	return mood.NewCatalog(families, journeys), src
}
