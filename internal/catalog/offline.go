package catalog

import (
	"context"
	"fmt"

	"github.com/justestif/moodmap/internal/mood"
)

// Offline stands in for the backend when none is configured. Every call
// fails with ErrUnavailable, so callers take their local fallback.
type Offline struct{}

func (Offline) Families(context.Context) ([]mood.Family, error) {
	return nil, fmt.Errorf("%w: no backend configured", ErrUnavailable)
}

func (Offline) Journeys(context.Context) ([]mood.Journey, error) {
	return nil, fmt.Errorf("%w: no backend configured", ErrUnavailable)
}

func (Offline) Analyze(context.Context, string) (Verdict, error) {
	return Verdict{}, fmt.Errorf("%w: no backend configured", ErrUnavailable)
}

func (Offline) Suggest(context.Context, string) ([]mood.Suggestion, error) {
	return nil, fmt.Errorf("%w: no backend configured", ErrUnavailable)
}

var (
	_ Fetcher = Offline{}
	_ Fetcher = (*Client)(nil)
)
