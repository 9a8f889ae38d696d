// Package suggest proposes moods for a line of free text, asking the
// backend first and falling back to the local keyword table.
package suggest

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/justestif/moodmap/internal/mood"
)

// Remote is the backend suggestion call.
type Remote interface {
	Suggest(ctx context.Context, text string) ([]mood.Suggestion, error)
}

// Service suggests moods.
type Service struct {
	remote Remote
	rand   mood.Rand
	logger *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRand sets the source used to shuffle local suggestions.
func WithRand(r mood.Rand) Option {
	return func(s *Service) {
		s.rand = r
	}
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// New creates a Service. remote may be nil to always suggest locally.
func New(remote Remote, opts ...Option) *Service {
	s := &Service{
		remote: remote,
		rand:   mood.DefaultRand(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Suggest returns up to mood.MaxSuggestions moods for text. Blank text
// returns an empty list without calling the backend.
func (s *Service) Suggest(ctx context.Context, cat *mood.Catalog, text string) []mood.Suggestion {
	if strings.TrimSpace(text) == "" {
		return []mood.Suggestion{}
	}

	if s.remote != nil {
		got, err := s.remote.Suggest(ctx, text)
		if err == nil {
			if len(got) > mood.MaxSuggestions {
				got = got[:mood.MaxSuggestions]
			}
			return got
		}
		s.logger.Info("suggestions unavailable, using keywords", zap.Error(err))
	}

	return mood.SuggestFromText(cat, text, s.rand)
}
