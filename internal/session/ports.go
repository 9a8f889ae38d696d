package session

import (
	"context"

	"github.com/justestif/moodmap/internal/mood"
	syncer "github.com/justestif/moodmap/internal/sync"
)

// Playback is the audio output capability.
type Playback interface {
	// Load prepares src, a local path or a remote track id, for playback.
	Load(src string) error
	Play(ctx context.Context) error
	Pause() error
	SeekToStart() error
	SetVolume(v float64) error
}

// Syncer runs one environment sync.
type Syncer interface {
	Run(ctx context.Context, cat *mood.Catalog, h syncer.Hooks)
}

// Assets resolves tracks to local copies and caches new ones.
type Assets interface {
	Source(remoteID string) string
	Ensure(remoteID string)
}

// Suggester proposes moods for free text.
type Suggester interface {
	Suggest(ctx context.Context, cat *mood.Catalog, text string) []mood.Suggestion
}
