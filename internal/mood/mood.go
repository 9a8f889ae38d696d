// Package mood defines the mood taxonomy, journeys and the profile written on
// every classification or selection.
package mood

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Band is a coarse mood category derived from a classification score.
type Band string

const (
	BandLow  Band = "low"
	BandMid  Band = "mid"
	BandHigh Band = "high"
)

// Bands lists the bands in display order.
var Bands = []Band{BandLow, BandMid, BandHigh}

// Valid reports whether b is one of the known bands.
func (b Band) Valid() bool {
	return b == BandLow || b == BandMid || b == BandHigh
}

// Common errors.
var (
	ErrUnknownMood    = errors.New("unknown mood")
	ErrUnknownJourney = errors.New("unknown journey")
	ErrNoTracks       = errors.New("mood has no tracks")
)

// Mood is a named, playable unit belonging to one band.
type Mood struct {
	ID       string   `json:"id" yaml:"id"`
	Band     Band     `json:"band" yaml:"band"`
	Label    string   `json:"label" yaml:"label"`
	Tracks   []string `json:"tracks" yaml:"tracks"`
	FamilyID string   `json:"familyId,omitempty" yaml:"-"`
}

// Validate checks the fields every playable mood must carry.
func (m Mood) Validate() error {
	if m.ID == "" || m.Label == "" {
		return fmt.Errorf("mood %q: missing id or label", m.ID)
	}
	if !m.Band.Valid() {
		return fmt.Errorf("mood %q: invalid band %q", m.ID, m.Band)
	}
	if len(m.Tracks) == 0 {
		return fmt.Errorf("mood %q: %w", m.ID, ErrNoTracks)
	}
	return nil
}

// Family groups moods for display.
type Family struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
	Moods []Mood `json:"moods" yaml:"moods"`
}

// Step is one timed segment of a journey. Minutes == 0 holds the step
// until the journey is cancelled or replaced.
type Step struct {
	MoodID  string `json:"moodId" yaml:"moodId"`
	Minutes int    `json:"minutes" yaml:"minutes"`
}

// Duration returns the step length.
func (s Step) Duration() time.Duration {
	return time.Duration(s.Minutes) * time.Minute
}

// Journey is an ordered sequence of timed mood segments.
type Journey struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
	Steps []Step `json:"steps" yaml:"steps"`
}

// Profile is the result of a classification or selection. It is replaced
// wholesale, never mutated in place.
type Profile struct {
	DominantBand Band             `json:"dominantBand"`
	MoodID       string           `json:"moodId"`
	Label        string           `json:"label"`
	RecipeID     string           `json:"recipeId,omitempty"`
	Peaks        map[Band]float64 `json:"peaks"`
}

// Selection pairs a profile with the remote identifier of the chosen track.
type Selection struct {
	Profile Profile `json:"profile"`
	TrackID string  `json:"trackId"`
}

// RecipeID pairs a mood with a track index for favouriting and repeatability.
func RecipeID(moodID string, trackIndex int) string {
	return fmt.Sprintf("%s__%d", moodID, trackIndex)
}

// Rand is the subset of math/rand/v2 used for uniform picks.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

// globalRand uses the goroutine-safe top-level math/rand/v2 source.
type globalRand struct{}

func (globalRand) IntN(n int) int   { return rand.IntN(n) }
func (globalRand) Float64() float64 { return rand.Float64() }

// DefaultRand returns a goroutine-safe Rand backed by math/rand/v2.
func DefaultRand() Rand {
	return globalRand{}
}

// Pick selects a track uniformly at random and returns the resulting
// selection with empty peaks.
func (m Mood) Pick(r Rand) Selection {
	idx := 0
	if len(m.Tracks) > 1 {
		idx = r.IntN(len(m.Tracks))
	}
	var track string
	if len(m.Tracks) > 0 {
		track = m.Tracks[idx]
	}
	return Selection{
		Profile: Profile{
			DominantBand: m.Band,
			MoodID:       m.ID,
			Label:        m.Label,
			RecipeID:     RecipeID(m.ID, idx),
			Peaks:        map[Band]float64{},
		},
		TrackID: track,
	}
}

// PickMood selects a mood uniformly at random from pool.
// Returns false when the pool is empty.
func PickMood(pool []Mood, r Rand) (Mood, bool) {
	if len(pool) == 0 {
		return Mood{}, false
	}
	return pool[r.IntN(len(pool))], true
}
