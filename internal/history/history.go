// Package history holds the size-bounded logs a session produces: played
// sessions, favourites, and journey reflection and check-in answers.
//
// The types here are not safe for concurrent use; the session controller
// owns them and serialises access.
package history

import (
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Caps on each log. Appending beyond a cap drops the oldest entry.
const (
	MaxSessions   = 365
	MaxFavourites = 50
	MaxAnswers    = 100
)

// DayLayout is the calendar-day format used in session records.
const DayLayout = "2006-01-02"

var (
	// ErrInvalidAnswer is returned when an answer is not one of the allowed values.
	ErrInvalidAnswer = errors.New("invalid answer")

	// ErrUnknownFavourite is returned when a favourite ID does not exist.
	ErrUnknownFavourite = errors.New("unknown favourite")
)

// appendCapped appends v and drops the oldest entries beyond max.
func appendCapped[T any](s []T, v T, max int) []T {
	s = append(s, v)
	if over := len(s) - max; over > 0 {
		s = slices.Delete(s, 0, over)
	}
	return s
}

// SessionRecord marks one user-initiated play.
type SessionRecord struct {
	TimestampMs int64  `json:"timestamp"`
	Day         string `json:"day"`
}

// NewRecord builds a record for t, using t's location for the calendar day.
func NewRecord(t time.Time) SessionRecord {
	return SessionRecord{TimestampMs: t.UnixMilli(), Day: t.Format(DayLayout)}
}

// SessionLog is the FIFO log of played sessions, capped at MaxSessions.
type SessionLog struct {
	records []SessionRecord
}

// NewSessionLog wraps previously persisted records, keeping the newest MaxSessions.
func NewSessionLog(records []SessionRecord) *SessionLog {
	if over := len(records) - MaxSessions; over > 0 {
		records = records[over:]
	}
	return &SessionLog{records: slices.Clone(records)}
}

// Record appends a session at t.
func (l *SessionLog) Record(t time.Time) SessionRecord {
	r := NewRecord(t)
	l.records = appendCapped(l.records, r, MaxSessions)
	return r
}

// Records returns a copy of the log, oldest first.
func (l *SessionLog) Records() []SessionRecord {
	return slices.Clone(l.records)
}

// Len returns the number of records.
func (l *SessionLog) Len() int {
	return len(l.records)
}

// Streak computes the engagement summary for the log.
func (l *SessionLog) Streak() StreakSummary {
	return ComputeStreak(l.records)
}

// Favourite is a saved track with the mood it was chosen for.
type Favourite struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	TrackID   string    `json:"trackId"`
	MoodID    string    `json:"moodId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Favourites is a newest-first list capped at MaxFavourites.
type Favourites struct {
	items []Favourite
}

// NewFavourites wraps a previously persisted list, newest first.
func NewFavourites(items []Favourite) *Favourites {
	if len(items) > MaxFavourites {
		items = items[:MaxFavourites]
	}
	return &Favourites{items: slices.Clone(items)}
}

// Add stores a new favourite at the front, evicting the oldest beyond the cap.
func (f *Favourites) Add(label, trackID, moodID string, now time.Time) Favourite {
	fav := Favourite{
		ID:        uuid.NewString(),
		Label:     label,
		TrackID:   trackID,
		MoodID:    moodID,
		CreatedAt: now,
	}
	f.items = slices.Insert(f.items, 0, fav)
	if len(f.items) > MaxFavourites {
		f.items = f.items[:MaxFavourites]
	}
	return fav
}

// Remove deletes the favourite with id.
func (f *Favourites) Remove(id string) error {
	i := slices.IndexFunc(f.items, func(x Favourite) bool { return x.ID == id })
	if i < 0 {
		return ErrUnknownFavourite
	}
	f.items = slices.Delete(f.items, i, i+1)
	return nil
}

// Get looks up a favourite by id.
func (f *Favourites) Get(id string) (Favourite, error) {
	for _, x := range f.items {
		if x.ID == id {
			return x, nil
		}
	}
	return Favourite{}, ErrUnknownFavourite
}

// List returns the favourites, newest first.
func (f *Favourites) List() []Favourite {
	return slices.Clone(f.items)
}

// Answer kinds.
var (
	ReflectionAnswers = []string{"yes", "some", "no"}
	CheckInAnswers    = []string{"better", "same", "tired"}
)

// AnswerEntry is one recorded answer.
type AnswerEntry struct {
	Answer    string    `json:"answer"`
	Context   string    `json:"context,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// AnswerLog records answers from a fixed set, keeping the newest MaxAnswers.
type AnswerLog struct {
	allowed []string
	entries []AnswerEntry
}

// NewAnswerLog creates a log accepting only allowed answers.
func NewAnswerLog(allowed []string, entries []AnswerEntry) *AnswerLog {
	if over := len(entries) - MaxAnswers; over > 0 {
		entries = entries[over:]
	}
	return &AnswerLog{allowed: allowed, entries: slices.Clone(entries)}
}

// Valid reports whether answer is accepted by the log.
func (l *AnswerLog) Valid(answer string) bool {
	return slices.Contains(l.allowed, answer)
}

// Add records answer with an optional reference such as a journey id.
func (l *AnswerLog) Add(answer, ref string, now time.Time) (AnswerEntry, error) {
	if !l.Valid(answer) {
		return AnswerEntry{}, ErrInvalidAnswer
	}
	e := AnswerEntry{Answer: answer, Context: ref, CreatedAt: now}
	l.entries = appendCapped(l.entries, e, MaxAnswers)
	return e, nil
}

// Entries returns the answers, oldest first.
func (l *AnswerLog) Entries() []AnswerEntry {
	return slices.Clone(l.entries)
}
