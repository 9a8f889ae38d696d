// Package journey plays a sequence of timed mood steps.
//
// A Scheduler is not safe for concurrent use. Its owner calls every method
// while holding its own lock, and timer callbacks re-enter through the
// dispatch function supplied to New, which must take that same lock.
package journey

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/justestif/moodmap/internal/mood"
	"github.com/justestif/moodmap/internal/schedule"
)

// Host applies the effects of a running journey.
type Host interface {
	// ApplyStep makes sel the current selection for step index of j.
	ApplyStep(j mood.Journey, index int, sel mood.Selection)
	// Completed is called once after the last step has elapsed.
	Completed(j mood.Journey)
}

// Status describes the active journey.
type Status struct {
	JourneyID string    `json:"journeyId"`
	Label     string    `json:"label"`
	StepIndex int       `json:"stepIndex"`
	Steps     int       `json:"steps"`
	MoodID    string    `json:"moodId"`
	StepEnds  time.Time `json:"stepEnds,omitzero"`
}

type active struct {
	journey  mood.Journey
	catalog  *mood.Catalog
	index    int
	gen      uint64
	token    schedule.Token
	stepEnds time.Time
}

// Scheduler runs at most one journey at a time.
type Scheduler struct {
	sched    schedule.Scheduler
	dispatch func(func())
	host     Host
	rand     mood.Rand
	logger   *zap.Logger

	gen     uint64
	current *active
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRand sets the source used to pick step tracks.
func WithRand(r mood.Rand) Option {
	return func(s *Scheduler) {
		s.rand = r
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// New creates a Scheduler. dispatch runs a timer continuation under the
// host's lock.
func New(sched schedule.Scheduler, dispatch func(func()), host Host, opts ...Option) *Scheduler {
	s := &Scheduler{
		sched:    sched,
		dispatch: dispatch,
		host:     host,
		rand:     mood.DefaultRand(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start cancels any running journey and begins id from its first step.
// An unknown id returns mood.ErrUnknownJourney; a journey without steps
// does nothing.
func (s *Scheduler) Start(cat *mood.Catalog, id string) error {
	s.Cancel()

	j, ok := cat.Journey(id)
	if !ok {
		return fmt.Errorf("starting journey %q: %w", id, mood.ErrUnknownJourney)
	}
	if len(j.Steps) == 0 {
		return nil
	}

	s.gen++
	s.current = &active{journey: j, catalog: cat, gen: s.gen}
	s.logger.Info("journey started", zap.String("journey_id", id), zap.Int("steps", len(j.Steps)))
	s.activate()
	return nil
}

// Cancel stops the running journey, if any. It is safe to call repeatedly.
func (s *Scheduler) Cancel() {
	if s.current == nil {
		return
	}
	if s.current.token != 0 {
		s.sched.Cancel(s.current.token)
	}
	s.logger.Debug("journey cancelled", zap.String("journey_id", s.current.journey.ID))
	s.current = nil
}

// Status reports the active journey.
func (s *Scheduler) Status() (Status, bool) {
	a := s.current
	if a == nil {
		return Status{}, false
	}
	st := Status{
		JourneyID: a.journey.ID,
		Label:     a.journey.Label,
		StepIndex: a.index,
		Steps:     len(a.journey.Steps),
		StepEnds:  a.stepEnds,
	}
	if a.index < len(a.journey.Steps) {
		st.MoodID = a.journey.Steps[a.index].MoodID
	}
	return st, true
}

// activate applies the current step, or completes the journey when the
// index has run past the last step.
func (s *Scheduler) activate() {
	a := s.current
	if a.index >= len(a.journey.Steps) {
		j := a.journey
		s.Cancel()
		s.logger.Info("journey completed", zap.String("journey_id", j.ID))
		s.host.Completed(j)
		return
	}

	step := a.journey.Steps[a.index]
	m, ok := a.catalog.Mood(step.MoodID)
	if !ok {
		m, ok = a.catalog.Default()
		if !ok {
			s.logger.Warn("journey step has no playable mood", zap.String("mood_id", step.MoodID))
			s.Cancel()
			return
		}
		s.logger.Debug("unknown step mood, using default", zap.String("mood_id", step.MoodID), zap.String("default", m.ID))
	}

	a.token = 0
	a.stepEnds = time.Time{}
	s.host.ApplyStep(a.journey, a.index, m.Pick(s.rand))

	// A zero-minute step holds until the journey is cancelled or replaced.
	if step.Minutes <= 0 {
		return
	}

	gen, index := a.gen, a.index
	a.stepEnds = s.sched.Now().Add(step.Duration())
	a.token = s.sched.Schedule(step.Duration(), func() {
		s.dispatch(func() { s.advance(gen, index) })
	})
}

// advance moves to the next step if the timer still belongs to the active
// journey and step.
func (s *Scheduler) advance(gen uint64, index int) {
	a := s.current
	if a == nil || a.gen != gen || a.index != index {
		return
	}
	a.index++
	s.activate()
}
