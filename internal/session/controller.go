// Package session owns the live state of a soundscape session: the phase,
// the current mood and track, the active journey, the sleep timer, and the
// history logs. Every intent goes through the Controller, which accepts or
// rejects it based on the current phase.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/justestif/moodmap/internal/catalog"
	"github.com/justestif/moodmap/internal/history"
	"github.com/justestif/moodmap/internal/journey"
	"github.com/justestif/moodmap/internal/mood"
	"github.com/justestif/moodmap/internal/persist"
	"github.com/justestif/moodmap/internal/schedule"
	"github.com/justestif/moodmap/internal/state"
	syncer "github.com/justestif/moodmap/internal/sync"
	"github.com/justestif/moodmap/internal/telemetry"
)

// Common errors.
var (
	ErrNoSelection  = errors.New("no mood selected")
	ErrInvalidTimer = errors.New("invalid sleep timer")
	ErrInvalidTheme = errors.New("invalid theme")
	ErrClosed       = errors.New("session closed")
)

// SleepTimerOptions lists the accepted sleep timer lengths in minutes; 0 is off.
var SleepTimerOptions = []int{0, 15, 30, 45, 60}

// Themes.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Snapshot is a point-in-time copy of the session state.
type Snapshot struct {
	Phase             state.Phase     `json:"phase"`
	PhaseLabel        string          `json:"phaseLabel"`
	Profile           *mood.Profile   `json:"profile,omitempty"`
	TrackID           string          `json:"trackId,omitempty"`
	Journey           *journey.Status `json:"journey,omitempty"`
	Volume            float64         `json:"volume"`
	SleepMinutes      int             `json:"sleepMinutes"`
	Theme             string          `json:"theme"`
	PendingReflection string          `json:"pendingReflection,omitempty"`
	PendingCheckIn    bool            `json:"pendingCheckIn"`
	CatalogSource     catalog.Source  `json:"catalogSource"`
	CanSync           bool            `json:"canSync"`
	CanPlay           bool            `json:"canPlay"`
}

// Controller is the single owner of session state. It is safe for
// concurrent use.
type Controller struct {
	engine  Syncer
	player  Playback
	assets  Assets
	suggest Suggester
	sched   schedule.Scheduler
	writer  *persist.Writer
	rand    mood.Rand
	logger  *zap.Logger
	started metric.Int64Counter

	ctx    context.Context
	cancel context.CancelFunc
	syncs  sync.WaitGroup

	mu           sync.Mutex
	closed       bool
	phase        state.Phase
	profile      *mood.Profile
	track        string
	catalog      *mood.Catalog
	catalogSrc   catalog.Source
	journeys     *journey.Scheduler
	run          uint64
	volume       float64
	sleepMinutes int
	sleepTok     schedule.Token
	sleepGen     uint64
	theme        string

	sessions          *history.SessionLog
	favourites        *history.Favourites
	reflections       *history.AnswerLog
	checkIns          *history.AnswerLog
	pendingReflection string
	pendingCheckIn    bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithScheduler sets the clock for journeys, the sleep timer and timestamps.
func WithScheduler(s schedule.Scheduler) Option {
	return func(c *Controller) {
		c.sched = s
	}
}

// WithWriter persists state changes through w.
func WithWriter(w *persist.Writer) Option {
	return func(c *Controller) {
		c.writer = w
	}
}

// WithRand sets the source used for track picks.
func WithRand(r mood.Rand) Option {
	return func(c *Controller) {
		c.rand = r
	}
}

// WithLogger sets the controller logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithSuggester sets the text suggestion service.
func WithSuggester(s Suggester) Option {
	return func(c *Controller) {
		c.suggest = s
	}
}

// WithCatalog replaces the bundled catalog.
func WithCatalog(cat *mood.Catalog) Option {
	return func(c *Controller) {
		c.catalog = cat
	}
}

// WithRestored seeds the controller from previously persisted state.
func WithRestored(r *Restored) Option {
	return func(c *Controller) {
		if r.Catalog != nil {
			c.catalog = r.Catalog
		}
		c.catalogSrc = r.CatalogSource
		if r.Theme == ThemeDark || r.Theme == ThemeLight {
			c.theme = r.Theme
		}
		c.sessions = history.NewSessionLog(r.Sessions)
		c.favourites = history.NewFavourites(r.Favourites)
		c.reflections = history.NewAnswerLog(history.ReflectionAnswers, r.Reflections)
		c.checkIns = history.NewAnswerLog(history.CheckInAnswers, r.CheckIns)
	}
}

// New creates a Controller in the Idle phase.
func New(engine Syncer, player Playback, assets Assets, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		engine:      engine,
		player:      player,
		assets:      assets,
		sched:       schedule.NewTimerScheduler(),
		rand:        mood.DefaultRand(),
		logger:      zap.NewNop(),
		started:     telemetry.Counter(telemetry.SessionsStarted, "User-initiated plays"),
		ctx:         ctx,
		cancel:      cancel,
		phase:       state.Idle,
		catalog:     mood.Fallback(),
		catalogSrc:  catalog.Source{Moods: catalog.OriginFallback, Journeys: catalog.OriginFallback},
		volume:      1,
		theme:       ThemeDark,
		sessions:    history.NewSessionLog(nil),
		favourites:  history.NewFavourites(nil),
		reflections: history.NewAnswerLog(history.ReflectionAnswers, nil),
		checkIns:    history.NewAnswerLog(history.CheckInAnswers, nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.journeys = journey.New(c.sched, c.dispatch, journeyHost{c},
		journey.WithRand(c.rand),
		journey.WithLogger(c.logger.Named("journey")),
	)
	return c
}

// Close stops timers and waits for any running sync to finish. Intents
// after Close return ErrClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.journeys.Cancel()
	c.cancelSleep()
	c.cancel()
	c.mu.Unlock()

	c.syncs.Wait()
}

// dispatch runs a timer or sync continuation under the controller lock.
func (c *Controller) dispatch(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	fn()
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Phase:             c.phase,
		PhaseLabel:        c.phase.Label(),
		TrackID:           c.track,
		Volume:            c.volume,
		SleepMinutes:      c.sleepMinutes,
		Theme:             c.theme,
		PendingReflection: c.pendingReflection,
		PendingCheckIn:    c.pendingCheckIn,
		CatalogSource:     c.catalogSrc,
		CanSync:           state.Allowed(c.phase, state.StartSync),
		CanPlay:           state.Allowed(c.phase, state.Play) && c.track != "",
	}
	if c.profile != nil {
		p := *c.profile
		s.Profile = &p
	}
	if st, ok := c.journeys.Status(); ok {
		s.Journey = &st
	}
	return s
}

// Phase returns the current phase.
func (c *Controller) Phase() state.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Sync starts reading the room. It returns state.ErrSyncInProgress while
// a sync is outstanding. Starting a sync ends any journey and stops playback.
func (c *Controller) Sync() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	next, err := state.Next(c.phase, state.StartSync)
	if err != nil {
		return err
	}
	c.journeys.Cancel()
	if c.phase == state.Playing {
		c.halt()
	}
	c.setPhase(next)

	c.run++
	hooks := &syncHooks{c: c, run: c.run}
	cat := c.catalog
	c.syncs.Add(1)
	go func() {
		defer c.syncs.Done()
		c.engine.Run(c.ctx, cat, hooks)
	}()

	c.logger.Info("sync started", zap.Uint64("run", c.run))
	return nil
}

// syncHooks routes engine progress for one run back into the controller.
type syncHooks struct {
	c   *Controller
	run uint64
}

func (h *syncHooks) CaptureDone() {
	h.c.dispatch(func() {
		if h.c.run == h.run {
			_ = h.c.transition(state.CaptureDone)
		}
	})
}

func (h *syncHooks) CaptureFailed(error) {
	h.c.dispatch(func() {
		if h.c.run == h.run {
			_ = h.c.transition(state.CaptureFailed)
		}
	})
}

func (h *syncHooks) Settled(res syncer.Result) {
	h.c.dispatch(func() {
		if h.c.run != h.run {
			return
		}
		if err := h.c.transition(state.Classified); err != nil {
			return
		}
		h.c.apply(res.Selection)
	})
}

// PickMood selects a random track from mood id.
func (c *Controller) PickMood(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	m, ok := c.catalog.Mood(id)
	if !ok {
		return fmt.Errorf("picking %q: %w", id, mood.ErrUnknownMood)
	}
	return c.selectLocked(m.Pick(c.rand), true)
}

// PickFavourite selects a saved favourite.
func (c *Controller) PickFavourite(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	fav, err := c.favourites.Get(id)
	if err != nil {
		return fmt.Errorf("picking favourite %q: %w", id, err)
	}
	band := mood.BandMid
	if m, ok := c.catalog.Mood(fav.MoodID); ok {
		band = m.Band
	}
	return c.selectLocked(mood.Selection{
		Profile: mood.Profile{
			DominantBand: band,
			MoodID:       fav.MoodID,
			Label:        fav.Label,
			Peaks:        map[mood.Band]float64{},
		},
		TrackID: fav.TrackID,
	}, true)
}

// StartJourney begins journey id, replacing any running journey.
func (c *Controller) StartJourney(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	if _, err := state.Next(c.phase, state.Select); err != nil {
		return err
	}
	return c.journeys.Start(c.catalog, id)
}

// CancelJourney ends the running journey, if any.
func (c *Controller) CancelJourney() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.journeys.Cancel()
}

// Play starts the current track. A playback failure returns the phase to
// Ready and is logged, not returned.
func (c *Controller) Play(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	next, err := state.Next(c.phase, state.Play)
	if err != nil {
		return err
	}
	if c.track == "" {
		return ErrNoSelection
	}

	src := c.assets.Source(c.track)
	if err := c.player.SetVolume(c.volume); err != nil {
		c.logger.Debug("setting volume", zap.Error(err))
	}
	if err := c.player.Load(src); err != nil {
		c.logger.Warn("loading track", zap.String("source", src), zap.Error(err))
		return nil
	}

	c.setPhase(next)
	if err := c.player.Play(ctx); err != nil {
		c.logger.Warn("starting playback", zap.String("source", src), zap.Error(err))
		_ = c.transition(state.PlaybackFailed)
		return nil
	}

	c.sessions.Record(c.sched.Now())
	c.save(persist.KeySessionLog, c.sessions.Records())
	c.started.Add(ctx, 1)
	c.pendingCheckIn = false
	c.scheduleSleep()

	c.logger.Info("playing", zap.String("track_id", c.track), zap.Bool("local", src != c.track))
	return nil
}

// Stop halts playback and asks for a check-in.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	next, err := state.Next(c.phase, state.Stop)
	if err != nil {
		return err
	}
	c.halt()
	c.setPhase(next)
	c.pendingCheckIn = true
	return nil
}

// SetVolume clamps v to [0, 1], applies it and returns the applied value.
func (c *Controller) SetVolume(v float64) (float64, error) {
	v = min(max(v, 0), 1)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrClosed
	}

	c.volume = v
	if err := c.player.SetVolume(v); err != nil {
		c.logger.Debug("setting volume", zap.Error(err))
	}
	return v, nil
}

// SetSleepTimer sets the sleep timer length in minutes. A change while
// playing restarts the countdown.
func (c *Controller) SetSleepTimer(minutes int) error {
	if !slices.Contains(SleepTimerOptions, minutes) {
		return fmt.Errorf("%w: %d minutes", ErrInvalidTimer, minutes)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	c.sleepMinutes = minutes
	if c.phase == state.Playing {
		c.cancelSleep()
		c.scheduleSleep()
	}
	return nil
}

// SetTheme sets and persists the theme.
func (c *Controller) SetTheme(theme string) error {
	if theme != ThemeDark && theme != ThemeLight {
		return fmt.Errorf("%w: %q", ErrInvalidTheme, theme)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	c.theme = theme
	c.save(persist.KeyTheme, theme)
	return nil
}

// AddFavourite saves the current selection.
func (c *Controller) AddFavourite() (history.Favourite, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return history.Favourite{}, ErrClosed
	}

	if c.profile == nil || c.track == "" {
		return history.Favourite{}, ErrNoSelection
	}
	fav := c.favourites.Add(c.profile.Label, c.track, c.profile.MoodID, c.sched.Now())
	c.save(persist.KeyFavourites, c.favourites.List())
	return fav, nil
}

// RemoveFavourite deletes a favourite.
func (c *Controller) RemoveFavourite(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	if err := c.favourites.Remove(id); err != nil {
		return err
	}
	c.save(persist.KeyFavourites, c.favourites.List())
	return nil
}

// Favourites returns the saved favourites, newest first.
func (c *Controller) Favourites() []history.Favourite {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.favourites.List()
}

// Reflect records the answer to the journey reflection prompt.
func (c *Controller) Reflect(answer string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	if _, err := c.reflections.Add(answer, c.pendingReflection, c.sched.Now()); err != nil {
		return err
	}
	c.pendingReflection = ""
	c.save(persist.KeyReflections, c.reflections.Entries())
	return nil
}

// CheckIn records how the listener feels after a session.
func (c *Controller) CheckIn(answer string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	var ref string
	if c.profile != nil {
		ref = c.profile.MoodID
	}
	if _, err := c.checkIns.Add(answer, ref, c.sched.Now()); err != nil {
		return err
	}
	c.pendingCheckIn = false
	c.save(persist.KeyCheckIns, c.checkIns.Entries())
	return nil
}

// SkipCheckIn dismisses the check-in prompt without an answer.
func (c *Controller) SkipCheckIn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingCheckIn = false
}

// Streak summarises the session log.
func (c *Controller) Streak() history.StreakSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions.Streak()
}

// Sessions returns the session log, oldest first.
func (c *Controller) Sessions() []history.SessionRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions.Records()
}

// Catalog returns the catalog in use.
func (c *Controller) Catalog() *mood.Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.catalog
}

// Suggest proposes moods for free text.
func (c *Controller) Suggest(ctx context.Context, text string) []mood.Suggestion {
	cat := c.Catalog()
	if c.suggest == nil {
		return mood.SuggestFromText(cat, text, c.rand)
	}
	return c.suggest.Suggest(ctx, cat, text)
}

// selectLocked makes sel current, moving to Ready. Manual selections end
// the running journey first so its timer cannot replace them.
func (c *Controller) selectLocked(sel mood.Selection, manual bool) error {
	next, err := state.Next(c.phase, state.Select)
	if err != nil {
		return err
	}
	if manual {
		c.journeys.Cancel()
	}
	if c.phase == state.Playing {
		c.halt()
	}
	c.setPhase(next)
	c.apply(sel)
	return nil
}

// apply replaces the profile and track and starts caching the track.
func (c *Controller) apply(sel mood.Selection) {
	p := sel.Profile
	c.profile = &p
	c.track = sel.TrackID
	if c.track != "" {
		c.assets.Ensure(c.track)
	}
	c.logger.Info("mood selected",
		zap.String("mood_id", p.MoodID),
		zap.String("band", string(p.DominantBand)),
		zap.String("track_id", c.track),
	)
}

func (c *Controller) transition(ev state.Event) error {
	next, err := state.Next(c.phase, ev)
	if err != nil {
		c.logger.Debug("ignoring event", zap.Stringer("event", ev), zap.Stringer("phase", c.phase))
		return err
	}
	c.setPhase(next)
	return nil
}

func (c *Controller) setPhase(next state.Phase) {
	if c.phase == state.Playing && next != state.Playing {
		c.cancelSleep()
	}
	if c.phase != next {
		c.logger.Debug("phase changed", zap.Stringer("from", c.phase), zap.Stringer("to", next))
	}
	c.phase = next
}

// halt pauses playback and rewinds.
func (c *Controller) halt() {
	if err := c.player.Pause(); err != nil {
		c.logger.Debug("pausing", zap.Error(err))
	}
	if err := c.player.SeekToStart(); err != nil {
		c.logger.Debug("rewinding", zap.Error(err))
	}
}

func (c *Controller) scheduleSleep() {
	if c.sleepMinutes <= 0 {
		return
	}
	c.sleepGen++
	gen := c.sleepGen
	d := time.Duration(c.sleepMinutes) * time.Minute
	c.sleepTok = c.sched.Schedule(d, func() {
		c.dispatch(func() { c.sleepFired(gen) })
	})
}

func (c *Controller) cancelSleep() {
	if c.sleepTok != 0 {
		c.sched.Cancel(c.sleepTok)
		c.sleepTok = 0
	}
	c.sleepGen++
}

func (c *Controller) sleepFired(gen uint64) {
	if gen != c.sleepGen {
		return
	}
	c.sleepTok = 0
	if c.phase != state.Playing {
		return
	}
	c.logger.Info("sleep timer fired", zap.Int("minutes", c.sleepMinutes))
	c.halt()
	_ = c.transition(state.SleepTimerFired)
}

func (c *Controller) save(key string, v any) {
	if c.writer != nil {
		c.writer.Save(key, v)
	}
}

// journeyHost applies journey steps with the controller lock held.
type journeyHost struct {
	c *Controller
}

func (h journeyHost) ApplyStep(j mood.Journey, index int, sel mood.Selection) {
	if err := h.c.selectLocked(sel, false); err != nil {
		h.c.logger.Warn("applying journey step",
			zap.String("journey_id", j.ID), zap.Int("step", index), zap.Error(err))
	}
}

func (h journeyHost) Completed(j mood.Journey) {
	if h.c.phase == state.Playing {
		h.c.halt()
	}
	_ = h.c.transition(state.JourneyEnded)
	h.c.pendingReflection = j.ID
}
