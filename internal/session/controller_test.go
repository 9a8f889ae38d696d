package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/justestif/moodmap/internal/catalog"
	"github.com/justestif/moodmap/internal/history"
	"github.com/justestif/moodmap/internal/mood"
	"github.com/justestif/moodmap/internal/persist"
	"github.com/justestif/moodmap/internal/schedule"
	"github.com/justestif/moodmap/internal/state"
	syncer "github.com/justestif/moodmap/internal/sync"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type fakePlayer struct {
	mu      sync.Mutex
	calls   []string
	loaded  string
	volume  float64
	playErr error
}

func (p *fakePlayer) record(call string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
}

func (p *fakePlayer) Load(src string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loaded = src
	p.calls = append(p.calls, "load")
	return nil
}

func (p *fakePlayer) Play(context.Context) error {
	p.record("play")
	return p.playErr
}

func (p *fakePlayer) Pause() error       { p.record("pause"); return nil }
func (p *fakePlayer) SeekToStart() error { p.record("seek"); return nil }

func (p *fakePlayer) SetVolume(v float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = v
	return nil
}

func (p *fakePlayer) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

type fakeAssets struct {
	mu      sync.Mutex
	ensured []string
}

func (a *fakeAssets) Source(id string) string { return "/cache/" + id }

func (a *fakeAssets) Ensure(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ensured = append(a.ensured, id)
}

// handSyncer hands the hooks of every run to the test.
type handSyncer struct {
	hooks chan syncer.Hooks
}

func newHandSyncer() *handSyncer {
	return &handSyncer{hooks: make(chan syncer.Hooks, 4)}
}

func (s *handSyncer) Run(_ context.Context, _ *mood.Catalog, h syncer.Hooks) {
	s.hooks <- h
}

type firstRand struct{}

func (firstRand) IntN(int) int     { return 0 }
func (firstRand) Float64() float64 { return 0.5 }

func testCatalog() *mood.Catalog {
	return mood.NewCatalog([]mood.Family{{
		ID: "f", Label: "F",
		Moods: []mood.Mood{
			{ID: "calm", Band: mood.BandLow, Label: "Calm", Tracks: []string{"c1", "c2"}},
			{ID: "lofi", Band: mood.BandMid, Label: "Lofi", Tracks: []string{"l1"}},
			{ID: "bright", Band: mood.BandHigh, Label: "Bright", Tracks: []string{"b1"}},
		},
	}}, []mood.Journey{
		{ID: "wind-down", Label: "Wind down", Steps: []mood.Step{{MoodID: "bright", Minutes: 10}, {MoodID: "calm", Minutes: 5}}},
		{ID: "hold", Label: "Hold", Steps: []mood.Step{{MoodID: "lofi", Minutes: 0}, {MoodID: "calm", Minutes: 5}}},
	})
}

type harness struct {
	c      *Controller
	clock  *schedule.Manual
	player *fakePlayer
	assets *fakeAssets
	sync   *handSyncer
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		clock:  schedule.NewManual(epoch),
		player: &fakePlayer{},
		assets: &fakeAssets{},
		sync:   newHandSyncer(),
	}
	opts = append([]Option{
		WithScheduler(h.clock),
		WithRand(firstRand{}),
		WithCatalog(testCatalog()),
	}, opts...)
	h.c = New(h.sync, h.player, h.assets, opts...)
	t.Cleanup(h.c.Close)
	return h
}

func TestController_SyncRejectedWhileOutstanding(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.c.Sync())
	hooks := <-h.sync.hooks
	assert.Equal(t, state.Listening, h.c.Phase())
	assert.ErrorIs(t, h.c.Sync(), state.ErrSyncInProgress)

	hooks.CaptureDone()
	assert.Equal(t, state.Analyzing, h.c.Phase())
	assert.ErrorIs(t, h.c.Sync(), state.ErrSyncInProgress)
	assert.ErrorIs(t, h.c.PickMood("calm"), state.ErrIllegalTransition)

	sel := mood.Selection{
		Profile: mood.Profile{DominantBand: mood.BandHigh, MoodID: "bright", Label: "Bright"},
		TrackID: "b1",
	}
	hooks.Settled(syncer.Result{Selection: sel, Source: syncer.SourceClassifier})

	snap := h.c.Snapshot()
	assert.Equal(t, state.Ready, snap.Phase)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, "bright", snap.Profile.MoodID)
	assert.Equal(t, "b1", snap.TrackID)
	assert.Contains(t, h.assets.ensured, "b1")
}

func TestController_RejectedSyncKeepsSelection(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.c.PickMood("calm"))
	before := h.c.Snapshot()
	require.NotNil(t, before.Profile)
	require.NotEmpty(t, before.TrackID)

	require.NoError(t, h.c.Sync())
	hooks := <-h.sync.hooks

	assertUnchanged := func(phase state.Phase) {
		t.Helper()
		assert.ErrorIs(t, h.c.Sync(), state.ErrSyncInProgress)
		snap := h.c.Snapshot()
		assert.Equal(t, phase, snap.Phase)
		assert.Equal(t, before.Profile, snap.Profile)
		assert.Equal(t, before.TrackID, snap.TrackID)
		assert.False(t, snap.CanSync)
		assert.False(t, snap.CanPlay)
	}

	assertUnchanged(state.Listening)
	hooks.CaptureDone()
	assertUnchanged(state.Analyzing)

	select {
	case <-h.sync.hooks:
		t.Fatal("rejected sync started another run")
	default:
	}
}

func TestController_SnapshotActions(t *testing.T) {
	h := newHarness(t)

	snap := h.c.Snapshot()
	assert.True(t, snap.CanSync)
	assert.False(t, snap.CanPlay, "nothing selected")

	require.NoError(t, h.c.PickMood("lofi"))
	snap = h.c.Snapshot()
	assert.True(t, snap.CanSync)
	assert.True(t, snap.CanPlay)

	require.NoError(t, h.c.Play(context.Background()))
	snap = h.c.Snapshot()
	assert.True(t, snap.CanSync)
	assert.False(t, snap.CanPlay)
}

func TestController_MutatorsAfterClose(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.c.PickMood("calm"))
	require.NoError(t, h.c.SetSleepTimer(15))
	require.NoError(t, h.c.Play(context.Background()))
	require.Equal(t, 1, h.clock.Pending())
	fav, err := h.c.AddFavourite()
	require.NoError(t, err)

	h.c.Close()
	assert.Zero(t, h.clock.Pending(), "close cancels the sleep timer")

	assert.ErrorIs(t, h.c.SetSleepTimer(30), ErrClosed)
	assert.Zero(t, h.clock.Pending(), "no timer scheduled after close")
	_, err = h.c.SetVolume(0.2)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, h.c.SetTheme(ThemeLight), ErrClosed)
	_, err = h.c.AddFavourite()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, h.c.RemoveFavourite(fav.ID), ErrClosed)
	assert.ErrorIs(t, h.c.Reflect("better"), ErrClosed)
	assert.ErrorIs(t, h.c.CheckIn("better"), ErrClosed)

	snap := h.c.Snapshot()
	assert.Equal(t, 15, snap.SleepMinutes)
	assert.Equal(t, ThemeDark, snap.Theme)
	assert.Len(t, h.c.Favourites(), 1)
}

func TestController_CaptureFailureReturnsToIdle(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.c.Sync())
	hooks := <-h.sync.hooks
	hooks.CaptureFailed(errors.New("mic busy"))
	assert.Equal(t, state.Idle, h.c.Phase())

	require.NoError(t, h.c.Sync(), "a new sync is allowed after a failure")
	<-h.sync.hooks
}

func TestController_StaleRunIgnored(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.c.Sync())
	first := <-h.sync.hooks
	first.CaptureFailed(errors.New("denied"))

	require.NoError(t, h.c.Sync())
	second := <-h.sync.hooks

	first.CaptureDone()
	assert.Equal(t, state.Listening, h.c.Phase(), "hooks from an earlier run are ignored")

	second.CaptureDone()
	assert.Equal(t, state.Analyzing, h.c.Phase())
}

func TestController_SyncWithEngineAlwaysSettles(t *testing.T) {
	clock := schedule.NewManual(epoch)
	assets := &fakeAssets{}
	engine := syncer.New(deniedCapture{}, downClassifier{}, assets,
		syncer.WithScheduler(clock),
		syncer.WithRand(firstRand{}),
	)
	c := New(engine, &fakePlayer{}, assets,
		WithScheduler(clock),
		WithRand(firstRand{}),
		WithCatalog(testCatalog()),
	)
	defer c.Close()

	require.NoError(t, c.Sync())
	clock.BlockUntil(1)
	clock.Advance(syncer.DefaultCaptureWindow)
	clock.BlockUntil(1)
	clock.Advance(syncer.DefaultAnalysisDelay)

	require.Eventually(t, func() bool { return c.Phase() == state.Ready }, time.Second, time.Millisecond)
	snap := c.Snapshot()
	require.NotNil(t, snap.Profile)
	assert.NotEmpty(t, snap.Profile.MoodID)
	assert.NotEmpty(t, snap.TrackID)
}

type deniedCapture struct{}

func (deniedCapture) Permitted(context.Context) bool       { return false }
func (deniedCapture) Prepare(context.Context) error        { return nil }
func (deniedCapture) Start(context.Context) error          { return nil }
func (deniedCapture) Stop(context.Context) (string, error) { return "", nil }

type downClassifier struct{}

func (downClassifier) Analyze(context.Context, string) (catalog.Verdict, error) {
	return catalog.Verdict{}, catalog.ErrUnavailable
}

func TestController_CloseDuringSync(t *testing.T) {
	clock := schedule.NewManual(epoch)
	engine := syncer.New(deniedCapture{}, downClassifier{}, nil, syncer.WithScheduler(clock))
	c := New(engine, &fakePlayer{}, &fakeAssets{}, WithScheduler(clock))

	require.NoError(t, c.Sync())
	clock.BlockUntil(1)
	c.Close()

	assert.ErrorIs(t, c.Sync(), ErrClosed)
}

func TestController_PlayRecordsSession(t *testing.T) {
	store := persist.NewMemory()
	w := persist.NewWriter(store)
	defer w.Close()
	h := newHarness(t, WithWriter(w))

	assert.ErrorIs(t, h.c.Play(context.Background()), state.ErrIllegalTransition)

	require.NoError(t, h.c.PickMood("calm"))
	require.NoError(t, h.c.Play(context.Background()))
	assert.Equal(t, state.Playing, h.c.Phase())
	assert.Equal(t, "/cache/c1", h.player.loaded)
	assert.Equal(t, 1, h.c.Streak().TotalSessions)

	w.Flush()
	var records []history.SessionRecord
	found, err := persist.LoadJSON(context.Background(), store, persist.KeySessionLog, &records)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, records, 1)
	assert.Equal(t, "2026-03-14", records[0].Day)

	require.NoError(t, h.c.Stop())
	assert.Equal(t, state.Ready, h.c.Phase())
	assert.True(t, h.c.Snapshot().PendingCheckIn)
	assert.Equal(t, []string{"load", "play", "pause", "seek"}, h.player.Calls())
}

func TestController_PlaybackFailureRevertsToReady(t *testing.T) {
	h := newHarness(t)
	h.player.playErr = errors.New("no output device")

	require.NoError(t, h.c.PickMood("lofi"))
	require.NoError(t, h.c.Play(context.Background()))

	assert.Equal(t, state.Ready, h.c.Phase())
	assert.Equal(t, 0, h.c.Streak().TotalSessions)
}

func TestController_SleepTimer(t *testing.T) {
	h := newHarness(t)

	assert.ErrorIs(t, h.c.SetSleepTimer(20), ErrInvalidTimer)
	require.NoError(t, h.c.SetSleepTimer(15))
	require.NoError(t, h.c.PickMood("calm"))
	require.NoError(t, h.c.Play(context.Background()))

	h.clock.Advance(14 * time.Minute)
	assert.Equal(t, state.Playing, h.c.Phase())

	h.clock.Advance(time.Minute)
	assert.Equal(t, state.Ready, h.c.Phase())
	assert.Zero(t, h.clock.Pending())
}

func TestController_StopCancelsSleepTimer(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.c.SetSleepTimer(30))
	require.NoError(t, h.c.PickMood("calm"))
	require.NoError(t, h.c.Play(context.Background()))
	require.Equal(t, 1, h.clock.Pending())

	require.NoError(t, h.c.Stop())
	assert.Zero(t, h.clock.Pending())

	require.NoError(t, h.c.Play(context.Background()))
	h.clock.Advance(29 * time.Minute)
	assert.Equal(t, state.Playing, h.c.Phase(), "countdown restarts on each play")
}

func TestController_JourneyAdvancesAndCompletes(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.c.StartJourney("wind-down"))
	snap := h.c.Snapshot()
	assert.Equal(t, state.Ready, snap.Phase)
	assert.Equal(t, "bright", snap.Profile.MoodID)
	require.NotNil(t, snap.Journey)
	assert.Equal(t, 0, snap.Journey.StepIndex)

	require.NoError(t, h.c.Play(context.Background()))
	h.clock.Advance(10 * time.Minute)
	snap = h.c.Snapshot()
	assert.Equal(t, "calm", snap.Profile.MoodID)
	assert.Equal(t, state.Ready, snap.Phase, "steps do not resume playback")

	h.clock.Advance(5 * time.Minute)
	snap = h.c.Snapshot()
	assert.Nil(t, snap.Journey)
	assert.Equal(t, "wind-down", snap.PendingReflection)

	require.NoError(t, h.c.Reflect("yes"))
	assert.Empty(t, h.c.Snapshot().PendingReflection)
	assert.ErrorIs(t, h.c.Reflect("perhaps"), history.ErrInvalidAnswer)
}

func TestController_ZeroMinuteStepHolds(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.c.StartJourney("hold"))
	assert.Zero(t, h.clock.Pending())

	h.clock.Advance(24 * time.Hour)
	snap := h.c.Snapshot()
	assert.Equal(t, "lofi", snap.Profile.MoodID)
	require.NotNil(t, snap.Journey)
	assert.Equal(t, 0, snap.Journey.StepIndex)
}

func TestController_ManualPickEndsJourney(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.c.StartJourney("wind-down"))
	require.NoError(t, h.c.PickMood("lofi"))

	h.clock.Advance(time.Hour)
	snap := h.c.Snapshot()
	assert.Equal(t, "lofi", snap.Profile.MoodID, "a cancelled journey never overrides a manual pick")
	assert.Nil(t, snap.Journey)
}

func TestController_SyncCancelsJourneyAndPlayback(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.c.StartJourney("wind-down"))
	require.NoError(t, h.c.Play(context.Background()))
	require.NoError(t, h.c.Sync())
	<-h.sync.hooks

	snap := h.c.Snapshot()
	assert.Equal(t, state.Listening, snap.Phase)
	assert.Nil(t, snap.Journey)
	assert.Zero(t, h.clock.Pending())
	assert.Contains(t, h.player.Calls(), "pause")
}

func TestController_StartJourneyErrors(t *testing.T) {
	h := newHarness(t)

	assert.ErrorIs(t, h.c.StartJourney("nope"), mood.ErrUnknownJourney)
	assert.ErrorIs(t, h.c.PickMood("nope"), mood.ErrUnknownMood)

	require.NoError(t, h.c.Sync())
	<-h.sync.hooks
	assert.ErrorIs(t, h.c.StartJourney("wind-down"), state.ErrIllegalTransition)
}

func TestController_Favourites(t *testing.T) {
	h := newHarness(t)

	_, err := h.c.AddFavourite()
	assert.ErrorIs(t, err, ErrNoSelection)

	require.NoError(t, h.c.PickMood("bright"))
	fav, err := h.c.AddFavourite()
	require.NoError(t, err)
	assert.Equal(t, "b1", fav.TrackID)
	assert.Equal(t, "bright", fav.MoodID)

	require.NoError(t, h.c.PickMood("calm"))
	require.NoError(t, h.c.PickFavourite(fav.ID))
	snap := h.c.Snapshot()
	assert.Equal(t, "b1", snap.TrackID)
	assert.Equal(t, mood.BandHigh, snap.Profile.DominantBand)

	require.NoError(t, h.c.RemoveFavourite(fav.ID))
	assert.Empty(t, h.c.Favourites())
	assert.ErrorIs(t, h.c.RemoveFavourite(fav.ID), history.ErrUnknownFavourite)
}

func TestController_SettingsAndCheckIn(t *testing.T) {
	h := newHarness(t)

	for _, tt := range []struct{ in, want float64 }{{3, 1}, {-1, 0}, {0.4, 0.4}} {
		got, err := h.c.SetVolume(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "SetVolume(%v)", tt.in)
	}
	assert.Equal(t, 0.4, h.player.volume)

	assert.ErrorIs(t, h.c.SetTheme("sepia"), ErrInvalidTheme)
	require.NoError(t, h.c.SetTheme(ThemeLight))
	assert.Equal(t, ThemeLight, h.c.Snapshot().Theme)

	require.NoError(t, h.c.PickMood("calm"))
	require.NoError(t, h.c.Play(context.Background()))
	require.NoError(t, h.c.Stop())
	require.NoError(t, h.c.CheckIn("better"))
	assert.False(t, h.c.Snapshot().PendingCheckIn)
	assert.ErrorIs(t, h.c.CheckIn("calmer"), history.ErrInvalidAnswer)
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	store := persist.NewMemory()
	require.NoError(t, store.Set(ctx, persist.KeyTheme, []byte(`"light"`)))
	require.NoError(t, store.Set(ctx, persist.KeySessionLog, []byte(`[{"timestamp":1,"day":"2026-03-13"}]`)))
	require.NoError(t, store.Set(ctx, persist.KeyFavourites, []byte(`{`)))

	r, err := Bootstrap(ctx, store, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "light", r.Theme)
	assert.Len(t, r.Sessions, 1)
	assert.Empty(t, r.Favourites, "corrupt values are skipped")
	assert.Equal(t, catalog.OriginFallback, r.CatalogSource.Moods)

	c := New(newHandSyncer(), &fakePlayer{}, &fakeAssets{}, WithRestored(r))
	defer c.Close()
	assert.Equal(t, ThemeLight, c.Snapshot().Theme)
	assert.Equal(t, 1, c.Streak().TotalSessions)
}
