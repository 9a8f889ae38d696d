// Package sync reads the room: it captures a short audio sample, asks the
// classifier for a mood and falls back to a local heuristic when the
// classifier is unavailable. Every run ends with a selection.
package sync

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/justestif/moodmap/internal/catalog"
	"github.com/justestif/moodmap/internal/mood"
	"github.com/justestif/moodmap/internal/schedule"
	"github.com/justestif/moodmap/internal/telemetry"
)

// Default timings.
const (
	DefaultCaptureWindow = 5 * time.Second
	DefaultAnalysisDelay = 2 * time.Second
)

// Capture is the recording capability.
type Capture interface {
	// Permitted reports whether recording may be used at all.
	Permitted(ctx context.Context) bool
	Prepare(ctx context.Context) error
	Start(ctx context.Context) error
	// Stop ends recording and returns the encoded sample.
	Stop(ctx context.Context) (string, error)
}

// Classifier turns a captured sample into a verdict. Implementations return
// a validated verdict or an error.
type Classifier interface {
	Analyze(ctx context.Context, payload string) (catalog.Verdict, error)
}

// Ensurer starts caching a remote track in the background.
type Ensurer interface {
	Ensure(remoteID string)
}

// Source names where a selection came from.
type Source string

const (
	SourceClassifier Source = "classifier"
	SourceHeuristic  Source = "heuristic"
)

// Result is the outcome of a run.
type Result struct {
	Selection mood.Selection
	Source    Source
}

// Hooks receives progress from a run. CaptureFailed ends the run; otherwise
// CaptureDone is followed by exactly one Settled.
type Hooks interface {
	CaptureDone()
	CaptureFailed(err error)
	Settled(res Result)
}

// Engine runs capture and classification.
type Engine struct {
	capture       Capture
	classifier    Classifier
	cache         Ensurer
	sched         schedule.Scheduler
	rand          mood.Rand
	logger        *zap.Logger
	captureWindow time.Duration
	analysisDelay time.Duration
	completed     metric.Int64Counter
}

// Option configures an Engine.
type Option func(*Engine)

// WithScheduler sets the clock used for the capture window and analysis delay.
func WithScheduler(s schedule.Scheduler) Option {
	return func(e *Engine) {
		e.sched = s
	}
}

// WithTimings overrides the capture window and the pause before classification.
func WithTimings(captureWindow, analysisDelay time.Duration) Option {
	return func(e *Engine) {
		e.captureWindow = captureWindow
		e.analysisDelay = analysisDelay
	}
}

// WithRand sets the source used by the fallback heuristic.
func WithRand(r mood.Rand) Option {
	return func(e *Engine) {
		e.rand = r
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an engine. cache may be nil.
func New(capture Capture, classifier Classifier, cache Ensurer, opts ...Option) *Engine {
	e := &Engine{
		capture:       capture,
		classifier:    classifier,
		cache:         cache,
		sched:         schedule.NewTimerScheduler(),
		rand:          mood.DefaultRand(),
		logger:        zap.NewNop(),
		captureWindow: DefaultCaptureWindow,
		analysisDelay: DefaultAnalysisDelay,
		completed:     telemetry.Counter(telemetry.SyncCompleted, "Completed syncs by selection source"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run performs one sync against cat and reports through h. It never fails:
// a capture error is reported via CaptureFailed, and every other failure
// falls back to the heuristic.
func (e *Engine) Run(ctx context.Context, cat *mood.Catalog, h Hooks) {
	payload, err := e.record(ctx)
	if err != nil {
		e.logger.Warn("capture failed", zap.Error(err))
		h.CaptureFailed(err)
		return
	}
	h.CaptureDone()

	if err := schedule.Sleep(ctx, e.sched, e.analysisDelay); err != nil {
		e.logger.Debug("analysis delay interrupted", zap.Error(err))
	}

	res := e.classify(ctx, cat, payload)
	if e.cache != nil && res.Selection.TrackID != "" {
		e.cache.Ensure(res.Selection.TrackID)
	}
	e.completed.Add(ctx, 1, metric.WithAttributes(attribute.String("source", string(res.Source))))
	e.logger.Info("sync settled",
		zap.String("source", string(res.Source)),
		zap.String("mood_id", res.Selection.Profile.MoodID),
		zap.String("band", string(res.Selection.Profile.DominantBand)),
	)
	h.Settled(res)
}

// record captures for the configured window. Without permission it waits
// the same duration and returns an empty payload.
func (e *Engine) record(ctx context.Context) (string, error) {
	if !e.capture.Permitted(ctx) {
		e.logger.Debug("capture not permitted, waiting without recording")
		if err := schedule.Sleep(ctx, e.sched, e.captureWindow); err != nil {
			return "", fmt.Errorf("waiting: %w", err)
		}
		return "", nil
	}

	if err := e.capture.Prepare(ctx); err != nil {
		return "", fmt.Errorf("preparing capture: %w", err)
	}
	if err := e.capture.Start(ctx); err != nil {
		return "", fmt.Errorf("starting capture: %w", err)
	}
	if err := schedule.Sleep(ctx, e.sched, e.captureWindow); err != nil {
		_, _ = e.capture.Stop(context.WithoutCancel(ctx))
		return "", fmt.Errorf("capturing: %w", err)
	}
	payload, err := e.capture.Stop(ctx)
	if err != nil {
		return "", fmt.Errorf("stopping capture: %w", err)
	}
	return payload, nil
}

func (e *Engine) classify(ctx context.Context, cat *mood.Catalog, payload string) Result {
	v, err := e.classifier.Analyze(ctx, payload)
	if err == nil {
		return Result{Selection: v.Selection(), Source: SourceClassifier}
	}
	e.logger.Info("classifier unavailable, using heuristic", zap.Error(err))

	if sel, ok := mood.Heuristic(cat, e.rand); ok {
		return Result{Selection: sel, Source: SourceHeuristic}
	}

	// Only reachable with an empty catalog.
	peaks := mood.RandomPeaks(e.rand)
	return Result{
		Selection: mood.Selection{Profile: mood.Profile{
			DominantBand: mood.DominantBand(peaks),
			Label:        "Ambient",
			Peaks:        peaks,
		}},
		Source: SourceHeuristic,
	}
}
