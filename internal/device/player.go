package device

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrNothingLoaded is returned by Play before a source is loaded.
var ErrNothingLoaded = errors.New("no source loaded")

// PlayerState is a snapshot of a LogPlayer.
type PlayerState struct {
	Source  string  `json:"source"`
	Playing bool    `json:"playing"`
	Volume  float64 `json:"volume"`
}

// LogPlayer is a playback target that logs what it would play.
type LogPlayer struct {
	logger *zap.Logger

	mu    sync.Mutex
	state PlayerState
}

// NewLogPlayer creates a stopped player at full volume.
func NewLogPlayer(logger *zap.Logger) *LogPlayer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPlayer{logger: logger, state: PlayerState{Volume: 1}}
}

func (p *LogPlayer) Load(src string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Source = src
	p.state.Playing = false
	p.logger.Debug("loaded", zap.String("source", src))
	return nil
}

func (p *LogPlayer) Play(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Source == "" {
		return ErrNothingLoaded
	}
	p.state.Playing = true
	p.logger.Info("playing", zap.String("source", p.state.Source), zap.Float64("volume", p.state.Volume))
	return nil
}

func (p *LogPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Playing {
		p.logger.Info("paused", zap.String("source", p.state.Source))
	}
	p.state.Playing = false
	return nil
}

func (p *LogPlayer) SeekToStart() error {
	return nil
}

func (p *LogPlayer) SetVolume(v float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Volume = v
	return nil
}

// State returns the current player state.
func (p *LogPlayer) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}
