// Package device provides the capture and playback implementations used by
// the server when no real audio hardware is attached.
package device

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
)

// Status is the recorder state.
type Status string

const (
	StatusStandby   Status = "standby"
	StatusReady     Status = "ready"
	StatusRecording Status = "recording"
)

// ErrNotRecording is returned by Stop when Start was not called.
var ErrNotRecording = errors.New("capture not recording")

// FileCapture replays a recorded clip as the captured audio. With no path
// it reports no permission, so syncs wait silently and fall back to the
// heuristic.
type FileCapture struct {
	path   string
	logger *zap.Logger

	mu     sync.Mutex
	status Status
}

// NewFileCapture creates a capture backed by the clip at path.
func NewFileCapture(path string, logger *zap.Logger) *FileCapture {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileCapture{path: path, logger: logger, status: StatusStandby}
}

// Permitted reports whether a clip is configured.
func (c *FileCapture) Permitted(context.Context) bool {
	return c.path != ""
}

// Prepare checks the clip is readable.
func (c *FileCapture) Prepare(context.Context) error {
	if _, err := os.Stat(c.path); err != nil {
		return fmt.Errorf("preparing capture: %w", err)
	}
	c.setStatus(StatusReady)
	return nil
}

func (c *FileCapture) Start(context.Context) error {
	c.setStatus(StatusRecording)
	c.logger.Debug("capture started", zap.String("path", c.path))
	return nil
}

// Stop ends the capture and returns the clip base64-encoded.
func (c *FileCapture) Stop(context.Context) (string, error) {
	c.mu.Lock()
	recording := c.status == StatusRecording
	c.status = StatusStandby
	c.mu.Unlock()

	if !recording {
		return "", ErrNotRecording
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return "", fmt.Errorf("reading clip: %w", err)
	}
	c.logger.Debug("capture stopped", zap.Int("bytes", len(data)))
	return base64.StdEncoding.EncodeToString(data), nil
}

// Status returns the recorder state.
func (c *FileCapture) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *FileCapture) setStatus(s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = s
}
