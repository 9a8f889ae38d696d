// Package cache keeps local copies of remote tracks. Downloads run in the
// background; a track that is not yet local is streamed from its remote id.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/justestif/moodmap/internal/persist"
	"github.com/justestif/moodmap/internal/telemetry"
)

const defaultExt = ".mp3"

// Fetcher copies the content of a remote track into w.
type Fetcher interface {
	Fetch(ctx context.Context, remoteID string, w io.Writer) error
}

type entry struct {
	path  string
	ready bool
}

// AssetCache maps remote track identifiers to local files. Each remote id
// has at most one local path and is downloaded at most once at a time.
// There is no eviction; the directory grows with every distinct track.
type AssetCache struct {
	dir       string
	fetcher   Fetcher
	index     *persist.Writer
	logger    *zap.Logger
	downloads metric.Int64Counter
	timeout   time.Duration

	mu      sync.Mutex
	entries map[string]entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures an AssetCache.
type Option func(*AssetCache)

// WithLogger sets the cache logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *AssetCache) {
		c.logger = l
	}
}

// WithIndexWriter persists the remote id to local path index after every
// completed download.
func WithIndexWriter(w *persist.Writer) Option {
	return func(c *AssetCache) {
		c.index = w
	}
}

// WithDownloadTimeout bounds each background download. Zero leaves
// downloads bounded only by Close.
func WithDownloadTimeout(d time.Duration) Option {
	return func(c *AssetCache) {
		c.timeout = d
	}
}

// New creates a cache storing files under dir.
func New(dir string, fetcher Fetcher, opts ...Option) *AssetCache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &AssetCache{
		dir:       dir,
		fetcher:   fetcher,
		logger:    zap.NewNop(),
		downloads: telemetry.Counter(telemetry.CacheDownloads, "Track downloads by result"),
		entries:   make(map[string]entry),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LocalName derives the file name for remoteID: the hex SHA-256 of the id
// plus the extension of its URL path when it has one. Distinct ids map to
// distinct names barring a hash collision.
func LocalName(remoteID string) string {
	sum := sha256.Sum256([]byte(remoteID))
	return hex.EncodeToString(sum[:]) + extension(remoteID)
}

func extension(remoteID string) string {
	p := remoteID
	if u, err := url.Parse(remoteID); err == nil && u.Path != "" {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if len(ext) < 2 || len(ext) > 5 {
		return defaultExt
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return defaultExt
		}
	}
	return ext
}

// Restore seeds the index from a previously persisted snapshot. Entries
// whose file no longer exists are skipped, as are ids already known.
func (c *AssetCache) Restore(index map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, p := range index {
		if _, known := c.entries[id]; known {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		c.entries[id] = entry{path: p, ready: true}
	}
}

// Resolve returns the local path for remoteID if a completed copy exists.
// It never touches the filesystem.
func (c *AssetCache) Resolve(remoteID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[remoteID]
	if !ok || !e.ready {
		return "", false
	}
	return e.path, true
}

// Source returns the local path for remoteID when cached, else remoteID
// itself for streaming.
func (c *AssetCache) Source(remoteID string) string {
	if p, ok := c.Resolve(remoteID); ok {
		return p
	}
	return remoteID
}

// Ensure starts caching remoteID in the background and returns at once.
// Calls for an id that is cached or already downloading do nothing. A file
// already present on disk is adopted before Ensure returns. A failed
// download leaves the id uncached; the next Ensure tries again.
func (c *AssetCache) Ensure(remoteID string) {
	if remoteID == "" {
		return
	}

	c.mu.Lock()
	if _, ok := c.entries[remoteID]; ok {
		c.mu.Unlock()
		return
	}
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	p := filepath.Join(c.dir, LocalName(remoteID))
	if _, err := os.Stat(p); err == nil {
		c.entries[remoteID] = entry{path: p, ready: true}
		c.mu.Unlock()
		c.logger.Debug("found cached track on disk", zap.String("remote_id", remoteID))
		c.record("disk")
		c.saveIndex()
		return
	}
	c.entries[remoteID] = entry{path: p}
	c.wg.Add(1)
	c.mu.Unlock()

	go c.download(remoteID, p)
}

// Index returns a snapshot of every completed entry.
func (c *AssetCache) Index() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]string, len(c.entries))
	for id, e := range c.entries {
		if e.ready {
			out[id] = e.path
		}
	}
	return out
}

// Wait blocks until every background download has settled.
func (c *AssetCache) Wait() {
	c.wg.Wait()
}

// Close cancels in-flight downloads and waits for them to stop.
func (c *AssetCache) Close() {
	c.mu.Lock()
	c.cancel()
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *AssetCache) download(remoteID, dst string) {
	defer c.wg.Done()

	if err := c.fetchToFile(remoteID, dst); err != nil {
		c.mu.Lock()
		delete(c.entries, remoteID)
		c.mu.Unlock()
		c.logger.Warn("caching track", zap.String("remote_id", remoteID), zap.Error(err))
		c.record("failed")
		return
	}

	c.markReady(remoteID)
	c.logger.Debug("cached track", zap.String("remote_id", remoteID), zap.String("path", dst))
	c.record("downloaded")
}

func (c *AssetCache) markReady(remoteID string) {
	c.mu.Lock()
	e := c.entries[remoteID]
	e.ready = true
	c.entries[remoteID] = e
	c.mu.Unlock()

	c.saveIndex()
}

func (c *AssetCache) saveIndex() {
	if c.index != nil {
		c.index.Save(persist.KeyCacheIndex, c.Index())
	}
}

func (c *AssetCache) record(result string) {
	c.downloads.Add(c.ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// fetchToFile downloads into a temporary file and renames it into place so
// a partial download is never visible under dst.
func (c *AssetCache) fetchToFile(remoteID, dst string) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, ".download-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	ctx := c.ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	fetchErr := c.fetcher.Fetch(ctx, remoteID, tmp)
	closeErr := tmp.Close()
	if err := errors.Join(fetchErr, closeErr); err != nil {
		return fmt.Errorf("downloading: %w", err)
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("moving download into place: %w", err)
	}
	return nil
}
