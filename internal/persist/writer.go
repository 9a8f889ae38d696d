package persist

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

// Writer persists values in the background. Values are encoded at the time
// Save is called; a later Save for the same key replaces an earlier one
// still waiting in the queue. Failures are logged and dropped.
type Writer struct {
	store  Store
	logger *zap.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending map[string][]byte
	order   []string
	busy    bool
	closed  bool

	wake chan struct{}
	done chan struct{}
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithLogger sets the logger used for dropped writes.
func WithLogger(l *zap.Logger) WriterOption {
	return func(w *Writer) {
		w.logger = l
	}
}

// NewWriter starts a background writer over store. Call Close to stop it.
func NewWriter(store Store, opts ...WriterOption) *Writer {
	w := &Writer{
		store:   store,
		logger:  zap.NewNop(),
		pending: make(map[string][]byte),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	w.cond = sync.NewCond(&w.mu)
	for _, opt := range opts {
		opt(w)
	}
	go w.loop()
	return w
}

// Save encodes v as JSON and queues it for key. It never blocks on I/O.
func (w *Writer) Save(key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.logger.Warn("encoding value for persistence", zap.String("key", key), zap.Error(err))
		return
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	if _, queued := w.pending[key]; !queued {
		w.order = append(w.order, key)
	}
	w.pending[key] = data
	select {
	case w.wake <- struct{}{}:
	default:
	}
	w.mu.Unlock()
}

// Flush blocks until every queued value has been attempted.
func (w *Writer) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for len(w.order) > 0 || w.busy {
		w.cond.Wait()
	}
}

// Close drains the queue and stops the background goroutine.
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.closed = true
	close(w.wake)
	w.mu.Unlock()

	<-w.done
}

func (w *Writer) loop() {
	defer close(w.done)
	for range w.wake {
		w.drain()
	}
	w.drain()
}

func (w *Writer) drain() {
	for {
		w.mu.Lock()
		if len(w.order) == 0 {
			w.busy = false
			w.cond.Broadcast()
			w.mu.Unlock()
			return
		}
		key := w.order[0]
		w.order = w.order[1:]
		data := w.pending[key]
		delete(w.pending, key)
		w.busy = true
		w.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := w.store.Set(ctx, key, data); err != nil {
			w.logger.Warn("persisting state", zap.String("key", key), zap.Error(err))
		}
		cancel()
	}
}
