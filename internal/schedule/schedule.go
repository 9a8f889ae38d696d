// Package schedule provides cancellable delayed callbacks with a real
// timer-backed implementation and a manually advanced fake for tests.
package schedule

import (
	"context"
	"sync"
	"time"
)

// Token identifies a scheduled callback. The zero Token is never issued.
type Token uint64

// Scheduler runs callbacks after a delay and lets callers cancel them.
// Cancel on an unknown or already fired token is a no-op.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) Token
	Cancel(tok Token)
	Now() time.Time
}

// TimerScheduler is a Scheduler backed by time.AfterFunc.
type TimerScheduler struct {
	mu     sync.Mutex
	next   Token
	timers map[Token]*time.Timer
}

// NewTimerScheduler creates a real-time Scheduler.
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{timers: make(map[Token]*time.Timer)}
}

// Schedule runs fn on its own goroutine after delay.
func (s *TimerScheduler) Schedule(delay time.Duration, fn func()) Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	tok := s.next
	s.timers[tok] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		_, live := s.timers[tok]
		delete(s.timers, tok)
		s.mu.Unlock()
		if live {
			fn()
		}
	})
	return tok
}

// Cancel stops the timer for tok if it has not fired.
func (s *TimerScheduler) Cancel(tok Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[tok]; ok {
		t.Stop()
		delete(s.timers, tok)
	}
}

// Now returns the wall clock time.
func (s *TimerScheduler) Now() time.Time {
	return time.Now()
}

// Pending returns the number of timers that have neither fired nor been cancelled.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every outstanding timer.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for tok, t := range s.timers {
		t.Stop()
		delete(s.timers, tok)
	}
}

// Sleep blocks for d using s, returning early with ctx.Err() if ctx ends first.
func Sleep(ctx context.Context, s Scheduler, d time.Duration) error {
	done := make(chan struct{})
	tok := s.Schedule(d, func() { close(done) })

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.Cancel(tok)
		return ctx.Err()
	}
}

var _ Scheduler = (*TimerScheduler)(nil)
