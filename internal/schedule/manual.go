package schedule

import (
	"slices"
	"sync"
	"time"
)

// Manual is a fake Scheduler whose clock only moves when Advance is called.
// Due callbacks run synchronously on the goroutine calling Advance, in
// deadline order (ties in scheduling order).
type Manual struct {
	mu      sync.Mutex
	cond    *sync.Cond
	now     time.Time
	next    Token
	pending []manualTimer
}

type manualTimer struct {
	tok Token
	at  time.Time
	fn  func()
}

// NewManual creates a fake clock starting at start.
func NewManual(start time.Time) *Manual {
	m := &Manual{now: start}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Schedule registers fn to run once the clock reaches Now()+delay.
func (m *Manual) Schedule(delay time.Duration, fn func()) Token {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.next++
	m.pending = append(m.pending, manualTimer{tok: m.next, at: m.now.Add(delay), fn: fn})
	m.cond.Broadcast()
	return m.next
}

// Cancel removes tok if it has not fired.
func (m *Manual) Cancel(tok Token) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending = slices.DeleteFunc(m.pending, func(t manualTimer) bool { return t.tok == tok })
}

// Now returns the fake time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending returns the number of callbacks waiting to fire.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Advance moves the clock forward by d, firing every callback that becomes
// due. Callbacks scheduled by a firing callback run too if they fall inside
// the window.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		idx := -1
		for i, t := range m.pending {
			if t.at.After(target) {
				continue
			}
			if idx == -1 || t.at.Before(m.pending[idx].at) {
				idx = i
			}
		}
		if idx == -1 {
			m.now = target
			m.mu.Unlock()
			return
		}
		due := m.pending[idx]
		m.pending = slices.Delete(m.pending, idx, idx+1)
		if due.at.After(m.now) {
			m.now = due.at
		}
		m.mu.Unlock()

		due.fn()
	}
}

// BlockUntil waits until at least n callbacks are pending. Tests use it to
// synchronise with goroutines that schedule work.
func (m *Manual) BlockUntil(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.pending) < n {
		m.cond.Wait()
	}
}

var _ Scheduler = (*Manual)(nil)
