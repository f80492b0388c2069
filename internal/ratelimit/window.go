package ratelimit

import (
	"sync"
	"time"
)

// DefaultActionsPerHour is the session throttle used when none is configured.
const DefaultActionsPerHour = 30

// Window is a sliding-window limiter: at most max actions in any span of
// length period.
type Window struct {
	mu      sync.Mutex
	max     int
	period  time.Duration
	actions []time.Time
	now     func() time.Time
}

// NewWindow returns a limiter allowing max actions per period.
func NewWindow(max int, period time.Duration) *Window {
	return &Window{max: max, period: period, now: time.Now}
}

// NewHourly returns a Window of perHour actions per hour.
func NewHourly(perHour int) *Window { return NewWindow(perHour, time.Hour) }

// WithClock replaces the time source (tests).
func (w *Window) WithClock(now func() time.Time) *Window {
	w.mu.Lock()
	w.now = now
	w.mu.Unlock()
	return w
}

func (w *Window) prune(now time.Time) {
	cutoff := now.Add(-w.period)
	i := 0
	for i < len(w.actions) && !w.actions[i].After(cutoff) {
		i++
	}
	w.actions = w.actions[i:]
}

// CanPerform reports whether another action fits in the window.
func (w *Window) CanPerform() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(w.now())
	return len(w.actions) < w.max
}

// Record registers an action at the current time.
func (w *Window) Record() {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	w.prune(now)
	w.actions = append(w.actions, now)
}

// Allow records an action if one fits and reports whether it did.
func (w *Window) Allow() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	w.prune(now)
	if len(w.actions) >= w.max {
		return false
	}
	w.actions = append(w.actions, now)
	return true
}

// Remaining returns how many actions still fit in the window.
func (w *Window) Remaining() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(w.now())
	if r := w.max - len(w.actions); r > 0 {
		return r
	}
	return 0
}

// TimeUntilNext returns how long until the oldest action leaves the window.
func (w *Window) TimeUntilNext() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	w.prune(now)
	if len(w.actions) < w.max {
		return 0
	}
	return w.actions[0].Add(w.period).Sub(now)
}
