// Package stabilizer decides when a growing file has finished writing.
package stabilizer

import (
	"sync"
	"time"
)

// State is the lifecycle position of a tracked file.
type State int

const (
	Unseen State = iota
	Growing
	Stable
	Processed
	SkippedTooLarge
)

func (s State) String() string {
	switch s {
	case Unseen:
		return "unseen"
	case Growing:
		return "growing"
	case Stable:
		return "stable"
	case Processed:
		return "processed"
	case SkippedTooLarge:
		return "skipped-too-large"
	default:
		return "unknown"
	}
}

// Entry is the per-file state kept between polls.
type Entry struct {
	Size         int64
	LastChange   time.Time
	Processed    bool
	SkippedLarge bool
}

// Tracker holds size-stability state keyed by absolute path.
// It is safe for concurrent use.
type Tracker struct {
	Window time.Duration

	mu      sync.Mutex
	entries map[string]*Entry
}

// NewTracker creates a Tracker that reports a file stable once its size
// has not changed for window.
func NewTracker(window time.Duration) *Tracker {
	return &Tracker{
		Window:  window,
		entries: make(map[string]*Entry),
	}
}

// Observe records a size sample and returns how long the size has been
// unchanged. New files and size changes restart the clock and return 0.
func (t *Tracker) Observe(path string, size int64, now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[path]
	if !ok {
		t.entries[path] = &Entry{Size: size, LastChange: now}
		return 0
	}
	if e.LastChange.IsZero() || e.Size != size {
		e.Size = size
		e.LastChange = now
		return 0
	}
	return now.Sub(e.LastChange)
}

// Stable reports whether elapsed meets the stability window.
func (t *Tracker) Stable(elapsed time.Duration) bool {
	return elapsed >= t.Window
}

// MarkProcessed moves path to the terminal Processed state.
func (t *Tracker) MarkProcessed(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entry(path).Processed = true
}

// FlagTooLarge marks path as oversized. It returns true only the first
// time, so callers can warn once.
func (t *Tracker) FlagTooLarge(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entry(path)
	if e.SkippedLarge {
		return false
	}
	e.SkippedLarge = true
	return true
}

// Prune drops state for every tracked path not in present and returns
// the dropped paths.
func (t *Tracker) Prune(present map[string]struct{}) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var dropped []string
	for path := range t.entries {
		if _, ok := present[path]; !ok {
			delete(t.entries, path)
			dropped = append(dropped, path)
		}
	}
	return dropped
}

// State reports where path is in its lifecycle.
func (t *Tracker) State(path string, now time.Time) State {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[path]
	switch {
	case !ok:
		return Unseen
	case e.Processed:
		return Processed
	case e.SkippedLarge:
		return SkippedTooLarge
	case e.LastChange.IsZero():
		return Unseen
	case now.Sub(e.LastChange) >= t.Window:
		return Stable
	default:
		return Growing
	}
}

// Len returns the number of tracked paths.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Tracker) entry(path string) *Entry {
	e, ok := t.entries[path]
	if !ok {
		e = &Entry{}
		t.entries[path] = e
	}
	return e
}
