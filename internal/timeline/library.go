package timeline

import (
	"errors"
	"sync"
)

// Provider supplies the current timeline snapshot to the engine. The engine
// treats the result as read-only; it is refreshed externally, e.g. when a new
// recording finishes uploading.
type Provider interface {
	Snapshot() Timeline
}

// ErrNoLanes is returned when a replacement timeline carries no lanes at all.
var ErrNoLanes = errors.New("timeline has no lanes")

// Library is a concurrency-safe in-memory Provider. The upload pipeline
// replaces its contents wholesale; readers always see a consistent copy.
type Library struct {
	mu      sync.RWMutex
	current Timeline
}

// NewLibrary returns an empty library.
func NewLibrary() *Library {
	return &Library{}
}

// Replace swaps the stored timeline for a new one. The caller must not
// mutate t after handing it over.
func (l *Library) Replace(t Timeline) error {
	if len(t.Lanes) == 0 {
		return ErrNoLanes
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = t
	return nil
}

// Snapshot implements Provider. The returned timeline is a deep copy, so
// later replacements never mutate data a caller is still reading.
func (l *Library) Snapshot() Timeline {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := Timeline{TotalDurationMs: l.current.TotalDurationMs}
	if len(l.current.Lanes) == 0 {
		return out
	}
	out.Lanes = make([]Lane, len(l.current.Lanes))
	for i, lane := range l.current.Lanes {
		copied := lane
		copied.Clips = append([]Clip(nil), lane.Clips...)
		out.Lanes[i] = copied
	}
	return out
}

// LaneCount returns the number of lanes currently stored. Used for metrics.
func (l *Library) LaneCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.current.Lanes)
}
