// Package history keeps a small rolling log of noteworthy detections for
// display and export. It never feeds back into detection.
package history

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"go.viam.com/perception/vision"
)

// Capacity is the maximum number of entries retained; the oldest entry is
// evicted first once full.
const Capacity = 50

// Entry is one recorded event. Confidence is negative when the source model
// emitted no score.
type Entry struct {
	Timestamp  time.Time
	Kind       vision.Kind
	Label      string
	Confidence float64
}

// Log is a fixed-capacity, newest-first event log.
type Log struct {
	mu      sync.Mutex
	clock   clock.Clock
	entries []Entry
}

// NewLog returns an empty log stamping entries with the wall clock.
func NewLog() *Log {
	return NewLogWithClock(clock.New())
}

// NewLogWithClock returns an empty log using the given clock for timestamps.
func NewLogWithClock(c clock.Clock) *Log {
	return &Log{clock: c, entries: make([]Entry, 0, Capacity)}
}

// Record prepends an entry, evicting the oldest one if the log is full.
func (l *Log) Record(kind vision.Kind, label string, confidence float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := Entry{
		Timestamp:  l.clock.Now(),
		Kind:       kind,
		Label:      label,
		Confidence: confidence,
	}
	l.entries = append([]Entry{e}, l.entries...)
	if len(l.entries) > Capacity {
		l.entries = l.entries[:Capacity]
	}
}

// Entries returns a newest-first copy of the log.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of retained entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear empties the log.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = l.entries[:0]
}
