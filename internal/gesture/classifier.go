package gesture

import (
	"sync"
	"time"
)

// Classifier yields the most recent classification, if any, when the
// orchestrator samples on its tick.
type Classifier interface {
	Sample(now time.Time) (Frame, bool)
}

// Feed is a Classifier fed by an external process (the browser page running
// the gesture models). Frames older than maxAge are ignored so a disconnected
// page does not keep repeating its last gesture.
type Feed struct {
	mu     sync.Mutex
	last   Frame
	has    bool
	maxAge time.Duration
}

func NewFeed(maxAge time.Duration) *Feed {
	return &Feed{maxAge: maxAge}
}

// Push records a classification. A zero At is stamped with the current time.
func (f *Feed) Push(frame Frame) {
	if frame.At.IsZero() {
		frame.At = time.Now()
	}
	f.mu.Lock()
	f.last = frame
	f.has = true
	f.mu.Unlock()
}

func (f *Feed) Sample(now time.Time) (Frame, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.has {
		return Frame{}, false
	}
	if f.maxAge > 0 && now.Sub(f.last.At) > f.maxAge {
		return Frame{}, false
	}
	frame := f.last
	// the arbiter reasons in tick time
	frame.At = now
	return frame, true
}

// Clear drops the stored frame.
func (f *Feed) Clear() {
	f.mu.Lock()
	f.has = false
	f.last = Frame{}
	f.mu.Unlock()
}
