package continuation

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"

	"github.com/leonardotrapani/copresenter/internal/segment"
)

type EventKind int

const (
	Fragment EventKind = iota
	Complete
	Failed
)

func (k EventKind) String() string {
	switch k {
	case Fragment:
		return "fragment"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is produced by a session's reader goroutine and tagged with its token.
type Event struct {
	Session uint64
	Kind    EventKind
	Text    string
	Err     error
}

// Sink receives speakable units in emission order.
type Sink interface {
	Enqueue(text string)
}

// Session is one open continuation request.
type Session struct {
	ID         uint64
	Transcript string
	Style      string

	seg    *segment.Segmenter
	cancel context.CancelFunc

	mu     sync.Mutex
	stream Stream
	closed bool
}

// attach records the stream so close can tear it down. It reports false if the
// session was already closed.
func (s *Session) attach(stream Stream) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.stream = stream
	return true
}

func (s *Session) close() {
	s.cancel()
	s.mu.Lock()
	stream := s.stream
	s.closed = true
	s.stream = nil
	s.mu.Unlock()
	if stream != nil {
		_ = stream.Close()
	}
	s.seg.Reset()
}

// Runner starts generation sessions and applies their events. At most one
// session is live; starting a new one invalidates the previous token before
// the new request is sent.
//
// Start, Cancel and Apply are meant to be called from a single goroutine.
type Runner struct {
	mu     sync.RWMutex
	source Source

	events chan Event
	lastID uint64
	live   *Session
}

func NewRunner(source Source) *Runner {
	return &Runner{
		source: source,
		events: make(chan Event, 64),
	}
}

// SetSource swaps the source used by future sessions.
func (r *Runner) SetSource(source Source) {
	r.mu.Lock()
	r.source = source
	r.mu.Unlock()
}

func (r *Runner) Source() Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.source
}

func (r *Runner) Events() <-chan Event {
	return r.events
}

func (r *Runner) Live() bool {
	return r.live != nil
}

// Current returns the live session's token, or 0.
func (r *Runner) Current() uint64 {
	if r.live == nil {
		return 0
	}
	return r.live.ID
}

func (r *Runner) Start(ctx context.Context, transcript, style string) *Session {
	if r.live != nil {
		log.Printf("Session: superseding session %d", r.live.ID)
		r.Cancel()
	}

	r.lastID++
	sessCtx, cancel := context.WithCancel(ctx)
	s := &Session{
		ID:         r.lastID,
		Transcript: transcript,
		Style:      style,
		seg:        segment.New(),
		cancel:     cancel,
	}
	r.live = s

	source := r.Source()
	log.Printf("Session: %d started via %s (%d chars of transcript)", s.ID, source.Name(), len(transcript))
	go r.read(sessCtx, s, source, Request{Transcription: transcript, Style: style})
	return s
}

// Cancel closes the live session's transport and drops its pending text.
func (r *Runner) Cancel() {
	if r.live == nil {
		return
	}
	log.Printf("Session: %d cancelled", r.live.ID)
	r.live.close()
	r.live = nil
}

// Apply checks ev against the live token and, if current, pushes its text
// through the session's segmenter into sink. It reports whether the event was
// applied and whether it ended the session. On failure the pending remainder
// is dropped rather than spoken.
func (r *Runner) Apply(ev Event, sink Sink) (applied, terminal bool) {
	if r.live == nil || ev.Session != r.live.ID {
		log.Printf("Session: dropping stale %s event from session %d", ev.Kind, ev.Session)
		return false, false
	}
	s := r.live

	switch ev.Kind {
	case Fragment:
		for _, unit := range s.seg.Feed(ev.Text) {
			sink.Enqueue(unit)
		}
		return true, false

	case Complete:
		if rest, ok := s.seg.Flush(); ok {
			sink.Enqueue(rest)
		}
		log.Printf("Session: %d complete", s.ID)

	case Failed:
		log.Printf("Session: %d failed: %v", s.ID, ev.Err)
	}

	s.close()
	r.live = nil
	return true, true
}

func (r *Runner) read(ctx context.Context, s *Session, source Source, req Request) {
	post := func(ev Event) {
		ev.Session = s.ID
		select {
		case r.events <- ev:
		case <-ctx.Done():
		}
	}

	stream, err := source.Open(ctx, req)
	if err != nil {
		if ctx.Err() == nil {
			post(Event{Kind: Failed, Err: err})
		}
		return
	}
	if !s.attach(stream) {
		_ = stream.Close()
		return
	}
	defer stream.Close()

	for {
		text, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			post(Event{Kind: Complete})
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			post(Event{Kind: Failed, Err: err})
			return
		}
		post(Event{Kind: Fragment, Text: text})
	}
}
