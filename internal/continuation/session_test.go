package continuation

import (
	"context"
	"errors"
	"io"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// chanStream replays fragments pushed by the test.
type chanStream struct {
	frags  chan string
	errs   chan error
	closed atomic.Bool
	done   chan struct{}
	once   sync.Once
}

func newChanStream() *chanStream {
	return &chanStream{frags: make(chan string, 16), errs: make(chan error, 1), done: make(chan struct{})}
}

func (s *chanStream) Recv() (string, error) {
	select {
	case f := <-s.frags:
		return f, nil
	case err := <-s.errs:
		return "", err
	case <-s.done:
		return "", errors.New("stream closed")
	}
}

func (s *chanStream) Close() error {
	s.closed.Store(true)
	s.once.Do(func() { close(s.done) })
	return nil
}

type chanSource struct {
	mu      sync.Mutex
	streams []*chanStream
	reqs    []Request
	opened  chan *chanStream
}

func newChanSource() *chanSource {
	return &chanSource{opened: make(chan *chanStream, 4)}
}

func (s *chanSource) Name() string { return "chan" }

func (s *chanSource) Open(ctx context.Context, req Request) (Stream, error) {
	st := newChanStream()
	s.mu.Lock()
	s.streams = append(s.streams, st)
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	s.opened <- st
	return st, nil
}

type failingSource struct{ err error }

func (s failingSource) Name() string { return "failing" }
func (s failingSource) Open(context.Context, Request) (Stream, error) {
	return nil, s.err
}

type recordingSink struct{ units []string }

func (s *recordingSink) Enqueue(text string) { s.units = append(s.units, text) }

func nextEvent(t *testing.T, r *Runner) Event {
	t.Helper()
	select {
	case ev := <-r.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no session event")
		return Event{}
	}
}

func waitOpened(t *testing.T, src *chanSource) *chanStream {
	t.Helper()
	select {
	case st := <-src.opened:
		return st
	case <-time.After(2 * time.Second):
		t.Fatal("stream was not opened")
		return nil
	}
}

func TestRunner_FragmentsToUnits(t *testing.T) {
	src := newChanSource()
	r := NewRunner(src)
	sink := &recordingSink{}

	s := r.Start(context.Background(), "so anyway", "dry")
	st := waitOpened(t, src)

	if !r.Live() || r.Current() != s.ID {
		t.Fatalf("Live() = %v, Current() = %d, want live session %d", r.Live(), r.Current(), s.ID)
	}
	if got := src.reqs[0]; got != (Request{Transcription: "so anyway", Style: "dry"}) {
		t.Errorf("request = %+v", got)
	}

	st.frags <- "Hello wor"
	st.frags <- "ld. How are"
	st.frags <- " you? and"

	for i := 0; i < 3; i++ {
		ev := nextEvent(t, r)
		if applied, terminal := r.Apply(ev, sink); !applied || terminal {
			t.Fatalf("Apply(%+v) = %v, %v", ev, applied, terminal)
		}
	}
	want := []string{"Hello world.", " How are you?"}
	if !reflect.DeepEqual(sink.units, want) {
		t.Fatalf("units = %q, want %q", sink.units, want)
	}

	st.errs <- io.EOF
	ev := nextEvent(t, r)
	if ev.Kind != Complete {
		t.Fatalf("event kind = %s, want complete", ev.Kind)
	}
	if applied, terminal := r.Apply(ev, sink); !applied || !terminal {
		t.Fatalf("Apply(complete) = %v, %v", applied, terminal)
	}
	if got := sink.units[len(sink.units)-1]; got != " and" {
		t.Errorf("flushed remainder = %q, want %q", got, " and")
	}
	if r.Live() {
		t.Error("runner still live after completion")
	}
}

func TestRunner_ErrorDropsRemainder(t *testing.T) {
	src := newChanSource()
	r := NewRunner(src)
	sink := &recordingSink{}

	r.Start(context.Background(), "x", "y")
	st := waitOpened(t, src)

	st.frags <- "half a sentence"
	r.Apply(nextEvent(t, r), sink)

	st.errs <- &ServiceError{Message: "overloaded"}
	ev := nextEvent(t, r)
	if ev.Kind != Failed {
		t.Fatalf("event kind = %s, want failed", ev.Kind)
	}
	var se *ServiceError
	if !errors.As(ev.Err, &se) || se.Message != "overloaded" {
		t.Errorf("event error = %v", ev.Err)
	}
	if _, terminal := r.Apply(ev, sink); !terminal {
		t.Error("failed event did not end the session")
	}
	if len(sink.units) != 0 {
		t.Errorf("units after error = %q, want none", sink.units)
	}
}

func TestRunner_OpenFailure(t *testing.T) {
	r := NewRunner(failingSource{err: errors.New("connection refused")})
	r.Start(context.Background(), "x", "y")

	ev := nextEvent(t, r)
	if ev.Kind != Failed || ev.Err == nil {
		t.Fatalf("event = %+v, want failed", ev)
	}
	if _, terminal := r.Apply(ev, &recordingSink{}); !terminal {
		t.Error("open failure did not end the session")
	}
}

func TestRunner_NewSessionInvalidatesOld(t *testing.T) {
	src := newChanSource()
	r := NewRunner(src)
	sink := &recordingSink{}

	first := r.Start(context.Background(), "one", "s")
	oldStream := waitOpened(t, src)

	second := r.Start(context.Background(), "two", "s")
	waitOpened(t, src)

	if second.ID <= first.ID {
		t.Fatalf("tokens not monotonic: %d then %d", first.ID, second.ID)
	}
	if !oldStream.closed.Load() {
		t.Error("superseded stream was not closed")
	}

	stale := Event{Session: first.ID, Kind: Fragment, Text: "Stale words."}
	if applied, _ := r.Apply(stale, sink); applied {
		t.Error("stale fragment was applied")
	}
	staleEnd := Event{Session: first.ID, Kind: Complete}
	if applied, _ := r.Apply(staleEnd, sink); applied {
		t.Error("stale completion was applied")
	}
	if len(sink.units) != 0 || r.Current() != second.ID {
		t.Errorf("state mutated by stale events: units=%q current=%d", sink.units, r.Current())
	}
}

func TestRunner_CancelClosesTransport(t *testing.T) {
	src := newChanSource()
	r := NewRunner(src)

	r.Start(context.Background(), "x", "y")
	st := waitOpened(t, src)

	r.Cancel()
	if r.Live() {
		t.Error("runner live after Cancel")
	}
	if !st.closed.Load() {
		t.Error("stream not closed on Cancel")
	}

	select {
	case ev := <-r.Events():
		if applied, _ := r.Apply(ev, &recordingSink{}); applied {
			t.Errorf("event %+v applied after cancel", ev)
		}
	case <-time.After(50 * time.Millisecond):
	}

	r.Cancel()
}
