package orchestrator

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/leonardotrapani/copresenter/internal/continuation"
	"github.com/leonardotrapani/copresenter/internal/gesture"
	"github.com/leonardotrapani/copresenter/internal/testutil"
	"github.com/leonardotrapani/copresenter/internal/transcript"
)

type harness struct {
	o       *Orchestrator
	source  *testutil.MockSource
	backend *testutil.MockBackend
	engine  *testutil.MockEngine
	feed    *gesture.Feed
	cancel  context.CancelFunc
	done    chan struct{}

	mu       sync.Mutex
	statuses []Status
}

func newHarness(t *testing.T, backend *testutil.MockBackend, cooldown time.Duration) *harness {
	t.Helper()
	h := &harness{
		source:  testutil.NewMockSource(),
		backend: backend,
		engine:  testutil.NewMockEngine(),
		feed:    gesture.NewFeed(time.Second),
		done:    make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.o = New(ctx, Options{Tick: 5 * time.Millisecond}, Deps{
		Source:     h.source,
		Backend:    backend,
		Engine:     h.engine,
		Retry:      transcript.DefaultRetryPolicy(),
		Classifier: h.feed,
		Cooldown:   cooldown,
		OnChange: func(s Status) {
			h.mu.Lock()
			h.statuses = append(h.statuses, s)
			h.mu.Unlock()
		},
	})

	go func() {
		h.o.Run(ctx)
		close(h.done)
	}()
	t.Cleanup(func() {
		cancel()
		<-h.done
	})

	testutil.WaitForCondition(t, h.engine.Running, time.Second)
	return h
}

// say feeds a final transcript and waits for the orchestrator to see it.
func (h *harness) say(t *testing.T, text string) {
	t.Helper()
	h.engine.Say(text)
	testutil.WaitForCondition(t, func() bool { return h.o.Snapshot().Transcript != "" }, time.Second)
}

// sawState reports whether OnChange ever published state.
func (h *harness) sawState(state State) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.statuses {
		if s.State == state {
			return true
		}
	}
	return false
}

func (h *harness) waitState(t *testing.T, want State) {
	t.Helper()
	testutil.WaitForCondition(t, func() bool { return h.o.Snapshot().State == want }, 2*time.Second)
}

func TestOrchestrator_HandOffAndDrain(t *testing.T) {
	h := newHarness(t, testutil.NewGatedBackend(), time.Minute)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	h.say(t, "and that is why we")
	if err := h.o.Trigger(ctx); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	stream := h.source.NextStream(t)

	req := h.source.Requests()[0]
	if req != (continuation.Request{Transcription: "and that is why we", Style: continuation.DefaultStyle}) {
		t.Errorf("request = %+v", req)
	}
	if h.o.Snapshot().Transcript != "" {
		t.Error("transcript should be cleared when the session starts")
	}
	if h.engine.Running() {
		t.Error("transcription should be off while generating")
	}

	stream.Send("Hello wor")
	stream.Send("ld. How are")
	stream.Send(" you?")
	stream.Finish(nil)

	h.waitState(t, Playing)
	testutil.WaitForCondition(t, func() bool { return len(h.backend.Started()) == 1 }, time.Second)

	// transcription stays off while audio is queued, across many ticks
	time.Sleep(30 * time.Millisecond)
	if h.engine.Starts() != 1 {
		t.Fatalf("engine restarted while audio was queued, starts = %d", h.engine.Starts())
	}

	h.backend.Release(t)
	h.backend.Release(t)
	h.waitState(t, Listening)

	if got := h.backend.Played(); !reflect.DeepEqual(got, []string{"Hello world.", " How are you?"}) {
		t.Errorf("played = %q", got)
	}
	testutil.WaitForCondition(t, h.engine.Running, time.Second)
	if got := h.o.Snapshot().Continuation; got != "Hello world. How are you?" {
		t.Errorf("continuation = %q", got)
	}
	if !h.sawState(Generating) || !h.sawState(Playing) {
		t.Error("OnChange missed a state")
	}
}

func TestOrchestrator_InterruptWithQueuedUnits(t *testing.T) {
	h := newHarness(t, testutil.NewGatedBackend(), time.Minute)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	h.say(t, "so")
	if err := h.o.Trigger(ctx); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	stream := h.source.NextStream(t)
	stream.Send("One. Two. Three. And")

	testutil.WaitForCondition(t, func() bool { return h.o.Snapshot().Queued == 3 }, time.Second)
	if s := h.o.Snapshot(); s.State != Generating {
		t.Fatalf("state = %s, want generating", s.State)
	}

	h.feed.Push(gesture.Frame{Primary: gesture.DefaultInterruptLabel})
	h.waitState(t, Listening)
	h.feed.Clear()

	s := h.o.Snapshot()
	if s.Queued != 0 || s.Session != 0 || s.Continuation != "" {
		t.Errorf("after interrupt status = %+v", s)
	}
	if !stream.Closed() {
		t.Error("interrupt should close the continuation stream")
	}
	testutil.WaitForCondition(t, h.engine.Running, time.Second)

	time.Sleep(30 * time.Millisecond)
	if got := h.backend.Played(); len(got) != 0 {
		t.Errorf("audio finished after interrupt: %q", got)
	}
	if got := h.backend.Started(); len(got) > 1 {
		t.Errorf("queued units started after interrupt: %q", got)
	}

	// the interrupt forgets the cooldown
	h.say(t, "again")
	if err := h.o.Trigger(ctx); err != nil {
		t.Errorf("Trigger() after interrupt error = %v", err)
	}
}

func TestOrchestrator_WaveGesture(t *testing.T) {
	h := newHarness(t, testutil.NewMockBackend(), time.Minute)
	h.say(t, "over to you")

	h.feed.Push(gesture.Frame{Primary: gesture.DefaultNeutralLabel, Secondary: gesture.DefaultWaveLabel})
	stream := h.source.NextStream(t)
	h.waitState(t, Generating)

	// holding the wave does not open another session
	time.Sleep(30 * time.Millisecond)
	if n := len(h.source.Requests()); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}
	if got := h.o.Snapshot().Gesture; got != "None/handwave" {
		t.Errorf("gesture = %q", got)
	}
	h.feed.Clear()

	stream.Send("Sure.")
	stream.Finish(nil)
	h.waitState(t, Listening)

	if got := h.backend.Played(); !reflect.DeepEqual(got, []string{"Sure."}) {
		t.Errorf("played = %q", got)
	}
	if h.o.Snapshot().CooldownRemaining == "0s" {
		t.Error("cooldown should be running after a session")
	}
}

func TestOrchestrator_TriggerRules(t *testing.T) {
	h := newHarness(t, testutil.NewMockBackend(), time.Minute)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := h.o.Trigger(ctx); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty transcript: Trigger() = %v, want ErrEmpty", err)
	}
	if h.o.Snapshot().CooldownRemaining != "0s" {
		t.Error("a refused start must not start the cooldown")
	}

	h.say(t, "first")
	if err := h.o.Trigger(ctx); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	stream := h.source.NextStream(t)

	if err := h.o.Trigger(ctx); !errors.Is(err, ErrBusy) {
		t.Errorf("while generating: Trigger() = %v, want ErrBusy", err)
	}

	stream.Finish(nil)
	h.waitState(t, Listening)

	if err := h.o.Trigger(ctx); !errors.Is(err, ErrCooldown) {
		t.Errorf("within cooldown: Trigger() = %v, want ErrCooldown", err)
	}
}

func TestOrchestrator_FailedSessionSpeaksNothingPartial(t *testing.T) {
	h := newHarness(t, testutil.NewMockBackend(), 0)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	h.say(t, "tell them")
	if err := h.o.Trigger(ctx); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	stream := h.source.NextStream(t)
	stream.Send("Done. And then wh")
	stream.Finish(errors.New("upstream reset"))

	h.waitState(t, Listening)
	testutil.WaitForCondition(t, func() bool { return len(h.backend.Played()) == 1 }, time.Second)
	time.Sleep(20 * time.Millisecond)
	if got := h.backend.Played(); !reflect.DeepEqual(got, []string{"Done."}) {
		t.Errorf("played = %q", got)
	}
	testutil.WaitForCondition(t, h.engine.Running, time.Second)
}

func TestOrchestrator_OpenFailureReturnsToListening(t *testing.T) {
	h := newHarness(t, testutil.NewMockBackend(), 0)
	h.source.OpenError = errors.New("connection refused")
	ctx, cancel := testutil.TestContext()
	defer cancel()

	h.say(t, "hello")
	if err := h.o.Trigger(ctx); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	h.waitState(t, Listening)
	testutil.WaitForCondition(t, h.engine.Running, time.Second)
}

func TestOrchestrator_SetStyle(t *testing.T) {
	h := newHarness(t, testutil.NewMockBackend(), 0)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	got, err := h.o.SetStyle(ctx, "  film noir ")
	if err != nil || got != "film noir" {
		t.Fatalf("SetStyle() = %q, %v", got, err)
	}
	h.say(t, "it was raining")
	if err := h.o.Trigger(ctx); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	h.source.NextStream(t).Finish(nil)
	if style := h.source.Requests()[0].Style; style != "film noir" {
		t.Errorf("request style = %q", style)
	}

	if got, _ := h.o.SetStyle(ctx, ""); got != continuation.DefaultStyle {
		t.Errorf("SetStyle(\"\") = %q", got)
	}
}

func TestOrchestrator_RestartsTranscriptionAfterEnd(t *testing.T) {
	h := newHarness(t, testutil.NewMockBackend(), 0)

	// the engine stops on its own while idle
	h.engine.Emit(transcript.Event{Kind: transcript.EndEvent})
	testutil.WaitForCondition(t, func() bool { return h.engine.Starts() >= 2 }, time.Second)
	testutil.WaitForCondition(t, func() bool { return h.o.Snapshot().Transcribing }, time.Second)
}

func TestOrchestrator_TickRestartsFailedEngine(t *testing.T) {
	h := newHarness(t, testutil.NewMockBackend(), 0)
	h.engine.FailStarts(&transcript.EngineError{Reason: transcript.ReasonNetwork, Err: errors.New("offline")})

	// the engine drops and neither the restart nor its retry comes up
	starts := h.engine.Starts()
	h.engine.Emit(transcript.Event{Kind: transcript.EndEvent})
	testutil.WaitForCondition(t, func() bool { return h.engine.Starts() >= starts+2 }, 3*time.Second)
	if h.o.Snapshot().Transcribing {
		t.Fatal("Transcribing while every start fails")
	}

	h.engine.FailStarts(nil)
	testutil.WaitForCondition(t, h.engine.Running, time.Second)
	testutil.WaitForCondition(t, func() bool { return h.o.Snapshot().Transcribing }, time.Second)

	h.say(t, "and the network is back")
	if err := h.o.Trigger(context.Background()); err != nil {
		t.Errorf("Trigger() after recovery = %v", err)
	}
}

func TestOrchestrator_StoppedCallsFail(t *testing.T) {
	h := newHarness(t, testutil.NewMockBackend(), 0)
	h.cancel()
	<-h.done

	if err := h.o.Interrupt(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Interrupt() after stop = %v, want ErrStopped", err)
	}
	if err := h.o.Run(context.Background()); err == nil {
		t.Error("second Run() should fail")
	}
}

func TestRoundUp(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want time.Duration
	}{
		{0, 0},
		{-time.Second, 0},
		{time.Millisecond, time.Second},
		{4 * time.Second, 4 * time.Second},
		{4*time.Second + time.Nanosecond, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := roundUp(tt.in); got != tt.want {
			t.Errorf("roundUp(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
