package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/leonardotrapani/copresenter/internal/continuation"
	"github.com/leonardotrapani/copresenter/internal/gesture"
	"github.com/leonardotrapani/copresenter/internal/notify"
	"github.com/leonardotrapani/copresenter/internal/playback"
	"github.com/leonardotrapani/copresenter/internal/transcript"
)

type State string

const (
	Listening   State = "listening"
	Generating  State = "generating"
	Playing     State = "playing"
	Interrupted State = "interrupted"
)

const DefaultTick = 100 * time.Millisecond

var (
	ErrBusy     = errors.New("a session is live or audio is queued")
	ErrCooldown = errors.New("cooldown has not elapsed")
	ErrEmpty    = errors.New("transcript is empty")
	ErrStopped  = errors.New("orchestrator is not running")
)

// Status is a point-in-time view of the orchestrator, safe to share.
type Status struct {
	State             State  `json:"state"`
	Session           uint64 `json:"session"`
	Queued            int    `json:"queued"`
	Transcript        string `json:"transcript"`
	Continuation      string `json:"continuation"`
	Gesture           string `json:"gesture"`
	Style             string `json:"style"`
	CooldownRemaining string `json:"cooldown_remaining"`
	Transcribing      bool   `json:"transcribing"`
}

type Deps struct {
	Source     continuation.Source
	Backend    playback.Backend
	Engine     transcript.Engine
	Retry      transcript.RetryPolicy
	Classifier gesture.Classifier
	Labels     gesture.Labels
	Cooldown   time.Duration
	Notifier   notify.Notifier

	// OnChange is called from the loop goroutine whenever the status changes.
	OnChange func(Status)
}

type Options struct {
	Tick  time.Duration
	Style string
	Now   func() time.Time
}

// Orchestrator is the hand-off state machine. Run owns every component; the
// exported methods post work onto the loop and wait for it.
type Orchestrator struct {
	opts       Options
	runner     *continuation.Runner
	queue      *playback.Queue
	ctrl       *transcript.Controller
	arbiter    *gesture.Arbiter
	classifier gesture.Classifier
	notifier   notify.Notifier
	onChange   func(Status)

	ctx     context.Context
	tasks   chan func()
	stopped chan struct{}
	running atomic.Bool

	state   State
	style   string
	spoken  strings.Builder
	gesture string

	status atomic.Pointer[Status]
}

func New(ctx context.Context, opts Options, deps Deps) *Orchestrator {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if strings.TrimSpace(opts.Style) == "" {
		opts.Style = continuation.DefaultStyle
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}

	o := &Orchestrator{
		opts:       opts,
		runner:     continuation.NewRunner(deps.Source),
		queue:      playback.NewQueue(ctx, deps.Backend),
		arbiter:    gesture.NewArbiter(deps.Labels, deps.Cooldown),
		classifier: deps.Classifier,
		notifier:   deps.Notifier,
		onChange:   deps.OnChange,
		ctx:        ctx,
		tasks:      make(chan func(), 16),
		stopped:    make(chan struct{}),
		state:      Listening,
		style:      opts.Style,
	}
	o.ctrl = transcript.NewController(ctx, deps.Engine, deps.Retry, loopScheduler{o}, deps.Notifier)
	o.status.Store(&Status{State: Listening, Style: o.style, CooldownRemaining: "0s"})
	return o
}

// Run drives the state machine until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return fmt.Errorf("orchestrator already running")
	}
	defer close(o.stopped)

	ticker := time.NewTicker(o.opts.Tick)
	defer ticker.Stop()

	log.Printf("Orchestrator: listening (tick=%v, source=%s, speech=%s)", o.opts.Tick, o.runner.Source().Name(), o.queue.Backend())
	o.ctrl.Enable()
	o.publish()

	for {
		select {
		case <-ctx.Done():
			o.shutdown()
			return nil

		case now := <-ticker.C:
			o.tick(now)

		case ev := <-o.runner.Events():
			o.onSessionEvent(ev)

		case c := <-o.queue.Done():
			o.onCompletion(c)

		case ev := <-o.ctrl.Events():
			o.ctrl.Handle(ev)

		case fn := <-o.tasks:
			fn()
		}
		o.publish()
	}
}

// Snapshot returns the last published status.
func (o *Orchestrator) Snapshot() Status {
	return *o.status.Load()
}

// Trigger asks for a session start exactly as a start gesture would.
func (o *Orchestrator) Trigger(ctx context.Context) error {
	var err error
	if e := o.do(ctx, func() { err = o.beginGeneration(o.opts.Now(), "manual") }); e != nil {
		return e
	}
	return err
}

// Interrupt collapses everything back to listening, like an open palm.
func (o *Orchestrator) Interrupt(ctx context.Context) error {
	return o.do(ctx, func() { o.interrupt("manual") })
}

// SetStyle changes the style used by future sessions. Empty restores the default.
func (o *Orchestrator) SetStyle(ctx context.Context, style string) (string, error) {
	style = strings.TrimSpace(style)
	if style == "" {
		style = continuation.DefaultStyle
	}
	err := o.do(ctx, func() {
		if style != o.style {
			log.Printf("Orchestrator: style %q -> %q", o.style, style)
		}
		o.style = style
	})
	return style, err
}

func (o *Orchestrator) SetCooldown(ctx context.Context, d time.Duration) error {
	return o.do(ctx, func() { o.arbiter.SetCooldown(d) })
}

// SetSource swaps the continuation source for future sessions.
func (o *Orchestrator) SetSource(source continuation.Source) {
	o.runner.SetSource(source)
}

func (o *Orchestrator) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	task := func() {
		fn()
		o.publish()
		close(done)
	}
	select {
	case o.tasks <- task:
	case <-o.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-o.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// busy reports whether anything is audible or about to be.
func (o *Orchestrator) busy() bool {
	return o.runner.Live() || o.queue.State() != playback.Idle
}

func (o *Orchestrator) tick(now time.Time) {
	o.gesture = ""
	if o.classifier != nil {
		if frame, ok := o.classifier.Sample(now); ok {
			o.gesture = describe(frame)
			switch o.arbiter.Evaluate(frame, o.busy()) {
			case gesture.Start:
				if err := o.beginGeneration(now, "gesture"); err != nil && !errors.Is(err, ErrEmpty) {
					log.Printf("Orchestrator: wave ignored: %v", err)
				}
			case gesture.Interrupt:
				o.interrupt("gesture")
			}
		}
	}

	// recovers from a missed completion
	if !o.busy() {
		if o.state != Listening {
			o.transition(Listening, "nothing audible")
		}
		if !o.ctrl.Enabled() && !o.ctrl.Denied() {
			o.ctrl.Enable()
		} else {
			o.ctrl.Heal()
		}
	}
}

func (o *Orchestrator) beginGeneration(now time.Time, origin string) error {
	if o.busy() {
		return ErrBusy
	}
	if !o.arbiter.CooldownElapsed(now) {
		return ErrCooldown
	}
	if o.ctrl.Buffer().Empty() {
		return ErrEmpty
	}

	text := o.ctrl.Take()
	o.ctrl.Disable()
	o.spoken.Reset()
	o.arbiter.MarkStarted(now)

	s := o.runner.Start(o.ctx, text, o.style)
	log.Printf("Orchestrator: session %d started by %s", s.ID, origin)
	o.transition(Generating, origin)
	o.notifier.SessionStarted(o.style)
	return nil
}

func (o *Orchestrator) onSessionEvent(ev continuation.Event) {
	applied, terminal := o.runner.Apply(ev, speaker{o})
	if !applied || !terminal {
		return
	}
	if ev.Kind == continuation.Failed {
		o.notifier.Error(fmt.Sprintf("Continuation failed: %v", ev.Err))
	}
	if o.queue.State() == playback.Idle {
		o.toListening("session ended")
		return
	}
	o.transition(Playing, "session ended")
}

func (o *Orchestrator) onCompletion(c playback.Completion) {
	if drained := o.queue.HandleCompletion(c); drained && !o.runner.Live() {
		o.toListening("queue drained")
	}
}

func (o *Orchestrator) interrupt(origin string) {
	active := o.busy()

	o.runner.Cancel()
	o.queue.CancelAll()
	o.ctrl.Clear()
	o.spoken.Reset()
	o.arbiter.Reset()

	if active {
		o.transition(Interrupted, origin)
		o.notifier.Interrupted()
	}
	o.toListening("interrupt")
}

func (o *Orchestrator) toListening(reason string) {
	if o.state != Listening {
		o.transition(Listening, reason)
	}
	o.ctrl.Enable()
}

func (o *Orchestrator) transition(to State, reason string) {
	if o.state == to {
		return
	}
	log.Printf("Orchestrator: %s -> %s (%s)", o.state, to, reason)
	o.state = to
}

func (o *Orchestrator) shutdown() {
	log.Printf("Orchestrator: shutting down")
	o.runner.Cancel()
	o.queue.CancelAll()
	o.queue.Close()
	o.ctrl.Disable()
}

func (o *Orchestrator) publish() {
	now := o.opts.Now()
	s := Status{
		State:             o.state,
		Session:           o.runner.Current(),
		Queued:            o.queue.Len(),
		Transcript:        o.ctrl.Buffer().Text(),
		Continuation:      strings.TrimSpace(o.spoken.String()),
		Gesture:           o.gesture,
		Style:             o.style,
		CooldownRemaining: roundUp(o.arbiter.CooldownRemaining(now)).String(),
		Transcribing:      o.ctrl.Running(),
	}
	if prev := o.status.Load(); prev != nil && *prev == s {
		return
	}
	o.status.Store(&s)
	if o.onChange != nil {
		o.onChange(s)
	}
}

// speaker routes session units to the display and the playback queue.
type speaker struct{ o *Orchestrator }

func (s speaker) Enqueue(text string) {
	s.o.spoken.WriteString(text)
	s.o.queue.Enqueue(text)
}

// loopScheduler runs callbacks on the loop goroutine.
type loopScheduler struct{ o *Orchestrator }

func (s loopScheduler) After(d time.Duration, fn func()) {
	time.AfterFunc(d, func() {
		select {
		case s.o.tasks <- fn:
		case <-s.o.stopped:
		}
	})
}

func describe(f gesture.Frame) string {
	switch {
	case f.Primary == "" && f.Secondary == "":
		return ""
	case f.Secondary == "":
		return f.Primary
	default:
		return f.Primary + "/" + f.Secondary
	}
}

func roundUp(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(d.Seconds())) * time.Second
}
