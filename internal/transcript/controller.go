package transcript

import (
	"context"
	"log"
	"time"

	"github.com/leonardotrapani/copresenter/internal/notify"
)

// Scheduler runs fn after d on the owner's goroutine.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// Controller switches the speech engine on while the room is quiet and off
// while the co-presenter speaks, and accumulates the transcript.
//
// All methods are called from the orchestrator goroutine.
type Controller struct {
	ctx      context.Context
	engine   Engine
	retry    RetryPolicy
	sched    Scheduler
	notifier notify.Notifier

	buf     Buffer
	enabled bool // wanted on
	running bool // engine started and not ended
	retries int
	pending bool // a retry is scheduled
	denied  bool
}

func NewController(ctx context.Context, engine Engine, retry RetryPolicy, sched Scheduler, n notify.Notifier) *Controller {
	if n == nil {
		n = notify.Nop{}
	}
	return &Controller{
		ctx:      ctx,
		engine:   engine,
		retry:    retry,
		sched:    sched,
		notifier: n,
	}
}

func (c *Controller) Events() <-chan Event {
	return c.engine.Events()
}

func (c *Controller) Enabled() bool { return c.enabled }
func (c *Controller) Running() bool { return c.running }
func (c *Controller) Denied() bool  { return c.denied }
func (c *Controller) Buffer() Buffer {
	return c.buf
}

func (c *Controller) Enable() {
	if c.denied {
		return
	}
	if !c.enabled {
		log.Printf("Transcription: enabled")
	}
	c.enabled = true
	if !c.running {
		c.start()
	}
}

func (c *Controller) Disable() {
	if c.enabled {
		log.Printf("Transcription: disabled")
	}
	c.enabled = false
	c.buf.Interim = ""
	if !c.running {
		return
	}
	c.running = false
	if err := c.engine.Stop(); err != nil {
		log.Printf("Transcription: stop %s: %v", c.engine.Name(), err)
	}
}

// Take returns the transcript for a new session and clears the buffer, so
// speech overlapping the generation starts a fresh transcript.
func (c *Controller) Take() string {
	text := c.buf.Text()
	c.buf = Buffer{}
	return text
}

func (c *Controller) Clear() {
	c.buf = Buffer{}
}

func (c *Controller) Handle(ev Event) {
	switch ev.Kind {
	case ResultEvent:
		c.OnResult(ev.Results)
	case ErrorEvent:
		c.OnError(ev.Reason)
	case EndEvent:
		c.OnEnd()
	}
}

func (c *Controller) OnResult(results []Result) {
	if !c.enabled {
		log.Printf("Transcription: skipping %d result(s) while disabled", len(results))
		return
	}
	c.retries = 0
	c.buf.apply(results)
}

func (c *Controller) OnError(reason string) {
	switch {
	case IsPermission(reason):
		if !c.denied {
			log.Printf("Transcription: %s permission denied (%s), giving up", c.engine.Name(), reason)
			c.notifier.Error("Speech input unavailable: " + reason)
		}
		c.denied = true
		c.running = false

	case c.retry.ShouldRetry(reason, c.retries) && !c.pending:
		c.retries++
		c.pending = true
		log.Printf("Transcription: %s error %q, restarting in %v (attempt %d/%d)",
			c.engine.Name(), reason, c.retry.Delay, c.retries, c.retry.Attempts)
		c.sched.After(c.retry.Delay, c.restart)

	default:
		log.Printf("Transcription: %s error %q", c.engine.Name(), reason)
	}
}

// OnEnd restarts the engine when it stopped on its own while wanted on.
func (c *Controller) OnEnd() {
	if !c.running {
		return
	}
	c.running = false
	if c.enabled && !c.denied && !c.pending {
		log.Printf("Transcription: %s ended, restarting", c.engine.Name())
		c.start()
	}
}

// Heal starts the engine when it is wanted on but neither running nor
// waiting on a retry, e.g. after a failed start used up its retries.
// Only a permission error is reported; other failures wait for the next call.
func (c *Controller) Heal() {
	if !c.enabled || c.running || c.pending || c.denied {
		return
	}
	if err := c.engine.Start(c.ctx); err != nil {
		if reason := ReasonOf(err); IsPermission(reason) {
			c.OnError(reason)
		}
		return
	}
	log.Printf("Transcription: %s recovered", c.engine.Name())
	c.retries = 0
	c.running = true
}

func (c *Controller) restart() {
	c.pending = false
	if !c.enabled || c.denied {
		return
	}
	if c.running {
		c.running = false
		if err := c.engine.Stop(); err != nil {
			log.Printf("Transcription: stop %s: %v", c.engine.Name(), err)
		}
	}
	c.start()
}

func (c *Controller) start() {
	if err := c.engine.Start(c.ctx); err != nil {
		log.Printf("Transcription: start %s: %v", c.engine.Name(), err)
		c.OnError(ReasonOf(err))
		return
	}
	c.running = true
}
