package gesture

import (
	"log"
	"time"
)

type Decision int

const (
	None Decision = iota
	Start
	Interrupt
)

func (d Decision) String() string {
	switch d {
	case Start:
		return "start"
	case Interrupt:
		return "interrupt"
	default:
		return "none"
	}
}

const (
	DefaultNeutralLabel   = "None"
	DefaultWaveLabel      = "handwave"
	DefaultInterruptLabel = "Open_Palm"
	DefaultCooldown       = 5 * time.Second
)

// Labels names the classifier categories the arbiter reacts to.
type Labels struct {
	Neutral   string // primary model: no hand shape
	Wave      string // secondary model: waving
	Interrupt string // primary model: open palm
}

func DefaultLabels() Labels {
	return Labels{
		Neutral:   DefaultNeutralLabel,
		Wave:      DefaultWaveLabel,
		Interrupt: DefaultInterruptLabel,
	}
}

// Frame is the top category of each classifier model for one sampled frame.
type Frame struct {
	Primary   string
	Secondary string
	At        time.Time
}

// Arbiter turns sampled frames into start and interrupt decisions.
//
// An open palm always interrupts. A wave with no hand shape starts a session
// only when nothing is busy and the cooldown since the last start has passed.
// The cooldown is measured from MarkStarted, so holding the gesture does not
// extend it.
type Arbiter struct {
	labels   Labels
	cooldown time.Duration

	lastStart time.Time
	started   bool
}

func NewArbiter(labels Labels, cooldown time.Duration) *Arbiter {
	def := DefaultLabels()
	if labels.Neutral == "" {
		labels.Neutral = def.Neutral
	}
	if labels.Wave == "" {
		labels.Wave = def.Wave
	}
	if labels.Interrupt == "" {
		labels.Interrupt = def.Interrupt
	}
	if cooldown < 0 {
		cooldown = 0
	}
	return &Arbiter{labels: labels, cooldown: cooldown}
}

// Evaluate classifies one frame. busy reports whether a session is live or
// audio is queued.
func (a *Arbiter) Evaluate(f Frame, busy bool) Decision {
	if f.Primary == a.labels.Interrupt {
		return Interrupt
	}
	if f.Primary != a.labels.Neutral || f.Secondary != a.labels.Wave {
		return None
	}
	if busy {
		return None
	}
	if !a.CooldownElapsed(f.At) {
		return None
	}
	return Start
}

// CooldownElapsed reports whether a start is allowed at now.
func (a *Arbiter) CooldownElapsed(now time.Time) bool {
	return !a.started || now.Sub(a.lastStart) >= a.cooldown
}

// CooldownRemaining is zero once a start is allowed.
func (a *Arbiter) CooldownRemaining(now time.Time) time.Duration {
	if a.CooldownElapsed(now) {
		return 0
	}
	return a.cooldown - now.Sub(a.lastStart)
}

// MarkStarted records that a session actually began at at.
func (a *Arbiter) MarkStarted(at time.Time) {
	a.lastStart = at
	a.started = true
}

// Reset forgets the last start so the next wave is accepted immediately.
func (a *Arbiter) Reset() {
	a.started = false
	a.lastStart = time.Time{}
}

func (a *Arbiter) SetCooldown(d time.Duration) {
	if d < 0 {
		d = 0
	}
	if d != a.cooldown {
		log.Printf("Gesture: cooldown %v -> %v", a.cooldown, d)
	}
	a.cooldown = d
}

func (a *Arbiter) Labels() Labels {
	return a.labels
}
