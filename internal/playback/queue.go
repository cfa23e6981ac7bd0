package playback

import (
	"context"
	"log"
	"strings"
)

type State string

const (
	Idle    State = "idle"
	Playing State = "playing"
)

// Completion reports that the active unit finished, failed or was skipped.
type Completion struct {
	Epoch uint64
	Seq   uint64
	Text  string
	Err   error
}

type prepared struct {
	clip Clip
	err  error
}

type item struct {
	seq   uint64
	text  string
	ready chan prepared
}

// Queue plays speakable units one at a time in the order they were enqueued.
// Clips are prepared as soon as they are enqueued, but unit n+1 only starts
// once unit n has finished playing.
//
// Queue is owned by a single goroutine (the orchestrator loop): Enqueue,
// CancelAll and HandleCompletion must not be called concurrently. Playback
// goroutines report back through Done.
type Queue struct {
	backend Backend
	parent  context.Context
	done    chan Completion

	ctx    context.Context
	cancel context.CancelFunc
	epoch  uint64
	seq    uint64

	active  *item
	backlog []*item
}

func NewQueue(ctx context.Context, backend Backend) *Queue {
	q := &Queue{
		backend: backend,
		parent:  ctx,
		done:    make(chan Completion, 8),
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	return q
}

// Done delivers completions to be passed back into HandleCompletion.
func (q *Queue) Done() <-chan Completion {
	return q.done
}

func (q *Queue) State() State {
	if q.active == nil {
		return Idle
	}
	return Playing
}

// Len is the number of units playing or waiting.
func (q *Queue) Len() int {
	n := len(q.backlog)
	if q.active != nil {
		n++
	}
	return n
}

func (q *Queue) Backend() string {
	return q.backend.Name()
}

// Enqueue schedules text for playback. Blank units are dropped.
func (q *Queue) Enqueue(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	q.seq++
	it := &item{seq: q.seq, text: text, ready: make(chan prepared, 1)}
	go q.prepare(q.ctx, it)

	if q.active == nil {
		q.start(it)
		return
	}
	q.backlog = append(q.backlog, it)
}

// HandleCompletion advances the queue. It reports true when the queue has just
// drained. Completions from a cancelled epoch or for a unit that is not the
// active one are discarded.
func (q *Queue) HandleCompletion(c Completion) (drained bool) {
	if c.Epoch != q.epoch || q.active == nil || c.Seq != q.active.seq {
		return false
	}
	if c.Err != nil {
		log.Printf("playback: skipping unit %d %q: %v", c.Seq, c.Text, c.Err)
	}

	q.active = nil
	if len(q.backlog) > 0 {
		next := q.backlog[0]
		q.backlog[0] = nil
		q.backlog = q.backlog[1:]
		q.start(next)
		return false
	}
	return true
}

// CancelAll stops the active clip, drops the backlog and returns to Idle
// without waiting for in-flight fetches or players to exit.
func (q *Queue) CancelAll() {
	q.cancel()
	if q.Len() > 0 {
		log.Printf("playback: cancelled %d unit(s)", q.Len())
	}
	q.epoch++
	q.active = nil
	q.backlog = nil
	q.ctx, q.cancel = context.WithCancel(q.parent)
}

// Close cancels everything; the queue must not be used afterwards.
func (q *Queue) Close() {
	q.cancel()
}

func (q *Queue) prepare(ctx context.Context, it *item) {
	clip, err := q.backend.Prepare(ctx, it.text)
	it.ready <- prepared{clip: clip, err: err}
}

func (q *Queue) start(it *item) {
	q.active = it
	go q.play(q.ctx, q.epoch, it)
}

func (q *Queue) play(ctx context.Context, epoch uint64, it *item) {
	c := Completion{Epoch: epoch, Seq: it.seq, Text: it.text}

	select {
	case p := <-it.ready:
		if p.err != nil {
			c.Err = p.err
		} else {
			c.Err = q.backend.Play(ctx, p.clip)
		}
	case <-ctx.Done():
		return
	}

	if ctx.Err() != nil {
		return
	}
	select {
	case q.done <- c:
	case <-ctx.Done():
	}
}
