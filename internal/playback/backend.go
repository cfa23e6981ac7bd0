package playback

import (
	"context"
	"errors"
	"fmt"
)

var ErrEmptyUnit = errors.New("empty speakable unit")

// Kind tags a clip with the backend that produced it.
type Kind string

const (
	KindClip  Kind = "clip"
	KindLocal Kind = "local"
)

// Clip is either a fetched audio payload or a local synthesis request.
type Clip struct {
	Kind  Kind
	Text  string
	Audio []byte // KindClip only

	Rate  float64 // KindLocal only
	Pitch float64 // KindLocal only
}

// Backend turns a speakable unit into sound.
// Prepare may run ahead of playback; Play must block until the clip has finished
// or ctx is cancelled, and must stop audio output when ctx is cancelled.
type Backend interface {
	Name() string
	Prepare(ctx context.Context, text string) (Clip, error)
	Play(ctx context.Context, clip Clip) error
}

// StatusError is returned when a synthesis service answers with a non-2xx status.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tts http status=%d body=%s", e.Status, e.Body)
}
