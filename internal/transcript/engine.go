package transcript

import "context"

type EventKind int

const (
	ResultEvent EventKind = iota
	ErrorEvent
	EndEvent
)

func (k EventKind) String() string {
	switch k {
	case ResultEvent:
		return "result"
	case ErrorEvent:
		return "error"
	case EndEvent:
		return "end"
	default:
		return "unknown"
	}
}

// Event is a callback from a speech engine, delivered on its Events channel.
type Event struct {
	Kind    EventKind
	Results []Result
	Reason  string
}

// Engine is a speech-to-text engine that can be switched on and off.
// Stop must not emit an EndEvent; EndEvent reports that the engine stopped
// on its own.
type Engine interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Events() <-chan Event
}
