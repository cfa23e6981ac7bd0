package transcript

import "strings"

// Buffer is the running transcript: accumulated final text plus the interim
// text of the utterance in progress.
type Buffer struct {
	Interim string
	Final   string
}

// Text is what a generation session receives: the final transcript, or the
// interim text while nothing is final yet.
func (b Buffer) Text() string {
	if final := strings.TrimSpace(b.Final); final != "" {
		return final
	}
	return strings.TrimSpace(b.Interim)
}

func (b Buffer) Empty() bool {
	return b.Text() == ""
}

// Result is one recognition alternative reported by an engine.
type Result struct {
	Text    string `json:"transcript"`
	IsFinal bool   `json:"isFinal"`
}

// apply folds one engine result event into b. Final text accumulates with a
// trailing space; interim text is rebuilt from the event.
func (b *Buffer) apply(results []Result) {
	var interim strings.Builder
	for _, r := range results {
		if r.IsFinal {
			b.Final += r.Text + " "
			continue
		}
		interim.WriteString(r.Text)
	}
	b.Interim = interim.String()
}
