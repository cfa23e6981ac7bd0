package segment

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Boundaries are the clause-ending marks a speakable unit may end on.
const Boundaries = ".!?;:,-"

// Segmenter turns an incremental stream of text fragments into speakable units.
// A unit is the shortest prefix of the pending text that contains a letter and
// ends on a boundary mark, which stays in the unit. Further marks in a run
// ("?!", "...") lead the next unit, so the cut never depends on text that has
// not arrived yet. Text that has
// not reached a boundary yet is kept as the remainder for the next Feed.
//
// A Segmenter belongs to one generation session and is not safe for concurrent use.
type Segmenter struct {
	remainder strings.Builder
}

func New() *Segmenter {
	return &Segmenter{}
}

// Feed appends fragment to the remainder and returns every complete unit, in order.
func (s *Segmenter) Feed(fragment string) []string {
	if fragment == "" {
		return nil
	}
	s.remainder.WriteString(fragment)

	var units []string
	buf := s.remainder.String()
	for {
		cut := firstUnitCut(buf)
		if cut <= 0 {
			break
		}
		units = append(units, buf[:cut])
		buf = buf[cut:]
	}

	s.remainder.Reset()
	s.remainder.WriteString(buf)
	return units
}

// Flush returns the remainder verbatim and resets the segmenter.
// ok is false when nothing was pending.
func (s *Segmenter) Flush() (unit string, ok bool) {
	unit = s.remainder.String()
	s.remainder.Reset()
	return unit, unit != ""
}

// Remainder reports the text received since the last emitted unit.
func (s *Segmenter) Remainder() string {
	return s.remainder.String()
}

// Reset drops the remainder without emitting it.
func (s *Segmenter) Reset() {
	s.remainder.Reset()
}

// firstUnitCut returns the byte offset just past the first unit in buf, or 0.
func firstUnitCut(buf string) int {
	seenLetter := false
	for i := 0; i < len(buf); {
		r, size := utf8.DecodeRuneInString(buf[i:])
		switch {
		case unicode.IsLetter(r):
			seenLetter = true
		case seenLetter && isBoundary(r):
			return i + size
		}
		i += size
	}
	return 0
}

func isBoundary(r rune) bool {
	return strings.ContainsRune(Boundaries, r)
}
