package continuation

import (
	"fmt"
	"strings"
)

const DefaultStyle = "funny and whimsical"

// BuildPrompt asks the model for a direct continuation of transcription in the
// given style, without stage directions and without repeating the fragment.
func BuildPrompt(transcription, style string) string {
	style = strings.TrimSpace(style)
	if style == "" {
		style = DefaultStyle
	}

	var b strings.Builder
	b.WriteString("You are a helpful co-presenter, and are jumping in to continue a speech once the current speaker starts handwaving.\n")
	fmt.Fprintf(&b, "Please give a direct continuation of this fragment of a speech in a %s style otherwise continuous with the previous speaker.\n", style)
	fmt.Fprintf(&b, "DO NOT include any stage directions, commentary, or preamble, and exclude the fragment itself: %q", strings.TrimSpace(transcription))
	return b.String()
}
