package scanning

import (
	"strings"
)

// cleanTranscript strips the wrapping a model sometimes adds around a
// transcription.
func cleanTranscript(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```text")
	text = strings.TrimPrefix(text, "```plaintext")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if text == "" || strings.EqualFold(text, "NO_TEXT") {
		return "", ErrNoText
	}
	return text, nil
}
