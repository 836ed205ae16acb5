package extraction

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalized is recognized text prepared for pattern matching.
type Normalized struct {
	// Text holds every non-blank line joined by single spaces.
	Text string
	// Lines keeps the line structure for statement segmentation.
	// Whitespace inside a line is collapsed and a run of blank lines
	// becomes a single "" separator.
	Lines []string
}

// Normalize cleans raw recognized text. It never fails; empty input yields
// an empty Normalized.
func Normalize(raw string) Normalized {
	s := norm.NFKC.String(raw)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, s)

	var (
		lines []string
		flat  []string
	)
	for _, l := range strings.Split(s, "\n") {
		l = strings.Join(strings.Fields(l), " ")
		if l == "" {
			if len(lines) > 0 && lines[len(lines)-1] != "" {
				lines = append(lines, "")
			}
			continue
		}
		lines = append(lines, l)
		flat = append(flat, l)
	}
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	return Normalized{
		Text:  strings.Join(flat, " "),
		Lines: lines,
	}
}

// block builds a Normalized view of an already normalized run of lines.
func block(lines []string) Normalized {
	return Normalized{
		Text:  strings.Join(lines, " "),
		Lines: lines,
	}
}
