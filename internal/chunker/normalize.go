package chunker

import (
	"regexp"
	"strings"
)

var (
	horizontalSpace = regexp.MustCompile(`[\p{Z}\t\v\f\r\x{85}\x{FEFF}]+`)
	paddedNewline   = regexp.MustCompile(` ?\n ?`)
	blankLineRun    = regexp.MustCompile(`\n{3,}`)
	newlineRun      = regexp.MustCompile(`\n+`)
)

// Normalize unifies line endings, collapses horizontal whitespace to single
// spaces, strips spaces around line breaks and caps blank lines at one.
// Line breaks survive so paragraphs can still be told apart.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = horizontalSpace.ReplaceAllString(text, " ")
	text = paddedNewline.ReplaceAllString(text, "\n")
	text = blankLineRun.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// paragraphs splits normalized text on one or more newlines, dropping empties.
func paragraphs(text string) []string {
	parts := newlineRun.Split(text, -1)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
