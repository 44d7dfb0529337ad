package generate

import (
	"strings"

	"github.com/arturoeanton/go-study-assistant/internal/domain"
)

// Prompt windows, in characters of document text.
const (
	flashcardTextLimit = 15000
	quizTextLimit      = 15000
	summaryTextLimit   = 20000
)

// Truncate returns at most limit runes of s.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

// blocks splits a model response on "---" separators and drops empty blocks.
func blocks(response string) []string {
	parts := strings.Split(response, "---")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// field reports the trimmed value of line if it starts with prefix.
func field(line, prefix string) (string, bool) {
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	return strings.TrimSpace(line[len(prefix):]), true
}

func parseDifficulty(v string) (string, bool) {
	switch d := strings.ToLower(v); d {
	case domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard:
		return d, true
	}
	return "", false
}

func countOrDefault(count, def int) int {
	if count <= 0 {
		return def
	}
	return count
}
