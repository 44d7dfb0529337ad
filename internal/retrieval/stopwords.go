package retrieval

// stopWords are function words dropped from queries before matching.
// Changing this set changes ranking.
var stopWords = map[string]struct{}{
	"the": {}, "is": {}, "at": {}, "which": {}, "on": {}, "a": {}, "an": {},
	"and": {}, "or": {}, "but": {}, "in": {}, "with": {}, "to": {}, "for": {},
	"of": {}, "as": {}, "by": {}, "this": {}, "that": {}, "it": {},
	"what": {}, "where": {}, "when": {}, "who": {}, "how": {}, "why": {},
	"are": {}, "was": {}, "were": {}, "be": {}, "been": {},
}

// IsStopWord reports whether w (lower-case) is ignored in queries.
func IsStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}
