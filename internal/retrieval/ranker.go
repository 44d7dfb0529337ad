// Package retrieval selects the document chunks most likely to answer a query
// using lexical overlap. It makes no external calls and keeps no state.
package retrieval

import (
	"cmp"
	"math"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/cloudflare/ahocorasick"

	"github.com/arturoeanton/go-study-assistant/internal/domain"
)

// DefaultMaxChunks is the number of chunks handed to the model per query.
const DefaultMaxChunks = 3

// Scoring weights. These are a versioned heuristic: any change alters ranking.
const (
	exactMatchWeight   = 3.0
	partialMatchWeight = 1.5
	coverageBonus      = 2.0
	positionDecay      = 0.1
	minTermLength      = 3
)

// Terms lower-cases query, splits it on whitespace and drops short words and
// stop words. Duplicates are kept so repeated words weigh more.
func Terms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) < minTermLength || IsStopWord(f) {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}

// compiledQuery is built once per call and shared by every chunk.
type compiledQuery struct {
	terms   []string
	exact   []*regexp.Regexp
	present []int // index into the matcher dictionary for each term
	matcher *ahocorasick.Matcher
}

func compile(query string) *compiledQuery {
	terms := Terms(query)
	if len(terms) == 0 {
		return nil
	}

	q := &compiledQuery{
		terms:   terms,
		exact:   make([]*regexp.Regexp, len(terms)),
		present: make([]int, len(terms)),
	}
	dict := make([]string, 0, len(terms))
	seen := make(map[string]int, len(terms))
	for i, t := range terms {
		q.exact[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(t) + `\b`)
		idx, ok := seen[t]
		if !ok {
			idx = len(dict)
			seen[t] = idx
			dict = append(dict, t)
		}
		q.present[i] = idx
	}
	q.matcher = ahocorasick.NewStringMatcher(dict)
	return q
}

// score computes the relevance of the chunk at position i of n.
func (q *compiledQuery) score(ch domain.Chunk, i, n int) domain.ScoredChunk {
	content := strings.ToLower(ch.Content)

	raw := 0.0
	for k, term := range q.terms {
		exact := len(q.exact[k].FindAllStringIndex(content, -1))
		total := strings.Count(content, term)
		raw += float64(exact) * exactMatchWeight
		raw += float64(max(0, total-exact)) * partialMatchWeight
	}

	hits := q.matcher.MatchThreadSafe([]byte(content))
	matched := 0
	for _, idx := range q.present {
		if slices.Contains(hits, idx) {
			matched++
		}
	}
	if matched > 1 {
		raw += float64(matched) * coverageBonus
	}

	words := max(1, len(strings.Fields(content)))
	normalized := raw / math.Sqrt(float64(words))
	weight := 1 - (float64(i)/float64(n))*positionDecay

	return domain.ScoredChunk{
		Chunk:        ch,
		Score:        normalized * weight,
		RawScore:     raw,
		MatchedWords: matched,
	}
}

// Rank scores every chunk against query and returns those with a positive
// score, best first. Ties prefer more matched words, then lower ChunkIndex.
func Rank(chunks []domain.Chunk, query string) []domain.ScoredChunk {
	if len(chunks) == 0 || query == "" {
		return []domain.ScoredChunk{}
	}
	q := compile(query)
	if q == nil {
		return []domain.ScoredChunk{}
	}

	scored := make([]domain.ScoredChunk, 0, len(chunks))
	for i, ch := range chunks {
		sc := q.score(ch, i, len(chunks))
		if sc.Score > 0 {
			scored = append(scored, sc)
		}
	}

	slices.SortStableFunc(scored, func(a, b domain.ScoredChunk) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(b.MatchedWords, a.MatchedWords); c != 0 {
			return c
		}
		return cmp.Compare(a.ChunkIndex, b.ChunkIndex)
	})
	return scored
}

// FindRelevant returns at most maxChunks chunks relevant to query, without
// scoring metadata.
func FindRelevant(chunks []domain.Chunk, query string, maxChunks int) []domain.Chunk {
	ranked := Rank(chunks, query)
	if maxChunks < 0 {
		maxChunks = 0
	}
	ranked = ranked[:min(maxChunks, len(ranked))]

	out := make([]domain.Chunk, len(ranked))
	for i, sc := range ranked {
		out[i] = sc.Chunk
	}
	return out
}
