// Package disambig restricts an answer to the fund a question names.
package disambig

import (
	"unicode/utf8"

	"github.com/sells-group/fundqa/internal/embed"
	"github.com/sells-group/fundqa/internal/model"
)

// minScore is the fraction of a fund's significant words that must appear in
// the question. A candidate must score strictly above it.
const minScore = 0.5

// SignificantWords returns the lower-cased tokens of name longer than three
// characters.
func SignificantWords(name string) []string {
	var out []string
	for _, tok := range embed.Tokens(name) {
		if utf8.RuneCountInString(tok) > 3 {
			out = append(out, tok)
		}
	}
	return out
}

// Score is the fraction of name's significant words present among the
// question's tokens. Names without significant words score 0.
func Score(question, name string) float64 {
	words := SignificantWords(name)
	if len(words) == 0 {
		return 0
	}
	present := make(map[string]bool)
	for _, tok := range embed.Tokens(question) {
		present[tok] = true
	}
	var hits int
	for _, w := range words {
		if present[w] {
			hits++
		}
	}
	return float64(hits) / float64(len(words))
}

// Mentioned returns the fund in names the question refers to. Candidates are
// considered in order and a later one only wins with a strictly higher score.
func Mentioned(question string, names []string) (string, bool) {
	var (
		best      string
		bestScore float64
	)
	for _, n := range names {
		s := Score(question, n)
		if s > minScore && s > bestScore {
			best, bestScore = n, s
		}
	}
	return best, best != ""
}

// Narrow keeps only the chunks of the fund the question names. When no fund
// is named the chunks are returned unchanged with an empty fund.
func Narrow(question string, chunks []model.Chunk) ([]model.Chunk, string) {
	fund, ok := Mentioned(question, names(chunks))
	if !ok {
		return chunks, ""
	}
	out := make([]model.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if c.FundName == fund {
			out = append(out, c)
		}
	}
	return out, fund
}

func names(chunks []model.Chunk) []string {
	seen := make(map[string]bool, len(chunks))
	var out []string
	for _, c := range chunks {
		if !seen[c.FundName] {
			seen[c.FundName] = true
			out = append(out, c.FundName)
		}
	}
	return out
}
