// Package retrieval ranks indexed chunks against a question by cosine
// similarity.
package retrieval

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fundqa/internal/embed"
	"github.com/sells-group/fundqa/internal/index"
	"github.com/sells-group/fundqa/internal/model"
)

// Match is a retrieved chunk with its similarity to the query.
type Match struct {
	Record index.Record
	Score  float64
}

// Chunk is a shorthand for m.Record.Chunk.
func (m Match) Chunk() model.Chunk { return m.Record.Chunk }

// Rank scores every record against query, keeps the topK best and drops
// those scoring below threshold. Equal scores keep record order.
func Rank(query []float32, records []index.Record, topK int, threshold float64) []Match {
	if len(records) == 0 || topK <= 0 {
		return nil
	}

	matches := make([]Match, len(records))
	for i, r := range records {
		matches[i] = Match{Record: r, Score: Cosine(query, r.Vector)}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	out := matches[:0]
	for _, m := range matches {
		if m.Score >= threshold {
			out = append(out, m)
		}
	}
	return out
}

// Cosine returns the cosine similarity of a and b, or 0 when either has zero
// norm or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return math.Max(-1, math.Min(1, dot/(math.Sqrt(na)*math.Sqrt(nb))))
}

// Engine ranks questions against a loaded index. It is read-only and safe for
// concurrent use.
type Engine struct {
	embedder embed.Embedder
	records  []index.Record
}

// NewEngine wraps an index opened with the same embedder.
func NewEngine(e embed.Embedder, ix *index.Index) *Engine {
	return &Engine{embedder: e, records: ix.Records}
}

// Len is the number of indexed records.
func (e *Engine) Len() int { return len(e.records) }

// Model is the embedder identity.
func (e *Engine) Model() string { return e.embedder.Model() }

// Records returns the indexed records. Callers must not modify them.
func (e *Engine) Records() []index.Record { return e.records }

// FundNames lists distinct fund names in index order.
func (e *Engine) FundNames() []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range e.records {
		if !seen[r.Chunk.FundName] {
			seen[r.Chunk.FundName] = true
			out = append(out, r.Chunk.FundName)
		}
	}
	return out
}

// Rank embeds query and ranks the index against it. A blank query or an
// empty index yields no matches.
func (e *Engine) Rank(ctx context.Context, query string, topK int, threshold float64) ([]Match, error) {
	if strings.TrimSpace(query) == "" || len(e.records) == 0 {
		return nil, nil
	}
	vec, err := embed.Query(ctx, e.embedder, query)
	if err != nil {
		return nil, eris.Wrap(err, "retrieval: embed query")
	}
	return Rank(vec, e.records, topK, threshold), nil
}
