package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const defaultHashDimensions = 384

// HashEmbedder is a deterministic bag-of-words embedder: unigrams and bigrams
// are hashed into signed buckets and the result is L2-normalized. It needs no
// model server and is used for tests and offline runs.
type HashEmbedder struct {
	dims int
}

// NewHash returns a HashEmbedder with dims buckets (384 when dims <= 0).
func NewHash(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = defaultHashDimensions
	}
	return &HashEmbedder{dims: dims}
}

func (h *HashEmbedder) Model() string   { return fmt.Sprintf("hash-v1-%d", h.dims) }
func (h *HashEmbedder) Dimensions() int { return h.dims }

func (h *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *HashEmbedder) vector(text string) []float32 {
	v := make([]float32, h.dims)
	tokens := Tokens(text)
	for i, tok := range tokens {
		h.add(v, tok)
		if i > 0 {
			h.add(v, tokens[i-1]+" "+tok)
		}
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

func (h *HashEmbedder) add(v []float32, feature string) {
	f := fnv.New64a()
	f.Write([]byte(feature)) //nolint:errcheck
	sum := f.Sum64()
	idx := sum % uint64(h.dims)
	if sum>>63 == 1 {
		v[idx]--
		return
	}
	v[idx]++
}

// Tokens lower-cases text and splits it into letter and digit runs.
func Tokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
