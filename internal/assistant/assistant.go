// Package assistant answers questions end to end: canned replies, intent
// routing, retrieval, filtering, fund disambiguation and composition. Each
// Assistant keeps its own conversation history.
package assistant

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fundqa/internal/compose"
	"github.com/sells-group/fundqa/internal/config"
	"github.com/sells-group/fundqa/internal/disambig"
	"github.com/sells-group/fundqa/internal/intent"
	"github.com/sells-group/fundqa/internal/model"
	"github.com/sells-group/fundqa/internal/retrieval"
)

// ErrEmptyQuestion is returned for blank questions.
var ErrEmptyQuestion = eris.New("assistant: empty question")

// Intent labels recorded for replies that bypass routing.
const (
	IntentGreeting   = "greeting"
	IntentDefinition = "definition"
)

// Options are the retrieval knobs.
type Options struct {
	TopK                 int
	MaxTopK              int
	Threshold            float64
	DefinitionSimilarity float64
}

// OptionsFromConfig copies the retrieval settings.
func OptionsFromConfig(c config.RetrievalConfig) Options {
	return Options{
		TopK:                 c.TopK,
		MaxTopK:              c.MaxTopK,
		Threshold:            c.Threshold,
		DefinitionSimilarity: c.DefinitionSimilarity,
	}
}

// Assistant answers questions over a shared retrieval engine.
type Assistant struct {
	engine   *retrieval.Engine
	composer *compose.Composer
	opts     Options
	now      func() time.Time

	mu      sync.Mutex
	history []model.Interaction
}

// New creates an Assistant. The engine may be shared between assistants.
func New(engine *retrieval.Engine, composer *compose.Composer, opts Options) *Assistant {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}
	if opts.MaxTopK < opts.TopK {
		opts.MaxTopK = opts.TopK
	}
	return &Assistant{
		engine:   engine,
		composer: composer,
		opts:     opts,
		now:      time.Now,
	}
}

// Ask answers one question and records it in the history. A named fund
// narrows the ranked chunks before the intent filter runs. Errors are
// returned only for blank questions and retrieval failures.
func (a *Assistant) Ask(ctx context.Context, question string) (compose.Response, error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return compose.Response{}, ErrEmptyQuestion
	}

	if intent.Greeting(q) {
		resp := compose.Greeting()
		a.record(q, IntentGreeting, 0, resp)
		return resp, nil
	}

	// Advice is refused before any canned definition reply.
	in := intent.Classify(q)
	if in.Blocked {
		resp := compose.Refusal()
		a.record(q, string(in.Tag), 0, resp)
		return resp, nil
	}

	if intent.Definition(q) {
		if _, named := disambig.Mentioned(q, a.engine.FundNames()); !named {
			resp := compose.Definition()
			a.record(q, IntentDefinition, 0, resp)
			return resp, nil
		}
	}

	topK := a.opts.TopK
	if n, ok := intent.RequestedCount(q); ok {
		topK = min(n, a.opts.MaxTopK)
	}

	matches, err := a.engine.Rank(ctx, q, topK, a.opts.Threshold)
	if err != nil {
		return compose.Response{}, eris.Wrap(err, "assistant: retrieve")
	}

	if (len(matches) == 0 || matches[0].Score < a.opts.DefinitionSimilarity) && intent.General(q) {
		resp := compose.Definition()
		a.record(q, IntentDefinition, 0, resp)
		return resp, nil
	}

	chunks, fund := disambig.Narrow(q, chunksOf(matches))
	chunks = Select(chunks, in)

	zap.L().Debug("assistant: answering",
		zap.String("intent", string(in.Tag)),
		zap.Int("matches", len(matches)),
		zap.Int("chunks", len(chunks)),
		zap.String("fund", fund),
	)

	resp := a.composer.Compose(ctx, q, in, chunks)
	a.record(q, string(in.Tag), len(chunks), resp)
	return resp, nil
}

// Select applies the intent's chunk-type filter to chunks in ranked order.
// When no chunk has the wanted type the unfiltered top chunk is used, and
// single-answer intents keep only the best filtered chunk.
func Select(chunks []model.Chunk, in intent.Intent) []model.Chunk {
	if len(chunks) == 0 || in.ChunkType == "" {
		return chunks
	}

	var filtered []model.Chunk
	for _, c := range chunks {
		if c.ChunkType == in.ChunkType {
			filtered = append(filtered, c)
		}
	}
	switch {
	case len(filtered) == 0:
		return chunks[:1]
	case in.SingleAnswer:
		return filtered[:1]
	}
	return filtered
}

func chunksOf(matches []retrieval.Match) []model.Chunk {
	out := make([]model.Chunk, len(matches))
	for i, m := range matches {
		out[i] = m.Chunk()
	}
	return out
}

// History returns a copy of the conversation so far, oldest first.
func (a *Assistant) History() []model.Interaction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.Interaction, len(a.history))
	copy(out, a.history)
	return out
}

// UsesLLM reports whether replies may be generated.
func (a *Assistant) UsesLLM() bool { return a.composer.HasGenerator() }

func (a *Assistant) record(question, tag string, chunks int, resp compose.Response) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append(a.history, model.Interaction{
		Timestamp:   a.now().UTC(),
		Question:    question,
		Response:    resp.Text,
		Intent:      tag,
		ChunksFound: chunks,
		UsedLLM:     resp.UsedLLM,
	})
}
