// Package embed turns chunk text and questions into dense vectors. The same
// embedder must be used for indexing and for queries; its Model string is
// stored with the index and checked on load.
package embed

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fundqa/internal/config"
	"github.com/sells-group/fundqa/internal/resilience"
	"github.com/sells-group/fundqa/pkg/ollama"
)

// Embedder produces one vector per input text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Model identifies the embedding model.
	Model() string
	Dimensions() int
}

// Query embeds a single text.
func Query(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, eris.Errorf("embed: got %d vectors for one query", len(vecs))
	}
	return vecs[0], nil
}

// New builds the embedder named by cfg.Provider.
func New(cfg config.EmbeddingConfig, rc config.ResilienceConfig) (Embedder, error) {
	switch cfg.Provider {
	case "hash":
		return NewHash(cfg.Dimensions), nil
	case "ollama":
		client := ollama.NewClient(ollama.WithBaseURL(cfg.BaseURL))
		retry := resilience.RetryFromConfig(rc)
		retry.OnRetry = resilience.RetryLogger("ollama", "embed")
		return NewOllama(client, cfg, retry), nil
	default:
		return nil, eris.Errorf("embed: unknown provider %q", cfg.Provider)
	}
}

func timeout(secs int) time.Duration {
	if secs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(secs) * time.Second
}
