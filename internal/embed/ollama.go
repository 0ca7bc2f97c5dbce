package embed

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fundqa/internal/config"
	"github.com/sells-group/fundqa/internal/resilience"
	"github.com/sells-group/fundqa/pkg/ollama"
)

const defaultBatchSize = 32

// OllamaEmbedder embeds through an Ollama server in fixed-size batches. Each
// batch gets its own timeout and retry budget.
type OllamaEmbedder struct {
	client    ollama.Client
	model     string
	dims      int
	batchSize int
	timeout   time.Duration
	retry     resilience.RetryConfig
}

// NewOllama wraps client for the configured model.
func NewOllama(client ollama.Client, cfg config.EmbeddingConfig, retry resilience.RetryConfig) *OllamaEmbedder {
	bs := cfg.BatchSize
	if bs <= 0 {
		bs = defaultBatchSize
	}
	return &OllamaEmbedder{
		client:    client,
		model:     cfg.Model,
		dims:      cfg.Dimensions,
		batchSize: bs,
		timeout:   timeout(cfg.TimeoutSecs),
		retry:     retry,
	}
}

func (o *OllamaEmbedder) Model() string   { return "ollama/" + o.model }
func (o *OllamaEmbedder) Dimensions() int { return o.dims }

func (o *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += o.batchSize {
		end := min(start+o.batchSize, len(texts))
		batch := texts[start:end]

		vecs, err := resilience.DoVal(ctx, o.retry, func(ctx context.Context) ([][]float32, error) {
			cctx, cancel := context.WithTimeout(ctx, o.timeout)
			defer cancel()
			vecs, err := o.client.Embed(cctx, o.model, batch)
			return vecs, classify(err)
		})
		if err != nil {
			return nil, eris.Wrapf(err, "embed: ollama batch %d-%d", start, end)
		}

		for i, v := range vecs {
			if o.dims > 0 && len(v) != o.dims {
				return nil, eris.Errorf("embed: model %s returned %d dimensions for input %d, want %d",
					o.model, len(v), start+i, o.dims)
			}
		}
		out = append(out, vecs...)

		zap.L().Debug("embedded batch",
			zap.String("model", o.model),
			zap.Int("start", start),
			zap.Int("size", len(batch)),
		)
	}
	return out, nil
}

// classify marks retryable server responses as transient.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se *ollama.StatusError
	if errors.As(err, &se) && resilience.IsTransientHTTPStatus(se.StatusCode) {
		return resilience.NewTransientError(err, se.StatusCode)
	}
	return err
}
