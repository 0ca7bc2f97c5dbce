package compose

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/fundqa/internal/config"
	"github.com/sells-group/fundqa/internal/resilience"
	"github.com/sells-group/fundqa/pkg/anthropic"
)

// Generator turns a prompt into answer text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GenerationKind classifies why generation failed.
type GenerationKind string

const (
	KindTimeout     GenerationKind = "timeout"
	KindAuth        GenerationKind = "auth"
	KindMalformed   GenerationKind = "malformed"
	KindUnavailable GenerationKind = "unavailable"
)

// GenerationError is returned by generators for every failure.
type GenerationError struct {
	Kind GenerationKind
	Err  error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return "compose: generation " + string(e.Kind)
	}
	return "compose: generation " + string(e.Kind) + ": " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error { return e.Err }

// AnthropicGenerator generates answers with Claude. Calls are bounded by a
// per-attempt timeout, retried on transient failures and guarded by a
// circuit breaker shared across requests.
type AnthropicGenerator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
	retry     resilience.RetryConfig
	breaker   *resilience.CircuitBreaker
}

// NewAnthropicGenerator builds a generator over client.
func NewAnthropicGenerator(client anthropic.Client, cfg config.AnthropicConfig, rc config.ResilienceConfig) *AnthropicGenerator {
	retry := resilience.RetryFromConfig(rc)
	retry.OnRetry = resilience.RetryLogger("anthropic", "generate")

	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	bc := resilience.BreakerFromConfig("anthropic", rc)
	// Bad credentials and bad responses are not outages.
	bc.ShouldTrip = func(err error) bool {
		var ge *GenerationError
		return !errors.As(err, &ge) || ge.Kind == KindUnavailable || ge.Kind == KindTimeout
	}

	return &AnthropicGenerator{
		client:    client,
		model:     cfg.Model,
		maxTokens: maxTokens,
		timeout:   timeout,
		retry:     retry,
		breaker:   resilience.NewCircuitBreaker(bc),
	}
}

// Breaker exposes the circuit breaker state for health reporting.
func (g *AnthropicGenerator) Breaker() *resilience.CircuitBreaker { return g.breaker }

// Generate sends prompt as a single user turn.
func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := resilience.ExecuteVal(ctx, g.breaker, func(ctx context.Context) (string, error) {
		return resilience.DoVal(ctx, g.retry, func(ctx context.Context) (string, error) {
			return g.once(ctx, prompt)
		})
	})
	if err != nil {
		return "", asGenerationError(err)
	}
	return text, nil
}

func (g *AnthropicGenerator) once(ctx context.Context, prompt string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	temp := 0.0
	resp, err := g.client.CreateMessage(cctx, anthropic.MessageRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return "", classify(err)
	}
	resp.Usage.LogCost(g.model, "answer")

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &GenerationError{Kind: KindMalformed, Err: errors.New("empty response")}
	}
	return text, nil
}

// classify maps a client error onto a GenerationError. Retryable statuses
// are additionally marked transient.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &GenerationError{Kind: KindTimeout, Err: resilience.NewTransientError(err, 0)}
	}
	status := anthropic.StatusCode(err)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &GenerationError{Kind: KindAuth, Err: err}
	case resilience.IsTransientHTTPStatus(status):
		return &GenerationError{Kind: KindUnavailable, Err: resilience.NewTransientError(err, status)}
	case status >= 400:
		return &GenerationError{Kind: KindMalformed, Err: err}
	default:
		return &GenerationError{Kind: KindUnavailable, Err: err}
	}
}

func asGenerationError(err error) *GenerationError {
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge
	}
	// ErrCircuitOpen and anything else unclassified.
	return &GenerationError{Kind: KindUnavailable, Err: err}
}

func logGenerationFailure(err error) {
	kind := KindUnavailable
	var ge *GenerationError
	if errors.As(err, &ge) {
		kind = ge.Kind
	}
	zap.L().Warn("compose: generation failed, using raw context",
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
}

// NewGenerator returns the configured generator, or nil when no API key is
// set.
func NewGenerator(cfg config.AnthropicConfig, rc config.ResilienceConfig) Generator {
	if cfg.Key == "" {
		return nil
	}
	return NewAnthropicGenerator(anthropic.NewClient(cfg.Key), cfg, rc)
}
