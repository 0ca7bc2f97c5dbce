package scrape

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fundqa/internal/resilience"
	"github.com/sells-group/fundqa/pkg/jina"
)

// JinaAdapter scrapes through the Jina Reader. A circuit breaker stops
// calling the Reader after repeated failures so the chain fails fast.
type JinaAdapter struct {
	client  jina.Client
	breaker *resilience.CircuitBreaker
}

// NewJinaAdapter wraps a Reader client with the given breaker settings.
func NewJinaAdapter(client jina.Client, cfg resilience.CircuitBreakerConfig) *JinaAdapter {
	cfg.Name = "jina"
	return &JinaAdapter{client: client, breaker: resilience.NewCircuitBreaker(cfg)}
}

func (j *JinaAdapter) Name() string { return "jina" }

// Supports is false while the breaker is open.
func (j *JinaAdapter) Supports(_ string) bool {
	return j.breaker.State() != resilience.CircuitOpen
}

func (j *JinaAdapter) Scrape(ctx context.Context, targetURL string) (*Page, error) {
	resp, err := resilience.ExecuteVal(ctx, j.breaker, func(ctx context.Context) (*jina.ReadResponse, error) {
		resp, err := j.client.Read(ctx, targetURL)
		if err != nil {
			return nil, err
		}
		if needsFallback(resp) {
			return nil, eris.New("jina: response has no usable content")
		}
		return resp, nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "jina")
	}

	url := resp.Data.URL
	if url == "" {
		url = targetURL
	}
	return &Page{
		URL:        url,
		Title:      resp.Data.Title,
		Text:       resp.Data.Content,
		StatusCode: 200,
		Source:     j.Name(),
	}, nil
}

var challengeSignatures = []string{
	"checking your browser",
	"enable javascript",
	"please enable cookies",
	"access denied",
	"403 forbidden",
	"just a moment",
	"attention required",
}

// needsFallback reports whether a Reader response is empty, an error or a
// rendered challenge page.
func needsFallback(resp *jina.ReadResponse) bool {
	if resp == nil || (resp.Code != 0 && resp.Code != 200) {
		return true
	}
	content := strings.TrimSpace(resp.Data.Content)
	if len(content) < 100 {
		return true
	}
	if len(content) >= 1000 {
		return false
	}
	lower := strings.ToLower(content)
	for _, sig := range challengeSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}
