package compose

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fundqa/internal/config"
	"github.com/sells-group/fundqa/internal/resilience"
	"github.com/sells-group/fundqa/pkg/anthropic"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*anthropic.MessageResponse)
	return resp, args.Error(1)
}

func fastResilience(attempts, breakerFailures int) config.ResilienceConfig {
	return config.ResilienceConfig{
		MaxAttempts:      attempts,
		InitialBackoffMs: 1,
		MaxBackoffMs:     2,
		Multiplier:       1,
		BreakerFailures:  breakerFailures,
		BreakerResetSecs: 60,
	}
}

var testAnthropic = config.AnthropicConfig{Model: "claude-haiku-4-5-20251001", MaxTokens: 256, TimeoutSecs: 5}

// messageServer answers with the given statuses in turn, then succeeds.
func messageServer(t *testing.T, calls *int32, statuses ...int) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(calls, 1))
		w.Header().Set("Content-Type", "application/json")
		if n <= len(statuses) {
			w.WriteHeader(statuses[n-1])
			json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
				"type":  "error",
				"error": map[string]any{"type": "api_error", "message": fmt.Sprintf("status %d", statuses[n-1])},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":          "msg_1",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-haiku-4-5-20251001",
			"stop_reason": "end_turn",
			"content":     []map[string]any{{"type": "text", "text": "The NAV of UTI ELSS Tax Saver Fund is Rs 182.45 as on 01 Mar 2025."}},
			"usage":       map[string]any{"input_tokens": 120, "output_tokens": 20},
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func generator(ts *httptest.Server, rc config.ResilienceConfig) *AnthropicGenerator {
	return NewAnthropicGenerator(anthropic.NewClient("test-key", anthropic.WithBaseURL(ts.URL)), testAnthropic, rc)
}

func requireKind(t *testing.T, err error, kind GenerationKind) {
	t.Helper()
	var ge *GenerationError
	require.True(t, errors.As(err, &ge), "want *GenerationError, got %T", err)
	assert.Equal(t, kind, ge.Kind)
}

func TestAnthropicGenerator_Success(t *testing.T) {
	var calls int32
	g := generator(messageServer(t, &calls), fastResilience(3, 5))

	text, err := g.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "The NAV of UTI ELSS Tax Saver Fund is Rs 182.45 as on 01 Mar 2025.", text)
	assert.Equal(t, int32(1), calls)
}

func TestAnthropicGenerator_RetriesUnavailable(t *testing.T) {
	var calls int32
	g := generator(messageServer(t, &calls, http.StatusServiceUnavailable, http.StatusTooManyRequests), fastResilience(3, 5))

	_, err := g.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls)
}

func TestAnthropicGenerator_AuthNotRetried(t *testing.T) {
	var calls int32
	g := generator(messageServer(t, &calls, http.StatusUnauthorized), fastResilience(3, 5))

	_, err := g.Generate(context.Background(), "prompt")
	requireKind(t, err, KindAuth)
	assert.Equal(t, int32(1), calls)
	assert.Equal(t, resilience.CircuitClosed, g.Breaker().State())
}

func TestAnthropicGenerator_BadRequestIsMalformed(t *testing.T) {
	var calls int32
	g := generator(messageServer(t, &calls, http.StatusBadRequest), fastResilience(3, 5))

	_, err := g.Generate(context.Background(), "prompt")
	requireKind(t, err, KindMalformed)
	assert.Equal(t, int32(1), calls)
}

func TestAnthropicGenerator_BreakerOpens(t *testing.T) {
	var calls int32
	g := generator(messageServer(t, &calls, http.StatusServiceUnavailable, http.StatusServiceUnavailable), fastResilience(1, 1))

	_, err := g.Generate(context.Background(), "prompt")
	requireKind(t, err, KindUnavailable)
	assert.Equal(t, resilience.CircuitOpen, g.Breaker().State())

	_, err = g.Generate(context.Background(), "prompt")
	requireKind(t, err, KindUnavailable)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(1), calls)
}

func TestAnthropicGenerator_Timeout(t *testing.T) {
	client := new(mockClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("anthropic: create message: %w", context.DeadlineExceeded))

	g := NewAnthropicGenerator(client, testAnthropic, fastResilience(2, 5))
	_, err := g.Generate(context.Background(), "prompt")
	requireKind(t, err, KindTimeout)
	client.AssertNumberOfCalls(t, "CreateMessage", 2)
}

func TestAnthropicGenerator_EmptyIsMalformed(t *testing.T) {
	client := new(mockClient)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == testAnthropic.Model && len(req.Messages) == 1 && req.Messages[0].Content == "prompt"
	})).Return(&anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: "  "}}}, nil)

	g := NewAnthropicGenerator(client, testAnthropic, fastResilience(3, 5))
	_, err := g.Generate(context.Background(), "prompt")
	requireKind(t, err, KindMalformed)
	client.AssertNumberOfCalls(t, "CreateMessage", 1)
}

func TestGenerationError_Message(t *testing.T) {
	err := &GenerationError{Kind: KindAuth, Err: errors.New("invalid key")}
	assert.Equal(t, "compose: generation auth: invalid key", err.Error())
	assert.Equal(t, "compose: generation timeout", (&GenerationError{Kind: KindTimeout}).Error())
}

func TestNewGenerator(t *testing.T) {
	assert.Nil(t, NewGenerator(config.AnthropicConfig{}, config.ResilienceConfig{}))

	cfg := testAnthropic
	cfg.Key = "sk-test"
	g := NewGenerator(cfg, config.ResilienceConfig{})
	require.NotNil(t, g)
	assert.IsType(t, &AnthropicGenerator{}, g)
}
