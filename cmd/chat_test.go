package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fundqa/internal/config"
	"github.com/sells-group/fundqa/internal/embed"
	"github.com/sells-group/fundqa/internal/index"
	"github.com/sells-group/fundqa/internal/model"
	"github.com/sells-group/fundqa/internal/retrieval"
)

// testEnv builds an in-memory QA environment over a hash embedder and sets
// the package config the commands read.
func testEnv(t *testing.T) *qaEnv {
	t.Helper()
	cfg = &config.Config{
		Retrieval: config.RetrievalConfig{TopK: 10, MaxTopK: 15, Threshold: -1, DefinitionSimilarity: -1},
	}

	e := embed.NewHash(64)
	ix, err := index.Build(context.Background(), e, []model.Chunk{{
		FundName:  "UTI ELSS Tax Saver Fund",
		SourceURL: "https://groww.in/mutual-funds/uti-elss-tax-saver-fund-direct-growth",
		ChunkType: model.ChunkExpense,
		Data:      map[string]any{model.FieldExpenseRatio: "0.91%"},
	}}, time.Now())
	require.NoError(t, err)

	return &qaEnv{Engine: retrieval.NewEngine(e, ix), index: &indexEnv{}}
}

func TestChatLoop(t *testing.T) {
	env := testEnv(t)
	a, err := env.NewAssistant("")
	require.NoError(t, err)
	assert.False(t, a.UsesLLM())

	in := strings.NewReader("hello\n\nexpense ratio of UTI ELSS Tax Saver Fund\nquit\nnever asked\n")
	var out bytes.Buffer
	require.NoError(t, chatLoop(context.Background(), a, in, &out))

	assert.Contains(t, out.String(), "UTI Mutual Fund Assistant")
	assert.Contains(t, out.String(), "0.91%")
	assert.Contains(t, out.String(), "Sources:")
	assert.Len(t, a.History(), 2)
}

func TestChatLoop_EOF(t *testing.T) {
	env := testEnv(t)
	a, err := env.NewAssistant("")
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, chatLoop(context.Background(), a, strings.NewReader("hi"), &out))
	assert.Len(t, a.History(), 1)
}

func TestSaveConversation(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "conversations")
	now := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)

	path, err := saveConversation(dir, []model.Interaction{{Question: "hi", Response: "Hello!", Intent: "greeting"}}, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "conversation_20250301_103000.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got conversation
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got.Interactions, 1)
	assert.Equal(t, "hi", got.Interactions[0].Question)
	assert.True(t, got.SavedAt.Equal(now))
}

func TestNewAssistant_UsesRequestKey(t *testing.T) {
	env := testEnv(t)

	a, err := env.NewAssistant("sk-test")
	require.NoError(t, err)
	assert.True(t, a.UsesLLM())
}
