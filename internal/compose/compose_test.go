package compose

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fundqa/internal/intent"
	"github.com/sells-group/fundqa/internal/model"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

const (
	elssName = "UTI ELSS Tax Saver Fund"
	elssURL  = "https://groww.in/mutual-funds/uti-elss-tax-saver-fund-direct-growth"
)

func expenseChunk() model.Chunk {
	return model.Chunk{
		FundName:  elssName,
		SourceURL: elssURL,
		ChunkType: model.ChunkExpense,
		Data:      map[string]any{model.FieldExpenseRatio: "0.91%", model.FieldStampDuty: "0.005%"},
	}
}

func TestCompose_ExpenseFallback(t *testing.T) {
	in := intent.Classify("What is the expense ratio of UTI ELSS Tax Saver Fund?")
	resp := New(nil).Compose(context.Background(), "What is the expense ratio of UTI ELSS Tax Saver Fund?", in,
		[]model.Chunk{expenseChunk()})

	assert.True(t, strings.HasPrefix(resp.Text, "Based on the information I found:\n\n"))
	assert.Contains(t, resp.Text, "0.91%")
	assert.False(t, resp.UsedLLM)
	assert.Equal(t, []model.Source{{FundName: elssName, URL: elssURL, Type: "expense_information"}}, resp.Sources)
}

func TestCompose_Generated(t *testing.T) {
	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "Expense Ratio: 0.91%") && strings.Contains(p, "Do not provide investment advice")
	})).Return("The expense ratio of UTI ELSS Tax Saver Fund is 0.91%.", nil)

	q := "expense ratio of UTI ELSS Tax Saver Fund"
	resp := New(gen).Compose(context.Background(), q, intent.Classify(q), []model.Chunk{expenseChunk()})

	assert.Equal(t, "The expense ratio of UTI ELSS Tax Saver Fund is 0.91%.", resp.Text)
	assert.True(t, resp.UsedLLM)
	assert.Len(t, resp.Sources, 1)
	gen.AssertExpectations(t)
}

func TestCompose_GenerationErrorFallsBack(t *testing.T) {
	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).
		Return("", &GenerationError{Kind: KindUnavailable, Err: errors.New("overloaded")})

	resp := New(gen).Compose(context.Background(), "expense ratio", intent.Intent{Tag: intent.TagExpense},
		[]model.Chunk{expenseChunk()})

	assert.False(t, resp.UsedLLM)
	assert.Contains(t, resp.Text, "Based on the information I found:")
	assert.Contains(t, resp.Text, "0.91%")
}

func TestCompose_Empty(t *testing.T) {
	gen := new(mockGenerator)
	resp := New(gen).Compose(context.Background(), "anything", intent.Intent{Tag: intent.TagGeneral}, nil)

	assert.Equal(t, NoResultsText, resp.Text)
	require.NotNil(t, resp.Sources)
	assert.Empty(t, resp.Sources)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestCompose_Blocked(t *testing.T) {
	resp := New(nil).Compose(context.Background(), "should I invest", intent.Classify("should I invest"),
		[]model.Chunk{expenseChunk()})
	assert.Equal(t, RefusalText, resp.Text)
	assert.Empty(t, resp.Sources)
}

func TestPrompt(t *testing.T) {
	nav := Prompt("NAV of UTI ELSS?", intent.Intent{Tag: intent.TagNAV}, "ctx")
	assert.Contains(t, nav, "The NAV of [Fund Name] is Rs [NAV amount] as on [date].")
	assert.Contains(t, nav, "Question: NAV of UTI ELSS?")

	general := Prompt("risk?", intent.Intent{Tag: intent.TagRisk}, "ctx")
	assert.NotContains(t, general, "[NAV amount]")
	assert.Contains(t, general, "factual information only")
}

func TestSources_Dedup(t *testing.T) {
	c := expenseChunk()
	other := model.Chunk{FundName: "UTI Flexi Cap Fund", SourceURL: "https://groww.in/mutual-funds/uti-flexi-cap-fund-direct-growth", ChunkType: model.ChunkExpense}
	got := Sources([]model.Chunk{c, other, c})
	require.Len(t, got, 2)
	assert.Equal(t, elssName, got[0].FundName)
	assert.Equal(t, "UTI Flexi Cap Fund", got[1].FundName)

	assert.NotNil(t, Sources(nil))
}

func TestCannedReplies(t *testing.T) {
	assert.Equal(t, []model.Source{ReferenceSource}, Greeting().Sources)
	assert.Contains(t, Greeting().Text, ReferenceURL)
	assert.Equal(t, []model.Source{ReferenceSource}, Definition().Sources)
	assert.Contains(t, Definition().Text, "I don't have this information in my current database.")

	a := Response{Text: "x"}.Answer()
	assert.NotNil(t, a.Sources)
}
