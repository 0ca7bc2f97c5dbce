package compose

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/fundqa/internal/model"
)

func TestCategoryName(t *testing.T) {
	assert.Equal(t, "Expense Information", CategoryName(model.ChunkExpense))
	assert.Equal(t, "Risk Information", CategoryName(model.ChunkRisk))
}

func TestContext_Layout(t *testing.T) {
	got := Context([]model.Chunk{expenseChunk()})
	want := strings.Join([]string{
		"Relevant information about UTI mutual funds:",
		"",
		"1. Fund: " + elssName,
		"   Category: Expense Information",
		"   Expense Ratio: 0.91%",
		"   Stamp Duty: 0.005%",
		"   Source: " + elssURL,
	}, "\n")
	assert.Equal(t, want, got)
}

func TestContext_NestedAndHoldings(t *testing.T) {
	chunks := []model.Chunk{
		{
			FundName:  elssName,
			SourceURL: elssURL,
			ChunkType: model.ChunkRisk,
			Data: map[string]any{
				model.FieldRiskometer:  "Very High",
				model.FieldRiskMetrics: map[string]any{"beta": "0.9", "alpha": "1.2"},
				"scraped_by":           "ignored",
			},
		},
		{
			FundName:  elssName,
			SourceURL: elssURL,
			ChunkType: model.ChunkHoldings,
			Data: map[string]any{
				model.FieldTopHoldings: []any{
					map[string]any{"name": "HDFC Bank Ltd.", "percentage": "9.1%"},
					map[string]any{"name": "ICICI Bank Ltd.", "percentage": "7.4%"},
				},
			},
		},
	}

	got := Context(chunks)
	assert.Contains(t, got, "   Riskometer: Very High\n   Risk Metrics:\n     Alpha: 1.2\n     Beta: 0.9\n")
	assert.Contains(t, got, "\n2. Fund: "+elssName)
	assert.Contains(t, got, "   Top Holdings:\n     HDFC Bank Ltd.: 9.1%\n     ICICI Bank Ltd.: 7.4%\n")
	assert.NotContains(t, got, "ignored")
}

func TestContext_Empty(t *testing.T) {
	assert.Equal(t, "No relevant information found.", Context(nil))
}
