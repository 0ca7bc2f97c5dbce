package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFundPage_Datums(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	p := &FundPage{
		SourceURL:    "https://groww.in/mutual-funds/uti-elss-tax-saver-fund-direct-growth",
		FundName:     "UTI ELSS Tax Saver Fund",
		NAV:          "182.45",
		ExpenseRatio: "0.91%",
		FundReturns:  map[string]string{"1Y": "9.3%", "3Y": "14.1%"},
		Holdings:     []Holding{{Name: "HDFC Bank Ltd.", Percentage: "8.1%"}},
		ScrapedAt:    at,
	}

	ds := p.Datums("scheme-1")
	require.Len(t, ds, 4)

	assert.Equal(t, FieldNAV, ds[0].DataType)
	assert.Equal(t, "182.45", ds[0].Value)
	assert.Equal(t, FieldFundReturns, ds[1].DataType)
	assert.JSONEq(t, `{"1Y":"9.3%","3Y":"14.1%"}`, ds[1].Value)
	assert.Equal(t, FieldExpenseRatio, ds[2].DataType)
	assert.Equal(t, FieldHoldings, ds[3].DataType)

	for _, d := range ds {
		assert.Equal(t, "scheme-1", d.SchemeID)
		assert.Equal(t, p.SourceURL, d.SourceURL)
		assert.Equal(t, at, d.ScrapedAt)
	}
}

func TestFundPage_DatumsEmpty(t *testing.T) {
	p := &FundPage{SourceURL: "https://groww.in/mutual-funds/x", FundName: "Some Fund"}
	assert.Empty(t, p.Datums("id"))
}

func TestSchemeDatum_Decoded(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  any
	}{
		{"scalar", "0.91%", "0.91%"},
		{"numeric stays string", "500", "500"},
		{"object", `{"1Y":"9.3%"}`, map[string]any{"1Y": "9.3%"}},
		{"list", `[{"name":"A","percentage":"1%"}]`, []any{map[string]any{"name": "A", "percentage": "1%"}}},
		{"broken json stays string", `{oops`, `{oops`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SchemeDatum{Value: tt.value}.Decoded())
		})
	}
}

func TestAllChunkTypes(t *testing.T) {
	types := AllChunkTypes()
	assert.Len(t, types, 7)
	assert.Equal(t, ChunkNAVSIP, types[0])
	assert.Equal(t, ChunkPlatform, types[len(types)-1])
}
