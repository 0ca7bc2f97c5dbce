package compose

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/fundqa/internal/chunk"
	"github.com/sells-group/fundqa/internal/model"
)

const contextHeader = "Relevant information about UTI mutual funds:"

type field struct {
	key   string
	label string
}

// templates maps each chunk type to the fields it renders, in order. Fields
// missing from a template are not rendered.
var templates = map[model.ChunkType][]field{
	model.ChunkNAVSIP: {
		{model.FieldNAV, "NAV"},
		{model.FieldNAVDate, "NAV Date"},
		{model.FieldMinSIP, "Minimum SIP"},
		{model.FieldExitLoad, "Exit Load"},
	},
	model.ChunkExpense: {
		{model.FieldExpenseRatio, "Expense Ratio"},
		{model.FieldStampDuty, "Stamp Duty"},
	},
	model.ChunkPerformance: {
		{model.FieldFundReturns, "Fund Returns"},
		{model.FieldCategoryAverages, "Category Average"},
		{model.FieldRank, "Rank in Category"},
		{model.FieldPERatio, "P/E Ratio"},
		{model.FieldPBRatio, "P/B Ratio"},
		{model.FieldAnnualisedReturns, "Annualised Returns"},
	},
	model.ChunkCharacteristics: {
		{model.FieldFundSize, "Fund Size"},
		{model.FieldFundManager, "Fund Manager"},
		{model.FieldLockIn, "Lock-in Period"},
		{model.FieldSchemeType, "Scheme Type"},
		{model.FieldSubCategory, "Sub-category"},
		{model.FieldIsELSS, "ELSS"},
		{model.FieldCategoryLabel, "Category"},
	},
	model.ChunkRisk: {
		{model.FieldRiskometer, "Riskometer"},
		{model.FieldRiskMetrics, "Risk Metrics"},
		{model.FieldBenchmark, "Benchmark"},
	},
	model.ChunkHoldings: {
		{model.FieldTopHoldings, "Top Holdings"},
	},
	model.ChunkPlatform: {
		{model.FieldStatementDownloadInfo, "Statement Download"},
	},
}

var (
	titleCaser = cases.Title(language.English)
	// subKeyCaser keeps existing capitals so period keys such as "1Y" survive.
	subKeyCaser = cases.Title(language.English, cases.NoLower)
)

// CategoryName renders a chunk type for display, "expense_information"
// becoming "Expense Information".
func CategoryName(ct model.ChunkType) string {
	return titleCaser.String(strings.ReplaceAll(string(ct), "_", " "))
}

// Context renders chunks as the numbered block handed to the generator and
// used verbatim by the fallback reply.
func Context(chunks []model.Chunk) string {
	if len(chunks) == 0 {
		return "No relevant information found."
	}

	lines := []string{contextHeader}
	for i, c := range chunks {
		lines = append(lines,
			fmt.Sprintf("\n%d. Fund: %s", i+1, c.FundName),
			"   Category: "+CategoryName(c.ChunkType),
		)
		for _, f := range templates[c.ChunkType] {
			v, ok := c.Data[f.key]
			if !ok || v == nil {
				continue
			}
			lines = append(lines, renderField(f.label, v)...)
		}
		lines = append(lines, "   Source: "+c.SourceURL)
	}
	return strings.Join(lines, "\n")
}

func renderField(label string, v any) []string {
	switch t := v.(type) {
	case map[string]any:
		return append([]string{"   " + label + ":"}, mapLines(t)...)
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, s := range t {
			m[k] = s
		}
		return append([]string{"   " + label + ":"}, mapLines(m)...)
	case []any:
		return append([]string{"   " + label + ":"}, holdingLines(t)...)
	case []model.Holding:
		out := []string{"   " + label + ":"}
		for _, h := range t {
			out = append(out, "     "+h.Name+": "+h.Percentage)
		}
		return out
	default:
		return []string{"   " + label + ": " + chunk.FormatValue(v)}
	}
}

func mapLines(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = "     " + subKeyCaser.String(strings.ReplaceAll(k, "_", " ")) + ": " + chunk.FormatValue(m[k])
	}
	return out
}

func holdingLines(items []any) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		h, ok := item.(map[string]any)
		if !ok {
			out = append(out, "     "+chunk.FormatValue(item))
			continue
		}
		name, _ := h["name"].(string)
		out = append(out, "     "+name+": "+chunk.FormatValue(h["percentage"]))
	}
	return out
}
