// Package chunk groups stored scheme data into retrieval chunks, one per
// (fund, category), and reads and writes the chunk file.
package chunk

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fundqa/internal/model"
	"github.com/sells-group/fundqa/internal/store"
	"github.com/sells-group/fundqa/internal/validate"
)

// PlatformFundName labels chunks built from help pages.
const PlatformFundName = "Groww Platform"

// Holdings are stored under FieldHoldings but exposed to chunks under this key.
const holdingsKey = model.FieldTopHoldings

var categories = []struct {
	Type   model.ChunkType
	Fields []string
}{
	{model.ChunkNAVSIP, []string{model.FieldNAV, model.FieldNAVDate, model.FieldMinSIP, model.FieldExitLoad}},
	{model.ChunkExpense, []string{model.FieldExpenseRatio, model.FieldStampDuty}},
	{model.ChunkPerformance, []string{
		model.FieldFundReturns, model.FieldCategoryAverages, model.FieldRank,
		model.FieldPERatio, model.FieldPBRatio, model.FieldAnnualisedReturns,
	}},
	{model.ChunkCharacteristics, []string{
		model.FieldFundSize, model.FieldFundManager, model.FieldLockIn, model.FieldSchemeType,
		model.FieldSubCategory, model.FieldIsELSS, model.FieldCategoryLabel,
	}},
	{model.ChunkRisk, []string{model.FieldRiskometer, model.FieldRiskMetrics, model.FieldBenchmark}},
	{model.ChunkHoldings, []string{holdingsKey}},
	{model.ChunkPlatform, []string{model.FieldStatementDownloadInfo}},
}

// Fields returns the ordered field list of a chunk type, or nil.
func Fields(ct model.ChunkType) []string {
	for _, c := range categories {
		if c.Type == ct {
			return c.Fields
		}
	}
	return nil
}

// SchemeData is one scheme with its stored fields.
type SchemeData struct {
	Scheme model.Scheme
	Data   []model.SchemeDatum
}

// Build turns scheme data into chunks. Schemes are processed in source URL
// order so identical input always yields identical output. Help pages become
// a single platform chunk carrying every stored field.
func Build(schemes []SchemeData) File {
	sorted := make([]SchemeData, len(schemes))
	copy(sorted, schemes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Scheme.SourceURL < sorted[j].Scheme.SourceURL
	})

	out := File{}
	for _, sd := range sorted {
		values := make(map[string]any, len(sd.Data))
		for _, d := range sd.Data {
			if d.Value == "" {
				continue
			}
			key := d.DataType
			if key == model.FieldHoldings {
				key = holdingsKey
			}
			values[key] = d.Decoded()
		}
		if len(values) == 0 {
			continue
		}

		if validate.IsPlatformURL(sd.Scheme.SourceURL) {
			out[model.ChunkPlatform] = append(out[model.ChunkPlatform], model.Chunk{
				FundName:  PlatformFundName,
				SourceURL: sd.Scheme.SourceURL,
				ChunkType: model.ChunkPlatform,
				Data:      values,
			})
			continue
		}

		for _, c := range categories {
			data := map[string]any{}
			for _, f := range c.Fields {
				if v, ok := values[f]; ok {
					data[f] = v
				}
			}
			if len(data) == 0 {
				continue
			}
			out[c.Type] = append(out[c.Type], model.Chunk{
				FundName:  sd.Scheme.Name,
				SourceURL: sd.Scheme.SourceURL,
				ChunkType: c.Type,
				Data:      data,
			})
		}
	}
	return out
}

// FromStore loads every scheme and its data and builds the chunk file.
func FromStore(ctx context.Context, st store.Store) (File, error) {
	schemes, err := st.ListSchemes(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "chunk: list schemes")
	}

	all := make([]SchemeData, 0, len(schemes))
	for _, s := range schemes {
		data, err := st.GetSchemeData(ctx, s.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "chunk: load data for %s", s.SourceURL)
		}
		all = append(all, SchemeData{Scheme: s, Data: data})
	}
	return Build(all), nil
}

// Text is the string embedded for a chunk: the fund name twice for weight,
// the chunk type, then each field as "key: value" in category order.
func Text(c model.Chunk) string {
	parts := []string{c.FundName, c.FundName, string(c.ChunkType)}
	for _, k := range OrderedKeys(c) {
		parts = append(parts, k+": "+FormatValue(c.Data[k]))
	}
	return strings.Join(parts, " ")
}

// OrderedKeys lists the chunk's data keys in category order, followed by any
// other keys sorted.
func OrderedKeys(c model.Chunk) []string {
	seen := make(map[string]bool, len(c.Data))
	var keys []string
	for _, f := range Fields(c.ChunkType) {
		if _, ok := c.Data[f]; ok {
			keys = append(keys, f)
			seen[f] = true
		}
	}
	var rest []string
	for k := range c.Data {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// FormatValue renders a chunk value on one line. Maps become "k: v" pairs in
// key order and holdings become "name percentage" pairs.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + FormatValue(t[k])
		}
		return strings.Join(parts, ", ")
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, v := range t {
			m[k] = v
		}
		return FormatValue(m)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if h, ok := item.(map[string]any); ok {
				if name, ok := h["name"].(string); ok {
					parts = append(parts, strings.TrimSpace(name+" "+FormatValue(h["percentage"])))
					continue
				}
			}
			parts = append(parts, FormatValue(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(t)
	}
}
