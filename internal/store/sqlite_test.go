package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fundqa/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

const elssURL = "https://groww.in/mutual-funds/uti-elss-tax-saver-fund-direct-growth"

// --- Schemes ---

func TestSQLite_UpsertScheme_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	id1, err := st.UpsertScheme(ctx, model.Scheme{Name: "UTI ELSS Tax Saver Fund", SourceURL: elssURL})
	require.NoError(t, err)
	require.NotEmpty(t, id1)

	id2, err := st.UpsertScheme(ctx, model.Scheme{Name: "UTI ELSS Tax Saver Fund Direct Growth", Code: "uti-elss", SourceURL: elssURL})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	schemes, err := st.ListSchemes(ctx)
	require.NoError(t, err)
	require.Len(t, schemes, 1)
	assert.Equal(t, "UTI ELSS Tax Saver Fund Direct Growth", schemes[0].Name)
	assert.Equal(t, "uti-elss", schemes[0].Code)
	assert.Equal(t, model.DefaultFundHouse, schemes[0].FundHouse)
}

func TestSQLite_ListSchemes_OrderedByURL(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, u := range []string{"https://groww.in/mutual-funds/z", "https://groww.in/mutual-funds/a"} {
		_, err := st.UpsertScheme(ctx, model.Scheme{Name: u, SourceURL: u})
		require.NoError(t, err)
	}

	schemes, err := st.ListSchemes(ctx)
	require.NoError(t, err)
	require.Len(t, schemes, 2)
	assert.Equal(t, "https://groww.in/mutual-funds/a", schemes[0].SourceURL)
}

// --- Scheme data ---

func TestSQLite_SchemeData_UpsertOverwrites(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	id, err := st.UpsertScheme(ctx, model.Scheme{Name: "UTI ELSS", SourceURL: elssURL})
	require.NoError(t, err)

	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.UpsertSchemeData(ctx, []model.SchemeDatum{
		{SchemeID: id, DataType: model.FieldNAV, Value: "180.10", SourceURL: elssURL, ScrapedAt: at},
		{SchemeID: id, DataType: model.FieldExpenseRatio, Value: "0.91%", SourceURL: elssURL, ScrapedAt: at},
	}))
	require.NoError(t, st.UpsertSchemeData(ctx, []model.SchemeDatum{
		{SchemeID: id, DataType: model.FieldNAV, Value: "182.45", SourceURL: elssURL, ScrapedAt: at.Add(24 * time.Hour)},
	}))

	data, err := st.GetSchemeData(ctx, id)
	require.NoError(t, err)
	require.Len(t, data, 2)

	// Ordered by data_type.
	assert.Equal(t, model.FieldExpenseRatio, data[0].DataType)
	assert.Equal(t, model.FieldNAV, data[1].DataType)
	assert.Equal(t, "182.45", data[1].Value)
}

func TestSQLite_SchemeData_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.UpsertSchemeData(context.Background(), nil))

	data, err := st.GetSchemeData(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestSQLite_SchemeData_UnknownSchemeRejected(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpsertSchemeData(context.Background(), []model.SchemeDatum{
		{SchemeID: "no-such-scheme", DataType: model.FieldNAV, Value: "1", SourceURL: elssURL},
	})
	assert.Error(t, err)
}

// --- Scrape log ---

func TestSQLite_ScrapeLog_AppendAndFilter(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, st.AppendScrapeLog(ctx, model.ScrapeLog{
		SchemeURL: elssURL, Status: model.ScrapeStatusSuccess, DataCount: 12, ScrapedAt: base,
	}))
	require.NoError(t, st.AppendScrapeLog(ctx, model.ScrapeLog{
		SchemeURL: elssURL, Status: model.ScrapeStatusPartial, Warnings: []string{"Missing NAV"}, DataCount: 8, ScrapedAt: base.Add(time.Hour),
	}))
	require.NoError(t, st.AppendScrapeLog(ctx, model.ScrapeLog{
		SchemeURL: "https://example.com/x", Status: model.ScrapeStatusFailed, Errors: []string{"Invalid source URL"}, ScrapedAt: base,
	}))

	all, err := st.ListScrapeLogs(ctx, LogFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byURL, err := st.ListScrapeLogs(ctx, LogFilter{URL: elssURL})
	require.NoError(t, err)
	require.Len(t, byURL, 2)
	assert.Equal(t, model.ScrapeStatusPartial, byURL[0].Status)
	assert.Equal(t, []string{"Missing NAV"}, byURL[0].Warnings)
	assert.Empty(t, byURL[0].Errors)

	failed, err := st.ListScrapeLogs(ctx, LogFilter{Status: model.ScrapeStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, []string{"Invalid source URL"}, failed[0].Errors)
	assert.Equal(t, 0, failed[0].DataCount)

	limited, err := st.ListScrapeLogs(ctx, LogFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestLogLimit(t *testing.T) {
	assert.Equal(t, defaultLogLimit, logLimit(LogFilter{}))
	assert.Equal(t, 5, logLimit(LogFilter{Limit: 5}))
}
