package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fundqa/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schemes`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertScheme(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO schemes .* ON CONFLICT \(source_url\) DO UPDATE`).
		WithArgs(pgxmock.AnyArg(), "UTI Nifty 50 Index Fund", "uti-nifty", "UTI", "https://groww.in/mutual-funds/uti-nifty", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("existing-id"))

	id, err := s.UpsertScheme(context.Background(), model.Scheme{
		Name: "UTI Nifty 50 Index Fund", Code: "uti-nifty", SourceURL: "https://groww.in/mutual-funds/uti-nifty",
	})
	require.NoError(t, err)
	assert.Equal(t, "existing-id", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertScheme_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO schemes`).WillReturnError(errors.New("connection reset"))

	_, err := s.UpsertScheme(context.Background(), model.Scheme{Name: "x", SourceURL: "u"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: upsert scheme u")
}

func TestPostgresStore_UpsertSchemeData_BulkUpsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_scheme_data"}, schemeDataUpsert.Columns).WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "scheme_data"`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.UpsertSchemeData(context.Background(), []model.SchemeDatum{
		{SchemeID: "s1", DataType: model.FieldNAV, Value: "10", SourceURL: "u", ScrapedAt: time.Now()},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSchemeData(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT scheme_id, data_type, value, source_url, scraped_at FROM scheme_data WHERE scheme_id = \$1`).
		WithArgs("s1").
		WillReturnRows(pgxmock.NewRows([]string{"scheme_id", "data_type", "value", "source_url", "scraped_at"}).
			AddRow("s1", "expense_ratio", "0.9%", "u", at).
			AddRow("s1", "nav", "10", "u", at))

	data, err := s.GetSchemeData(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, data, 2)
	assert.Equal(t, "nav", data[1].DataType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendScrapeLog(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO scrape_log`).
		WithArgs(pgxmock.AnyArg(), "u", "partial", []byte(`[]`), []byte(`["Missing NAV"]`), 3, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.AppendScrapeLog(context.Background(), model.ScrapeLog{
		SchemeURL: "u", Status: model.ScrapeStatusPartial, Warnings: []string{"Missing NAV"}, DataCount: 3,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListScrapeLogs_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM scrape_log WHERE true AND scheme_url = \$1 AND status = \$2 ORDER BY scraped_at DESC LIMIT \$3`).
		WithArgs("u", "failed", 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "scheme_url", "status", "errors", "warnings", "data_count", "scraped_at"}).
			AddRow("l1", "u", model.ScrapeStatusFailed, []byte(`["Invalid source URL"]`), []byte(`[]`), 0, at))

	logs, err := s.ListScrapeLogs(context.Background(), LogFilter{URL: "u", Status: model.ScrapeStatusFailed, Limit: 10})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, []string{"Invalid source URL"}, logs[0].Errors)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Close_NilCloseFn(t *testing.T) {
	s := &PostgresStore{}
	assert.NoError(t, s.Close())
}
