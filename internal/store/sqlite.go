package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/fundqa/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// The parent directory is created when missing.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dsn); dsn != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "sqlite: create dir %s", dir)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Pragmas below are per connection; one connection keeps them in force
	// and serializes writers.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS schemes (
	id          TEXT PRIMARY KEY,
	scheme_name TEXT NOT NULL,
	scheme_code TEXT,
	fund_house  TEXT NOT NULL,
	source_url  TEXT NOT NULL UNIQUE,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS scheme_data (
	scheme_id  TEXT NOT NULL REFERENCES schemes(id),
	data_type  TEXT NOT NULL,
	value      TEXT NOT NULL,
	source_url TEXT NOT NULL,
	scraped_at DATETIME NOT NULL,
	PRIMARY KEY (scheme_id, data_type)
);

CREATE TABLE IF NOT EXISTS scrape_log (
	id         TEXT PRIMARY KEY,
	scheme_url TEXT NOT NULL,
	status     TEXT NOT NULL,
	errors     TEXT NOT NULL DEFAULT '[]',
	warnings   TEXT NOT NULL DEFAULT '[]',
	data_count INTEGER NOT NULL DEFAULT 0,
	scraped_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scheme_data_type ON scheme_data(data_type);
CREATE INDEX IF NOT EXISTS idx_scrape_log_url ON scrape_log(scheme_url);
CREATE INDEX IF NOT EXISTS idx_scrape_log_status ON scrape_log(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertScheme inserts a scheme or refreshes the one with the same source URL,
// returning the stored id.
func (s *SQLiteStore) UpsertScheme(ctx context.Context, scheme model.Scheme) (string, error) {
	now := time.Now().UTC()
	var id string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO schemes (id, scheme_name, scheme_code, fund_house, source_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(source_url) DO UPDATE SET
			scheme_name = excluded.scheme_name,
			scheme_code = excluded.scheme_code,
			fund_house  = excluded.fund_house,
			updated_at  = excluded.updated_at
		 RETURNING id`,
		uuid.New().String(), scheme.Name, scheme.Code, fundHouse(scheme), scheme.SourceURL, now, now,
	).Scan(&id)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: upsert scheme %s", scheme.SourceURL)
	}
	return id, nil
}

func (s *SQLiteStore) ListSchemes(ctx context.Context) ([]model.Scheme, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scheme_name, COALESCE(scheme_code, ''), fund_house, source_url, created_at, updated_at
		 FROM schemes ORDER BY source_url`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list schemes")
	}
	defer rows.Close()

	var out []model.Scheme
	for rows.Next() {
		var sc model.Scheme
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.Code, &sc.FundHouse, &sc.SourceURL, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan scheme")
		}
		out = append(out, sc)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list schemes iterate")
}

// UpsertSchemeData writes every datum in one transaction; an existing
// (scheme_id, data_type) pair is overwritten.
func (s *SQLiteStore) UpsertSchemeData(ctx context.Context, data []model.SchemeDatum) error {
	if len(data) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin scheme data tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO scheme_data (scheme_id, data_type, value, source_url, scraped_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(scheme_id, data_type) DO UPDATE SET
			value      = excluded.value,
			source_url = excluded.source_url,
			scraped_at = excluded.scraped_at`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare scheme data upsert")
	}
	defer stmt.Close()

	for _, d := range data {
		if _, err := stmt.ExecContext(ctx, d.SchemeID, d.DataType, d.Value, d.SourceURL, scrapedAt(d.ScrapedAt)); err != nil {
			return eris.Wrapf(err, "sqlite: upsert scheme data %s/%s", d.SchemeID, d.DataType)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit scheme data")
}

func (s *SQLiteStore) GetSchemeData(ctx context.Context, schemeID string) ([]model.SchemeDatum, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT scheme_id, data_type, value, source_url, scraped_at
		 FROM scheme_data WHERE scheme_id = ? ORDER BY data_type`,
		schemeID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get scheme data %s", schemeID)
	}
	defer rows.Close()

	var out []model.SchemeDatum
	for rows.Next() {
		var d model.SchemeDatum
		if err := rows.Scan(&d.SchemeID, &d.DataType, &d.Value, &d.SourceURL, &d.ScrapedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan scheme datum")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: get scheme data iterate")
}

func (s *SQLiteStore) AppendScrapeLog(ctx context.Context, entry model.ScrapeLog) error {
	errs, warns, err := encodeMessages(entry)
	if err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scrape_log (id, scheme_url, status, errors, warnings, data_count, scraped_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.SchemeURL, string(entry.Status), string(errs), string(warns), entry.DataCount, scrapedAt(entry.ScrapedAt),
	)
	return eris.Wrapf(err, "sqlite: append scrape log %s", entry.SchemeURL)
}

func (s *SQLiteStore) ListScrapeLogs(ctx context.Context, filter LogFilter) ([]model.ScrapeLog, error) {
	query := `SELECT id, scheme_url, status, errors, warnings, data_count, scraped_at FROM scrape_log WHERE 1=1`
	var args []any

	if filter.URL != "" {
		query += ` AND scheme_url = ?`
		args = append(args, filter.URL)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY scraped_at DESC LIMIT ?`
	args = append(args, logLimit(filter))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list scrape logs")
	}
	defer rows.Close()

	var out []model.ScrapeLog
	for rows.Next() {
		l, err := scanScrapeLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list scrape logs iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanScrapeLog(row scannable) (*model.ScrapeLog, error) {
	var l model.ScrapeLog
	var errs, warns string
	if err := row.Scan(&l.ID, &l.SchemeURL, &l.Status, &errs, &warns, &l.DataCount, &l.ScrapedAt); err != nil {
		return nil, eris.Wrap(err, "scan scrape log")
	}
	if err := decodeMessages(&l, []byte(errs), []byte(warns)); err != nil {
		return nil, err
	}
	return &l, nil
}

func encodeMessages(entry model.ScrapeLog) ([]byte, []byte, error) {
	errs, err := json.Marshal(nonNil(entry.Errors))
	if err != nil {
		return nil, nil, eris.Wrap(err, "marshal scrape errors")
	}
	warns, err := json.Marshal(nonNil(entry.Warnings))
	if err != nil {
		return nil, nil, eris.Wrap(err, "marshal scrape warnings")
	}
	return errs, warns, nil
}

func decodeMessages(l *model.ScrapeLog, errs, warns []byte) error {
	if err := json.Unmarshal(errs, &l.Errors); err != nil {
		return eris.Wrap(err, "unmarshal scrape errors")
	}
	if err := json.Unmarshal(warns, &l.Warnings); err != nil {
		return eris.Wrap(err, "unmarshal scrape warnings")
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func fundHouse(s model.Scheme) string {
	if s.FundHouse == "" {
		return model.DefaultFundHouse
	}
	return s.FundHouse
}

func scrapedAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
