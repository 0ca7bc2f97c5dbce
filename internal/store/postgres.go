package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/fundqa/internal/db"
	"github.com/sells-group/fundqa/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// preparedStatements are prepared on each new connection.
var preparedStatements = map[string]string{
	"upsert_scheme": `INSERT INTO schemes (id, scheme_name, scheme_code, fund_house, source_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (source_url) DO UPDATE SET
			scheme_name = EXCLUDED.scheme_name,
			scheme_code = EXCLUDED.scheme_code,
			fund_house  = EXCLUDED.fund_house,
			updated_at  = EXCLUDED.updated_at
		RETURNING id`,
	"get_scheme_data": `SELECT scheme_id, data_type, value, source_url, scraped_at FROM scheme_data WHERE scheme_id = $1 ORDER BY data_type`,
	"insert_scrape_log": `INSERT INTO scrape_log (id, scheme_url, status, errors, warnings, data_count, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg db.PoolConfig) (*PostgresStore, error) {
	prev := poolCfg.AfterConnect
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		if prev != nil {
			return prev(ctx, conn)
		}
		return nil
	}

	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool exposes the connection pool so the vector index can share it.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS schemes (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	scheme_name TEXT NOT NULL,
	scheme_code TEXT,
	fund_house  TEXT NOT NULL,
	source_url  TEXT NOT NULL UNIQUE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS scheme_data (
	scheme_id  TEXT NOT NULL REFERENCES schemes(id),
	data_type  TEXT NOT NULL,
	value      TEXT NOT NULL,
	source_url TEXT NOT NULL,
	scraped_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (scheme_id, data_type)
);

CREATE TABLE IF NOT EXISTS scrape_log (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	scheme_url TEXT NOT NULL,
	status     TEXT NOT NULL,
	errors     JSONB NOT NULL DEFAULT '[]',
	warnings   JSONB NOT NULL DEFAULT '[]',
	data_count INTEGER NOT NULL DEFAULT 0,
	scraped_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scheme_data_type ON scheme_data(data_type);
CREATE INDEX IF NOT EXISTS idx_scrape_log_url ON scrape_log(scheme_url);
CREATE INDEX IF NOT EXISTS idx_scrape_log_status ON scrape_log(status);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertScheme(ctx context.Context, scheme model.Scheme) (string, error) {
	now := time.Now().UTC()
	var id string
	err := s.pool.QueryRow(ctx, preparedStatements["upsert_scheme"],
		uuid.New().String(), scheme.Name, scheme.Code, fundHouse(scheme), scheme.SourceURL, now, now,
	).Scan(&id)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: upsert scheme %s", scheme.SourceURL)
	}
	return id, nil
}

func (s *PostgresStore) ListSchemes(ctx context.Context) ([]model.Scheme, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, scheme_name, COALESCE(scheme_code, ''), fund_house, source_url, created_at, updated_at
		 FROM schemes ORDER BY source_url`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list schemes")
	}
	defer rows.Close()

	var out []model.Scheme
	for rows.Next() {
		var sc model.Scheme
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.Code, &sc.FundHouse, &sc.SourceURL, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan scheme")
		}
		out = append(out, sc)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list schemes iterate")
}

var schemeDataUpsert = db.UpsertConfig{
	Table:        "scheme_data",
	Columns:      []string{"scheme_id", "data_type", "value", "source_url", "scraped_at"},
	ConflictKeys: []string{"scheme_id", "data_type"},
}

// UpsertSchemeData merges all rows through a COPY-staged bulk upsert.
func (s *PostgresStore) UpsertSchemeData(ctx context.Context, data []model.SchemeDatum) error {
	rows := make([][]any, len(data))
	for i, d := range data {
		rows[i] = []any{d.SchemeID, d.DataType, d.Value, d.SourceURL, scrapedAt(d.ScrapedAt)}
	}
	_, err := db.BulkUpsert(ctx, s.pool, schemeDataUpsert, rows)
	return eris.Wrap(err, "postgres: upsert scheme data")
}

func (s *PostgresStore) GetSchemeData(ctx context.Context, schemeID string) ([]model.SchemeDatum, error) {
	rows, err := s.pool.Query(ctx, preparedStatements["get_scheme_data"], schemeID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get scheme data %s", schemeID)
	}
	defer rows.Close()

	var out []model.SchemeDatum
	for rows.Next() {
		var d model.SchemeDatum
		if err := rows.Scan(&d.SchemeID, &d.DataType, &d.Value, &d.SourceURL, &d.ScrapedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan scheme datum")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: get scheme data iterate")
}

func (s *PostgresStore) AppendScrapeLog(ctx context.Context, entry model.ScrapeLog) error {
	errs, warns, err := encodeMessages(entry)
	if err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	_, err = s.pool.Exec(ctx, preparedStatements["insert_scrape_log"],
		entry.ID, entry.SchemeURL, string(entry.Status), errs, warns, entry.DataCount, scrapedAt(entry.ScrapedAt),
	)
	return eris.Wrapf(err, "postgres: append scrape log %s", entry.SchemeURL)
}

func (s *PostgresStore) ListScrapeLogs(ctx context.Context, filter LogFilter) ([]model.ScrapeLog, error) {
	query := `SELECT id, scheme_url, status, errors, warnings, data_count, scraped_at FROM scrape_log WHERE true`
	args := []any{}
	argIdx := 1

	if filter.URL != "" {
		query += fmt.Sprintf(` AND scheme_url = $%d`, argIdx)
		args = append(args, filter.URL)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY scraped_at DESC LIMIT $%d`, argIdx)
	args = append(args, logLimit(filter))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scrape logs")
	}
	defer rows.Close()

	var out []model.ScrapeLog
	for rows.Next() {
		var l model.ScrapeLog
		var errs, warns []byte
		if err := rows.Scan(&l.ID, &l.SchemeURL, &l.Status, &errs, &warns, &l.DataCount, &l.ScrapedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan scrape log")
		}
		if err := decodeMessages(&l, errs, warns); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list scrape logs iterate")
}
