package index

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	"github.com/rotisserie/eris"

	"github.com/sells-group/fundqa/internal/db"
	"github.com/sells-group/fundqa/internal/model"
)

// PGStore keeps records in a pgvector table. Save replaces the whole index
// in one transaction so readers never see a mix of two builds.
type PGStore struct {
	pool db.Pool
}

// NewPGStore uses an existing pool, normally the scheme store's.
func NewPGStore(pool db.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const pgIndexMigration = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS chunk_embeddings (
	id         TEXT PRIMARY KEY,
	position   INTEGER NOT NULL,
	fund_name  TEXT NOT NULL,
	source_url TEXT NOT NULL,
	chunk_type TEXT NOT NULL,
	data       JSONB NOT NULL,
	embedding  vector NOT NULL
);

CREATE TABLE IF NOT EXISTS index_metadata (
	id           INTEGER PRIMARY KEY DEFAULT 1 CHECK (id = 1),
	version      TEXT NOT NULL,
	chunks_count INTEGER NOT NULL,
	model        TEXT NOT NULL,
	dimensions   INTEGER NOT NULL,
	built_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunk_embeddings_type ON chunk_embeddings(chunk_type);
`

func (p *PGStore) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, pgIndexMigration)
	return eris.Wrap(err, "index: migrate postgres")
}

func (p *PGStore) Save(ctx context.Context, ix *Index) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "index: begin save tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM chunk_embeddings`); err != nil {
		return eris.Wrap(err, "index: clear records")
	}

	for i, r := range ix.Records {
		data, err := json.Marshal(r.Chunk.Data)
		if err != nil {
			return eris.Wrapf(err, "index: marshal record %s", r.ID)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO chunk_embeddings (id, position, fund_name, source_url, chunk_type, data, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			r.ID, i, r.Chunk.FundName, r.Chunk.SourceURL, string(r.Chunk.ChunkType), data, pgvector.NewVector(r.Vector),
		); err != nil {
			return eris.Wrapf(err, "index: insert record %s", r.ID)
		}
	}

	m := ix.Metadata
	if _, err := tx.Exec(ctx,
		`INSERT INTO index_metadata (id, version, chunks_count, model, dimensions, built_at)
		 VALUES (1, $1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
			version      = EXCLUDED.version,
			chunks_count = EXCLUDED.chunks_count,
			model        = EXCLUDED.model,
			dimensions   = EXCLUDED.dimensions,
			built_at     = EXCLUDED.built_at`,
		m.Version, m.ChunksCount, m.Model, m.Dimensions, m.Timestamp,
	); err != nil {
		return eris.Wrap(err, "index: write metadata")
	}

	return eris.Wrap(tx.Commit(ctx), "index: commit save")
}

func (p *PGStore) Load(ctx context.Context) (*Index, error) {
	var ix Index
	err := p.pool.QueryRow(ctx,
		`SELECT version, chunks_count, model, dimensions, built_at FROM index_metadata WHERE id = 1`,
	).Scan(&ix.Metadata.Version, &ix.Metadata.ChunksCount, &ix.Metadata.Model, &ix.Metadata.Dimensions, &ix.Metadata.Timestamp)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, eris.New("index: no index has been built")
	}
	if err != nil {
		return nil, eris.Wrap(err, "index: load metadata")
	}

	rows, err := p.pool.Query(ctx,
		`SELECT id, fund_name, source_url, chunk_type, data, embedding::text
		 FROM chunk_embeddings ORDER BY position`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "index: load records")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r      Record
			ct     string
			data   []byte
			rawVec string
		)
		if err := rows.Scan(&r.ID, &r.Chunk.FundName, &r.Chunk.SourceURL, &ct, &data, &rawVec); err != nil {
			return nil, eris.Wrap(err, "index: scan record")
		}
		r.Chunk.ChunkType = model.ChunkType(ct)
		if err := json.Unmarshal(data, &r.Chunk.Data); err != nil {
			return nil, eris.Wrapf(err, "index: decode data of %s", r.ID)
		}
		var vec pgvector.Vector
		if err := vec.Scan(rawVec); err != nil {
			return nil, eris.Wrapf(err, "index: decode vector of %s", r.ID)
		}
		r.Vector = vec.Slice()
		ix.Records = append(ix.Records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "index: load records iterate")
	}
	return &ix, nil
}
