// Package index stores embedded chunks together with the identity of the
// model that embedded them. Records pair each chunk with its vector, so the
// two can never drift out of step.
package index

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fundqa/internal/chunk"
	"github.com/sells-group/fundqa/internal/embed"
	"github.com/sells-group/fundqa/internal/model"
)

// Version is written to the metadata of every index this package builds.
const Version = "2.0"

var (
	// ErrModelMismatch means the index was embedded with a different model
	// or dimensionality than the live embedder.
	ErrModelMismatch = eris.New("index: embedding model mismatch")
	// ErrCorrupt means the metadata disagrees with the records.
	ErrCorrupt = eris.New("index: metadata does not match records")
)

// recordNamespace scopes record IDs to this application.
var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://groww.in/mutual-funds/amc/uti-mutual-funds"))

// Record is one chunk and its embedding.
type Record struct {
	ID     string      `json:"id"`
	Chunk  model.Chunk `json:"chunk"`
	Vector []float32   `json:"vector"`
}

// Metadata describes how an index was built.
type Metadata struct {
	Version     string    `json:"version"`
	ChunksCount int       `json:"chunks_count"`
	Model       string    `json:"model"`
	Dimensions  int       `json:"dimensions"`
	Timestamp   time.Time `json:"timestamp"`
}

// Index is a complete set of records with their metadata.
type Index struct {
	Metadata Metadata `json:"metadata"`
	Records  []Record `json:"records"`
}

// Store persists an index.
type Store interface {
	Save(ctx context.Context, ix *Index) error
	Load(ctx context.Context) (*Index, error)
}

// RecordID is a UUIDv5 of the chunk's fund, source URL and type.
func RecordID(c model.Chunk) string {
	key := c.FundName + "|" + c.SourceURL + "|" + string(c.ChunkType)
	return uuid.NewSHA1(recordNamespace, []byte(key)).String()
}

// Build embeds every chunk with e.
func Build(ctx context.Context, e embed.Embedder, chunks []model.Chunk, now time.Time) (*Index, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = chunk.Text(c)
	}

	vecs, err := e.Embed(ctx, texts)
	if err != nil {
		return nil, eris.Wrap(err, "index: embed chunks")
	}
	if len(vecs) != len(chunks) {
		return nil, eris.Errorf("index: embedder returned %d vectors for %d chunks", len(vecs), len(chunks))
	}

	ix := &Index{
		Metadata: Metadata{
			Version:     Version,
			ChunksCount: len(chunks),
			Model:       e.Model(),
			Dimensions:  e.Dimensions(),
			Timestamp:   now.UTC(),
		},
		Records: make([]Record, len(chunks)),
	}
	for i, c := range chunks {
		ix.Records[i] = Record{ID: RecordID(c), Chunk: c, Vector: vecs[i]}
	}
	if ix.Metadata.Dimensions <= 0 && len(vecs) > 0 {
		ix.Metadata.Dimensions = len(vecs[0])
	}
	return ix, ix.Validate()
}

// Validate checks the record count and that every vector has the declared
// number of dimensions.
func (ix *Index) Validate() error {
	if ix.Metadata.ChunksCount != len(ix.Records) {
		return eris.Wrapf(ErrCorrupt, "chunks_count %d, records %d", ix.Metadata.ChunksCount, len(ix.Records))
	}
	for i, r := range ix.Records {
		if len(r.Vector) != ix.Metadata.Dimensions {
			return eris.Wrapf(ErrCorrupt, "record %d (%s) has %d dimensions, want %d",
				i, r.ID, len(r.Vector), ix.Metadata.Dimensions)
		}
	}
	return nil
}

// CheckModel fails with ErrModelMismatch unless e produced this index.
func (ix *Index) CheckModel(e embed.Embedder) error {
	if ix.Metadata.Model != e.Model() {
		return eris.Wrapf(ErrModelMismatch, "index built with %q, embedder is %q", ix.Metadata.Model, e.Model())
	}
	if d := e.Dimensions(); d > 0 && d != ix.Metadata.Dimensions {
		return eris.Wrapf(ErrModelMismatch, "index has %d dimensions, embedder has %d", ix.Metadata.Dimensions, d)
	}
	return nil
}

// Open loads an index and verifies it against the live embedder.
func Open(ctx context.Context, st Store, e embed.Embedder) (*Index, error) {
	ix, err := st.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := ix.Validate(); err != nil {
		return nil, err
	}
	if err := ix.CheckModel(e); err != nil {
		return nil, err
	}

	zap.L().Info("index loaded",
		zap.Int("records", len(ix.Records)),
		zap.String("model", ix.Metadata.Model),
		zap.Time("built_at", ix.Metadata.Timestamp),
	)
	return ix, nil
}
