// Package store persists scraped schemes, their per-field data and the
// scrape audit log.
package store

import (
	"context"

	"github.com/sells-group/fundqa/internal/model"
)

// LogFilter narrows ListScrapeLogs.
type LogFilter struct {
	URL    string             `json:"url,omitempty"`
	Status model.ScrapeStatus `json:"status,omitempty"`
	Limit  int                `json:"limit,omitempty"`
}

// Store defines the persistence interface for scraped fund data.
type Store interface {
	// Schemes
	UpsertScheme(ctx context.Context, scheme model.Scheme) (string, error)
	ListSchemes(ctx context.Context) ([]model.Scheme, error)

	// Scheme data
	UpsertSchemeData(ctx context.Context, data []model.SchemeDatum) error
	GetSchemeData(ctx context.Context, schemeID string) ([]model.SchemeDatum, error)

	// Scrape log
	AppendScrapeLog(ctx context.Context, entry model.ScrapeLog) error
	ListScrapeLogs(ctx context.Context, filter LogFilter) ([]model.ScrapeLog, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultLogLimit = 100

func logLimit(f LogFilter) int {
	if f.Limit <= 0 {
		return defaultLogLimit
	}
	return f.Limit
}
