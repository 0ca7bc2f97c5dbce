// Package ingest runs the scrape → extract → validate → persist flow for a
// set of fund pages.
package ingest

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/fundqa/internal/extract"
	"github.com/sells-group/fundqa/internal/model"
	"github.com/sells-group/fundqa/internal/scrape"
	"github.com/sells-group/fundqa/internal/store"
	"github.com/sells-group/fundqa/internal/validate"
)

// Outcome is the result of ingesting one URL.
type Outcome struct {
	URL       string             `json:"url"`
	SchemeID  string             `json:"scheme_id,omitempty"`
	FundName  string             `json:"fund_name,omitempty"`
	Status    model.ScrapeStatus `json:"status"`
	DataCount int                `json:"data_count"`
	Errors    []string           `json:"errors,omitempty"`
	Warnings  []string           `json:"warnings,omitempty"`
}

// Summary aggregates a batch run. Outcomes are in input order.
type Summary struct {
	Succeeded int       `json:"succeeded"`
	Partial   int       `json:"partial"`
	Failed    int       `json:"failed"`
	Outcomes  []Outcome `json:"outcomes"`
}

// Ingestor scrapes pages and persists what it extracts.
type Ingestor struct {
	scraper   scrape.Scraper
	store     store.Store
	fundHouse string
	now       func() time.Time
}

// New creates an Ingestor. fundHouse is recorded on every scheme; empty
// means the store default.
func New(s scrape.Scraper, st store.Store, fundHouse string) *Ingestor {
	return &Ingestor{scraper: s, store: st, fundHouse: fundHouse, now: time.Now}
}

// Run ingests urls with at most concurrency pages in flight. A failing URL
// never aborts the batch; only context cancellation is returned as an error.
func (in *Ingestor) Run(ctx context.Context, urls []string, concurrency int) (*Summary, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("ingest: starting",
		zap.Int("urls", len(urls)),
		zap.Int("concurrency", concurrency),
	)

	outcomes := make([]Outcome, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, u := range urls {
		g.Go(func() error {
			outcomes[i] = in.Ingest(gctx, u)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "ingest: run")
	}

	sum := &Summary{Outcomes: outcomes}
	for _, o := range outcomes {
		switch o.Status {
		case model.ScrapeStatusSuccess:
			sum.Succeeded++
		case model.ScrapeStatusPartial:
			sum.Partial++
		default:
			sum.Failed++
		}
	}

	zap.L().Info("ingest: complete",
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("partial", sum.Partial),
		zap.Int("failed", sum.Failed),
	)
	return sum, ctx.Err()
}

// Ingest scrapes, validates and stores a single URL, then appends a scrape
// log entry. Pages that fail validation are logged but not stored.
func (in *Ingestor) Ingest(ctx context.Context, url string) Outcome {
	log := zap.L().With(zap.String("url", url))
	out := Outcome{URL: url, Status: model.ScrapeStatusFailed}

	defer func() {
		entry := model.ScrapeLog{
			SchemeURL: url,
			Status:    out.Status,
			Errors:    out.Errors,
			Warnings:  out.Warnings,
			DataCount: out.DataCount,
			ScrapedAt: in.now().UTC(),
		}
		// Logging must outlive a cancelled batch.
		if err := in.store.AppendScrapeLog(context.WithoutCancel(ctx), entry); err != nil {
			log.Error("ingest: append scrape log", zap.Error(err))
		}
	}()

	if !validate.URL(url) {
		out.Errors = []string{"Invalid URL: " + url}
		log.Warn("ingest: rejected url")
		return out
	}

	page, err := in.scraper.Scrape(ctx, url)
	if err != nil {
		out.Errors = []string{"Scrape failed: " + err.Error()}
		log.Error("ingest: scrape failed", zap.Error(err))
		return out
	}

	fp := extract.Extract(page, in.now())
	fp.SourceURL = url
	out.FundName = fp.FundName

	result := validate.Page(fp)
	out.Errors, out.Warnings = result.Errors, result.Warnings
	if !result.Valid() {
		log.Warn("ingest: validation failed", zap.Strings("errors", result.Errors))
		return out
	}

	id, err := in.store.UpsertScheme(ctx, model.Scheme{
		Name:      fp.FundName,
		FundHouse: in.fundHouse,
		SourceURL: url,
	})
	if err != nil {
		out.Errors = append(out.Errors, "Persist failed: "+err.Error())
		log.Error("ingest: upsert scheme", zap.Error(err))
		return out
	}
	out.SchemeID = id

	data := fp.Datums(id)
	if err := in.store.UpsertSchemeData(ctx, data); err != nil {
		out.Errors = append(out.Errors, "Persist failed: "+err.Error())
		log.Error("ingest: upsert scheme data", zap.Error(err))
		return out
	}

	out.DataCount = len(data)
	out.Status = result.Status()
	log.Info("ingest: stored",
		zap.String("fund", fp.FundName),
		zap.String("status", string(out.Status)),
		zap.Int("fields", out.DataCount),
		zap.Int("warnings", len(out.Warnings)),
	)
	return out
}
