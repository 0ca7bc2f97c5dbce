package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/fundqa/internal/compose"
	"github.com/sells-group/fundqa/internal/ingest"
	"github.com/sells-group/fundqa/internal/model"
)

func TestFormatSummary(t *testing.T) {
	var buf bytes.Buffer
	formatSummary(&buf, &ingest.Summary{
		Succeeded: 1,
		Failed:    1,
		Outcomes: []ingest.Outcome{
			{URL: "https://groww.in/mutual-funds/uti-nifty-50-index-fund-direct-growth", FundName: "UTI Nifty 50 Index Fund",
				Status: model.ScrapeStatusSuccess, DataCount: 18},
			{URL: "https://example.com/x", Status: model.ScrapeStatusFailed, Errors: []string{"Invalid URL: https://example.com/x"}},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "UTI Nifty 50 Index Fund")
	assert.Contains(t, out, "error: Invalid URL")
	assert.Contains(t, out, "1 succeeded, 0 partial, 1 failed")
}

func TestFormatSchemesAndLogs(t *testing.T) {
	var buf bytes.Buffer
	formatSchemes(&buf, nil)
	formatLogs(&buf, nil)
	assert.Contains(t, buf.String(), "No schemes stored.")
	assert.Contains(t, buf.String(), "No scrape logs.")

	buf.Reset()
	ts := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	formatSchemes(&buf, []model.Scheme{{Name: "UTI Flexi Cap Fund", FundHouse: "UTI", SourceURL: "https://groww.in/mutual-funds/uti-flexi-cap-fund-direct-growth", UpdatedAt: ts}})
	formatLogs(&buf, []model.ScrapeLog{{SchemeURL: "https://groww.in/mutual-funds/uti-flexi-cap-fund-direct-growth", Status: model.ScrapeStatusPartial, DataCount: 12, Warnings: []string{"w"}, ScrapedAt: ts}})
	assert.Contains(t, buf.String(), "UTI Flexi Cap Fund")
	assert.Contains(t, buf.String(), "2025-03-01 09:00")
	assert.Contains(t, buf.String(), "partial")
}

func TestPrintAnswer(t *testing.T) {
	var buf bytes.Buffer
	printAnswer(&buf, compose.Refusal())
	assert.Equal(t, compose.RefusalText+"\n", buf.String())

	buf.Reset()
	printAnswer(&buf, compose.Greeting())
	assert.Contains(t, buf.String(), "Sources:\n  - Groww - UTI Mutual Funds (reference): "+compose.ReferenceURL)
}
