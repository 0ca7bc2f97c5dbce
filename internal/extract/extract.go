// Package extract turns a scraped fund page into structured fields. Each
// field has an ordered battery of selectors and patterns; the first hit wins
// and a miss leaves the field empty.
package extract

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/sells-group/fundqa/internal/model"
	"github.com/sells-group/fundqa/internal/scrape"
)

// document is the parsed form of a page that the field extractors read.
type document struct {
	root  *html.Node // nil for text-only pages
	raw   string     // HTML source, or the text itself for text-only pages
	text  string     // visible text with one block per line
	title string
}

func newDocument(page *scrape.Page) *document {
	d := &document{title: page.Title}
	if page.HTML == "" {
		d.raw = page.Text
		d.text = normalizeLines(page.Text)
		return d
	}

	d.raw = page.HTML
	root, err := html.Parse(strings.NewReader(page.HTML))
	if err != nil {
		// x/net/html recovers from nearly anything; fall back to the raw source.
		zap.L().Warn("extract: parse html", zap.String("url", page.URL), zap.Error(err))
		d.text = normalizeLines(page.HTML)
		return d
	}
	d.root = root
	d.text = visibleText(root)
	return d
}

// Extract runs every field extractor over page.
func Extract(page *scrape.Page, scrapedAt time.Time) *model.FundPage {
	d := newDocument(page)

	fp := &model.FundPage{
		SourceURL:             page.URL,
		FundName:              d.fundName(),
		MinSIP:                d.minSIP(),
		FundSize:              d.fundSize(),
		PERatio:               d.ratio(peRatioPatterns),
		PBRatio:               d.ratio(pbRatioPatterns),
		FundReturns:           d.fundReturns(),
		CategoryAverages:      d.categoryAverages(),
		Rank:                  d.rank(),
		ExpenseRatio:          d.expenseRatio(),
		ExitLoad:              d.exitLoad(),
		StampDuty:             d.stampDuty(),
		FundManager:           d.fundManager(),
		LockIn:                d.lockIn(),
		AnnualisedReturns:     firstMatches(d.text, annualisedPatterns, percentValue),
		Holdings:              d.holdings(),
		RiskMetrics:           d.riskMetrics(),
		Riskometer:            d.riskometer(),
		Benchmark:             d.benchmark(),
		StatementDownloadInfo: d.statementDownloadInfo(),
		ScrapedAt:             scrapedAt.UTC(),
	}
	fp.NAV, fp.NAVDate = d.nav()
	fp.SchemeType, fp.SubCategory, fp.IsELSS, fp.CategoryLabel = d.schemeTags()

	zap.L().Debug("extract: page parsed",
		zap.String("url", page.URL),
		zap.String("fund", fp.FundName),
		zap.Int("fields", len(fp.Datums(""))),
	)
	return fp
}
