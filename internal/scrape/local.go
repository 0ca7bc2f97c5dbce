package scrape

import (
	"context"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fundqa/internal/fetcher"
)

// Getter is the fetcher surface LocalScraper needs.
type Getter interface {
	Get(ctx context.Context, url string) (*fetcher.Response, error)
}

// LocalScraper fetches raw HTML directly.
type LocalScraper struct {
	fetch Getter
}

// NewLocalScraper wraps a fetcher.
func NewLocalScraper(f Getter) *LocalScraper {
	return &LocalScraper{fetch: f}
}

func (l *LocalScraper) Name() string           { return "local_http" }
func (l *LocalScraper) Supports(_ string) bool { return true }

// Scrape fetches targetURL and rejects blocked, failed or empty responses.
func (l *LocalScraper) Scrape(ctx context.Context, targetURL string) (*Page, error) {
	resp, err := l.fetch.Get(ctx, targetURL)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: fetch")
	}

	if block := DetectBlock(resp.StatusCode, resp.Header, resp.Body); block != BlockNone {
		return nil, eris.Errorf("local_http: blocked (%s)", block)
	}
	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("local_http: status %d", resp.StatusCode)
	}
	if len(resp.Body) < 100 {
		return nil, eris.New("local_http: empty page")
	}

	return &Page{
		URL:        targetURL,
		Title:      extractTitle(resp.Body),
		HTML:       string(resp.Body),
		StatusCode: resp.StatusCode,
		Source:     l.Name(),
	}, nil
}

var titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

func extractTitle(body []byte) string {
	if m := titleRe.FindSubmatch(body); len(m) > 1 {
		return strings.TrimSpace(string(m[1]))
	}
	return ""
}
