// Package scrape fetches fund pages, falling back from a direct fetch to the
// Jina Reader when the site blocks or renders client-side.
package scrape

import "context"

// Page is one fetched page. HTML is set by scrapers that return the raw
// document; Text is set by scrapers that return pre-rendered text.
type Page struct {
	URL        string
	Title      string
	HTML       string
	Text       string
	StatusCode int
	Source     string
}

// Scraper fetches a single URL.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Page, error)
	Name() string
	Supports(url string) bool
}
