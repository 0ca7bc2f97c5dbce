package model

import (
	"encoding/json"
	"time"
)

// DefaultFundHouse is recorded on schemes when the page does not name one.
const DefaultFundHouse = "UTI"

// Scheme is one scraped fund page. SourceURL is the identity.
type Scheme struct {
	ID        string    `json:"id"`
	Name      string    `json:"scheme_name"`
	Code      string    `json:"scheme_code,omitempty"`
	FundHouse string    `json:"fund_house"`
	SourceURL string    `json:"source_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SchemeDatum is a single (scheme, field) value. Scalars are stored as the raw
// string; maps and lists are stored as JSON.
type SchemeDatum struct {
	SchemeID  string    `json:"scheme_id"`
	DataType  string    `json:"data_type"`
	Value     string    `json:"value"`
	SourceURL string    `json:"source_url"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// Decoded returns the datum value as a string, map or list. JSON objects and
// arrays are decoded; anything else is returned verbatim.
func (d SchemeDatum) Decoded() any {
	if len(d.Value) > 0 && (d.Value[0] == '{' || d.Value[0] == '[') {
		var v any
		if err := json.Unmarshal([]byte(d.Value), &v); err == nil {
			return v
		}
	}
	return d.Value
}

// ScrapeStatus is the outcome recorded for a scrape attempt.
type ScrapeStatus string

const (
	ScrapeStatusSuccess ScrapeStatus = "success"
	ScrapeStatusPartial ScrapeStatus = "partial"
	ScrapeStatusFailed  ScrapeStatus = "failed"
)

// ScrapeLog is an append-only audit row for one scrape attempt.
type ScrapeLog struct {
	ID        string       `json:"id"`
	SchemeURL string       `json:"scheme_url"`
	Status    ScrapeStatus `json:"status"`
	Errors    []string     `json:"errors"`
	Warnings  []string     `json:"warnings"`
	DataCount int          `json:"data_count"`
	ScrapedAt time.Time    `json:"scraped_at"`
}
