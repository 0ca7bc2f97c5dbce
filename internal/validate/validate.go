// Package validate checks extracted fund pages. Validation never fails: a
// bad field becomes an error or warning message and the scrape status is
// derived from which lists are non-empty.
package validate

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/fundqa/internal/model"
)

// Result is the outcome of validating one page.
type Result struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Valid reports whether the page can be persisted.
func (r Result) Valid() bool { return len(r.Errors) == 0 }

// Status maps the result onto a scrape status: any error is a failure,
// warnings alone make it partial.
func (r Result) Status() model.ScrapeStatus {
	switch {
	case len(r.Errors) > 0:
		return model.ScrapeStatusFailed
	case len(r.Warnings) > 0:
		return model.ScrapeStatusPartial
	default:
		return model.ScrapeStatusSuccess
	}
}

func (r *Result) errorf(msg string) { r.Errors = append(r.Errors, msg) }
func (r *Result) warn(msg string)   { r.Warnings = append(r.Warnings, msg) }

var (
	fundURLRe = regexp.MustCompile(`^https?://(www\.)?groww\.in/mutual-funds/[\w-]+$`)
	helpURLRe = regexp.MustCompile(`^https?://(www\.)?groww\.in/help/[\w/-]+$`)

	amountNoiseRe = regexp.MustCompile(`[₹,\s]`)
	amountUnitRe  = regexp.MustCompile(`(?i)(Cr|Lakh|Crore|Billion|Million)`)
	letterRe      = regexp.MustCompile(`[A-Za-z]`)
)

// IsPlatformURL reports whether the URL is a help/platform page rather than a
// scheme page.
func IsPlatformURL(u string) bool {
	return strings.Contains(u, "/help/") || strings.Contains(u, "transaction-history")
}

// URL accepts groww.in scheme pages and help pages.
func URL(u string) bool {
	return fundURLRe.MatchString(u) || helpURLRe.MatchString(u)
}

func FundName(name string) bool {
	return len(name) >= 5 && len(name) <= 200
}

func NAV(v string) bool {
	if v == "" {
		return false
	}
	_, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
	return err == nil
}

// Amount accepts values such as "₹1,000", "500" or "3456.78 Cr".
func Amount(v string) bool {
	if v == "" {
		return false
	}
	clean := amountUnitRe.ReplaceAllString(amountNoiseRe.ReplaceAllString(v, ""), "")
	_, err := strconv.ParseFloat(clean, 64)
	return err == nil
}

// Percentage accepts -100% through 1000%.
func Percentage(v string) bool {
	if v == "" {
		return false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(v, "%", "")), 64)
	return err == nil && f >= -100 && f <= 1000
}

// Ratio accepts P/E and P/B style values in [0, 1000].
func Ratio(v string) bool {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return err == nil && f >= 0 && f <= 1000
}

func Returns(m map[string]string) bool {
	return len(m) > 0
}

// Rank requires every value to be an integer of at least 1.
func Rank(m map[string]string) bool {
	if len(m) == 0 {
		return false
	}
	for _, v := range m {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 1 {
			return false
		}
	}
	return true
}

func FundManager(name string) bool {
	return len(name) >= 2 && len(name) <= 100 && letterRe.MatchString(name)
}

// RiskMetrics requires every value to parse as a number.
func RiskMetrics(m map[string]string) bool {
	if len(m) == 0 {
		return false
	}
	for _, v := range m {
		if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
			return false
		}
	}
	return true
}

func Riskometer(v string) bool    { return between(v, 2, 100) }
func Benchmark(v string) bool     { return between(v, 5, 150) }
func StatementInfo(v string) bool { return between(v, 10, 500) }

func between(v string, lo, hi int) bool {
	return len(v) >= lo && len(v) <= hi
}

// Page validates every field of p. A bad URL or name is an error; any other
// missing or malformed field is a warning. Optional fields are only checked
// when present.
func Page(p *model.FundPage) Result {
	var r Result

	if !URL(p.SourceURL) {
		r.errorf("Invalid or missing source URL")
	}
	if !FundName(p.FundName) {
		r.errorf("Invalid or missing fund name")
	}

	// Help pages carry platform text only; fund fields do not apply.
	if IsPlatformURL(p.SourceURL) {
		if p.StatementDownloadInfo != "" && !StatementInfo(p.StatementDownloadInfo) {
			r.warn("Statement download information format invalid")
		}
		return r
	}

	if !NAV(p.NAV) {
		r.warn("NAV data missing or invalid")
	}
	if !Amount(p.MinSIP) {
		r.warn("Minimum SIP amount missing or invalid")
	}
	if !Amount(p.FundSize) {
		r.warn("Fund size missing or invalid")
	}
	if !Percentage(p.ExpenseRatio) {
		r.warn("Expense ratio missing or invalid")
	}
	if !FundManager(p.FundManager) {
		r.warn("Fund manager name missing or invalid")
	}
	if !Returns(p.FundReturns) {
		r.warn("Fund returns missing or invalid")
	}

	if p.PERatio != "" && !Ratio(p.PERatio) {
		r.warn("P/E ratio format invalid")
	}
	if p.PBRatio != "" && !Ratio(p.PBRatio) {
		r.warn("P/B ratio format invalid")
	}
	if p.CategoryAverages != nil && !Returns(p.CategoryAverages) {
		r.warn("Category averages format invalid")
	}
	if len(p.Rank) > 0 && !Rank(p.Rank) {
		r.warn("Rank data format invalid")
	}
	if len(p.RiskMetrics) > 0 && !RiskMetrics(p.RiskMetrics) {
		r.warn("Risk metrics format invalid")
	}
	if p.Riskometer != "" && !Riskometer(p.Riskometer) {
		r.warn("Riskometer information format invalid")
	}
	if p.Benchmark != "" && !Benchmark(p.Benchmark) {
		r.warn("Benchmark information format invalid")
	}
	if p.StatementDownloadInfo != "" && !StatementInfo(p.StatementDownloadInfo) {
		r.warn("Statement download information format invalid")
	}
	return r
}
