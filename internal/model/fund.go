package model

import (
	"encoding/json"
	"time"
)

// Field names used as SchemeDatum.DataType and chunk data keys.
const (
	FieldNAV                   = "nav"
	FieldNAVDate               = "nav_date"
	FieldMinSIP                = "min_sip"
	FieldFundSize              = "fund_size"
	FieldPERatio               = "pe_ratio"
	FieldPBRatio               = "pb_ratio"
	FieldFundReturns           = "fund_returns"
	FieldCategoryAverages      = "category_averages"
	FieldRank                  = "rank"
	FieldExpenseRatio          = "expense_ratio"
	FieldExitLoad              = "exit_load"
	FieldStampDuty             = "stamp_duty"
	FieldFundManager           = "fund_manager"
	FieldLockIn                = "lock_in"
	FieldSchemeType            = "scheme_type"
	FieldSubCategory           = "sub_category"
	FieldIsELSS                = "is_elss"
	FieldCategoryLabel         = "category_label"
	FieldAnnualisedReturns     = "annualised_returns"
	FieldHoldings              = "holdings"
	FieldTopHoldings           = "top_holdings"
	FieldRiskMetrics           = "risk_metrics"
	FieldRiskometer            = "riskometer"
	FieldBenchmark             = "benchmark"
	FieldStatementDownloadInfo = "statement_download_info"
)

// Holding is one entry of a fund's top holdings.
type Holding struct {
	Name       string `json:"name"`
	Percentage string `json:"percentage"`
}

// FundPage is everything extracted from one scheme page. Empty strings and
// nil maps mean the extractor found nothing.
type FundPage struct {
	SourceURL             string            `json:"source_url"`
	FundName              string            `json:"fund_name"`
	NAV                   string            `json:"nav,omitempty"`
	NAVDate               string            `json:"nav_date,omitempty"`
	MinSIP                string            `json:"min_sip,omitempty"`
	FundSize              string            `json:"fund_size,omitempty"`
	PERatio               string            `json:"pe_ratio,omitempty"`
	PBRatio               string            `json:"pb_ratio,omitempty"`
	FundReturns           map[string]string `json:"fund_returns,omitempty"`
	CategoryAverages      map[string]string `json:"category_averages,omitempty"`
	Rank                  map[string]string `json:"rank,omitempty"`
	ExpenseRatio          string            `json:"expense_ratio,omitempty"`
	ExitLoad              string            `json:"exit_load,omitempty"`
	StampDuty             string            `json:"stamp_duty,omitempty"`
	FundManager           string            `json:"fund_manager,omitempty"`
	LockIn                string            `json:"lock_in,omitempty"`
	SchemeType            string            `json:"scheme_type,omitempty"`
	SubCategory           string            `json:"sub_category,omitempty"`
	IsELSS                string            `json:"is_elss,omitempty"`
	CategoryLabel         string            `json:"category_label,omitempty"`
	AnnualisedReturns     map[string]string `json:"annualised_returns,omitempty"`
	Holdings              []Holding         `json:"holdings,omitempty"`
	RiskMetrics           map[string]string `json:"risk_metrics,omitempty"`
	Riskometer            string            `json:"riskometer,omitempty"`
	Benchmark             string            `json:"benchmark,omitempty"`
	StatementDownloadInfo string            `json:"statement_download_info,omitempty"`
	ScrapedAt             time.Time         `json:"scraped_at"`
}

// Datums flattens the page into per-field rows in a fixed order, skipping
// fields the extractor did not find.
func (p *FundPage) Datums(schemeID string) []SchemeDatum {
	var out []SchemeDatum
	add := func(field, value string) {
		if value == "" {
			return
		}
		out = append(out, SchemeDatum{
			SchemeID:  schemeID,
			DataType:  field,
			Value:     value,
			SourceURL: p.SourceURL,
			ScrapedAt: p.ScrapedAt,
		})
	}
	addJSON := func(field string, v any, n int) {
		if n == 0 {
			return
		}
		b, err := json.Marshal(v)
		if err != nil {
			return
		}
		add(field, string(b))
	}

	add(FieldNAV, p.NAV)
	add(FieldNAVDate, p.NAVDate)
	add(FieldMinSIP, p.MinSIP)
	add(FieldFundSize, p.FundSize)
	add(FieldPERatio, p.PERatio)
	add(FieldPBRatio, p.PBRatio)
	addJSON(FieldFundReturns, p.FundReturns, len(p.FundReturns))
	addJSON(FieldCategoryAverages, p.CategoryAverages, len(p.CategoryAverages))
	addJSON(FieldRank, p.Rank, len(p.Rank))
	add(FieldExpenseRatio, p.ExpenseRatio)
	add(FieldExitLoad, p.ExitLoad)
	add(FieldStampDuty, p.StampDuty)
	add(FieldFundManager, p.FundManager)
	add(FieldLockIn, p.LockIn)
	add(FieldSchemeType, p.SchemeType)
	add(FieldSubCategory, p.SubCategory)
	add(FieldIsELSS, p.IsELSS)
	add(FieldCategoryLabel, p.CategoryLabel)
	addJSON(FieldAnnualisedReturns, p.AnnualisedReturns, len(p.AnnualisedReturns))
	addJSON(FieldHoldings, p.Holdings, len(p.Holdings))
	addJSON(FieldRiskMetrics, p.RiskMetrics, len(p.RiskMetrics))
	add(FieldRiskometer, p.Riskometer)
	add(FieldBenchmark, p.Benchmark)
	add(FieldStatementDownloadInfo, p.StatementDownloadInfo)
	return out
}
