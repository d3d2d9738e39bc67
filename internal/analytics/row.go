// Package analytics stores and exports the flat per-analysis rows used for
// reporting and chat queries.
package analytics

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// Row is the flat form of one analysis. Nil pointers are exported as NULL.
type Row struct {
	AnalysisID  string    `json:"analysisId"`
	DealID      string    `json:"dealId"`
	DealName    string    `json:"dealName"`
	CreatedBy   string    `json:"createdBy"`
	AnalyzedAt  time.Time `json:"analyzedAt"`
	SourceFiles []string  `json:"sourceFiles"`

	ARRValue          *float64 `json:"metrics_arr_value"`
	ARRSource         *string  `json:"metrics_arr_source"`
	MRRValue          *float64 `json:"metrics_mrr_value"`
	MRRSource         *string  `json:"metrics_mrr_source"`
	CACValue          *float64 `json:"metrics_cac_value"`
	CACSource         *string  `json:"metrics_cac_source"`
	LTVValue          *float64 `json:"metrics_ltv_value"`
	LTVSource         *string  `json:"metrics_ltv_source"`
	LTVCACRatioValue  *float64 `json:"metrics_ltv_cac_ratio_value"`
	LTVCACRatioSource *string  `json:"metrics_ltv_cac_ratio_source"`
	GrossMarginValue  *float64 `json:"metrics_gross_margin_value"`
	GrossMarginSource *string  `json:"metrics_gross_margin_source"`

	InvestmentRecommendation *string `json:"investment_recommendation"`
	ExecutiveSummary         *string `json:"executive_summary"`
	GrowthPotential          *string `json:"growth_potential"`
	BenchmarkingSummary      *string `json:"benchmarking_summary"`

	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
	Opportunities []string `json:"opportunities"`
	Threats       []string `json:"threats"`
	RiskFlags     []string `json:"risk_flags"`

	ExportedAt *time.Time `json:"exportedAt,omitempty"`
}

// Normalize replaces nil lists with empty ones.
func (r Row) Normalize() Row {
	r.SourceFiles = nonNil(r.SourceFiles)
	r.Strengths = nonNil(r.Strengths)
	r.Weaknesses = nonNil(r.Weaknesses)
	r.Opportunities = nonNil(r.Opportunities)
	r.Threats = nonNil(r.Threats)
	r.RiskFlags = nonNil(r.RiskFlags)
	return r
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

// Save implements bigquery.ValueSaver. The analysis ID doubles as the insert
// ID so a re-sent row is de-duplicated by the streaming API.
func (r Row) Save() (map[string]bigquery.Value, string, error) {
	r = r.Normalize()
	return map[string]bigquery.Value{
		"analysisId":                   r.AnalysisID,
		"dealId":                       r.DealID,
		"dealName":                     r.DealName,
		"createdBy":                    r.CreatedBy,
		"analyzedAt":                   r.AnalyzedAt.UTC(),
		"sourceFiles":                  r.SourceFiles,
		"metrics_arr_value":            floatValue(r.ARRValue),
		"metrics_arr_source":           stringValue(r.ARRSource),
		"metrics_mrr_value":            floatValue(r.MRRValue),
		"metrics_mrr_source":           stringValue(r.MRRSource),
		"metrics_cac_value":            floatValue(r.CACValue),
		"metrics_cac_source":           stringValue(r.CACSource),
		"metrics_ltv_value":            floatValue(r.LTVValue),
		"metrics_ltv_source":           stringValue(r.LTVSource),
		"metrics_ltv_cac_ratio_value":  floatValue(r.LTVCACRatioValue),
		"metrics_ltv_cac_ratio_source": stringValue(r.LTVCACRatioSource),
		"metrics_gross_margin_value":   floatValue(r.GrossMarginValue),
		"metrics_gross_margin_source":  stringValue(r.GrossMarginSource),
		"investment_recommendation":    stringValue(r.InvestmentRecommendation),
		"executive_summary":            stringValue(r.ExecutiveSummary),
		"growth_potential":             stringValue(r.GrowthPotential),
		"benchmarking_summary":         stringValue(r.BenchmarkingSummary),
		"strengths":                    r.Strengths,
		"weaknesses":                   r.Weaknesses,
		"opportunities":                r.Opportunities,
		"threats":                      r.Threats,
		"risk_flags":                   r.RiskFlags,
	}, r.AnalysisID, nil
}

func floatValue(v *float64) bigquery.Value {
	if v == nil {
		return nil
	}
	return *v
}

func stringValue(v *string) bigquery.Value {
	if v == nil {
		return nil
	}
	return *v
}

var _ bigquery.ValueSaver = Row{}
