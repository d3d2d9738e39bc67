package analyses

import "sealdeal-backend/internal/analytics"

// Flatten builds the analytics row. Absent metrics and empty memo text become
// NULL; absent lists become empty.
func (a Analysis) Flatten(dealName string) analytics.Row {
	row := analytics.Row{
		AnalysisID:  a.ID,
		DealID:      a.DealID,
		DealName:    dealName,
		CreatedBy:   a.CreatedBy,
		AnalyzedAt:  a.AnalyzedAt,
		SourceFiles: a.SourceFiles,

		InvestmentRecommendation: optional(string(a.InvestmentMemo.InvestmentRecommendation)),
		ExecutiveSummary:         optional(a.InvestmentMemo.ExecutiveSummary),
		GrowthPotential:          optional(a.InvestmentMemo.GrowthPotential),
		BenchmarkingSummary:      optional(a.BenchmarkingSummary),

		Strengths:     a.SWOT.Strengths,
		Weaknesses:    a.SWOT.Weaknesses,
		Opportunities: a.SWOT.Opportunities,
		Threats:       a.SWOT.Threats,
		RiskFlags:     a.RiskFlags,
	}
	m := a.Metrics
	row.ARRValue, row.ARRSource = m.ARR.leaves()
	row.MRRValue, row.MRRSource = m.MRR.leaves()
	row.CACValue, row.CACSource = m.CAC.leaves()
	row.LTVValue, row.LTVSource = m.LTV.leaves()
	row.LTVCACRatioValue, row.LTVCACRatioSource = m.LTVCACRatio.leaves()
	row.GrossMarginValue, row.GrossMarginSource = m.GrossMargin.leaves()
	return row.Normalize()
}

func (m *Metric) leaves() (*float64, *string) {
	if m == nil {
		return nil, nil
	}
	var source *string
	if m.SourceQuote != nil && *m.SourceQuote != "" {
		source = m.SourceQuote
	}
	return m.Value, source
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
