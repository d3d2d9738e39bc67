package analyses

import "time"

// Version tags analyses produced by the current prompt.
const Version = "2.0"

type Recommendation string

const (
	RecommendationStrong    Recommendation = "Strong Candidate"
	RecommendationCaution   Recommendation = "Proceed with Caution"
	RecommendationDiligence Recommendation = "Further Diligence Required"
	RecommendationPass      Recommendation = "Pass"
)

// Metric is one extracted figure with the quote supporting it.
type Metric struct {
	Value       *float64 `json:"value"`
	SourceQuote *string  `json:"source_quote"`
	Notes       *string  `json:"notes"`
}

type Metrics struct {
	ARR         *Metric `json:"arr,omitempty"`
	MRR         *Metric `json:"mrr,omitempty"`
	CAC         *Metric `json:"cac,omitempty"`
	LTV         *Metric `json:"ltv,omitempty"`
	LTVCACRatio *Metric `json:"ltv_cac_ratio,omitempty"`
	GrossMargin *Metric `json:"gross_margin,omitempty"`
}

type SWOT struct {
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
	Opportunities []string `json:"opportunities"`
	Threats       []string `json:"threats"`
}

type Memo struct {
	ExecutiveSummary         string         `json:"executive_summary"`
	GrowthPotential          string         `json:"growth_potential"`
	InvestmentRecommendation Recommendation `json:"investment_recommendation" validate:"omitempty,oneof='Strong Candidate' 'Proceed with Caution' 'Further Diligence Required' 'Pass'"`
}

// Result is the model's structured answer.
type Result struct {
	Metrics             Metrics  `json:"metrics"`
	SWOT                SWOT     `json:"swot_analysis"`
	RiskFlags           []string `json:"risk_flags"`
	BenchmarkingSummary string   `json:"benchmarking_summary"`
	InvestmentMemo      Memo     `json:"investment_memo"`
}

// Analysis is an immutable record of one completed run.
type Analysis struct {
	ID string `json:"id"`
	Result
	SourceFiles []string  `json:"sourceFiles"`
	AnalyzedAt  time.Time `json:"analyzedAt"`
	DealID      string    `json:"dealId"`
	CreatedBy   string    `json:"createdBy"`
	Version     string    `json:"version"`
}
