package benchmarks

import "time"

// Benchmark is a peer data point used as context for deal analysis.
type Benchmark struct {
	ID          string    `json:"id"`
	Industry    string    `json:"industry"`
	Stage       string    `json:"stage"`
	ARR         float64   `json:"arr"`
	MRR         *float64  `json:"mrr,omitempty"`
	CAC         *float64  `json:"cac,omitempty"`
	LTV         *float64  `json:"ltv,omitempty"`
	LTVCACRatio *float64  `json:"ltv_cac_ratio,omitempty"`
	GrossMargin *float64  `json:"gross_margin,omitempty"`
	AddedBy     string    `json:"addedBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

// DeriveRatio returns ltv/cac when both are present and cac is positive.
func DeriveRatio(ltv, cac *float64) *float64 {
	if ltv == nil || cac == nil || *cac <= 0 {
		return nil
	}
	r := *ltv / *cac
	return &r
}
