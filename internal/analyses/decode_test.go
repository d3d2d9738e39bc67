package analyses

import (
	"errors"
	"strings"
	"testing"

	"sealdeal-backend/internal/llm"
)

const validResponse = "```json\n" + `{
  "metrics": {
    "arr": {"value": 500000, "source_quote": "ARR of $500K", "notes": null},
    "ltv": {"value": 300, "source_quote": null, "notes": "calculated"},
    "cac": {"value": 100, "source_quote": "CAC is $100", "notes": null}
  },
  "swot_analysis": {"strengths": ["Team"], "weaknesses": [], "opportunities": ["APAC"], "threats": null},
  "risk_flags": ["High churn"],
  "benchmarking_summary": "Above median.",
  "investment_memo": {
    "executive_summary": "Solid.",
    "growth_potential": "Strong.",
    "investment_recommendation": "Proceed with Caution"
  }
}` + "\n```"

func TestDecodeValidResponse(t *testing.T) {
	res, err := Decode(validResponse)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if res.Metrics.ARR == nil || *res.Metrics.ARR.Value != 500000 {
		t.Fatalf("unexpected arr %+v", res.Metrics.ARR)
	}
	if res.Metrics.MRR != nil {
		t.Fatalf("absent metric should stay nil")
	}
	if res.InvestmentMemo.InvestmentRecommendation != RecommendationCaution {
		t.Fatalf("unexpected recommendation %q", res.InvestmentMemo.InvestmentRecommendation)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	raw := strings.Replace(validResponse, `"risk_flags"`, `"mood": "optimistic", "risk_flags"`, 1)
	_, err := Decode(raw)
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
}

func TestDecodeRejectsUnknownRecommendation(t *testing.T) {
	raw := strings.Replace(validResponse, "Proceed with Caution", "Maybe", 1)
	_, err := Decode(raw)
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
}

func TestDecodeRejectsMissingObject(t *testing.T) {
	_, err := Decode("I could not analyze these documents.")
	var se *SchemaError
	if !errors.As(err, &se) || !errors.Is(err, llm.ErrNoJSONObject) {
		t.Fatalf("expected SchemaError wrapping ErrNoJSONObject, got %v", err)
	}
}

func TestDecodePartialResponse(t *testing.T) {
	res, err := Decode(`Here is the result: {"metrics": {"arr": {"value": 500000}}} Thanks!`)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if res.Metrics.ARR == nil || res.Metrics.ARR.Value == nil || *res.Metrics.ARR.Value != 500000 {
		t.Fatalf("unexpected arr %+v", res.Metrics.ARR)
	}
	if res.InvestmentMemo.InvestmentRecommendation != "" {
		t.Fatalf("expected empty recommendation, got %q", res.InvestmentMemo.InvestmentRecommendation)
	}
	row := Analysis{ID: "a1", Result: res}.Flatten("Acme")
	if row.InvestmentRecommendation != nil {
		t.Fatalf("expected null recommendation, got %q", *row.InvestmentRecommendation)
	}
}
