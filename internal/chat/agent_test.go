package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"sealdeal-backend/internal/analytics"
	"sealdeal-backend/internal/llm"
)

const (
	agentClassifyMarker = "expert intent classifier"
	ragMarker           = "Context from deal database"
	synthesisMarker     = "Synthesize the following expert analyses"
	agentInsightsMarker = "Provide comprehensive market insights"
)

func ptr[T any](v T) *T { return &v }

func seedRows(t *testing.T) *analytics.MemoryRepo {
	t.Helper()
	rows := analytics.NewMemoryRepo()
	base := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"Acme", "Beta", "Gamma", "Delta", "Epsilon", "Zeta"} {
		row := analytics.Row{
			AnalysisID:               "a" + name,
			DealID:                   "d" + name,
			DealName:                 name,
			AnalyzedAt:               base.Add(time.Duration(i) * time.Hour),
			ARRValue:                 ptr(1200000.0),
			InvestmentRecommendation: ptr("Strong Candidate"),
			Strengths:                []string{"Team"},
		}
		if _, err := rows.Insert(context.Background(), row); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	return rows
}

func newAgent(t *testing.T, model *scriptedLLM) (*Agent, *MemoryStore) {
	t.Helper()
	svc, store := newService(model, &fakeQuerier{dialect: analytics.DialectBigQuery})
	return &Agent{LLM: model, Data: svc, Rows: seedRows(t), Store: store, Now: svc.Now}, store
}

func TestClassifyFallsBack(t *testing.T) {
	model := &scriptedLLM{}
	model.on(agentClassifyMarker, reply("I think this is a comparison"))
	a, _ := newAgent(t, model)

	c := a.Classify(context.Background(), "compare Acme and Beta")
	if c.Intent != IntentInsights || c.Confidence != 0.5 || len(c.Entities) != 0 {
		t.Fatalf("unexpected fallback %+v", c)
	}

	model.on(agentClassifyMarker, reply("```json\n{\"intent\":\"comparison\",\"confidence\":0.9,\"entities\":[\"Acme\"]}\n```"))
	c = a.Classify(context.Background(), "compare Acme and Beta")
	if c.Intent != IntentComparison || c.Confidence != 0.9 || c.Entities[0] != "Acme" {
		t.Fatalf("unexpected classification %+v", c)
	}
}

func TestRetrieve(t *testing.T) {
	a, _ := newAgent(t, &scriptedLLM{})
	ctx := context.Background()

	docs, err := a.Retrieve(ctx, []string{"beta"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(docs) != 1 || !strings.HasPrefix(docs[0], "Deal Analysis: Beta") {
		t.Fatalf("unexpected docs %v", docs)
	}

	docs, _ = a.Retrieve(ctx, []string{"nothing-matches"})
	if len(docs) != 3 || !strings.HasPrefix(docs[0], "Deal Analysis: Zeta") {
		t.Fatalf("expected the newest three deals, got %d", len(docs))
	}

	docs, _ = a.Retrieve(ctx, []string{"Team"})
	if len(docs) != 3 {
		t.Fatalf("matches should be capped at three, got %d", len(docs))
	}
}

func TestDealContext(t *testing.T) {
	text, err := DealContext(analytics.Row{DealName: "Acme", ARRValue: ptr(1200000.0), Strengths: []string{"Team", "IP"}})
	if err != nil {
		t.Fatalf("DealContext: %v", err)
	}
	for _, want := range []string{
		"Annual Recurring Revenue (ARR): $1,200,000",
		"Monthly Recurring Revenue (MRR): $N/A",
		"LTV/CAC Ratio: N/A",
		"Strengths: Team, IP",
		"Threats: None identified",
		"Final Recommendation: Pending",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("missing %q in:\n%s", want, text)
		}
	}
}

func TestAgentComparisonUsesRAG(t *testing.T) {
	model := &scriptedLLM{}
	model.on(agentClassifyMarker, reply(`{"intent":"comparison","confidence":0.8,"entities":["Acme"]}`))
	model.on(ragMarker, func(req llm.Request) (string, error) {
		if !strings.Contains(req.Parts[0].Text, "Deal Analysis: Acme") {
			return "", errors.New("context missing")
		}
		return "| Deal | ARR |", nil
	})
	a, store := newAgent(t, model)

	got, err := a.Ask(context.Background(), "u1", "s1", "compare Acme")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !got.Success || got.Response != "| Deal | ARR |" || got.Intent != IntentComparison {
		t.Fatalf("unexpected reply %+v", got)
	}
	msgs, _ := store.List(context.Background(), "u1", "s1", 0)
	last := msgs[len(msgs)-1]
	if last.Metadata == nil || last.Metadata.ProcessingMethod != "rag" || last.Metadata.Confidence != 0.8 {
		t.Fatalf("unexpected metadata %+v", last.Metadata)
	}
}

func TestAgentRecommendationPanel(t *testing.T) {
	model := &scriptedLLM{}
	model.on(agentClassifyMarker, reply(`{"intent":"recommendation","confidence":0.7,"entities":[]}`))
	model.on("You are a data analyst.", reply("metrics look healthy"))
	model.on("You are a market expert.", reply("crowded market"))
	model.on("You are a risk assessor.", fail(errors.New("timeout")))
	model.on("You are an investment advisor.", reply("invest"))
	model.on(synthesisMarker, func(req llm.Request) (string, error) {
		text := req.Parts[0].Text
		if !strings.Contains(text, "RISKASSESSOR:\nriskAssessor analysis unavailable") ||
			!strings.Contains(text, "DATAANALYST:\nmetrics look healthy") {
			return "", errors.New("panel answers missing")
		}
		return "Proceed.", nil
	})
	a, _ := newAgent(t, model)

	got, err := a.Ask(context.Background(), "u1", "s1", "Should we invest in Acme?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if got.Response != "Proceed." {
		t.Fatalf("unexpected response %q", got.Response)
	}
}

func TestAgentInsightsDegrade(t *testing.T) {
	model := &scriptedLLM{}
	model.on(agentClassifyMarker, fail(errors.New("classifier down")))
	model.on(agentInsightsMarker, fail(errors.New("grounding unavailable")))
	a, _ := newAgent(t, model)

	got, err := a.Ask(context.Background(), "u1", "s1", "What is a good burn multiple?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if got.Intent != IntentInsights || got.Response != "Market insights are temporarily unavailable. Please try again later." {
		t.Fatalf("unexpected reply %+v", got)
	}
}
