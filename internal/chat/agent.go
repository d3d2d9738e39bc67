package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"sealdeal-backend/internal/analytics"
	"sealdeal-backend/internal/llm"
	"sealdeal-backend/internal/shared/metrics"
	"sealdeal-backend/internal/shared/telemetry"
)

const (
	IntentComparison     = "comparison"
	IntentInsights       = "insights"
	IntentRecommendation = "recommendation"

	ragCorpusLimit   = 1000
	ragFallbackDocs  = 5
	ragMaxDocs       = 3
	ragDocSeparator  = "\n\n---\n\n"
	ragFallback      = "I couldn't process your request. Please try rephrasing your question."
	insightsEmpty    = "I couldn't find relevant market insights for your query."
	insightsDegraded = "Market insights are temporarily unavailable. Please try again later."
)

// Classification is the enhanced agent's reading of a message.
type Classification struct {
	Intent     string   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Entities   []string `json:"entities"`
}

var fallbackClassification = Classification{Intent: IntentInsights, Confidence: 0.5, Entities: []string{}}

// AgentReply is the enhanced agent's response body.
type AgentReply struct {
	Response   string   `json:"response"`
	Intent     string   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Entities   []string `json:"entities"`
	Success    bool     `json:"success"`
}

type role struct {
	name   string
	prompt string
}

var agentRoles = []role{
	{"dataAnalyst", "You are a data analyst. Extract and analyze quantitative metrics from the query."},
	{"marketExpert", "You are a market expert. Provide industry context and competitive analysis."},
	{"riskAssessor", "You are a risk assessor. Identify potential risks and red flags."},
	{"investmentAdvisor", "You are an investment advisor. Provide actionable investment recommendations."},
}

// RowSource lists analytics rows, newest first.
type RowSource interface {
	List(ctx context.Context, limit int) ([]analytics.Row, error)
}

// Agent routes messages to SQL, retrieval over analyzed deals, a panel of
// role prompts, or grounded insights.
type Agent struct {
	LLM   llm.Client
	Data  *Service
	Rows  RowSource
	Store Store
	Now   func() time.Time
}

func (a *Agent) now() time.Time {
	if a.Now != nil {
		return a.Now().UTC()
	}
	return time.Now().UTC()
}

// Ask handles one message end to end.
func (a *Agent) Ask(ctx context.Context, userID, sessionID, message string) (AgentReply, error) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(message) == "" {
		return AgentReply{}, ErrInvalidInput
	}
	metrics.IncChatMessage()
	if err := a.append(ctx, Message{SessionID: sessionID, UserID: userID, Role: RoleUser, Text: message}); err != nil {
		return AgentReply{}, err
	}

	c := a.Classify(ctx, message)
	telemetry.Info("chat.agent_intent", map[string]any{"session_id": sessionID, "intent": c.Intent, "confidence": c.Confidence, "entities": c.Entities})

	var response string
	var err error
	switch c.Intent {
	case IntentDataQuery:
		response, err = a.dataQuery(ctx, message)
	case IntentComparison:
		response, err = a.RAG(ctx, message, c.Intent, c.Entities)
	case IntentRecommendation:
		response, err = a.Panel(ctx, message, c.Intent)
	default:
		response = a.Insights(ctx, message)
	}
	if err != nil {
		return AgentReply{}, err
	}

	method := "rag"
	if c.Intent == IntentDataQuery {
		method = "sql"
	}
	meta := &Metadata{Intent: c.Intent, Confidence: c.Confidence, Entities: c.Entities, ProcessingMethod: method}
	if err := a.append(ctx, Message{SessionID: sessionID, UserID: userID, Role: RoleAssistant, Text: response, Metadata: meta}); err != nil {
		return AgentReply{}, err
	}
	return AgentReply{Response: response, Intent: c.Intent, Confidence: c.Confidence, Entities: c.Entities, Success: true}, nil
}

func (a *Agent) append(ctx context.Context, msg Message) error {
	msg.ID = uuid.NewString()
	msg.CreatedAt = a.now()
	if err := a.Store.Append(ctx, msg); err != nil {
		return fmt.Errorf("store chat message: %w", err)
	}
	return nil
}

// Classify never fails; unusable model output yields insights at 0.5.
func (a *Agent) Classify(ctx context.Context, message string) Classification {
	text, err := render("agent_classify.txt", messageData{Message: message})
	if err != nil {
		return fallbackClassification
	}
	out, err := a.LLM.Generate(ctx, llm.Prompt(text))
	if err != nil {
		telemetry.Warn("chat.classify_failed", map[string]any{"error": err})
		return fallbackClassification
	}
	raw, err := llm.ExtractJSONObject(out)
	if err != nil {
		return fallbackClassification
	}
	var c Classification
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return fallbackClassification
	}
	switch c.Intent {
	case IntentDataQuery, IntentComparison, IntentInsights, IntentRecommendation:
	default:
		c.Intent = IntentInsights
	}
	if c.Entities == nil {
		c.Entities = []string{}
	}
	return c
}

func (a *Agent) dataQuery(ctx context.Context, message string) (string, error) {
	reply, err := a.Data.answerData(ctx, message)
	if err != nil {
		return "", err
	}
	return reply.Formatted, nil
}

// Retrieve picks the deal documents for a question: those matching an entity,
// otherwise the newest five, capped at three.
func (a *Agent) Retrieve(ctx context.Context, entities []string) ([]string, error) {
	rows, err := a.Rows.List(ctx, ragCorpusLimit)
	if err != nil {
		return nil, fmt.Errorf("load deal corpus: %w", err)
	}
	type doc struct {
		name    string
		content string
	}
	corpus := make([]doc, 0, len(rows))
	for _, r := range rows {
		if r.AnalyzedAt.IsZero() {
			continue
		}
		content, err := DealContext(r)
		if err != nil {
			return nil, err
		}
		corpus = append(corpus, doc{name: r.DealName, content: content})
	}

	relevant := corpus
	if len(entities) > 0 {
		relevant = make([]doc, 0, len(corpus))
		for _, d := range corpus {
			content := strings.ToLower(d.content)
			name := strings.ToLower(d.name)
			for _, e := range entities {
				e = strings.ToLower(e)
				if strings.Contains(content, e) || strings.Contains(name, e) {
					relevant = append(relevant, d)
					break
				}
			}
		}
	}
	if len(relevant) == 0 {
		relevant = corpus[:min(ragFallbackDocs, len(corpus))]
	}
	relevant = relevant[:min(ragMaxDocs, len(relevant))]

	out := make([]string, len(relevant))
	for i, d := range relevant {
		out[i] = d.content
	}
	return out, nil
}

// RAG answers with the retrieved deal documents as context.
func (a *Agent) RAG(ctx context.Context, message, intent string, entities []string) (string, error) {
	docs, err := a.Retrieve(ctx, entities)
	if err != nil {
		return "", err
	}
	text, err := render("agent_rag.txt", struct {
		Context, Message, Intent, Entities string
	}{
		Context:  strings.Join(docs, ragDocSeparator),
		Message:  message,
		Intent:   intent,
		Entities: strings.Join(entities, ", "),
	})
	if err != nil {
		return "", err
	}
	out, err := a.LLM.Generate(ctx, llm.Prompt(text))
	if errors.Is(err, llm.ErrInvalidResponse) {
		return ragFallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("rag query: %w", err)
	}
	return out, nil
}

// Panel asks each role prompt in parallel and synthesizes their answers. A
// failed role contributes "<role> analysis unavailable".
func (a *Agent) Panel(ctx context.Context, message, intent string) (string, error) {
	answers := make([]string, len(agentRoles))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range agentRoles {
		g.Go(func() error {
			prompt := fmt.Sprintf("%s\n\nUser query: %s\nIntent: %s", r.prompt, message, intent)
			out, err := a.LLM.Generate(gctx, llm.Prompt(prompt))
			if err != nil {
				telemetry.Warn("chat.agent_failed", map[string]any{"role": r.name, "error": err})
				out = r.name + " analysis unavailable"
			}
			answers[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	sections := make([]string, len(agentRoles))
	for i, r := range agentRoles {
		sections[i] = strings.ToUpper(r.name) + ":\n" + answers[i]
	}
	text, err := render("agent_synthesis.txt", struct{ Analyses string }{strings.Join(sections, "\n\n")})
	if err != nil {
		return "", err
	}
	out, err := a.LLM.Generate(ctx, llm.Prompt(text))
	if err != nil {
		return "", fmt.Errorf("synthesize: %w", err)
	}
	return out, nil
}

// Insights answers with search grounding and degrades to a fixed message.
func (a *Agent) Insights(ctx context.Context, message string) string {
	text, err := render("agent_insights.txt", messageData{Message: message})
	if err != nil {
		return insightsDegraded
	}
	req := llm.Prompt(text)
	req.GoogleSearch = true
	out, err := a.LLM.Generate(ctx, req)
	switch {
	case errors.Is(err, llm.ErrInvalidResponse):
		return insightsEmpty
	case err != nil:
		telemetry.Error("chat.insights_failed", map[string]any{"error": err})
		return insightsDegraded
	case strings.TrimSpace(out) == "":
		return insightsEmpty
	}
	return out
}

// DealContext renders an analytics row as a plain-text deal document.
func DealContext(r analytics.Row) (string, error) {
	text, err := render("deal_context.txt", struct {
		DealName, ARR, MRR, LTV, Ratio                         string
		ExecutiveSummary, GrowthPotential, BenchmarkingSummary string
		Strengths, Weaknesses, Opportunities, Threats          string
		RiskFlags, Recommendation                              string
	}{
		DealName:            r.DealName,
		ARR:                 localeOrNA(r.ARRValue),
		MRR:                 localeOrNA(r.MRRValue),
		LTV:                 localeOrNA(r.LTVValue),
		Ratio:               ratioOrNA(r.LTVCACRatioValue),
		ExecutiveSummary:    deref(r.ExecutiveSummary),
		GrowthPotential:     deref(r.GrowthPotential),
		BenchmarkingSummary: deref(r.BenchmarkingSummary),
		Strengths:           joinOrNone(r.Strengths),
		Weaknesses:          joinOrNone(r.Weaknesses),
		Opportunities:       joinOrNone(r.Opportunities),
		Threats:             joinOrNone(r.Threats),
		RiskFlags:           joinOrNone(r.RiskFlags),
		Recommendation:      orDefault(deref(r.InvestmentRecommendation), "Pending"),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func localeOrNA(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return formatValue("", *v)
}

func ratioOrNA(v *float64) string {
	if v == nil || *v == 0 {
		return "N/A"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func joinOrNone(items []string) string {
	if items == nil {
		return "None identified"
	}
	return strings.Join(items, ", ")
}
