// Package chat answers analyst questions over the analytics table and, for
// general questions, with search-grounded model answers.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"sealdeal-backend/internal/analytics"
	"sealdeal-backend/internal/llm"
	"sealdeal-backend/internal/shared/metrics"
	"sealdeal-backend/internal/shared/resilience"
	"sealdeal-backend/internal/shared/telemetry"
)

const (
	IntentDataQuery     = "data_query"
	IntentInsightsQuery = "insights_query"

	noSQL           = "N/A"
	historyLimit    = 200
	insightFallback = "I was unable to find any information on that topic."
)

var (
	ErrInvalidInput = errors.New("sessionId and message are required")
	// ErrOverloaded is returned when the model kept rate limiting SQL generation.
	ErrOverloaded = errors.New("The AI service is currently overloaded. Please try again later.")
	ErrNoSQL      = errors.New("Could not generate a valid SQL query.")
	// ErrNoWarehouse means no analytics table can be queried in this deployment.
	ErrNoWarehouse = errors.New("analytics queries are not configured")
)

// Reply is the answer to one chat message. Rows is nil for insight answers.
type Reply struct {
	SQL       string           `json:"sql"`
	Rows      []map[string]any `json:"result,omitempty"`
	Formatted string           `json:"formatted"`
}

// Service is the two-way (data or insights) chat agent.
type Service struct {
	LLM     llm.Client
	Querier analytics.Querier
	Store   Store
	// SQLRetry, when set, retries rate-limited SQL generation. Other model
	// calls are not retried.
	SQLRetry *resilience.RetryConfig
	// PublicTable is an optional BigQuery table of public VC data.
	PublicTable string
	Now         func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Ask stores the question, routes it by intent and stores the answer.
func (s *Service) Ask(ctx context.Context, userID, sessionID, message string) (Reply, error) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(message) == "" {
		return Reply{}, ErrInvalidInput
	}
	metrics.IncChatMessage()
	if err := s.append(ctx, Message{SessionID: sessionID, UserID: userID, Role: RoleUser, Text: message}); err != nil {
		return Reply{}, err
	}

	intent, err := s.classify(ctx, message)
	if err != nil {
		return Reply{}, err
	}
	telemetry.Info("chat.intent", map[string]any{"session_id": sessionID, "intent": intent})

	var reply Reply
	if intent == IntentDataQuery {
		reply, err = s.answerData(ctx, message)
	} else {
		reply, err = s.answerInsights(ctx, message)
	}
	if err != nil {
		return Reply{}, err
	}

	if err := s.append(ctx, Message{SessionID: sessionID, UserID: userID, Role: RoleAssistant, Text: reply.Formatted, SQL: reply.SQL}); err != nil {
		return Reply{}, err
	}
	return reply, nil
}

// History returns the caller's messages in a session.
func (s *Service) History(ctx context.Context, userID, sessionID string) ([]Message, error) {
	return s.Store.List(ctx, userID, sessionID, historyLimit)
}

func (s *Service) append(ctx context.Context, msg Message) error {
	msg.ID = uuid.NewString()
	msg.CreatedAt = s.now()
	if err := s.Store.Append(ctx, msg); err != nil {
		return fmt.Errorf("store chat message: %w", err)
	}
	return nil
}

func (s *Service) classify(ctx context.Context, message string) (string, error) {
	text, err := render("classify.txt", messageData{Message: message})
	if err != nil {
		return "", err
	}
	out, err := s.LLM.Generate(ctx, llm.Prompt(text))
	if err != nil {
		if errors.Is(err, llm.ErrInvalidResponse) {
			return IntentInsightsQuery, nil
		}
		return "", fmt.Errorf("classify intent: %w", err)
	}
	if strings.TrimSpace(out) == IntentDataQuery {
		return IntentDataQuery, nil
	}
	return IntentInsightsQuery, nil
}

// answerData generates SQL, runs it read-only and formats the rows.
func (s *Service) answerData(ctx context.Context, message string) (Reply, error) {
	if s.Querier == nil {
		return Reply{}, ErrNoWarehouse
	}
	stmt, err := s.generateSQL(ctx, message)
	if err != nil {
		return Reply{}, err
	}
	res, err := s.Querier.Query(ctx, stmt)
	if err != nil {
		return Reply{}, fmt.Errorf("run generated sql: %w", err)
	}
	rows := res.Rows
	if rows == nil {
		rows = []map[string]any{}
	}
	return Reply{SQL: stmt, Rows: rows, Formatted: FormatResult(res)}, nil
}

func (s *Service) generateSQL(ctx context.Context, message string) (string, error) {
	text, err := render("sql.txt", newSQLData(s.Querier, s.PublicTable, message))
	if err != nil {
		return "", err
	}
	client := s.LLM
	if s.SQLRetry != nil {
		client = llm.WithRetry(client, *s.SQLRetry)
	}
	out, err := client.Generate(ctx, llm.Prompt(text))
	if err != nil {
		if llm.IsRateLimited(err) {
			telemetry.Error("chat.sql_overloaded", map[string]any{"error": err})
			return "", ErrOverloaded
		}
		if errors.Is(err, llm.ErrInvalidResponse) {
			return "", ErrNoSQL
		}
		return "", fmt.Errorf("generate sql: %w", err)
	}
	stmt := StripSQLFences(out)
	if stmt == "" {
		return "", ErrNoSQL
	}
	return stmt, nil
}

// StripSQLFences removes markdown code fences around generated SQL.
func StripSQLFences(text string) string {
	text = strings.ReplaceAll(text, "```sql", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

func (s *Service) answerInsights(ctx context.Context, message string) (Reply, error) {
	text, err := render("insights.txt", messageData{Message: message})
	if err != nil {
		return Reply{}, err
	}
	req := llm.Prompt(text)
	req.GoogleSearch = true
	out, err := s.LLM.Generate(ctx, req)
	switch {
	case errors.Is(err, llm.ErrInvalidResponse), err == nil && strings.TrimSpace(out) == "":
		out = insightFallback
	case err != nil:
		return Reply{}, fmt.Errorf("insights: %w", err)
	}
	return Reply{SQL: noSQL, Formatted: out}, nil
}
