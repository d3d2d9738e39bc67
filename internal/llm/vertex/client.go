// Package vertex calls Gemini generateContent on Vertex AI over REST.
package vertex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"sealdeal-backend/internal/llm"
	"sealdeal-backend/internal/shared/telemetry"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// Client implements llm.Client with an ADC bearer token.
type Client struct {
	project    string
	location   string
	model      string
	baseURL    string
	tokens     oauth2.TokenSource
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL replaces https://{location}-aiplatform.googleapis.com.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithTokenSource replaces Application Default Credentials.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New builds a client for one model. Credentials come from ADC unless an
// explicit token source is supplied.
func New(ctx context.Context, project, location, model string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(project) == "" {
		return nil, errors.New("GCP_PROJECT is required for Vertex AI")
	}
	if strings.TrimSpace(location) == "" {
		return nil, errors.New("GCP_LOCATION is required for Vertex AI")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("model is required for Vertex AI")
	}
	c := &Client{
		project:    project,
		location:   location,
		model:      model,
		baseURL:    fmt.Sprintf("https://%s-aiplatform.googleapis.com", location),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tokens == nil {
		creds, err := google.FindDefaultCredentials(ctx, cloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("vertex credentials: %w", err)
		}
		c.tokens = creds.TokenSource
	}
	return c, nil
}

// Endpoint returns the generateContent URL for the configured model.
func (c *Client) Endpoint() string {
	return fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google/models/%s:generateContent",
		c.baseURL, c.project, c.location, c.model)
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type tool struct {
	GoogleSearchRetrieval *struct{} `json:"googleSearchRetrieval,omitempty"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
	Tools    []tool    `json:"tools,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func buildRequest(req llm.Request) generateRequest {
	parts := make([]part, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.IsInline() {
			parts = append(parts, part{InlineData: &inlineData{MIMEType: p.MIME, Data: p.Data}})
			continue
		}
		parts = append(parts, part{Text: p.Text})
	}
	body := generateRequest{Contents: []content{{Role: "user", Parts: parts}}}
	if req.GoogleSearch {
		body.Tools = []tool{{GoogleSearchRetrieval: &struct{}{}}}
	}
	return body
}

// Generate posts the request and returns the first candidate's first text part.
func (c *Client) Generate(ctx context.Context, req llm.Request) (string, error) {
	payload, err := json.Marshal(buildRequest(req))
	if err != nil {
		return "", err
	}
	token, err := c.tokens.Token()
	if err != nil {
		return "", fmt.Errorf("vertex token: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return "", fmt.Errorf("vertex request timeout: %w", err)
		}
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	telemetry.Info("llm.response", map[string]any{
		"model":       c.model,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(started).Milliseconds(),
	})
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &llm.StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", llm.ErrInvalidResponse
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", llm.ErrInvalidResponse
	}
	text := parsed.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return "", llm.ErrInvalidResponse
	}
	return text, nil
}

var _ llm.Client = (*Client)(nil)
