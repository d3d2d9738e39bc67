// Package gemini implements llm.Client with the google.golang.org/genai SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"sealdeal-backend/internal/llm"
)

// Models is the subset of genai.Models used here.
type Models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Client struct {
	models Models
	model  string
}

// New connects to Vertex AI through the SDK using ADC.
func New(ctx context.Context, project, location, model string) (*Client, error) {
	if strings.TrimSpace(project) == "" || strings.TrimSpace(location) == "" {
		return nil, errors.New("GCP_PROJECT and GCP_LOCATION are required for genai")
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  project,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return NewWithModels(gc.Models, model), nil
}

// NewWithModels wraps an existing models service.
func NewWithModels(models Models, model string) *Client {
	return &Client{models: models, model: model}
}

func (c *Client) Generate(ctx context.Context, req llm.Request) (string, error) {
	parts := make([]*genai.Part, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.IsInline() {
			parts = append(parts, genai.NewPartFromBytes(p.Data, p.MIME))
			continue
		}
		parts = append(parts, genai.NewPartFromText(p.Text))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	var cfg *genai.GenerateContentConfig
	if req.GoogleSearch {
		cfg = &genai.GenerateContentConfig{
			Tools: []*genai.Tool{{GoogleSearchRetrieval: &genai.GoogleSearchRetrieval{}}},
		}
	}

	resp, err := c.models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &llm.StatusError{Code: apiErr.Code, Body: apiErr.Message}
		}
		return "", err
	}
	if resp == nil {
		return "", llm.ErrInvalidResponse
	}
	text := resp.Text()
	if text == "" {
		return "", llm.ErrInvalidResponse
	}
	return text, nil
}

var _ llm.Client = (*Client)(nil)
