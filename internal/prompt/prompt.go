// Package prompt assembles the deal analysis request.
package prompt

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"sealdeal-backend/internal/ingest"
	"sealdeal-backend/internal/llm"
)

//go:embed templates/analysis.txt
var analysisTemplate string

var analysis = template.Must(template.New("analysis").Parse(analysisTemplate))

// DocumentBlock wraps each text part in start and end banners and joins them
// with a blank line.
func DocumentBlock(texts []ingest.Part) string {
	blocks := make([]string, 0, len(texts))
	for _, p := range texts {
		blocks = append(blocks, fmt.Sprintf("--- [START OF DOCUMENT: %s] ---\n%s\n--- [END OF DOCUMENT: %s] ---", p.Name, p.Text, p.Name))
	}
	return strings.Join(blocks, "\n\n")
}

// Render fills the analysis template. benchmarks is serialized as compact JSON.
func Render(benchmarks any, documents string) (string, error) {
	if benchmarks == nil {
		benchmarks = []any{}
	}
	raw, err := json.Marshal(benchmarks)
	if err != nil {
		return "", fmt.Errorf("encode benchmarks: %w", err)
	}
	var b strings.Builder
	if err := analysis.Execute(&b, struct {
		Benchmarks string
		Documents  string
	}{Benchmarks: string(raw), Documents: documents}); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Build returns the request parts in order: the prompt, every inline
// presentation, then the text documents when any are non-blank.
func Build(benchmarks any, parts []ingest.Part) (llm.Request, error) {
	presentations, texts := ingest.Split(parts)
	documents := DocumentBlock(texts)

	text, err := Render(benchmarks, documents)
	if err != nil {
		return llm.Request{}, err
	}

	req := llm.Request{Parts: make([]llm.Part, 0, len(presentations)+2)}
	req.Parts = append(req.Parts, llm.TextPart(text))
	for _, p := range presentations {
		req.Parts = append(req.Parts, llm.InlinePart(p.MIME, p.Data))
	}
	if strings.TrimSpace(documents) != "" {
		req.Parts = append(req.Parts, llm.TextPart(documents))
	}
	return req, nil
}
