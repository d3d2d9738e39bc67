// Package llm defines the generative model contract shared by the analysis
// pipeline and the chat agents.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Client abstracts Gemini providers.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Part is either text or inline bytes with a MIME type.
type Part struct {
	Text string
	MIME string
	Data []byte
}

// IsInline reports whether the part carries bytes instead of text.
func (p Part) IsInline() bool { return p.MIME != "" }

func TextPart(text string) Part { return Part{Text: text} }

func InlinePart(mime string, data []byte) Part { return Part{MIME: mime, Data: data} }

// Request is a single-turn user request.
type Request struct {
	Parts []Part
	// GoogleSearch enables search grounding for the call.
	GoogleSearch bool
}

// Prompt builds a text-only request.
func Prompt(text string) Request {
	return Request{Parts: []Part{TextPart(text)}}
}

// ErrInvalidResponse is returned when the response carries no text.
var ErrInvalidResponse = errors.New("Gemini returned an invalid response.")

// ErrNoJSONObject is returned when a response holds no braces to extract.
var ErrNoJSONObject = errors.New("no JSON object in model response")

// ErrNotConfigured is returned by Unconfigured.
var ErrNotConfigured = errors.New("llm client not configured")

// Unconfigured stands in when no model provider is available, e.g. local dev
// without GCP credentials.
type Unconfigured struct{}

func (Unconfigured) Generate(ctx context.Context, req Request) (string, error) {
	return "", ErrNotConfigured
}

// StatusError is a non-2xx response from the model endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API call failed: %s", e.Body)
}

// IsRateLimited reports whether err is an HTTP 429 from the model endpoint.
func IsRateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusTooManyRequests
}

// ExtractJSONObject returns text from the first '{' to the last '}'.
func ExtractJSONObject(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", ErrNoJSONObject
	}
	return text[start : end+1], nil
}
