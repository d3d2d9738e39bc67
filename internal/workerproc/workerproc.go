package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"sealdeal-backend/internal/pipeline"
	"sealdeal-backend/internal/queue"
	s3store "sealdeal-backend/internal/shared/storage/object/s3"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrProcess indicates processing an object key failed after parsing.
type ErrProcess struct {
	Key       string
	RequestID string
	Err       error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process upload"
	}
	return "process upload " + e.Key + ": " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Envelope, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Envelope{}, meta, ErrEmptyBody{Meta: meta}
	}

	env, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Envelope{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	return env, meta, nil
}

// EventHandler processes one uploaded object key.
type EventHandler interface {
	HandleEvent(ctx context.Context, objectKey string) error
}

// Processor turns queue bodies into upload events.
type Processor struct {
	Events EventHandler
	// Prefix is the bucket prefix the object store writes under; notification
	// keys carry it and upload keys do not.
	Prefix string
}

// HandleMessage parses a body and processes every key in it. Processing
// continues past a failed key; the first failure is returned.
func (p *Processor) HandleMessage(ctx context.Context, body string) error {
	if p == nil || p.Events == nil {
		return errors.New("upload processor not configured")
	}
	env, _, err := ParseMessage(body)
	if err != nil {
		return err
	}
	return p.Handle(ctx, env)
}

// Handle processes an already decoded envelope.
func (p *Processor) Handle(ctx context.Context, env queue.Envelope) error {
	if env.RequestID != "" {
		ctx = pipeline.WithRequestID(ctx, env.RequestID)
	}
	prefix := s3store.NormalizePrefix(p.Prefix)
	var first error
	for _, key := range env.Keys {
		key = s3store.StripPrefix(prefix, key)
		if err := p.Events.HandleEvent(ctx, key); err != nil && first == nil {
			first = ErrProcess{Key: key, RequestID: env.RequestID, Err: err}
		}
	}
	return first
}
