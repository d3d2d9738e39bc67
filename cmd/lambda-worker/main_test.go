package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"sealdeal-backend/internal/workerproc"
)

type stubEvents struct {
	fail map[string]bool
}

func (s stubEvents) HandleEvent(ctx context.Context, objectKey string) error {
	if s.fail[objectKey] {
		return errors.New("boom")
	}
	return nil
}

func TestProcessBatchReportsOnlyProcessingFailures(t *testing.T) {
	proc := &workerproc.Processor{Events: stubEvents{fail: map[string]bool{"uploads/u1/d2/deck.pdf": true}}}
	event := events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "ok", Body: `{"key":"uploads/u1/d1/deck.pdf"}`},
		{MessageId: "bad-json", Body: `{nope`},
		{MessageId: "failed", Body: `{"key":"uploads/u1/d2/deck.pdf"}`},
	}}

	resp := processBatch(context.Background(), proc, event)

	if len(resp.BatchItemFailures) != 1 || resp.BatchItemFailures[0].ItemIdentifier != "failed" {
		t.Fatalf("unexpected failures %+v", resp.BatchItemFailures)
	}
}
