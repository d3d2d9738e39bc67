package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker
//
// The function is subscribed to the upload queue, which receives both S3
// ObjectCreated notifications and messages sent by the API.

import (
	"context"
	"errors"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"sealdeal-backend/internal/bootstrap"
	"sealdeal-backend/internal/shared/config"
	"sealdeal-backend/internal/shared/telemetry"
	"sealdeal-backend/internal/workerproc"
)

var (
	initOnce  sync.Once
	initErr   error
	processor messageHandler
)

type messageHandler interface {
	HandleMessage(ctx context.Context, body string) error
}

func initApp() {
	cfg, err := config.Load()
	if err != nil {
		initErr = err
		return
	}
	if _, err := telemetry.Init(cfg.Env, cfg.LogLevel); err != nil {
		initErr = err
		return
	}
	built, err := bootstrap.Build(context.Background(), cfg)
	if err != nil {
		initErr = err
		return
	}
	processor = built.Processor
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		telemetry.Error("lambda.bootstrap_failed", map[string]any{"error": initErr})
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return processBatch(ctx, processor, event), nil
}

// processBatch reports processing failures for redelivery. Unparseable bodies
// are dropped since redelivery cannot fix them.
func processBatch(ctx context.Context, h messageHandler, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		err := h.HandleMessage(ctx, record.Body)
		if err == nil {
			continue
		}
		fields := map[string]any{"sqs_message_id": record.MessageId, "error": err}
		var procErr workerproc.ErrProcess
		if !errors.As(err, &procErr) {
			telemetry.Error("worker.upload.decode_failed", fields)
			continue
		}
		fields["key"] = procErr.Key
		telemetry.Error("worker.upload.failed", fields)
		failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
