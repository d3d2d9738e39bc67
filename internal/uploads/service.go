package uploads

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"sealdeal-backend/internal/deals"
	"sealdeal-backend/internal/pipeline"
	"sealdeal-backend/internal/queue"
	"sealdeal-backend/internal/shared/metrics"
	"sealdeal-backend/internal/shared/storage/object"
	"sealdeal-backend/internal/shared/telemetry"
	"sealdeal-backend/internal/shared/util"
)

var (
	ErrInvalidFile = errors.New("invalid file")
	ErrTooLarge    = errors.New("file exceeds upload limit")
)

// DefaultMaxBytes bounds a single uploaded document.
const DefaultMaxBytes = 50 << 20

// DealStore is the part of the deal service uploads depend on.
type DealStore interface {
	Get(ctx context.Context, userID, dealID string) (deals.Deal, error)
	RecordUpload(ctx context.Context, dealID, fileName, storagePath string) (deals.Document, bool, error)
}

// Runner starts analysis runs.
type Runner interface {
	Run(ctx context.Context, in pipeline.RunInput) (pipeline.RunResult, error)
	Start(ctx context.Context, in pipeline.RunInput)
}

// Service stores uploaded documents and turns upload events into analysis runs.
type Service struct {
	Deals  DealStore
	Store  object.ObjectStore
	Runner Runner
	// Queue, when set, receives upload messages instead of running inline.
	Queue    queue.Client
	MaxBytes int64
	Now      func() time.Time
}

func (s *Service) maxBytes() int64 {
	if s.MaxBytes > 0 {
		return s.MaxBytes
	}
	return DefaultMaxBytes
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// UploadInput describes one document sent through the API.
type UploadInput struct {
	UserID      string
	DealID      string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Upload stores a document for a deal visible to the caller and triggers
// processing. A body longer than the declared size or the limit is rejected
// before anything is stored.
func (s *Service) Upload(ctx context.Context, in UploadInput) (deals.Document, error) {
	if in.Size > s.maxBytes() {
		return deals.Document{}, ErrTooLarge
	}
	if _, err := s.Deals.Get(ctx, in.UserID, in.DealID); err != nil {
		return deals.Document{}, err
	}
	name, err := util.SanitizeFileName(in.FileName)
	if err != nil {
		return deals.Document{}, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	key := Key{UserID: in.UserID, DealID: in.DealID, FileName: name}.String()

	limit := s.maxBytes()
	if in.Size > 0 {
		limit = in.Size
	}
	data, err := io.ReadAll(io.LimitReader(in.Body, limit+1))
	if err != nil {
		return deals.Document{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return deals.Document{}, ErrTooLarge
	}

	n, err := s.Store.Put(ctx, key, in.ContentType, bytes.NewReader(data))
	if err != nil {
		return deals.Document{}, fmt.Errorf("store upload: %w", err)
	}

	doc, _, err := s.Deals.RecordUpload(ctx, in.DealID, name, key)
	if err != nil {
		return deals.Document{}, err
	}
	telemetry.Info("upload.stored", map[string]any{"deal_id": in.DealID, "key": key, "bytes": n})

	if s.Queue != nil {
		msg := queue.Message{
			Key:        key,
			RequestID:  pipeline.RequestIDFromContext(ctx),
			EnqueuedAt: s.now().Format(time.RFC3339),
			Version:    queue.MessageVersion,
		}
		if err := s.Queue.Send(ctx, msg); err != nil {
			return doc, fmt.Errorf("enqueue upload: %w", err)
		}
		return doc, nil
	}
	s.Runner.Start(ctx, runInput(in.DealID, in.UserID))
	return doc, nil
}

// HandleEvent processes one storage event. Keys outside the upload layout are
// ignored. Analysis failures are recorded on the deal and not returned; only
// errors worth redelivering the event are.
func (s *Service) HandleEvent(ctx context.Context, objectKey string) error {
	key, ok := ParseKey(objectKey)
	if !ok {
		metrics.IncUploadEvent(true)
		telemetry.Info("upload.ignored", map[string]any{"key": objectKey})
		return nil
	}
	metrics.IncUploadEvent(false)
	fields := map[string]any{"key": objectKey, "deal_id": key.DealID, "user_id": key.UserID}

	if _, _, err := s.Deals.RecordUpload(ctx, key.DealID, key.FileName, objectKey); err != nil {
		if errors.Is(err, deals.ErrNotFound) {
			fields["error"] = err
			telemetry.Warn("upload.unknown_deal", fields)
			return nil
		}
		return fmt.Errorf("record upload: %w", err)
	}
	telemetry.Info("upload.recorded", fields)

	res, err := s.Runner.Run(ctx, runInput(key.DealID, key.UserID))
	switch {
	case err != nil:
		fields["error"] = err
		telemetry.Error("upload.analysis_failed", fields)
	case res.Queued:
		telemetry.Info("upload.analysis_queued", fields)
	default:
		fields["analysis_id"] = res.AnalysisID
		telemetry.Info("upload.analysis_completed", fields)
	}
	return nil
}

func runInput(dealID, userID string) pipeline.RunInput {
	return pipeline.RunInput{
		DealID:      dealID,
		UserID:      userID,
		FailStatus:  deals.StatusProcessingFailed,
		QueueIfBusy: true,
	}
}
