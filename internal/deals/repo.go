package deals

import (
	"context"
	"time"
)

// Repo defines persistence operations for deals and their documents.
type Repo interface {
	Create(ctx context.Context, d Deal) error
	Get(ctx context.Context, id string) (Deal, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Deal, error)

	// AddDocument records an upload. Re-recording the same storage path is a no-op
	// and reports created=false.
	AddDocument(ctx context.Context, doc Document) (created bool, err error)
	ListDocuments(ctx context.Context, dealID string) ([]Document, error)

	// BeginRun moves the deal to Processing under runID. When another fresh run
	// holds the lease it returns ErrRunInProgress, or ErrRunQueued after flagging
	// a rerun when queueIfBusy is set.
	BeginRun(ctx context.Context, dealID, runID string, now time.Time, staleAfter time.Duration, queueIfBusy bool) (Status, error)
	// FinishRun releases the lease with the final status and reports whether a
	// rerun was requested while the run was active.
	FinishRun(ctx context.Context, dealID, runID string, to Status, now time.Time) (rerun bool, err error)
}
