package analytics

import (
	"context"
	"time"
)

// Repo reads and maintains stored rows. Rows are written together with their
// analysis by the analyses repository.
type Repo interface {
	// Insert stores a row unless one already exists for the analysis.
	Insert(ctx context.Context, row Row) (bool, error)
	// ListPending returns rows not yet exported, oldest first.
	ListPending(ctx context.Context, limit int) ([]Row, error)
	MarkExported(ctx context.Context, analysisIDs []string, at time.Time) error
	// List returns rows newest first.
	List(ctx context.Context, limit int) ([]Row, error)
}
