package analyses

import (
	"context"
	"errors"

	"sealdeal-backend/internal/analytics"
)

var (
	ErrNotFound     = errors.New("analysis not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Repo persists analyses.
type Repo interface {
	// CreateWithRow stores the analysis and its analytics row atomically.
	CreateWithRow(ctx context.Context, a Analysis, row analytics.Row) error
	// ListByDeal returns a deal's analyses newest first.
	ListByDeal(ctx context.Context, dealID string, limit int) ([]Analysis, error)
	Latest(ctx context.Context, dealID string) (Analysis, error)
	// ListWithoutRow returns analyses that have no analytics row, oldest first.
	ListWithoutRow(ctx context.Context, limit int) ([]Analysis, error)
}
