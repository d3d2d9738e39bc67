package analyses

import (
	"context"
	"sort"
	"sync"

	"sealdeal-backend/internal/analytics"
)

// MemoryRepo keeps analyses in memory next to an analytics.MemoryRepo.
type MemoryRepo struct {
	mu    sync.RWMutex
	items []Analysis
	Rows  *analytics.MemoryRepo
}

func NewMemoryRepo(rows *analytics.MemoryRepo) *MemoryRepo {
	return &MemoryRepo{Rows: rows}
}

func (r *MemoryRepo) CreateWithRow(ctx context.Context, a Analysis, row analytics.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Rows != nil {
		if _, err := r.Rows.Insert(ctx, row); err != nil {
			return err
		}
	}
	r.items = append(r.items, a)
	return nil
}

func (r *MemoryRepo) ListByDeal(ctx context.Context, dealID string, limit int) ([]Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Analysis, 0)
	for _, a := range r.items {
		if a.DealID == dealID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AnalyzedAt.After(out[j].AnalyzedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) Latest(ctx context.Context, dealID string) (Analysis, error) {
	items, err := r.ListByDeal(ctx, dealID, 1)
	if err != nil {
		return Analysis{}, err
	}
	if len(items) == 0 {
		return Analysis{}, ErrNotFound
	}
	return items[0], nil
}

func (r *MemoryRepo) ListWithoutRow(ctx context.Context, limit int) ([]Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Analysis, 0)
	for _, a := range r.items {
		if r.Rows != nil && r.Rows.Has(a.ID) {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AnalyzedAt.Before(out[j].AnalyzedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Put stores an analysis without a row. Tests use it to simulate records
// written before analytics rows existed.
func (r *MemoryRepo) Put(a Analysis) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, a)
}
