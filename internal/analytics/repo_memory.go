package analytics

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu   sync.RWMutex
	rows map[string]Row
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: make(map[string]Row)}
}

func (r *MemoryRepo) Insert(ctx context.Context, row Row) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[row.AnalysisID]; ok {
		return false, nil
	}
	r.rows[row.AnalysisID] = row.Normalize()
	return true, nil
}

// Has reports whether a row exists for the analysis.
func (r *MemoryRepo) Has(analysisID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rows[analysisID]
	return ok
}

func (r *MemoryRepo) ListPending(ctx context.Context, limit int) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Row, 0)
	for _, row := range r.rows {
		if row.ExportedAt == nil {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AnalyzedAt.Before(out[j].AnalyzedAt) })
	return truncate(out, limit), nil
}

func (r *MemoryRepo) MarkExported(ctx context.Context, analysisIDs []string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range analysisIDs {
		row, ok := r.rows[id]
		if !ok {
			continue
		}
		ts := at
		row.ExportedAt = &ts
		r.rows[id] = row
	}
	return nil
}

func (r *MemoryRepo) List(ctx context.Context, limit int) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Row, 0, len(r.rows))
	for _, row := range r.rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AnalyzedAt.After(out[j].AnalyzedAt) })
	return truncate(out, limit), nil
}

func truncate(rows []Row, limit int) []Row {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}
