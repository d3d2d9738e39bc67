package deals

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu    sync.RWMutex
	deals map[string]Deal
	docs  map[string][]Document // dealID -> documents
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		deals: make(map[string]Deal),
		docs:  make(map[string][]Document),
	}
}

func (r *MemoryRepo) Create(ctx context.Context, d Deal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deals[d.ID] = d
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Deal, error) {
	if err := ctx.Err(); err != nil {
		return Deal{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.deals[id]
	if !ok {
		return Deal{}, &NotFoundError{DealID: id}
	}
	return d, nil
}

// ListByOwner returns deals for an owner, newest first, honoring limit/offset.
func (r *MemoryRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Deal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}

	r.mu.RLock()
	var out []Deal
	for _, d := range r.deals {
		if d.OwnerID == ownerID {
			out = append(out, d)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return []Deal{}, nil
	}
	end := len(out)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], nil
}

func (r *MemoryRepo) AddDocument(ctx context.Context, doc Document) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.deals[doc.DealID]; !ok {
		return false, &NotFoundError{DealID: doc.DealID}
	}
	for _, existing := range r.docs[doc.DealID] {
		if existing.StoragePath == doc.StoragePath {
			return false, nil
		}
	}
	r.docs[doc.DealID] = append(r.docs[doc.DealID], doc)
	return true, nil
}

// ListDocuments returns documents in upload order.
func (r *MemoryRepo) ListDocuments(ctx context.Context, dealID string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Document, len(r.docs[dealID]))
	copy(out, r.docs[dealID])
	return out, nil
}

func (r *MemoryRepo) BeginRun(ctx context.Context, dealID, runID string, now time.Time, staleAfter time.Duration, queueIfBusy bool) (Status, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deals[dealID]
	if !ok {
		return "", &NotFoundError{DealID: dealID}
	}
	from := d.Status
	if err := checkBegin(d, now, staleAfter); err != nil {
		if err == ErrRunInProgress && queueIfBusy {
			d.RerunRequested = true
			d.UpdatedAt = now
			r.deals[dealID] = d
			return from, ErrRunQueued
		}
		return from, err
	}
	started := now
	d.Status = StatusProcessing
	d.RunID = runID
	d.RunStartedAt = &started
	d.RerunRequested = false
	d.UpdatedAt = now
	r.deals[dealID] = d
	return from, nil
}

func (r *MemoryRepo) FinishRun(ctx context.Context, dealID, runID string, to Status, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deals[dealID]
	if !ok {
		return false, &NotFoundError{DealID: dealID}
	}
	if err := checkFinish(d, runID, to); err != nil {
		return false, err
	}
	rerun := d.RerunRequested
	d.Status = to
	d.RunID = ""
	d.RunStartedAt = nil
	d.RerunRequested = false
	d.UpdatedAt = now
	r.deals[dealID] = d
	return rerun, nil
}

var _ Repo = (*MemoryRepo)(nil)
