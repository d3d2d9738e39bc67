package analytics

import (
	"context"
	"time"

	"sealdeal-backend/internal/shared/metrics"
	"sealdeal-backend/internal/shared/telemetry"
)

const (
	DefaultListLimit  = 10
	reconcileBatch    = 100
	maxReconcileLoops = 50
)

type Service struct {
	Repo     Repo
	Exporter Exporter
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Export sends rows to the warehouse and marks them exported. Failures are
// logged and leave the rows pending for Reconcile.
func (s *Service) Export(ctx context.Context, rows []Row) error {
	if len(rows) == 0 || s.Exporter == nil {
		return nil
	}
	if err := s.Exporter.Export(ctx, rows); err != nil {
		metrics.IncExport(false)
		telemetry.Warn("analytics.export_failed", map[string]any{"rows": len(rows), "error": err})
		return err
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.AnalysisID)
	}
	if err := s.Repo.MarkExported(ctx, ids, s.now()); err != nil {
		telemetry.Warn("analytics.mark_exported_failed", map[string]any{"rows": len(rows), "error": err})
		return err
	}
	metrics.IncExport(true)
	return nil
}

// Reconcile exports every pending row in batches and returns how many were sent.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	total := 0
	for i := 0; i < maxReconcileLoops; i++ {
		pending, err := s.Repo.ListPending(ctx, reconcileBatch)
		if err != nil {
			return total, err
		}
		if len(pending) == 0 {
			break
		}
		if err := s.Export(ctx, pending); err != nil {
			return total, err
		}
		total += len(pending)
		if len(pending) < reconcileBatch {
			break
		}
	}
	if total > 0 {
		telemetry.Info("analytics.reconciled", map[string]any{"rows": total})
	}
	return total, nil
}

// List returns the most recent rows.
func (s *Service) List(ctx context.Context, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > 1000 {
		limit = 1000
	}
	return s.Repo.List(ctx, limit)
}
