package analyses

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"sealdeal-backend/internal/analytics"
	"sealdeal-backend/internal/deals"
	"sealdeal-backend/internal/shared/telemetry"
)

const backfillBatch = 100

// DealLookup reads deals without an access check. deals.Repo satisfies it.
type DealLookup interface {
	Get(ctx context.Context, id string) (deals.Deal, error)
}

// DealAccess reads a deal on behalf of a user. deals.Service satisfies it.
type DealAccess interface {
	Get(ctx context.Context, userID, dealID string) (deals.Deal, error)
}

// Service contains business logic for analyses.
type Service struct {
	Repo      Repo
	Rows      analytics.Repo
	Analytics *analytics.Service
	Deals     DealLookup
	Access    DealAccess
	Now       func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// RecordInput carries a decoded result and its provenance.
type RecordInput struct {
	DealID      string
	DealName    string
	UserID      string
	SourceFiles []string
	Result      Result
}

// Record stores the analysis and its flat row together, then exports the row.
// Export failures are logged and left for reconciliation.
func (s *Service) Record(ctx context.Context, in RecordInput) (Analysis, error) {
	if in.DealID == "" || in.UserID == "" {
		return Analysis{}, ErrInvalidInput
	}
	a := Analysis{
		ID:          uuid.NewString(),
		Result:      in.Result,
		SourceFiles: in.SourceFiles,
		AnalyzedAt:  s.now(),
		DealID:      in.DealID,
		CreatedBy:   in.UserID,
		Version:     Version,
	}
	row := a.Flatten(in.DealName)
	if err := s.Repo.CreateWithRow(ctx, a, row); err != nil {
		return Analysis{}, err
	}
	telemetry.Info("analysis.saved", map[string]any{"deal_id": a.DealID, "analysis_id": a.ID})

	if s.Analytics != nil {
		if err := s.Analytics.Export(ctx, []analytics.Row{row}); err == nil {
			telemetry.Info("analysis.exported", map[string]any{"deal_id": a.DealID, "analysis_id": a.ID})
		}
	}
	return a, nil
}

// List returns a deal's analyses for a user with access to the deal.
func (s *Service) List(ctx context.Context, userID, dealID string, limit int) ([]Analysis, error) {
	if _, err := s.Access.Get(ctx, userID, dealID); err != nil {
		return nil, err
	}
	return s.Repo.ListByDeal(ctx, dealID, limit)
}

// ComparisonItem pairs a deal with its latest analysis, if any.
type ComparisonItem struct {
	DealID   string    `json:"dealId"`
	DealName string    `json:"dealName"`
	Analysis *Analysis `json:"analysis"`
}

// Compare loads every deal's name and latest analysis concurrently. Missing
// deals report "Unknown" and missing analyses are null.
func (s *Service) Compare(ctx context.Context, dealIDs []string) ([]ComparisonItem, error) {
	if len(dealIDs) == 0 {
		return nil, ErrInvalidInput
	}
	items := make([]ComparisonItem, len(dealIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, id := range dealIDs {
		g.Go(func() error {
			item := ComparisonItem{DealID: id, DealName: "Unknown"}
			d, err := s.Deals.Get(gctx, id)
			switch {
			case err == nil:
				if strings.TrimSpace(d.DealName) != "" {
					item.DealName = d.DealName
				}
			case !errors.Is(err, deals.ErrNotFound):
				return err
			}
			latest, err := s.Repo.Latest(gctx, id)
			switch {
			case err == nil:
				item.Analysis = &latest
			case !errors.Is(err, ErrNotFound):
				return err
			}
			items[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// Backfill creates analytics rows for analyses that lack one and exports them.
// It returns the number of rows created.
func (s *Service) Backfill(ctx context.Context) (int, error) {
	names := make(map[string]string)
	processed := 0
	for {
		batch, err := s.Repo.ListWithoutRow(ctx, backfillBatch)
		if err != nil {
			return processed, err
		}
		if len(batch) == 0 {
			break
		}
		created := 0
		for _, a := range batch {
			name, ok := names[a.DealID]
			if !ok {
				name = s.dealName(ctx, a.DealID)
				names[a.DealID] = name
			}
			inserted, err := s.Rows.Insert(ctx, a.Flatten(name))
			if err != nil {
				return processed, err
			}
			if inserted {
				created++
			}
		}
		processed += created
		if created == 0 || len(batch) < backfillBatch {
			break
		}
	}
	telemetry.Info("analytics.backfilled", map[string]any{"rows": processed})

	if s.Analytics != nil && processed > 0 {
		if _, err := s.Analytics.Reconcile(ctx); err != nil {
			telemetry.Warn("analytics.backfill_export_failed", map[string]any{"error": err})
		}
	}
	return processed, nil
}

func (s *Service) dealName(ctx context.Context, dealID string) string {
	if s.Deals == nil {
		return "Unknown Deal"
	}
	d, err := s.Deals.Get(ctx, dealID)
	if err != nil || strings.TrimSpace(d.DealName) == "" {
		return "Unknown Deal"
	}
	return d.DealName
}
