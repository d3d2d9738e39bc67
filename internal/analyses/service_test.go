package analyses

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"sealdeal-backend/internal/analytics"
	"sealdeal-backend/internal/deals"
)

type flakyExporter struct {
	fail bool
	rows int
}

func (f *flakyExporter) Export(ctx context.Context, rows []analytics.Row) error {
	if f.fail {
		return errors.New("bigquery down")
	}
	f.rows += len(rows)
	return nil
}

type fixture struct {
	svc      *Service
	dealRepo *deals.MemoryRepo
	repo     *MemoryRepo
	rows     *analytics.MemoryRepo
	exporter *flakyExporter
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	rows := analytics.NewMemoryRepo()
	exp := &flakyExporter{}
	dealRepo := deals.NewMemoryRepo()
	repo := NewMemoryRepo(rows)
	clock := time.Date(2026, time.July, 1, 9, 0, 0, 0, time.UTC)
	svc := &Service{
		Repo:      repo,
		Rows:      rows,
		Analytics: &analytics.Service{Repo: rows, Exporter: exp},
		Deals:     dealRepo,
		Access:    &deals.Service{Repo: dealRepo},
		Now: func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		},
	}
	return fixture{svc: svc, dealRepo: dealRepo, repo: repo, rows: rows, exporter: exp}
}

func (f fixture) seedDeal(t *testing.T, id, owner, name string) {
	t.Helper()
	if err := f.dealRepo.Create(context.Background(), deals.Deal{ID: id, OwnerID: owner, DealName: name, Status: deals.StatusProcessing}); err != nil {
		t.Fatalf("seed deal: %v", err)
	}
}

func TestRecordWritesAnalysisAndRowThenExports(t *testing.T) {
	f := newFixture(t)
	f.seedDeal(t, "d1", "u1", "Acme")
	res, _ := Decode(validResponse)

	a, err := f.svc.Record(context.Background(), RecordInput{DealID: "d1", DealName: "Acme", UserID: "u1", SourceFiles: []string{"deck.pdf"}, Result: res})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if a.Version != "2.0" || a.CreatedBy != "u1" {
		t.Fatalf("unexpected analysis %+v", a)
	}
	if !f.rows.Has(a.ID) {
		t.Fatalf("analytics row missing")
	}
	if f.exporter.rows != 1 {
		t.Fatalf("expected 1 exported row, got %d", f.exporter.rows)
	}
	pending, _ := f.rows.ListPending(context.Background(), 10)
	if len(pending) != 0 {
		t.Fatalf("exported row should not be pending")
	}
}

func TestRecordExportFailureKeepsAnalysis(t *testing.T) {
	f := newFixture(t)
	f.seedDeal(t, "d1", "u1", "Acme")
	f.exporter.fail = true
	res, _ := Decode(validResponse)

	if _, err := f.svc.Record(context.Background(), RecordInput{DealID: "d1", DealName: "Acme", UserID: "u1", Result: res}); err != nil {
		t.Fatalf("Record should succeed when export fails: %v", err)
	}
	pending, _ := f.rows.ListPending(context.Background(), 10)
	if len(pending) != 1 {
		t.Fatalf("expected pending row, got %d", len(pending))
	}

	f.exporter.fail = false
	if n, err := f.svc.Analytics.Reconcile(context.Background()); err != nil || n != 1 {
		t.Fatalf("Reconcile = %d, %v", n, err)
	}
}

func TestCompareUsesLatestAndUnknown(t *testing.T) {
	f := newFixture(t)
	f.seedDeal(t, "d1", "u1", "Acme")
	res, _ := Decode(validResponse)
	ctx := context.Background()
	_, _ = f.svc.Record(ctx, RecordInput{DealID: "d1", DealName: "Acme", UserID: "u1", Result: res})
	res.BenchmarkingSummary = "Newer."
	_, _ = f.svc.Record(ctx, RecordInput{DealID: "d1", DealName: "Acme", UserID: "u1", Result: res})

	items, err := f.svc.Compare(ctx, []string{"d1", "missing"})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].DealName != "Acme" || items[0].Analysis == nil || items[0].Analysis.BenchmarkingSummary != "Newer." {
		t.Fatalf("unexpected first item %+v", items[0])
	}
	if items[1].DealName != "Unknown" || items[1].Analysis != nil {
		t.Fatalf("unexpected missing item %+v", items[1])
	}
}

func TestBackfillCreatesMissingRows(t *testing.T) {
	f := newFixture(t)
	f.seedDeal(t, "d1", "u1", "Acme")
	f.repo.Put(Analysis{ID: "old-1", DealID: "d1", CreatedBy: "u1", Version: Version, AnalyzedAt: time.Now()})
	f.repo.Put(Analysis{ID: "old-2", DealID: "gone", CreatedBy: "u1", Version: Version, AnalyzedAt: time.Now()})

	n, err := f.svc.Backfill(context.Background())
	if err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows, got %d", n)
	}
	rows, _ := f.rows.List(context.Background(), 10)
	names := map[string]string{}
	for _, r := range rows {
		names[r.AnalysisID] = r.DealName
	}
	if names["old-1"] != "Acme" || names["old-2"] != "Unknown Deal" {
		t.Fatalf("unexpected names %v", names)
	}
	if n, _ := f.svc.Backfill(context.Background()); n != 0 {
		t.Fatalf("second backfill should be a no-op, got %d", n)
	}
}

func TestListRequiresDealAccess(t *testing.T) {
	f := newFixture(t)
	f.seedDeal(t, "d1", "owner", "Acme")
	if _, err := f.svc.List(context.Background(), "intruder", "d1", 10); !errors.Is(err, deals.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestCompareHandlerRequiresDealIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	router := gin.New()
	NewHandler(f.svc).RegisterRoutes(router.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/deals/compare", strings.NewReader(`{"dealIds":[]}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "An array of 'dealIds' must be provided.") {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}
