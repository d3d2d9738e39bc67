package uploads

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"sealdeal-backend/internal/deals"
	"sealdeal-backend/internal/pipeline"
	"sealdeal-backend/internal/queue"
	"sealdeal-backend/internal/shared/storage/object/local"
)

type fakeRunner struct {
	mu      sync.Mutex
	ran     []pipeline.RunInput
	started []pipeline.RunInput
	err     error
}

func (f *fakeRunner) Run(_ context.Context, in pipeline.RunInput) (pipeline.RunResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ran = append(f.ran, in)
	return pipeline.RunResult{AnalysisID: "a1"}, f.err
}

func (f *fakeRunner) Start(_ context.Context, in pipeline.RunInput) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, in)
}

type fakeQueue struct {
	sent []queue.Message
}

func (f *fakeQueue) Send(_ context.Context, msg queue.Message) error {
	f.sent = append(f.sent, msg)
	return nil
}

type fixture struct {
	svc      *Service
	dealRepo *deals.MemoryRepo
	runner   *fakeRunner
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	dealRepo := deals.NewMemoryRepo()
	for id, owner := range map[string]string{"d1": "u1", "d2": "u2"} {
		if err := dealRepo.Create(ctx, deals.Deal{ID: id, OwnerID: owner, DealName: "Acme", Status: deals.StatusAwaitingUpload}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	runner := &fakeRunner{}
	svc := &Service{
		Deals:  &deals.Service{Repo: dealRepo},
		Store:  local.New(t.TempDir()),
		Runner: runner,
	}
	return fixture{svc: svc, dealRepo: dealRepo, runner: runner}
}

func TestParseKey(t *testing.T) {
	cases := map[string]bool{
		"uploads/u1/d1/deck.pdf":        true,
		"uploads/u1/d1":                 false,
		"uploads/u1/d1/nested/deck.pdf": false,
		"other/u1/d1/deck.pdf":          false,
		"uploads//d1/deck.pdf":          false,
		"":                              false,
	}
	for in, want := range cases {
		if _, ok := ParseKey(in); ok != want {
			t.Fatalf("ParseKey(%q) = %v, want %v", in, ok, want)
		}
	}
	k, _ := ParseKey("uploads/u1/d1/deck.pdf")
	if k.UserID != "u1" || k.DealID != "d1" || k.FileName != "deck.pdf" {
		t.Fatalf("unexpected key %+v", k)
	}
	if k.String() != "uploads/u1/d1/deck.pdf" {
		t.Fatalf("unexpected String %q", k.String())
	}
}

func TestHandleEventRecordsAndRuns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.HandleEvent(ctx, "uploads/u1/d1/deck.pdf"); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	docs, _ := f.dealRepo.ListDocuments(ctx, "d1")
	if len(docs) != 1 || docs[0].StoragePath != "uploads/u1/d1/deck.pdf" {
		t.Fatalf("unexpected documents %+v", docs)
	}
	if len(f.runner.ran) != 1 {
		t.Fatalf("expected one run, got %d", len(f.runner.ran))
	}
	in := f.runner.ran[0]
	if in.FailStatus != deals.StatusProcessingFailed || !in.QueueIfBusy || in.UserID != "u1" {
		t.Fatalf("unexpected run input %+v", in)
	}
}

func TestHandleEventIgnoresForeignKeys(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.HandleEvent(context.Background(), "exports/report.csv"); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(f.runner.ran) != 0 {
		t.Fatalf("foreign key should not trigger a run")
	}
}

func TestHandleEventSwallowsAnalysisFailure(t *testing.T) {
	f := newFixture(t)
	f.runner.err = errors.New("model failed")
	if err := f.svc.HandleEvent(context.Background(), "uploads/u1/d1/deck.pdf"); err != nil {
		t.Fatalf("analysis failures should not be redelivered: %v", err)
	}
	if err := f.svc.HandleEvent(context.Background(), "uploads/u1/missing/deck.pdf"); err != nil {
		t.Fatalf("unknown deals should not be redelivered: %v", err)
	}
}

func TestUploadChecksAccessAndSize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.MaxBytes = 4

	_, err := f.svc.Upload(ctx, UploadInput{UserID: "u1", DealID: "d2", FileName: "deck.pdf", Size: 1, Body: strings.NewReader("x")})
	if !errors.Is(err, deals.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	_, err = f.svc.Upload(ctx, UploadInput{UserID: "u1", DealID: "d1", FileName: "deck.pdf", Size: 10, Body: strings.NewReader("0123456789")})
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	_, err = f.svc.Upload(ctx, UploadInput{UserID: "u1", DealID: "d1", FileName: "../deck.pdf", Size: 1, Body: strings.NewReader("x")})
	if !errors.Is(err, ErrInvalidFile) {
		t.Fatalf("expected ErrInvalidFile, got %v", err)
	}
}

func TestUploadRejectsBodyLongerThanDeclared(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.MaxBytes = 8

	_, err := f.svc.Upload(ctx, UploadInput{UserID: "u1", DealID: "d1", FileName: "deck.pdf", Size: 4, Body: strings.NewReader("0123456789")})
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	_, err = f.svc.Upload(ctx, UploadInput{UserID: "u1", DealID: "d1", FileName: "deck.pdf", Body: strings.NewReader("0123456789")})
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge without a declared size, got %v", err)
	}
	if _, err := f.svc.Store.Open(ctx, "uploads/u1/d1/deck.pdf"); err == nil {
		t.Fatalf("oversize upload should not be stored")
	}
	docs, _ := f.dealRepo.ListDocuments(ctx, "d1")
	if len(docs) != 0 {
		t.Fatalf("oversize upload should not be recorded, got %+v", docs)
	}
	if len(f.runner.started) != 0 {
		t.Fatalf("oversize upload should not trigger a run")
	}
}

func TestUploadEnqueuesWhenQueueConfigured(t *testing.T) {
	f := newFixture(t)
	q := &fakeQueue{}
	f.svc.Queue = q
	ctx := pipeline.WithRequestID(context.Background(), "req-1")

	if _, err := f.svc.Upload(ctx, UploadInput{UserID: "u1", DealID: "d1", FileName: "notes.txt", Size: 5, Body: strings.NewReader("hello")}); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(q.sent) != 1 || q.sent[0].Key != "uploads/u1/d1/notes.txt" || q.sent[0].RequestID != "req-1" {
		t.Fatalf("unexpected messages %+v", q.sent)
	}
	if len(f.runner.started) != 0 {
		t.Fatalf("queued uploads should not run inline")
	}
}
