package deals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var lockColumns = []string{"id", "owner_id", "deal_name", "status", "run_id", "run_started_at", "rerun_requested", "created_at", "updated_at"}

func TestPGRepoBeginRunTakesLease(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM deals WHERE id = \\$1 FOR UPDATE").
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows(lockColumns).
			AddRow("d1", "owner", "Acme", string(StatusAwaitingUpload), nil, nil, false, now, now))
	mock.ExpectExec("UPDATE deals").
		WithArgs("d1", string(StatusProcessing), "run-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	from, err := repo.BeginRun(context.Background(), "d1", "run-1", now, 15*time.Minute, false)
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if from != StatusAwaitingUpload {
		t.Fatalf("unexpected from %s", from)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoBeginRunRejectsActiveRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM deals WHERE id = \\$1 FOR UPDATE").
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows(lockColumns).
			AddRow("d1", "owner", "Acme", string(StatusProcessing), "run-0", now.Add(-time.Minute), false, now, now))
	mock.ExpectRollback()

	_, err = repo.BeginRun(context.Background(), "d1", "run-1", now, 15*time.Minute, false)
	if !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoAddDocumentIgnoresDuplicates(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	doc := Document{ID: "doc-1", DealID: "d1", FileName: "deck.pdf", StoragePath: "uploads/u/d1/deck.pdf", UploadedAt: time.Now().UTC()}

	mock.ExpectExec("INSERT INTO deal_documents").
		WithArgs(doc.ID, doc.DealID, doc.FileName, doc.StoragePath, doc.UploadedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := repo.AddDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if created {
		t.Fatalf("expected duplicate to report created=false")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
