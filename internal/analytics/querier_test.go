package analytics

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestCheckReadOnly(t *testing.T) {
	ok := []string{
		"SELECT COUNT(*) FROM analytics",
		"  with x as (select 1) select * from x;",
		"select dealName from `p.deal_analysis.analyses`",
	}
	for _, q := range ok {
		if _, err := CheckReadOnly(q); err != nil {
			t.Fatalf("CheckReadOnly(%q): %v", q, err)
		}
	}
	bad := []string{
		"",
		"DELETE FROM analytics",
		"SELECT 1; DROP TABLE analytics",
		"selector",
		"UPDATE analytics SET deal_name = 'x'",
	}
	for _, q := range bad {
		if _, err := CheckReadOnly(q); !errors.Is(err, ErrNotReadOnly) {
			t.Fatalf("CheckReadOnly(%q) should fail, got %v", q, err)
		}
	}
}

func TestPGQuerierKeepsColumnOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SET LOCAL ROLE "sealdeal_analytics_reader"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL statement_timeout = 10000")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT deal_name, metrics_arr_value FROM analytics").
		WillReturnRows(sqlmock.NewRows([]string{"deal_name", "metrics_arr_value"}).
			AddRow([]byte("Acme"), 500000.0))
	mock.ExpectRollback()

	q := &PGQuerier{DB: db, Role: "sealdeal_analytics_reader"}
	res, err := q.Query(context.Background(), "SELECT deal_name, metrics_arr_value FROM analytics;")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(res.Columns) != 2 || res.Columns[0] != "deal_name" {
		t.Fatalf("unexpected columns %v", res.Columns)
	}
	if res.Rows[0]["deal_name"] != "Acme" || res.Rows[0]["metrics_arr_value"] != 500000.0 {
		t.Fatalf("unexpected row %v", res.Rows[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGQuerierRejectsWrites(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := (&PGQuerier{DB: db}).Query(context.Background(), "DROP TABLE analytics"); !errors.Is(err, ErrNotReadOnly) {
		t.Fatalf("expected ErrNotReadOnly, got %v", err)
	}
}

func TestPGQuerierRunsAsReaderRoleWithTimeout(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SET LOCAL ROLE "reader""x"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL statement_timeout = 2500")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, role FROM users")).
		WillReturnError(errors.New(`permission denied for table users`))
	mock.ExpectRollback()

	q := &PGQuerier{DB: db, Role: `reader"x`, Timeout: 2500 * time.Millisecond}
	if _, err := q.Query(context.Background(), "SELECT id, email, role FROM users"); err == nil {
		t.Fatalf("expected permission error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGQuerierStopsWhenRoleSwitchFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL ROLE").WillReturnError(errors.New(`role "sealdeal_analytics_reader" does not exist`))
	mock.ExpectRollback()

	q := &PGQuerier{DB: db, Role: "sealdeal_analytics_reader"}
	if _, err := q.Query(context.Background(), "SELECT COUNT(*) FROM analytics"); err == nil {
		t.Fatalf("expected role error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGQuerierRequiresRole(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := (&PGQuerier{DB: db}).Query(context.Background(), "SELECT 1"); !errors.Is(err, ErrNoReaderRole) {
		t.Fatalf("expected ErrNoReaderRole, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
