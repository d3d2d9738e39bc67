package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/jackc/pgx/v5"
	"google.golang.org/api/iterator"
)

const (
	DialectBigQuery = "bigquery"
	DialectPostgres = "postgres"

	maxQueryRows = 500

	defaultQueryTimeout = 10 * time.Second
)

// ErrNoReaderRole is returned when the Postgres querier has no role to drop to.
var ErrNoReaderRole = errors.New("analytics reader role not configured")

// ErrNotReadOnly rejects anything other than a single SELECT or WITH statement.
var ErrNotReadOnly = errors.New("only a single SELECT query is allowed")

// Result keeps column order for rendering.
type Result struct {
	Columns []string
	Rows    []map[string]any
}

// Querier runs generated read-only SQL against the analytics table.
type Querier interface {
	Query(ctx context.Context, sql string) (Result, error)
	Dialect() string
	// Table is the fully qualified analytics table name for prompts.
	Table() string
}

var readOnlyPrefix = regexp.MustCompile(`(?is)^\s*(select|with)\b`)

// CheckReadOnly returns the statement without a trailing semicolon.
func CheckReadOnly(query string) (string, error) {
	q := strings.TrimSpace(query)
	q = strings.TrimSpace(strings.TrimSuffix(q, ";"))
	if q == "" || strings.Contains(q, ";") || !readOnlyPrefix.MatchString(q) {
		return "", ErrNotReadOnly
	}
	return q, nil
}

type BigQueryQuerier struct {
	client *bigquery.Client
	table  string
}

// NewBigQueryQuerier targets project.dataset.table.
func NewBigQueryQuerier(client *bigquery.Client, project, dataset, table string) *BigQueryQuerier {
	return &BigQueryQuerier{client: client, table: fmt.Sprintf("%s.%s.%s", project, dataset, table)}
}

func (q *BigQueryQuerier) Dialect() string { return DialectBigQuery }

func (q *BigQueryQuerier) Table() string { return q.table }

func (q *BigQueryQuerier) Query(ctx context.Context, query string) (Result, error) {
	stmt, err := CheckReadOnly(query)
	if err != nil {
		return Result{}, err
	}
	it, err := q.client.Query(stmt).Read(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("bigquery query: %w", err)
	}
	var res Result
	for len(res.Rows) < maxQueryRows {
		var values []bigquery.Value
		err := it.Next(&values)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("bigquery read: %w", err)
		}
		if res.Columns == nil {
			for _, f := range it.Schema {
				res.Columns = append(res.Columns, f.Name)
			}
		}
		row := make(map[string]any, len(values))
		for i, v := range values {
			if i < len(res.Columns) {
				row[res.Columns[i]] = v
			}
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

// PGQuerier runs queries in a read-only transaction as Role, a database role
// that can read only the analytics table. Timeout bounds each statement.
type PGQuerier struct {
	DB      *sql.DB
	Role    string
	Timeout time.Duration
}

func (q *PGQuerier) Dialect() string { return DialectPostgres }

func (q *PGQuerier) Table() string { return "analytics" }

func (q *PGQuerier) Query(ctx context.Context, query string) (Result, error) {
	stmt, err := CheckReadOnly(query)
	if err != nil {
		return Result{}, err
	}
	role := strings.TrimSpace(q.Role)
	if role == "" {
		return Result{}, ErrNoReaderRole
	}
	timeout := q.Timeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}

	tx, err := q.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return Result{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "SET LOCAL ROLE "+pgx.Identifier{role}.Sanitize()); err != nil {
		return Result{}, fmt.Errorf("postgres set role: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", timeout.Milliseconds())); err != nil {
		return Result{}, fmt.Errorf("postgres set timeout: %w", err)
	}

	rows, err := tx.QueryContext(ctx, stmt)
	if err != nil {
		return Result{}, fmt.Errorf("postgres query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Result{}, err
	}
	res := Result{Columns: cols}
	for rows.Next() && len(res.Rows) < maxQueryRows {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Result{}, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = values[i]
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return Result{}, err
	}
	return res, nil
}
