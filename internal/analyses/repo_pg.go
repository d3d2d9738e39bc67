package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"sealdeal-backend/internal/analytics"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// CreateWithRow inserts the analysis and its analytics row in one transaction.
func (r *PGRepo) CreateWithRow(ctx context.Context, a Analysis, row analytics.Row) error {
	sourceFiles, err := json.Marshal(nonNil(a.SourceFiles))
	if err != nil {
		return err
	}
	result, err := json.Marshal(a.Result)
	if err != nil {
		return err
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const query = `
INSERT INTO analyses (id, deal_id, created_by, version, source_files, result, analyzed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.ExecContext(ctx, query,
		a.ID, a.DealID, a.CreatedBy, a.Version, sourceFiles, result, a.AnalyzedAt,
	); err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	if _, err := analytics.InsertRow(ctx, tx, row); err != nil {
		return fmt.Errorf("insert analytics row: %w", err)
	}
	return tx.Commit()
}

const selectColumns = `a.id, a.deal_id, a.created_by, a.version, a.source_files, a.result, a.analyzed_at`

func (r *PGRepo) ListByDeal(ctx context.Context, dealID string, limit int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + selectColumns + `
FROM analyses a
WHERE a.deal_id = $1
ORDER BY a.analyzed_at DESC
LIMIT $2`
	return r.list(ctx, query, dealID, limit)
}

func (r *PGRepo) Latest(ctx context.Context, dealID string) (Analysis, error) {
	query := `SELECT ` + selectColumns + `
FROM analyses a
WHERE a.deal_id = $1
ORDER BY a.analyzed_at DESC
LIMIT 1`
	a, err := scanAnalysis(r.DB.QueryRowContext(ctx, query, dealID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}
	return a, nil
}

func (r *PGRepo) ListWithoutRow(ctx context.Context, limit int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + selectColumns + `
FROM analyses a
LEFT JOIN analytics r ON r.analysis_id = a.id
WHERE r.analysis_id IS NULL
ORDER BY a.analyzed_at ASC
LIMIT $1`
	return r.list(ctx, query, limit)
}

func (r *PGRepo) list(ctx context.Context, query string, args ...any) ([]Analysis, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Analysis, 0)
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(s scanner) (Analysis, error) {
	var a Analysis
	var sourceFiles, result []byte
	if err := s.Scan(&a.ID, &a.DealID, &a.CreatedBy, &a.Version, &sourceFiles, &result, &a.AnalyzedAt); err != nil {
		return Analysis{}, err
	}
	if len(sourceFiles) > 0 {
		if err := json.Unmarshal(sourceFiles, &a.SourceFiles); err != nil {
			return Analysis{}, err
		}
	}
	if len(result) > 0 {
		if err := json.Unmarshal(result, &a.Result); err != nil {
			return Analysis{}, err
		}
	}
	return a, nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
