package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type PGRepo struct {
	DB *sql.DB
}

const rowColumns = `analysis_id, deal_id, deal_name, created_by, analyzed_at, source_files,
       metrics_arr_value, metrics_arr_source, metrics_mrr_value, metrics_mrr_source,
       metrics_cac_value, metrics_cac_source, metrics_ltv_value, metrics_ltv_source,
       metrics_ltv_cac_ratio_value, metrics_ltv_cac_ratio_source,
       metrics_gross_margin_value, metrics_gross_margin_source,
       investment_recommendation, executive_summary, growth_potential, benchmarking_summary,
       strengths, weaknesses, opportunities, threats, risk_flags, exported_at`

// InsertRow writes row through db, ignoring a row that already exists.
func InsertRow(ctx context.Context, db Execer, row Row) (bool, error) {
	row = row.Normalize()
	lists := make([][]byte, 0, 6)
	for _, l := range [][]string{row.SourceFiles, row.Strengths, row.Weaknesses, row.Opportunities, row.Threats, row.RiskFlags} {
		raw, err := json.Marshal(l)
		if err != nil {
			return false, err
		}
		lists = append(lists, raw)
	}
	const query = `
INSERT INTO analytics (` + rowColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
        $19, $20, $21, $22, $23, $24, $25, $26, $27, NULL)
ON CONFLICT (analysis_id) DO NOTHING`
	res, err := db.ExecContext(ctx, query,
		row.AnalysisID, row.DealID, row.DealName, row.CreatedBy, row.AnalyzedAt, lists[0],
		row.ARRValue, row.ARRSource, row.MRRValue, row.MRRSource,
		row.CACValue, row.CACSource, row.LTVValue, row.LTVSource,
		row.LTVCACRatioValue, row.LTVCACRatioSource,
		row.GrossMarginValue, row.GrossMarginSource,
		row.InvestmentRecommendation, row.ExecutiveSummary, row.GrowthPotential, row.BenchmarkingSummary,
		lists[1], lists[2], lists[3], lists[4], lists[5],
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PGRepo) Insert(ctx context.Context, row Row) (bool, error) {
	return InsertRow(ctx, r.DB, row)
}

func (r *PGRepo) ListPending(ctx context.Context, limit int) ([]Row, error) {
	query := `SELECT ` + rowColumns + `
FROM analytics
WHERE exported_at IS NULL
ORDER BY analyzed_at ASC
LIMIT $1`
	return r.query(ctx, query, limit)
}

func (r *PGRepo) List(ctx context.Context, limit int) ([]Row, error) {
	query := `SELECT ` + rowColumns + `
FROM analytics
ORDER BY analyzed_at DESC
LIMIT $1`
	return r.query(ctx, query, limit)
}

func (r *PGRepo) MarkExported(ctx context.Context, analysisIDs []string, at time.Time) error {
	if len(analysisIDs) == 0 {
		return nil
	}
	ids, err := json.Marshal(analysisIDs)
	if err != nil {
		return err
	}
	const query = `
UPDATE analytics SET exported_at = $1
WHERE analysis_id IN (SELECT jsonb_array_elements_text($2::jsonb))`
	_, err = r.DB.ExecContext(ctx, query, at, ids)
	return err
}

func (r *PGRepo) query(ctx context.Context, query string, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Row, 0)
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (Row, error) {
	var row Row
	var sourceFiles, strengths, weaknesses, opportunities, threats, riskFlags []byte
	var exportedAt sql.NullTime
	if err := s.Scan(
		&row.AnalysisID, &row.DealID, &row.DealName, &row.CreatedBy, &row.AnalyzedAt, &sourceFiles,
		&row.ARRValue, &row.ARRSource, &row.MRRValue, &row.MRRSource,
		&row.CACValue, &row.CACSource, &row.LTVValue, &row.LTVSource,
		&row.LTVCACRatioValue, &row.LTVCACRatioSource,
		&row.GrossMarginValue, &row.GrossMarginSource,
		&row.InvestmentRecommendation, &row.ExecutiveSummary, &row.GrowthPotential, &row.BenchmarkingSummary,
		&strengths, &weaknesses, &opportunities, &threats, &riskFlags, &exportedAt,
	); err != nil {
		return Row{}, err
	}
	targets := []struct {
		raw []byte
		dst *[]string
	}{
		{sourceFiles, &row.SourceFiles},
		{strengths, &row.Strengths},
		{weaknesses, &row.Weaknesses},
		{opportunities, &row.Opportunities},
		{threats, &row.Threats},
		{riskFlags, &row.RiskFlags},
	}
	for _, t := range targets {
		if len(t.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(t.raw, t.dst); err != nil {
			return Row{}, err
		}
	}
	if exportedAt.Valid {
		ts := exportedAt.Time
		row.ExportedAt = &ts
	}
	return row.Normalize(), nil
}
