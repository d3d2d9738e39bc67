package benchmarks

import (
	"context"
	"database/sql"
)

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Add(ctx context.Context, b Benchmark) error {
	const query = `
INSERT INTO benchmarks (id, industry, stage, arr, mrr, cac, ltv, ltv_cac_ratio, gross_margin, added_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.DB.ExecContext(ctx, query,
		b.ID, b.Industry, b.Stage, b.ARR,
		nullableFloat(b.MRR), nullableFloat(b.CAC), nullableFloat(b.LTV),
		nullableFloat(b.LTVCACRatio), nullableFloat(b.GrossMargin),
		b.AddedBy, b.CreatedAt,
	)
	return err
}

func (r *PGRepo) ListByIndustry(ctx context.Context, industry string, limit int) ([]Benchmark, error) {
	const query = `
SELECT id, industry, stage, arr, mrr, cac, ltv, ltv_cac_ratio, gross_margin, added_by, created_at
FROM benchmarks
WHERE industry = $1
ORDER BY created_at DESC
LIMIT $2`
	rows, err := r.DB.QueryContext(ctx, query, industry, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Benchmark, 0)
	for rows.Next() {
		var b Benchmark
		var mrr, cac, ltv, ratio, margin sql.NullFloat64
		if err := rows.Scan(&b.ID, &b.Industry, &b.Stage, &b.ARR, &mrr, &cac, &ltv, &ratio, &margin, &b.AddedBy, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.MRR = floatPtr(mrr)
		b.CAC = floatPtr(cac)
		b.LTV = floatPtr(ltv)
		b.LTVCACRatio = floatPtr(ratio)
		b.GrossMargin = floatPtr(margin)
		out = append(out, b)
	}
	return out, rows.Err()
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
