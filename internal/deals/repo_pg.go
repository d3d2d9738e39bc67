package deals

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const dealColumns = `id, owner_id, deal_name, status, run_id, run_started_at, rerun_requested, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeal(row rowScanner) (Deal, error) {
	var d Deal
	var status string
	var runID sql.NullString
	var runStarted sql.NullTime
	if err := row.Scan(&d.ID, &d.OwnerID, &d.DealName, &status, &runID, &runStarted, &d.RerunRequested, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return Deal{}, err
	}
	d.Status = Status(status)
	if runID.Valid {
		d.RunID = runID.String
	}
	if runStarted.Valid {
		t := runStarted.Time
		d.RunStartedAt = &t
	}
	return d, nil
}

// Create inserts a new deal.
func (r *PGRepo) Create(ctx context.Context, d Deal) error {
	const query = `
INSERT INTO deals (id, owner_id, deal_name, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)`
	_, err := r.DB.ExecContext(ctx, query, d.ID, d.OwnerID, d.DealName, string(d.Status), d.CreatedAt)
	return err
}

// Get fetches a deal by ID.
func (r *PGRepo) Get(ctx context.Context, id string) (Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE id = $1`
	d, err := scanDeal(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Deal{}, &NotFoundError{DealID: id}
		}
		return Deal{}, err
	}
	return d, nil
}

// ListByOwner lists deals ordered newest-first.
func (r *PGRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Deal, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + dealColumns + ` FROM deals WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Deal{}
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// AddDocument inserts a document row; duplicates on (deal_id, storage_path) are ignored.
func (r *PGRepo) AddDocument(ctx context.Context, doc Document) (bool, error) {
	const query = `
INSERT INTO deal_documents (id, deal_id, file_name, storage_path, uploaded_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (deal_id, storage_path) DO NOTHING`
	res, err := r.DB.ExecContext(ctx, query, doc.ID, doc.DealID, doc.FileName, doc.StoragePath, doc.UploadedAt)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// ListDocuments returns documents in upload order.
func (r *PGRepo) ListDocuments(ctx context.Context, dealID string) ([]Document, error) {
	const query = `
SELECT id, deal_id, file_name, storage_path, uploaded_at
FROM deal_documents
WHERE deal_id = $1
ORDER BY uploaded_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, dealID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.DealID, &doc.FileName, &doc.StoragePath, &doc.UploadedAt); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// BeginRun takes the run lease inside a row-locking transaction.
func (r *PGRepo) BeginRun(ctx context.Context, dealID, runID string, now time.Time, staleAfter time.Duration, queueIfBusy bool) (Status, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	d, err := lockDeal(ctx, tx, dealID)
	if err != nil {
		return "", err
	}
	from := d.Status

	if err := checkBegin(d, now, staleAfter); err != nil {
		if errors.Is(err, ErrRunInProgress) && queueIfBusy {
			if _, err := tx.ExecContext(ctx, `UPDATE deals SET rerun_requested = true, updated_at = $2 WHERE id = $1`, dealID, now); err != nil {
				return from, err
			}
			if err := tx.Commit(); err != nil {
				return from, err
			}
			return from, ErrRunQueued
		}
		return from, err
	}

	const update = `
UPDATE deals
SET status = $2, run_id = $3, run_started_at = $4, rerun_requested = false, updated_at = $4
WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update, dealID, string(StatusProcessing), runID, now); err != nil {
		return from, err
	}
	return from, tx.Commit()
}

// FinishRun writes the final status if runID still holds the lease.
func (r *PGRepo) FinishRun(ctx context.Context, dealID, runID string, to Status, now time.Time) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	d, err := lockDeal(ctx, tx, dealID)
	if err != nil {
		return false, err
	}
	if err := checkFinish(d, runID, to); err != nil {
		return false, err
	}

	const update = `
UPDATE deals
SET status = $2, run_id = NULL, run_started_at = NULL, rerun_requested = false, updated_at = $3
WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update, dealID, string(to), now); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return d.RerunRequested, nil
}

func lockDeal(ctx context.Context, tx *sql.Tx, dealID string) (Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE id = $1 FOR UPDATE`
	d, err := scanDeal(tx.QueryRowContext(ctx, query, dealID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Deal{}, &NotFoundError{DealID: dealID}
		}
		return Deal{}, err
	}
	return d, nil
}

var _ Repo = (*PGRepo)(nil)
