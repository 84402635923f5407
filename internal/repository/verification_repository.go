package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/maheshrc27/storysync/internal/models"
)

type VerificationRunRepository interface {
	Create(ctx context.Context, run *models.VerificationRun) error
	ListRecent(ctx context.Context, limit int) ([]*models.VerificationRun, error)
}

type VerificationHistoryRepository interface {
	Create(ctx context.Context, history *models.VerificationHistory) (int64, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.VerificationHistory, error)
}

type verificationRunRepository struct {
	db *sql.DB
}

func NewVerificationRunRepository(db *sql.DB) VerificationRunRepository {
	return &verificationRunRepository{db: db}
}

func (r *verificationRunRepository) Create(ctx context.Context, run *models.VerificationRun) error {
	query := `
		INSERT INTO verification_runs (id, processed, verified, failed, rescheduled, skipped, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query, run.ID, run.Processed, run.Verified, run.Failed,
		run.Rescheduled, run.Skipped, run.StartedAt, run.FinishedAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *verificationRunRepository) ListRecent(ctx context.Context, limit int) ([]*models.VerificationRun, error) {
	query := `
		SELECT id, processed, verified, failed, rescheduled, skipped, started_at, finished_at, created_at
		FROM verification_runs
		ORDER BY started_at DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var runs []*models.VerificationRun
	for rows.Next() {
		var run models.VerificationRun
		err := rows.Scan(&run.ID, &run.Processed, &run.Verified, &run.Failed,
			&run.Rescheduled, &run.Skipped, &run.StartedAt, &run.FinishedAt, &run.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

type verificationHistoryRepository struct {
	db *sql.DB
}

func NewVerificationHistoryRepository(db *sql.DB) VerificationHistoryRepository {
	return &verificationHistoryRepository{db: db}
}

func (r *verificationHistoryRepository) Create(ctx context.Context, history *models.VerificationHistory) (int64, error) {
	query := `
		INSERT INTO verification_history (run_id, post_id, status, error_code)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query, history.RunID, history.PostID, history.Status, history.ErrorCode).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *verificationHistoryRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.VerificationHistory, error) {
	query := `
		SELECT id, run_id, post_id, status, error_code, created_at
		FROM verification_history
		WHERE post_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var entries []*models.VerificationHistory
	for rows.Next() {
		var entry models.VerificationHistory
		err := rows.Scan(&entry.ID, &entry.RunID, &entry.PostID, &entry.Status, &entry.ErrorCode, &entry.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
