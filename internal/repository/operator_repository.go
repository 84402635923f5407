package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/maheshrc27/storysync/internal/models"
)

type OperatorRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Operator, bool, error)
	GetByEmail(ctx context.Context, email string) (*models.Operator, bool, error)
	Create(ctx context.Context, operator *models.Operator) (int64, error)
}

type operatorRepository struct {
	db *sql.DB
}

func NewOperatorRepository(db *sql.DB) OperatorRepository {
	return &operatorRepository{db: db}
}

func (r *operatorRepository) GetByID(ctx context.Context, id int64) (*models.Operator, bool, error) {
	query := `SELECT id, google_id, email, name, profile_picture, created_at, updated_at FROM operators WHERE id = $1`
	var op models.Operator
	err := r.db.QueryRowContext(ctx, query, id).Scan(&op.ID, &op.GoogleID, &op.Email, &op.Name, &op.ProfilePicture, &op.CreatedAt, &op.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		slog.Info(err.Error())
		return nil, false, err
	}
	return &op, true, nil
}

func (r *operatorRepository) GetByEmail(ctx context.Context, email string) (*models.Operator, bool, error) {
	query := `SELECT id, google_id, email, name, profile_picture, created_at, updated_at FROM operators WHERE email = $1`
	var op models.Operator
	err := r.db.QueryRowContext(ctx, query, email).Scan(&op.ID, &op.GoogleID, &op.Email, &op.Name, &op.ProfilePicture, &op.CreatedAt, &op.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		slog.Info(err.Error())
		return nil, false, err
	}
	return &op, true, nil
}

func (r *operatorRepository) Create(ctx context.Context, operator *models.Operator) (int64, error) {
	query := `
		INSERT INTO operators (google_id, email, name, profile_picture)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query, operator.GoogleID, operator.Email, operator.Name, operator.ProfilePicture).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}
