package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/maheshrc27/storysync/internal/models"
)

type SocialAccountRepository interface {
	GetByID(ctx context.Context, id int64) (*models.SocialAccount, error)
	GetByAccountID(ctx context.Context, accountID string) (*models.SocialAccount, error)
	SetToken(ctx context.Context, id int64, account *models.SocialAccount) error
	ListExpiring(ctx context.Context, from, to time.Time) ([]*models.SocialAccount, error)
}

type socialAccountRepository struct {
	db *sql.DB
}

func NewSocialAccountRepository(db *sql.DB) SocialAccountRepository {
	return &socialAccountRepository{db: db}
}

const socialAccountColumns = `id, user_id, platform, account_id, account_name, account_username, access_token, refresh_token, token_expires_at, account_status, created_at, updated_at`

func scanSocialAccount(row interface{ Scan(...any) error }) (*models.SocialAccount, error) {
	var acc models.SocialAccount
	err := row.Scan(&acc.ID, &acc.UserID, &acc.Platform, &acc.AccountID, &acc.AccountName,
		&acc.AccountUsername, &acc.AccessToken, &acc.RefreshToken, &acc.TokenExpiresAt,
		&acc.AccountStatus, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (r *socialAccountRepository) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts WHERE id = $1`
	acc, err := scanSocialAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return acc, nil
}

func (r *socialAccountRepository) GetByAccountID(ctx context.Context, accountID string) (*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts WHERE platform = 'instagram' AND account_id = $1`
	acc, err := scanSocialAccount(r.db.QueryRowContext(ctx, query, accountID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return acc, nil
}

func (r *socialAccountRepository) SetToken(ctx context.Context, id int64, account *models.SocialAccount) error {
	query := `
		UPDATE social_accounts
		SET access_token = $1,
			refresh_token = $2,
			token_expires_at = $3,
			updated_at = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, account.AccessToken, account.RefreshToken, account.TokenExpiresAt, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *socialAccountRepository) ListExpiring(ctx context.Context, from, to time.Time) ([]*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts WHERE platform = 'instagram' AND token_expires_at BETWEEN $1 AND $2`
	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.SocialAccount
	for rows.Next() {
		acc, err := scanSocialAccount(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}
