package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/storysync/internal/models"
)

type PostRepository interface {
	GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error)
	ListDueForVerification(ctx context.Context, now time.Time) ([]*models.ScheduledPost, error)
	UpdateVerification(ctx context.Context, postID int64, update *models.VerificationUpdate) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `
	p.id, p.user_id, p.account_id, p.post_type, p.publish_type, p.caption,
	p.media_urls, p.verification_tag, p.scheduled_time, p.sent_at,
	p.buffer_sent_at, p.created_at, p.updated_at, p.verification_status,
	p.verification_attempts, p.next_verification_at, p.last_verification_at,
	p.verification_error, p.verified_story_id, p.verified_permalink,
	p.verified_timestamp, p.verified_by_fallback,
	COALESCE(sa.account_id, ''), COALESCE(sa.account_username, '')`

func scanPost(row interface{ Scan(...any) error }) (*models.ScheduledPost, error) {
	var post models.ScheduledPost
	err := row.Scan(
		&post.ID, &post.UserID, &post.AccountID, &post.PostType, &post.PublishType, &post.Caption,
		pq.Array(&post.MediaURLs), &post.VerificationTag, &post.ScheduledTime, &post.SentAt,
		&post.BufferSentAt, &post.CreatedAt, &post.UpdatedAt, &post.VerificationStatus,
		&post.VerificationAttempts, &post.NextVerificationAt, &post.LastVerificationAt,
		&post.VerificationError, &post.VerifiedStoryID, &post.VerifiedPermalink,
		&post.VerifiedTimestamp, &post.VerifiedByFallback,
		&post.IGAccountID, &post.IGUsername,
	)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts p
		LEFT JOIN social_accounts sa ON sa.id = p.account_id
		WHERE p.id = $1
	`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) ListDueForVerification(ctx context.Context, now time.Time) ([]*models.ScheduledPost, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts p
		LEFT JOIN social_accounts sa ON sa.id = p.account_id
		WHERE p.post_type = $1
		  AND p.verification_status = $2
		  AND p.next_verification_at IS NOT NULL
		  AND p.next_verification_at <= $3
		ORDER BY p.next_verification_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, models.PostTypeStory, models.VerificationPending, now)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.ScheduledPost
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (r *postRepository) UpdateVerification(ctx context.Context, postID int64, update *models.VerificationUpdate) error {
	query := `
		UPDATE posts
		SET verification_status = $1,
			verification_attempts = $2,
			next_verification_at = $3,
			last_verification_at = $4,
			verification_error = $5,
			verified_story_id = $6,
			verified_permalink = $7,
			verified_timestamp = $8,
			verified_by_fallback = $9,
			updated_at = $10
		WHERE id = $11
	`
	_, err := r.db.ExecContext(ctx, query,
		update.Status,
		update.Attempts,
		update.NextVerificationAt,
		update.LastVerificationAt,
		update.ErrorCode,
		update.StoryID,
		update.Permalink,
		update.Timestamp,
		update.ByFallback,
		time.Now(),
		postID,
	)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
