package models

import "time"

// ScheduledPost is a story post that was handed to the publisher and
// now awaits confirmation against Instagram's own story list. The
// reconciler is the only writer of the verification_* columns.
type ScheduledPost struct {
	ID              int64     `db:"id" json:"id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	AccountID       int64     `db:"account_id" json:"account_id"`
	PostType        string    `db:"post_type" json:"post_type"`
	PublishType     string    `db:"publish_type" json:"publish_type"`
	Caption         string    `db:"caption" json:"caption"`
	MediaURLs       []string  `db:"media_urls" json:"media_urls"`
	VerificationTag string    `db:"verification_tag" json:"verification_tag"`
	ScheduledTime   time.Time `db:"scheduled_time" json:"scheduled_time"`
	SentAt          *time.Time `db:"sent_at" json:"sent_at"`
	BufferSentAt    *time.Time `db:"buffer_sent_at" json:"buffer_sent_at"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`

	VerificationStatus   string     `db:"verification_status" json:"verification_status"`
	VerificationAttempts int        `db:"verification_attempts" json:"verification_attempts"`
	NextVerificationAt   *time.Time `db:"next_verification_at" json:"next_verification_at"`
	LastVerificationAt   *time.Time `db:"last_verification_at" json:"last_verification_at"`
	VerificationError    string     `db:"verification_error" json:"verification_error"`
	VerifiedStoryID      string     `db:"verified_story_id" json:"verified_story_id"`
	VerifiedPermalink    string     `db:"verified_permalink" json:"verified_permalink"`
	VerifiedTimestamp    *time.Time `db:"verified_timestamp" json:"verified_timestamp"`
	VerifiedByFallback   bool       `db:"verified_by_fallback" json:"verified_by_fallback"`

	// Joined from the social account row so the reconciler never
	// needs a second lookup per post.
	IGAccountID string `db:"ig_account_id" json:"ig_account_id"`
	IGUsername  string `db:"ig_username" json:"ig_username"`
}

const (
	PostTypeStory = "story"

	PublishTypeDirect = "direct"
	PublishTypeBuffer = "buffer"
)

const (
	VerificationPending = "pending"
	VerificationDone    = "verified"
	VerificationFailed  = "verification_failed"
	VerificationSkipped = "skipped"
)

// Verification error codes. NOT_FOUND and API_ERROR are retryable
// until attempts are exhausted; RATE_LIMITED only ever reschedules;
// the rest are terminal.
const (
	ErrCodeNoTag           = "NO_TAG"
	ErrCodeLegacyPostNoTag = "LEGACY_POST_NO_TAG"
	ErrCodeNoIGAccount     = "NO_IG_ACCOUNT"
	ErrCodeTTLExpired      = "TTL_EXPIRED"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeAPIError        = "API_ERROR"
	ErrCodeTokenError      = "TOKEN_ERROR"
	ErrCodePermissionError = "PERMISSION_ERROR"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeAmbiguousMatch  = "AMBIGUOUS_MATCH"
)
