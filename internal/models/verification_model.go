package models

import "time"

// VerificationUpdate is the atomic partial update applied to a single
// post's verification columns. Every reconciler decision produces
// exactly one of these.
type VerificationUpdate struct {
	Status             string     `db:"verification_status" json:"verification_status"`
	Attempts           int        `db:"verification_attempts" json:"verification_attempts"`
	NextVerificationAt *time.Time `db:"next_verification_at" json:"next_verification_at"`
	LastVerificationAt time.Time  `db:"last_verification_at" json:"last_verification_at"`
	ErrorCode          string     `db:"verification_error" json:"verification_error"`
	StoryID            string     `db:"verified_story_id" json:"verified_story_id"`
	Permalink          string     `db:"verified_permalink" json:"verified_permalink"`
	Timestamp          *time.Time `db:"verified_timestamp" json:"verified_timestamp"`
	ByFallback         bool       `db:"verified_by_fallback" json:"verified_by_fallback"`
}

// VerificationRun is the persisted summary of one reconciler run.
type VerificationRun struct {
	ID          string    `db:"id" json:"id"`
	Processed   int       `db:"processed" json:"processed"`
	Verified    int       `db:"verified" json:"verified"`
	Failed      int       `db:"failed" json:"failed"`
	Rescheduled int       `db:"rescheduled" json:"rescheduled"`
	Skipped     int       `db:"skipped" json:"skipped"`
	StartedAt   time.Time `db:"started_at" json:"started_at"`
	FinishedAt  time.Time `db:"finished_at" json:"finished_at"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// VerificationHistory is one audit row per post decision.
type VerificationHistory struct {
	ID        int64     `db:"id" json:"id"`
	RunID     string    `db:"run_id" json:"run_id"`
	PostID    int64     `db:"post_id" json:"post_id"`
	Status    string    `db:"status" json:"status"`
	ErrorCode string    `db:"error_code" json:"error_code"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
