package verify

import (
	"time"

	"github.com/maheshrc27/storysync/internal/models"
)

// Config carries every tunable of the verification reconciler. All
// values are injected so tests control them deterministically.
type Config struct {
	// LaunchDate is the instant caption tagging shipped. Posts
	// created before it are legacy: missing tags are expected, not
	// an error.
	LaunchDate time.Time
	// StoryTTL is the platform-enforced story lifetime. Past it the
	// content is gone and verification must terminate, not retry.
	StoryTTL        time.Duration
	FallbackWindow  time.Duration
	BackoffSchedule []time.Duration
	RateLimitDelay  time.Duration
	MaxAttempts     int
	Concurrency     int
}

// ReferenceTimestamp is the best known publish time of a post: the
// explicit sent time, then the buffering system's sent time, then the
// scheduled time, then creation time.
func ReferenceTimestamp(post *models.ScheduledPost) time.Time {
	if post.SentAt != nil {
		return *post.SentAt
	}
	if post.BufferSentAt != nil {
		return *post.BufferSentAt
	}
	if !post.ScheduledTime.IsZero() {
		return post.ScheduledTime
	}
	return post.CreatedAt
}

func (c Config) IsExpired(ref, now time.Time) bool {
	return now.Sub(ref) > c.StoryTTL
}

// NextDelay returns the backoff delay for the given attempt number
// (1-based), clamped to the last schedule entry.
func (c Config) NextDelay(attempt int) time.Duration {
	if len(c.BackoffSchedule) == 0 {
		return 0
	}
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(c.BackoffSchedule) {
		idx = len(c.BackoffSchedule) - 1
	}
	return c.BackoffSchedule[idx]
}

func (c Config) IsLegacy(createdAt time.Time) bool {
	return createdAt.Before(c.LaunchDate)
}
