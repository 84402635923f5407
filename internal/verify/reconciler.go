package verify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/storysync/internal/models"
)

// PostStore is the persistence capability the reconciler consumes.
// UpdateVerification must be an atomic single-row update.
type PostStore interface {
	ListDueForVerification(ctx context.Context, now time.Time) ([]*models.ScheduledPost, error)
	UpdateVerification(ctx context.Context, postID int64, update *models.VerificationUpdate) error
}

// StorySource is the platform capability. FetchRecentStories reports
// failures as *FetchError; FetchLateConfirmation returns nil when no
// out-of-band confirmation exists.
type StorySource interface {
	FetchRecentStories(ctx context.Context, igAccountID string) ([]models.PublishedStory, error)
	FetchLateConfirmation(ctx context.Context, post *models.ScheduledPost) (*models.LateConfirmation, error)
}

// DecisionHook observes every applied per-post decision, e.g. for
// audit history. May be nil.
type DecisionHook func(ctx context.Context, postID int64, update *models.VerificationUpdate)

// Summary counts the outcomes of one reconciler run.
type Summary struct {
	Processed   int `json:"processed"`
	Verified    int `json:"verified"`
	Failed      int `json:"failed"`
	Rescheduled int `json:"rescheduled"`
	Skipped     int `json:"skipped"`
}

type Reconciler struct {
	cfg        Config
	posts      PostStore
	stories    StorySource
	onDecision DecisionHook
}

func NewReconciler(cfg Config, posts PostStore, stories StorySource, onDecision DecisionHook) *Reconciler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Reconciler{
		cfg:        cfg,
		posts:      posts,
		stories:    stories,
		onDecision: onDecision,
	}
}

type decision struct {
	post   *models.ScheduledPost
	update *models.VerificationUpdate
}

type accountGroup struct {
	igAccountID string
	posts       []*models.ScheduledPost
}

// RunOnce selects due posts, resolves every one of them to a terminal
// or rescheduled state, and returns the run summary. Safe to invoke
// on any schedule: it only acts on posts whose next_verification_at
// has elapsed, and terminal posts are never selected again.
func (r *Reconciler) RunOnce(ctx context.Context, now time.Time) (Summary, error) {
	posts, err := r.posts.ListDueForVerification(ctx, now)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Processed: len(posts)}

	// Trivially resolvable posts never need an account fetch.
	var remaining []*models.ScheduledPost
	for _, post := range posts {
		if update := r.fastPath(ctx, post, now); update != nil {
			r.apply(ctx, decision{post: post, update: update}, &summary)
			continue
		}
		remaining = append(remaining, post)
	}

	groups := groupByAccount(remaining)
	results := make([][]decision, len(groups))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, r.cfg.Concurrency)
	for i, group := range groups {
		wg.Add(1)
		semaphore <- struct{}{}
		go func(i int, group accountGroup) {
			defer wg.Done()
			defer func() { <-semaphore }()
			results[i] = r.processAccount(ctx, group, now)
		}(i, group)
	}
	wg.Wait()

	for _, decisions := range results {
		for _, d := range decisions {
			r.apply(ctx, d, &summary)
		}
	}

	return summary, nil
}

// fastPath resolves posts that need no story-list lookup: an already
// known late confirmation, expired content, or a post whose account
// has no external id. Returns nil when the post must go through
// matching.
func (r *Reconciler) fastPath(ctx context.Context, post *models.ScheduledPost, now time.Time) *models.VerificationUpdate {
	if post.PublishType == models.PublishTypeDirect {
		confirmation, err := r.stories.FetchLateConfirmation(ctx, post)
		if err != nil {
			slog.Info("late confirmation lookup failed", "post_id", post.ID, "error", err.Error())
		} else if confirmation != nil {
			publishedAt := confirmation.PublishedAt
			return r.verifiedUpdate(post, confirmation.PlatformPostID, confirmation.PlatformURL, &publishedAt, false, false, now)
		}
	}

	if r.cfg.IsExpired(ReferenceTimestamp(post), now) {
		return r.failedUpdate(post, models.ErrCodeTTLExpired, post.VerificationAttempts, now)
	}

	if post.IGAccountID == "" {
		return r.failedUpdate(post, models.ErrCodeNoIGAccount, post.VerificationAttempts, now)
	}

	return nil
}

// processAccount fetches the account's story snapshot once and
// resolves all of its due posts against it. Pure with respect to
// shared state: it only returns decisions, the orchestrator applies
// them.
func (r *Reconciler) processAccount(ctx context.Context, group accountGroup, now time.Time) []decision {
	stories, err := r.stories.FetchRecentStories(ctx, group.igAccountID)
	if err != nil {
		return r.fetchFailureDecisions(group, err, now)
	}

	decisions := make([]decision, 0, len(group.posts))
	var ambiguous []*models.ScheduledPost
	for _, post := range group.posts {
		result := r.cfg.MatchStory(post, ReferenceTimestamp(post), stories)
		switch result.Kind {
		case MatchTag:
			decisions = append(decisions, decision{post, r.verifiedFromStory(post, result.Story, false, now)})
		case MatchFallback:
			decisions = append(decisions, decision{post, r.verifiedFromStory(post, result.Story, true, now)})
		case MatchAmbiguous:
			ambiguous = append(ambiguous, post)
		default:
			decisions = append(decisions, decision{post, r.noMatchUpdate(post, now)})
		}
	}

	if len(ambiguous) > 0 {
		for _, outcome := range r.cfg.ResolveBatch(ambiguous, stories) {
			switch {
			case outcome.Story != nil:
				decisions = append(decisions, decision{outcome.Post, r.verifiedFromStory(outcome.Post, outcome.Story, !outcome.Tagged, now)})
			case outcome.Ambiguous:
				decisions = append(decisions, decision{outcome.Post, r.retryOrFail(outcome.Post, models.ErrCodeAmbiguousMatch, now)})
			default:
				decisions = append(decisions, decision{outcome.Post, r.noMatchUpdate(outcome.Post, now)})
			}
		}
	}

	return decisions
}

// fetchFailureDecisions converts one account-level fetch failure into
// a per-post decision. Token and permission problems fail fast
// without consuming attempts: they are operator-fixable conditions
// that no amount of retrying resolves. Rate limiting reschedules with
// the fixed delay since the attempt never actually happened.
func (r *Reconciler) fetchFailureDecisions(group accountGroup, err error, now time.Time) []decision {
	kind := FetchErrAPI
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		kind = fetchErr.Kind
	}
	slog.Info("story fetch failed", "ig_account_id", group.igAccountID, "error", err.Error())

	decisions := make([]decision, 0, len(group.posts))
	for _, post := range group.posts {
		var update *models.VerificationUpdate
		switch kind {
		case FetchErrToken:
			update = r.failedUpdate(post, models.ErrCodeTokenError, post.VerificationAttempts, now)
		case FetchErrPermission:
			update = r.failedUpdate(post, models.ErrCodePermissionError, post.VerificationAttempts, now)
		case FetchErrRateLimit:
			update = r.rescheduleUpdate(post, models.ErrCodeRateLimited, post.VerificationAttempts, r.cfg.RateLimitDelay, now)
		default:
			update = r.retryOrFail(post, models.ErrCodeAPIError, now)
		}
		decisions = append(decisions, decision{post, update})
	}
	return decisions
}

// noMatchUpdate decides what happens when no story matched. An
// untagged post has nothing left to wait for: legacy ones are
// skipped (missing tags are expected there), newer ones terminally
// fail. Tagged posts keep retrying until attempts run out.
func (r *Reconciler) noMatchUpdate(post *models.ScheduledPost, now time.Time) *models.VerificationUpdate {
	if post.VerificationTag == "" {
		if r.cfg.IsLegacy(post.CreatedAt) {
			return r.skippedUpdate(post, models.ErrCodeLegacyPostNoTag, now)
		}
		return r.failedUpdate(post, models.ErrCodeNoTag, post.VerificationAttempts, now)
	}
	return r.retryOrFail(post, models.ErrCodeNotFound, now)
}

// retryOrFail consumes one attempt, then either reschedules with the
// attempt-based backoff or terminally fails once attempts reach the
// maximum.
func (r *Reconciler) retryOrFail(post *models.ScheduledPost, code string, now time.Time) *models.VerificationUpdate {
	attempts := post.VerificationAttempts + 1
	if attempts >= r.cfg.MaxAttempts {
		return r.failedUpdate(post, code, attempts, now)
	}
	return r.rescheduleUpdate(post, code, attempts, r.cfg.NextDelay(attempts), now)
}

func (r *Reconciler) verifiedFromStory(post *models.ScheduledPost, story *models.PublishedStory, byFallback bool, now time.Time) *models.VerificationUpdate {
	return r.verifiedUpdate(post, story.ID, story.Permalink, story.Timestamp, byFallback, true, now)
}

func (r *Reconciler) verifiedUpdate(post *models.ScheduledPost, storyID, permalink string, timestamp *time.Time, byFallback, consumeAttempt bool, now time.Time) *models.VerificationUpdate {
	attempts := post.VerificationAttempts
	if consumeAttempt {
		attempts++
	}
	return &models.VerificationUpdate{
		Status:             models.VerificationDone,
		Attempts:           attempts,
		LastVerificationAt: now,
		StoryID:            storyID,
		Permalink:          permalink,
		Timestamp:          timestamp,
		ByFallback:         byFallback,
	}
}

func (r *Reconciler) failedUpdate(post *models.ScheduledPost, code string, attempts int, now time.Time) *models.VerificationUpdate {
	return &models.VerificationUpdate{
		Status:             models.VerificationFailed,
		Attempts:           attempts,
		LastVerificationAt: now,
		ErrorCode:          code,
	}
}

func (r *Reconciler) skippedUpdate(post *models.ScheduledPost, code string, now time.Time) *models.VerificationUpdate {
	return &models.VerificationUpdate{
		Status:             models.VerificationSkipped,
		Attempts:           post.VerificationAttempts,
		LastVerificationAt: now,
		ErrorCode:          code,
	}
}

func (r *Reconciler) rescheduleUpdate(post *models.ScheduledPost, code string, attempts int, delay time.Duration, now time.Time) *models.VerificationUpdate {
	next := now.Add(delay)
	return &models.VerificationUpdate{
		Status:             models.VerificationPending,
		Attempts:           attempts,
		NextVerificationAt: &next,
		LastVerificationAt: now,
		ErrorCode:          code,
	}
}

// apply writes one decision and counts it. A single write failure
// must not abort the batch: the post stays pending and is picked up
// on its next due time.
func (r *Reconciler) apply(ctx context.Context, d decision, summary *Summary) {
	if err := r.posts.UpdateVerification(ctx, d.post.ID, d.update); err != nil {
		slog.Info("verification update failed", "post_id", d.post.ID, "error", err.Error())
		return
	}

	switch d.update.Status {
	case models.VerificationDone:
		summary.Verified++
	case models.VerificationFailed:
		summary.Failed++
	case models.VerificationSkipped:
		summary.Skipped++
	case models.VerificationPending:
		summary.Rescheduled++
	}

	if r.onDecision != nil {
		r.onDecision(ctx, d.post.ID, d.update)
	}
}

// groupByAccount produces one explicit group per external account id,
// preserving first-seen order, suitable for parallel iteration.
func groupByAccount(posts []*models.ScheduledPost) []accountGroup {
	index := make(map[string]int)
	var groups []accountGroup
	for _, post := range posts {
		i, ok := index[post.IGAccountID]
		if !ok {
			i = len(groups)
			index[post.IGAccountID] = i
			groups = append(groups, accountGroup{igAccountID: post.IGAccountID})
		}
		groups[i].posts = append(groups[i].posts, post)
	}
	return groups
}
