package verify

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/maheshrc27/storysync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu          sync.Mutex
	posts       map[int64]*models.ScheduledPost
	failUpdates bool
	updateCalls int
}

func newFakeStore(posts ...*models.ScheduledPost) *fakeStore {
	s := &fakeStore{posts: make(map[int64]*models.ScheduledPost)}
	for _, p := range posts {
		s.posts[p.ID] = p
	}
	return s
}

func (s *fakeStore) ListDueForVerification(ctx context.Context, now time.Time) ([]*models.ScheduledPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*models.ScheduledPost
	for _, p := range s.posts {
		if p.VerificationStatus != models.VerificationPending {
			continue
		}
		if p.NextVerificationAt == nil || p.NextVerificationAt.After(now) {
			continue
		}
		due = append(due, p)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due, nil
}

func (s *fakeStore) UpdateVerification(ctx context.Context, postID int64, update *models.VerificationUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updateCalls++
	if s.failUpdates {
		return errors.New("write refused")
	}

	p, ok := s.posts[postID]
	if !ok {
		return errors.New("no such post")
	}
	p.VerificationStatus = update.Status
	p.VerificationAttempts = update.Attempts
	p.NextVerificationAt = update.NextVerificationAt
	p.LastVerificationAt = tsPtr(update.LastVerificationAt)
	p.VerificationError = update.ErrorCode
	p.VerifiedStoryID = update.StoryID
	p.VerifiedPermalink = update.Permalink
	p.VerifiedTimestamp = update.Timestamp
	p.VerifiedByFallback = update.ByFallback
	return nil
}

func (s *fakeStore) post(id int64) *models.ScheduledPost {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.posts[id]
}

type fakeSource struct {
	mu            sync.Mutex
	stories       map[string][]models.PublishedStory
	errs          map[string]error
	confirmations map[int64]*models.LateConfirmation
	fetchCalls    map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		stories:       make(map[string][]models.PublishedStory),
		errs:          make(map[string]error),
		confirmations: make(map[int64]*models.LateConfirmation),
		fetchCalls:    make(map[string]int),
	}
}

func (s *fakeSource) FetchRecentStories(ctx context.Context, igAccountID string) ([]models.PublishedStory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetchCalls[igAccountID]++
	if err := s.errs[igAccountID]; err != nil {
		return nil, err
	}
	return s.stories[igAccountID], nil
}

func (s *fakeSource) FetchLateConfirmation(ctx context.Context, post *models.ScheduledPost) (*models.LateConfirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmations[post.ID], nil
}

func (s *fakeSource) calls(igAccountID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCalls[igAccountID]
}

func duePost(id int64, igAccountID string) *models.ScheduledPost {
	return &models.ScheduledPost{
		ID:                 id,
		PostType:           models.PostTypeStory,
		PublishType:        models.PublishTypeBuffer,
		MediaURLs:          []string{"https://cdn.example.com/media/a.jpg"},
		CreatedAt:          testNow.Add(-2 * time.Hour),
		ScheduledTime:      testNow.Add(-time.Hour),
		SentAt:             tsPtr(testNow.Add(-time.Hour)),
		VerificationStatus: models.VerificationPending,
		NextVerificationAt: tsPtr(testNow.Add(-time.Minute)),
		IGAccountID:        igAccountID,
	}
}

func newTestReconciler(store *fakeStore, source *fakeSource, hook DecisionHook) *Reconciler {
	return NewReconciler(testConfig(), store, source, hook)
}

func TestRunOnceTagMatch(t *testing.T) {
	post := duePost(1, "acc1")
	post.VerificationTag = "tag1"
	store := newFakeStore(post)

	source := newFakeSource()
	published := testNow.Add(-time.Hour).Add(time.Minute)
	source.stories["acc1"] = []models.PublishedStory{
		{ID: "story1", Caption: "live now #tag1", Timestamp: tsPtr(published), MediaKind: models.MediaKindImage, Permalink: "https://instagram.com/stories/1"},
	}

	summary, err := newTestReconciler(store, source, nil).RunOnce(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, Summary{Processed: 1, Verified: 1}, summary)

	got := store.post(1)
	assert.Equal(t, models.VerificationDone, got.VerificationStatus)
	assert.Equal(t, "story1", got.VerifiedStoryID)
	assert.Equal(t, "https://instagram.com/stories/1", got.VerifiedPermalink)
	assert.False(t, got.VerifiedByFallback)
	assert.Equal(t, 1, got.VerificationAttempts)
	assert.Nil(t, got.NextVerificationAt)
}

func TestRunOnceFallbackMatch(t *testing.T) {
	post := duePost(1, "acc1")
	store := newFakeStore(post)

	source := newFakeSource()
	source.stories["acc1"] = []models.PublishedStory{
		{ID: "story1", Timestamp: tsPtr(testNow.Add(-time.Hour).Add(2 * time.Minute)), MediaKind: models.MediaKindImage},
	}

	summary, err := newTestReconciler(store, source, nil).RunOnce(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Verified)

	got := store.post(1)
	assert.Equal(t, models.VerificationDone, got.VerificationStatus)
	assert.Equal(t, "story1", got.VerifiedStoryID)
	assert.True(t, got.VerifiedByFallback)
}

func TestRunOnceNotFoundReschedules(t *testing.T) {
	post := duePost(1, "acc1")
	post.VerificationTag = "tag1"
	store := newFakeStore(post)
	source := newFakeSource()

	summary, err := newTestReconciler(store, source, nil).RunOnce(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Rescheduled)

	got := store.post(1)
	assert.Equal(t, models.VerificationPending, got.VerificationStatus)
	assert.Equal(t, models.ErrCodeNotFound, got.VerificationError)
	assert.Equal(t, 1, got.VerificationAttempts)
	require.NotNil(t, got.NextVerificationAt)
	assert.Equal(t, testNow.Add(5*time.Minute), *got.NextVerificationAt)
}

func TestRunOnceBackoffGrowsWithAttempts(t *testing.T) {
	post := duePost(1, "acc1")
	post.VerificationTag = "tag1"
	post.VerificationAttempts = 1
	store := newFakeStore(post)

	_, err := newTestReconciler(store, newFakeSource(), nil).RunOnce(context.Background(), testNow)
	require.NoError(t, err)

	got := store.post(1)
	assert.Equal(t, 2, got.VerificationAttempts)
	require.NotNil(t, got.NextVerificationAt)
	assert.Equal(t, testNow.Add(10*time.Minute), *got.NextVerificationAt)
}

func TestRunOnceExhaustsAttempts(t *testing.T) {
	post := duePost(1, "acc1")
	post.VerificationTag = "tag1"
	post.VerificationAttempts = 2
	store := newFakeStore(post)

	summary, err := newTestReconciler(store, newFakeSource(), nil).RunOnce(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	got := store.post(1)
	assert.Equal(t, models.VerificationFailed, got.VerificationStatus)
	assert.Equal(t, models.ErrCodeNotFound, got.VerificationError)
	assert.Equal(t, 3, got.VerificationAttempts)
}

func TestRunOnceTTLExpired(t *testing.T) {
	post := duePost(1, "acc1")
	post.SentAt = tsPtr(testNow.Add(-25 * time.Hour))
	post.VerificationAttempts = 1
	store := newFakeStore(post)
	source := newFakeSource()

	summary, err := newTestReconciler(store, source, nil).RunOnce(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	got := store.post(1)
	assert.Equal(t, models.VerificationFailed, got.VerificationStatus)
	assert.Equal(t, models.ErrCodeTTLExpired, got.VerificationError)
	assert.Equal(t, 1, got.VerificationAttempts)
	assert.Equal(t, 0, source.calls("acc1"))
}

func TestRunOnceNoIGAccount(t *testing.T) {
	post := duePost(1, "")
	store := newFakeStore(post)
	source := newFakeSource()

	summary, err := newTestReconciler(store, source, nil).RunOnce(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	got := store.post(1)
	assert.Equal(t, models.ErrCodeNoIGAccount, got.VerificationError)
	assert.Equal(t, 0, source.calls(""))
}

func TestRunOnceUntaggedNoMatchFails(t *testing.T) {
	post := duePost(1, "acc1")
	store := newFakeStore(post)

	summary, err := newTestReconciler(store, newFakeSource(), nil).RunOnce(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	got := store.post(1)
	assert.Equal(t, models.VerificationFailed, got.VerificationStatus)
	assert.Equal(t, models.ErrCodeNoTag, got.VerificationError)
	assert.Equal(t, 0, got.VerificationAttempts)
}

func TestRunOnceLegacyUntaggedSkipped(t *testing.T) {
	post := duePost(1, "acc1")
	post.CreatedAt = testLaunch.Add(-24 * time.Hour)
	store := newFakeStore(post)

	summary, err := newTestReconciler(store, newFakeSource(), nil).RunOnce(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)

	got := store.post(1)
	assert.Equal(t, models.VerificationSkipped, got.VerificationStatus)
	assert.Equal(t, models.ErrCodeLegacyPostNoTag, got.VerificationError)
}

func TestRunOnceTokenErrorFailsWithoutAttempt(t *testing.T) {
	post := duePost(1, "acc1")
	post.VerificationTag = "tag1"
	post.VerificationAttempts = 1
	store := newFakeStore(post)

	source := newFakeSource()
	source.errs["acc1"] = &FetchError{Kind: FetchErrToken, Code: 190, Message: "token expired"}

	summary, err := newTestReconciler(store, source, nil).RunOnce(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	got := store.post(1)
	assert.Equal(t, models.VerificationFailed, got.VerificationStatus)
	assert.Equal(t, models.ErrCodeTokenError, got.VerificationError)
	assert.Equal(t, 1, got.VerificationAttempts)
}

func TestRunOncePermissionErrorFailsWithoutAttempt(t *testing.T) {
	post := duePost(1, "acc1")
	post.VerificationTag = "tag1"
	store := newFakeStore(post)

	source := newFakeSource()
	source.errs["acc1"] = &FetchError{Kind: FetchErrPermission, Code: 10, Message: "missing scope"}

	_, err := newTestReconciler(store, source, nil).RunOnce(context.Background(), testNow)
	require.NoError(t, err)

	got := store.post(1)
	assert.Equal(t, models.ErrCodePermissionError, got.VerificationError)
	assert.Equal(t, 0, got.VerificationAttempts)
}

func TestRunOnceRateLimitedReschedules(t *testing.T) {
	post := duePost(1, "acc1")
	post.VerificationTag = "tag1"
	post.VerificationAttempts = 2
	store := newFakeStore(post)

	source := newFakeSource()
	source.errs["acc1"] = &FetchError{Kind: FetchErrRateLimit, Code: 4, Message: "rate limited"}

	summary, err := newTestReconciler(store, source, nil).RunOnce(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Rescheduled)

	got := store.post(1)
	assert.Equal(t, models.VerificationPending, got.VerificationStatus)
	assert.Equal(t, models.ErrCodeRateLimited, got.VerificationError)
	assert.Equal(t, 2, got.VerificationAttempts)
	require.NotNil(t, got.NextVerificationAt)
	assert.Equal(t, testNow.Add(30*time.Minute), *got.NextVerificationAt)
}

func TestRunOnceAPIErrorConsumesAttempt(t *testing.T) {
	post := duePost(1, "acc1")
	post.VerificationTag = "tag1"
	store := newFakeStore(post)

	source := newFakeSource()
	source.errs["acc1"] = errors.New("connection reset")

	summary, err := newTestReconciler(store, source, nil).RunOnce(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Rescheduled)

	got := store.post(1)
	assert.Equal(t, models.ErrCodeAPIError, got.VerificationError)
	assert.Equal(t, 1, got.VerificationAttempts)
}

func TestRunOnceLateConfirmation(t *testing.T) {
	post := duePost(1, "acc1")
	post.PublishType = models.PublishTypeDirect
	store := newFakeStore(post)

	source := newFakeSource()
	publishedAt := testNow.Add(-50 * time.Minute)
	source.confirmations[1] = &models.LateConfirmation{
		PublishedAt:    publishedAt,
		PlatformURL:    "https://instagram.com/stories/late",
		PlatformPostID: "late1",
	}

	summary, err := newTestReconciler(store, source, nil).RunOnce(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Verified)

	got := store.post(1)
	assert.Equal(t, models.VerificationDone, got.VerificationStatus)
	assert.Equal(t, "late1", got.VerifiedStoryID)
	assert.Equal(t, 0, got.VerificationAttempts)
	assert.Equal(t, 0, source.calls("acc1"))
}

func TestRunOnceAmbiguousSingleReschedules(t *testing.T) {
	post := duePost(1, "acc1")
	store := newFakeStore(post)

	ref := testNow.Add(-time.Hour)
	source := newFakeSource()
	source.stories["acc1"] = []models.PublishedStory{
		{ID: "s1", Timestamp: tsPtr(ref.Add(time.Minute)), MediaKind: models.MediaKindImage},
		{ID: "s2", Timestamp: tsPtr(ref.Add(2 * time.Minute)), MediaKind: models.MediaKindImage},
	}

	summary, err := newTestReconciler(store, source, nil).RunOnce(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Rescheduled)

	got := store.post(1)
	assert.Equal(t, models.VerificationPending, got.VerificationStatus)
	assert.Equal(t, models.ErrCodeAmbiguousMatch, got.VerificationError)
	assert.Equal(t, 1, got.VerificationAttempts)
}

func TestRunOnceAmbiguousPairResolvesPositionally(t *testing.T) {
	ref := testNow.Add(-time.Hour)

	p1 := duePost(1, "acc1")
	p1.CreatedAt = testNow.Add(-2 * time.Hour)
	p1.SentAt = tsPtr(ref)
	p2 := duePost(2, "acc1")
	p2.CreatedAt = testNow.Add(-2 * time.Hour).Add(time.Second)
	p2.SentAt = tsPtr(ref.Add(time.Minute))
	store := newFakeStore(p1, p2)

	source := newFakeSource()
	source.stories["acc1"] = []models.PublishedStory{
		{ID: "second", Timestamp: tsPtr(ref.Add(4 * time.Minute)), MediaKind: models.MediaKindImage},
		{ID: "first", Timestamp: tsPtr(ref.Add(3 * time.Minute)), MediaKind: models.MediaKindImage},
	}

	summary, err := newTestReconciler(store, source, nil).RunOnce(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Verified)

	g1, g2 := store.post(1), store.post(2)
	assert.Equal(t, "first", g1.VerifiedStoryID)
	assert.Equal(t, "second", g2.VerifiedStoryID)
	assert.True(t, g1.VerifiedByFallback)
	assert.True(t, g2.VerifiedByFallback)
	assert.NotEqual(t, g1.VerifiedStoryID, g2.VerifiedStoryID)
}

func TestRunOnceFetchesOncePerAccount(t *testing.T) {
	ref := testNow.Add(-time.Hour)

	var posts []*models.ScheduledPost
	source := newFakeSource()
	for i := int64(1); i <= 3; i++ {
		p := duePost(i, "acc1")
		p.VerificationTag = "tag" + strconv.FormatInt(i, 10)
		posts = append(posts, p)
	}
	other := duePost(4, "acc2")
	other.VerificationTag = "tag4"
	posts = append(posts, other)

	source.stories["acc1"] = []models.PublishedStory{
		{ID: "s1", Caption: "#tag1", Timestamp: tsPtr(ref), MediaKind: models.MediaKindImage},
		{ID: "s2", Caption: "#tag2", Timestamp: tsPtr(ref), MediaKind: models.MediaKindImage},
		{ID: "s3", Caption: "#tag3", Timestamp: tsPtr(ref), MediaKind: models.MediaKindImage},
	}
	source.stories["acc2"] = []models.PublishedStory{
		{ID: "s4", Caption: "#tag4", Timestamp: tsPtr(ref), MediaKind: models.MediaKindImage},
	}

	store := newFakeStore(posts...)
	summary, err := newTestReconciler(store, source, nil).RunOnce(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Verified)
	assert.Equal(t, 1, source.calls("acc1"))
	assert.Equal(t, 1, source.calls("acc2"))

	seen := make(map[string]bool)
	for i := int64(1); i <= 4; i++ {
		id := store.post(i).VerifiedStoryID
		assert.False(t, seen[id], "story %s matched twice", id)
		seen[id] = true
	}
}

func TestRunOnceSecondRunIsIdempotent(t *testing.T) {
	verified := duePost(1, "acc1")
	verified.VerificationTag = "tag1"
	failed := duePost(2, "acc1")
	failed.SentAt = tsPtr(testNow.Add(-10 * time.Hour))
	store := newFakeStore(verified, failed)

	source := newFakeSource()
	source.stories["acc1"] = []models.PublishedStory{
		{ID: "s1", Caption: "#tag1", Timestamp: tsPtr(testNow.Add(-time.Hour)), MediaKind: models.MediaKindImage},
	}

	r := newTestReconciler(store, source, nil)
	first, err := r.RunOnce(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Processed)

	second, err := r.RunOnce(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, Summary{}, second)
	assert.Equal(t, "s1", store.post(1).VerifiedStoryID)
}

func TestRunOnceDecisionHookObservesEveryDecision(t *testing.T) {
	p1 := duePost(1, "acc1")
	p1.VerificationTag = "tag1"
	p2 := duePost(2, "")
	store := newFakeStore(p1, p2)

	source := newFakeSource()
	source.stories["acc1"] = []models.PublishedStory{
		{ID: "s1", Caption: "#tag1", Timestamp: tsPtr(testNow.Add(-time.Hour)), MediaKind: models.MediaKindImage},
	}

	var mu sync.Mutex
	seen := make(map[int64]string)
	hook := func(ctx context.Context, postID int64, update *models.VerificationUpdate) {
		mu.Lock()
		defer mu.Unlock()
		seen[postID] = update.Status
	}

	_, err := newTestReconciler(store, source, hook).RunOnce(context.Background(), testNow)
	require.NoError(t, err)

	assert.Equal(t, models.VerificationDone, seen[1])
	assert.Equal(t, models.VerificationFailed, seen[2])
}

func TestRunOnceFailedWriteNotCounted(t *testing.T) {
	post := duePost(1, "acc1")
	post.VerificationTag = "tag1"
	store := newFakeStore(post)
	store.failUpdates = true

	source := newFakeSource()
	source.stories["acc1"] = []models.PublishedStory{
		{ID: "s1", Caption: "#tag1", Timestamp: tsPtr(testNow.Add(-time.Hour)), MediaKind: models.MediaKindImage},
	}

	summary, err := newTestReconciler(store, source, nil).RunOnce(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, Summary{Processed: 1}, summary)
	assert.Equal(t, models.VerificationPending, store.post(1).VerificationStatus)
}
