package verify

import (
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/maheshrc27/storysync/internal/models"
)

type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchTag
	MatchFallback
	MatchAmbiguous
)

// MatchResult is the outcome of matching one post against an
// account's story list. Candidates is populated only for
// MatchAmbiguous, where the batch disambiguator takes over.
type MatchResult struct {
	Kind       MatchKind
	Story      *models.PublishedStory
	Candidates []models.PublishedStory
}

// MatchStory decides how one post relates to the fetched story list.
// A caption tag match wins outright and is not time-bounded; without
// one, stories inside the fallback window with a compatible media
// kind are counted: one is a fallback match, several are ambiguous.
func (c Config) MatchStory(post *models.ScheduledPost, ref time.Time, stories []models.PublishedStory) MatchResult {
	if post.VerificationTag != "" {
		if story := matchByTag(post.VerificationTag, stories); story != nil {
			return MatchResult{Kind: MatchTag, Story: story}
		}
	}

	candidates := c.candidatesInWindow(ref, ExpectedMediaKind(post.MediaURLs), stories)
	switch len(candidates) {
	case 0:
		return MatchResult{Kind: MatchNone}
	case 1:
		return MatchResult{Kind: MatchFallback, Story: &candidates[0]}
	default:
		return MatchResult{Kind: MatchAmbiguous, Candidates: candidates}
	}
}

func matchByTag(tag string, stories []models.PublishedStory) *models.PublishedStory {
	for i := range stories {
		if strings.Contains(stories[i].Caption, tag) {
			return &stories[i]
		}
	}
	return nil
}

// candidatesInWindow keeps stories published within the fallback
// window of ref whose media kind is compatible with the expected one.
// Stories without a timestamp can never be window candidates.
func (c Config) candidatesInWindow(ref time.Time, expected models.MediaKind, stories []models.PublishedStory) []models.PublishedStory {
	var candidates []models.PublishedStory
	for _, story := range stories {
		if story.Timestamp == nil {
			continue
		}
		diff := story.Timestamp.Sub(ref)
		if diff < 0 {
			diff = -diff
		}
		if diff > c.FallbackWindow {
			continue
		}
		if !kindCompatible(expected, story.MediaKind) {
			continue
		}
		candidates = append(candidates, story)
	}
	return candidates
}

// kindCompatible skips the media-kind constraint when either side is
// unknown.
func kindCompatible(expected, actual models.MediaKind) bool {
	if expected == models.MediaKindUnknown || actual == models.MediaKindUnknown {
		return true
	}
	return expected == actual
}

// ExpectedMediaKind infers the media kind a published story should
// have from the post's media URLs. Any video-like extension or
// keyword means video; URLs without one mean image; no URLs at all
// leave the kind unknown.
func ExpectedMediaKind(mediaURLs []string) models.MediaKind {
	if len(mediaURLs) == 0 {
		return models.MediaKindUnknown
	}
	for _, mediaURL := range mediaURLs {
		if urlLooksLikeVideo(mediaURL) {
			return models.MediaKindVideo
		}
	}
	return models.MediaKindImage
}

func urlLooksLikeVideo(mediaURL string) bool {
	ext := urlExtension(mediaURL)
	if ext != "" {
		if t := filetype.GetType(ext); t != types.Unknown {
			return t.MIME.Type == "video"
		}
	}
	lower := strings.ToLower(mediaURL)
	return strings.Contains(lower, "video") || strings.Contains(lower, "reel")
}

func urlExtension(mediaURL string) string {
	raw := mediaURL
	if parsed, err := url.Parse(mediaURL); err == nil && parsed.Path != "" {
		raw = parsed.Path
	}
	return strings.TrimPrefix(strings.ToLower(path.Ext(raw)), ".")
}
