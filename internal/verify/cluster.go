package verify

import (
	"sort"

	"github.com/maheshrc27/storysync/internal/models"
)

// BatchOutcome is the disambiguator's verdict for one post of an
// ambiguous group: a story (tagged or positional), residual
// ambiguity, or no match at all.
type BatchOutcome struct {
	Post      *models.ScheduledPost
	Story     *models.PublishedStory
	Tagged    bool
	Ambiguous bool
}

// ResolveBatch resolves a group of posts that were each individually
// ambiguous against the same account snapshot. Tag matches are peeled
// off first since they are always unambiguous. The rest is clustered
// by reference timestamp and paired positionally: scheduling order
// against publication order. That pairing assumes the platform
// publishes stories in the relative order they were scheduled; an
// out-of-order publish cross-wires the pairing with no internal
// signal to detect it, which is why positional matches are recorded
// as fallback matches.
func (c Config) ResolveBatch(posts []*models.ScheduledPost, stories []models.PublishedStory) []BatchOutcome {
	var outcomes []BatchOutcome
	var unresolved []*models.ScheduledPost

	for _, post := range posts {
		if post.VerificationTag != "" {
			if story := matchByTag(post.VerificationTag, stories); story != nil {
				outcomes = append(outcomes, BatchOutcome{Post: post, Story: story, Tagged: true})
				continue
			}
		}
		unresolved = append(unresolved, post)
	}

	for _, cluster := range c.clusterByTime(unresolved) {
		if len(cluster) == 1 {
			outcomes = append(outcomes, c.resolveSingle(cluster[0], stories))
			continue
		}
		outcomes = append(outcomes, c.resolvePositional(cluster, stories)...)
	}

	return outcomes
}

// clusterByTime sweeps posts in reference-timestamp order and starts
// a new cluster whenever the gap to the previous post exceeds twice
// the fallback window, keeping temporally distant batches independent.
func (c Config) clusterByTime(posts []*models.ScheduledPost) [][]*models.ScheduledPost {
	if len(posts) == 0 {
		return nil
	}

	sorted := make([]*models.ScheduledPost, len(posts))
	copy(sorted, posts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return ReferenceTimestamp(sorted[i]).Before(ReferenceTimestamp(sorted[j]))
	})

	maxGap := 2 * c.FallbackWindow
	var clusters [][]*models.ScheduledPost
	current := []*models.ScheduledPost{sorted[0]}
	for _, post := range sorted[1:] {
		prev := current[len(current)-1]
		if ReferenceTimestamp(post).Sub(ReferenceTimestamp(prev)) > maxGap {
			clusters = append(clusters, current)
			current = []*models.ScheduledPost{post}
			continue
		}
		current = append(current, post)
	}
	return append(clusters, current)
}

func (c Config) resolveSingle(post *models.ScheduledPost, stories []models.PublishedStory) BatchOutcome {
	result := c.MatchStory(post, ReferenceTimestamp(post), stories)
	switch result.Kind {
	case MatchTag:
		return BatchOutcome{Post: post, Story: result.Story, Tagged: true}
	case MatchFallback:
		return BatchOutcome{Post: post, Story: result.Story}
	case MatchAmbiguous:
		return BatchOutcome{Post: post, Ambiguous: true}
	default:
		return BatchOutcome{Post: post}
	}
}

// resolvePositional pairs a cluster's posts (by creation order) with
// the union of its candidate stories (by publication order). Posts
// beyond the number of candidates fall through as unmatched.
func (c Config) resolvePositional(cluster []*models.ScheduledPost, stories []models.PublishedStory) []BatchOutcome {
	candidates := c.unionCandidates(cluster, stories)

	ordered := make([]*models.ScheduledPost, len(cluster))
	copy(ordered, cluster)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Timestamp.Before(*candidates[j].Timestamp)
	})

	outcomes := make([]BatchOutcome, 0, len(ordered))
	for i, post := range ordered {
		if i < len(candidates) {
			outcomes = append(outcomes, BatchOutcome{Post: post, Story: &candidates[i]})
			continue
		}
		outcomes = append(outcomes, BatchOutcome{Post: post})
	}
	return outcomes
}

// unionCandidates collects every story inside the fallback window of
// any cluster member, respecting each member's expected media kind,
// deduplicated by story id.
func (c Config) unionCandidates(cluster []*models.ScheduledPost, stories []models.PublishedStory) []models.PublishedStory {
	seen := make(map[string]bool)
	var union []models.PublishedStory
	for _, post := range cluster {
		kind := ExpectedMediaKind(post.MediaURLs)
		for _, story := range c.candidatesInWindow(ReferenceTimestamp(post), kind, stories) {
			if seen[story.ID] {
				continue
			}
			seen[story.ID] = true
			union = append(union, story)
		}
	}
	return union
}
