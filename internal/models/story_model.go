package models

import "time"

type MediaKind string

const (
	MediaKindImage   MediaKind = "image"
	MediaKindVideo   MediaKind = "video"
	MediaKindUnknown MediaKind = "unknown"
)

// PublishedStory is Instagram's record of a currently live story.
// It is fetched fresh on every run and never persisted here.
type PublishedStory struct {
	ID        string     `json:"id"`
	Caption   string     `json:"caption"`
	Timestamp *time.Time `json:"timestamp"`
	MediaKind MediaKind  `json:"media_kind"`
	Permalink string     `json:"permalink"`
}

// LateConfirmation is an out-of-band publish confirmation for
// direct-published stories, trusted above the story-list lookup.
type LateConfirmation struct {
	PublishedAt    time.Time `json:"published_at"`
	PlatformURL    string    `json:"platform_url"`
	PlatformPostID string    `json:"platform_post_id"`
}
