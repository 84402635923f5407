package transfer

import "time"

// InstagramStory is one element of the Graph API stories edge.
// Timestamp stays a raw string here; parsing happens at the service
// boundary so a malformed value degrades to a nil timestamp instead
// of failing the whole list.
type InstagramStory struct {
	ID        string `json:"id"`
	Caption   string `json:"caption"`
	MediaType string `json:"media_type"` // IMAGE, VIDEO
	MediaURL  string `json:"media_url"`
	Permalink string `json:"permalink"`
	Timestamp string `json:"timestamp"`
}

type InstagramStoriesResponse struct {
	Data   []InstagramStory `json:"data"`
	Paging struct {
		Cursors struct {
			Before string `json:"before"`
			After  string `json:"after"`
		} `json:"cursors"`
	} `json:"paging"`
}

type InstagramErrorResponse struct {
	Error struct {
		Message        string `json:"message"`
		Type           string `json:"type"`
		Code           int    `json:"code"`
		ErrorSubcode   int    `json:"error_subcode"`
		IsTransient    bool   `json:"is_transient"`
		ErrorUserTitle string `json:"error_user_title"`
		ErrorUserMsg   string `json:"error_user_msg"`
		FbtraceID      string `json:"fbtrace_id"`
	} `json:"error"`
}

type InstagramToken struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// LateConfirmationResponse is the payload of the out-of-band publish
// confirmation endpoint for direct-published stories.
type LateConfirmationResponse struct {
	PublishedAt    string `json:"published_at"`
	PlatformURL    string `json:"platform_url"`
	PlatformPostID string `json:"platform_post_id"`
}
