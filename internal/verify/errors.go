package verify

import "fmt"

// FetchErrorKind classifies story-list fetch failures so the
// reconciler can pick the right recovery path for every post of the
// affected account.
type FetchErrorKind int

const (
	FetchErrAPI FetchErrorKind = iota
	FetchErrToken
	FetchErrPermission
	FetchErrRateLimit
)

// FetchError is the typed failure contract of StorySource. Any other
// error coming out of a fetch is handled like FetchErrAPI.
type FetchError struct {
	Kind    FetchErrorKind
	Code    int
	Subcode int
	Message string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("story fetch failed (code=%d, subcode=%d): %s", e.Code, e.Subcode, e.Message)
}
