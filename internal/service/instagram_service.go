package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	config "github.com/maheshrc27/storysync/configs"
	"github.com/maheshrc27/storysync/internal/models"
	"github.com/maheshrc27/storysync/internal/repository"
	"github.com/maheshrc27/storysync/internal/transfer"
	"github.com/maheshrc27/storysync/internal/verify"
	"github.com/maheshrc27/storysync/pkg/utils"
)

// classifyGraphError maps Graph API error codes onto recovery kinds.
// 190/102 are credential problems, 10 and the 200 range are missing
// permissions, 4/17/32/613 are throttling.
func classifyGraphError(code int) verify.FetchErrorKind {
	switch {
	case code == 190 || code == 102:
		return verify.FetchErrToken
	case code == 10 || (code >= 200 && code <= 299):
		return verify.FetchErrPermission
	case code == 4 || code == 17 || code == 32 || code == 613:
		return verify.FetchErrRateLimit
	default:
		return verify.FetchErrAPI
	}
}

type InstagramService interface {
	FetchRecentStories(ctx context.Context, igAccountID string) ([]models.PublishedStory, error)
	FetchLateConfirmation(ctx context.Context, post *models.ScheduledPost) (*models.LateConfirmation, error)
	RefreshInstagramToken(ctx context.Context, acc *models.SocialAccount) error
}

type instagramService struct {
	cfg    config.Config
	sa     repository.SocialAccountRepository
	client *http.Client
}

func NewInstagramService(cfg config.Config, sa repository.SocialAccountRepository) InstagramService {
	return &instagramService{
		cfg: cfg,
		sa:  sa,
		client: &http.Client{
			Timeout: cfg.Verification.FetchTimeout,
		},
	}
}

// FetchRecentStories returns the account's live story list. All
// failures come back as *verify.FetchError; a fetch timeout counts
// as a plain API failure like any other transport problem.
func (s *instagramService) FetchRecentStories(ctx context.Context, igAccountID string) ([]models.PublishedStory, error) {
	acc, err := s.sa.GetByAccountID(ctx, igAccountID)
	if err != nil {
		return nil, &verify.FetchError{Kind: verify.FetchErrAPI, Message: err.Error()}
	}
	if acc == nil {
		return nil, &verify.FetchError{Kind: verify.FetchErrToken, Message: fmt.Sprintf("no connected account for %s", igAccountID)}
	}

	accessToken, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return nil, &verify.FetchError{Kind: verify.FetchErrToken, Message: "unable to decrypt access token"}
	}

	reqURL := fmt.Sprintf(
		"%s/%s/stories?fields=id,caption,media_type,media_url,permalink,timestamp&access_token=%s",
		s.cfg.GraphAPIBaseURL, igAccountID, url.QueryEscape(accessToken),
	)

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, &verify.FetchError{Kind: verify.FetchErrAPI, Message: err.Error()}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, &verify.FetchError{Kind: verify.FetchErrAPI, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &verify.FetchError{Kind: verify.FetchErrAPI, Message: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, &verify.FetchError{Kind: verify.FetchErrRateLimit, Message: "http 429"}
		}
		var errResp transfer.InstagramErrorResponse
		if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Code == 0 {
			return nil, &verify.FetchError{Kind: verify.FetchErrAPI, Message: fmt.Sprintf("unexpected status code from Instagram: %d", resp.StatusCode)}
		}
		return nil, &verify.FetchError{
			Kind:    classifyGraphError(errResp.Error.Code),
			Code:    errResp.Error.Code,
			Subcode: errResp.Error.ErrorSubcode,
			Message: errResp.Error.Message,
		}
	}

	var result transfer.InstagramStoriesResponse
	if err := json.Unmarshal(body, &result); err != nil {
		slog.Info(err.Error())
		return nil, &verify.FetchError{Kind: verify.FetchErrAPI, Message: "error parsing stories response"}
	}

	stories := make([]models.PublishedStory, 0, len(result.Data))
	for _, item := range result.Data {
		stories = append(stories, models.PublishedStory{
			ID:        item.ID,
			Caption:   item.Caption,
			Timestamp: parseGraphTimestamp(item.Timestamp),
			MediaKind: graphMediaKind(item.MediaType),
			Permalink: item.Permalink,
		})
	}
	return stories, nil
}

// FetchLateConfirmation asks the direct publisher's confirmation
// endpoint whether it already saw the post go live. Returns nil when
// the endpoint is not configured or has no record.
func (s *instagramService) FetchLateConfirmation(ctx context.Context, post *models.ScheduledPost) (*models.LateConfirmation, error) {
	if s.cfg.LateConfirmURL == "" {
		return nil, nil
	}

	reqURL := fmt.Sprintf("%s?post_id=%d", s.cfg.LateConfirmURL, post.ID)
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code from confirmation endpoint: %d", resp.StatusCode)
	}

	var result transfer.LateConfirmationResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("error decoding confirmation response: %w", err)
	}
	if result.PlatformPostID == "" {
		return nil, nil
	}

	publishedAt := time.Now()
	if ts := parseGraphTimestamp(result.PublishedAt); ts != nil {
		publishedAt = *ts
	}

	return &models.LateConfirmation{
		PublishedAt:    publishedAt,
		PlatformURL:    result.PlatformURL,
		PlatformPostID: result.PlatformPostID,
	}, nil
}

func (s *instagramService) RefreshInstagramToken(ctx context.Context, acc *models.SocialAccount) error {
	decryptedToken, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	reqURL := fmt.Sprintf(
		"https://graph.instagram.com/refresh_access_token?grant_type=ig_refresh_token&access_token=%s",
		url.QueryEscape(decryptedToken),
	)

	resp, err := s.client.Get(reqURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(result.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	refreshed := models.SocialAccount{
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedAccessToken,
		TokenExpiresAt: time.Now().Add(time.Second * time.Duration(result.ExpiresIn)),
	}

	return s.sa.SetToken(ctx, acc.ID, &refreshed)
}

// Graph timestamps come back as ISO8601 with a compact zone offset.
func parseGraphTimestamp(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05-0700", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}

func graphMediaKind(mediaType string) models.MediaKind {
	switch strings.ToUpper(mediaType) {
	case "IMAGE":
		return models.MediaKindImage
	case "VIDEO":
		return models.MediaKindVideo
	default:
		return models.MediaKindUnknown
	}
}
