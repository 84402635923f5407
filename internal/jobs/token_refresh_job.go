package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/storysync/internal/models"
	"github.com/maheshrc27/storysync/internal/repository"
	"github.com/maheshrc27/storysync/internal/service"
)

// TokenRefreshJob keeps Instagram tokens fresh so story fetches don't
// start failing with TOKEN_ERROR mid-verification.
type TokenRefreshJob struct {
	sr repository.SocialAccountRepository
	ig service.InstagramService
}

func NewTokenRefreshJob(sr repository.SocialAccountRepository, ig service.InstagramService) *TokenRefreshJob {
	return &TokenRefreshJob{
		sr: sr,
		ig: ig,
	}
}

func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	currentTime := time.Now()
	timeIn30Minutes := currentTime.Add(30 * time.Minute)

	accounts, err := c.sr.ListExpiring(ctx, currentTime, timeIn30Minutes)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := c.ig.RefreshInstagramToken(ctx, acc); err != nil {
				slog.Info("Unable to refresh token", "account_id", acc.AccountID)
			}
		}(acc)
	}

	wg.Wait()
}
