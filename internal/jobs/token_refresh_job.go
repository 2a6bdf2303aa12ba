package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	config "github.com/HScode1/Tweeter-automation-sub000/configs"
	"github.com/HScode1/Tweeter-automation-sub000/internal/models"
	"github.com/HScode1/Tweeter-automation-sub000/internal/repository"
	"github.com/HScode1/Tweeter-automation-sub000/internal/service"
	"github.com/HScode1/Tweeter-automation-sub000/pkg/utils"
)

type TokenRefreshJob struct {
	cfg config.Config
	sr  repository.SocialAccountRepository
	tw  service.TwitterService
}

func NewTokenRefreshJob(
	cfg config.Config,
	sr repository.SocialAccountRepository,
	tw service.TwitterService) *TokenRefreshJob {
	return &TokenRefreshJob{
		cfg: cfg,
		sr:  sr,
		tw:  tw,
	}
}

// RefreshTokens rotates credentials for accounts whose access token
// expires within the next 30 minutes, so the publisher rarely has to
// refresh inline.
func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	accounts, err := c.sr.ListExpiring(ctx, time.Now().Add(30*time.Minute))
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

			c.refreshAccount(ctx, acc)
		}(acc)
	}

	wg.Wait()
}

func (c *TokenRefreshJob) refreshAccount(ctx context.Context, acc *models.SocialAccount) {
	accessToken, err := utils.Decrypt(acc.AccessToken, c.cfg.SecretKey)
	if err != nil {
		slog.Error("stored access token cannot be decrypted", slog.Int64("account_id", acc.ID))
		return
	}

	refreshToken, err := utils.Decrypt(acc.RefreshToken, c.cfg.SecretKey)
	if err != nil {
		slog.Error("stored refresh token cannot be decrypted", slog.Int64("account_id", acc.ID))
		return
	}

	newAccessToken, newRefreshToken, expiresIn := c.tw.RefreshAccessToken(ctx, accessToken, refreshToken)
	if expiresIn <= 0 {
		return
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(newAccessToken), c.cfg.SecretKey)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	encryptedRefreshToken, err := utils.Encrypt([]byte(newRefreshToken), c.cfg.SecretKey)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	err = c.sr.SetToken(ctx, acc.ID, &models.SocialAccount{
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedRefreshToken,
		TokenExpiresAt: time.Now().Add(time.Duration(expiresIn) * time.Second),
	})
	if err != nil {
		slog.Info("Unable to save refreshed tokens")
	}
}
