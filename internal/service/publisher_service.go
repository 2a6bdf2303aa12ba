package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	config "github.com/HScode1/Tweeter-automation-sub000/configs"
	"github.com/HScode1/Tweeter-automation-sub000/internal/models"
	"github.com/HScode1/Tweeter-automation-sub000/internal/repository"
	"github.com/HScode1/Tweeter-automation-sub000/internal/transfer"
	"github.com/HScode1/Tweeter-automation-sub000/pkg/utils"
)

// MaxMediaPerPost is the platform's attachment limit per tweet. The
// publisher truncates the media list before uploading.
const MaxMediaPerPost = 4

type PublisherService interface {
	PublishPost(ctx context.Context, post *models.Post) transfer.PostResult
}

type publisherService struct {
	cfg config.Config
	pr  repository.PostRepository
	pm  repository.PostMediaRepository
	sa  repository.SocialAccountRepository
	tw  TwitterService
	mu  MediaUploader
}

func NewPublisherService(
	cfg config.Config,
	pr repository.PostRepository,
	pm repository.PostMediaRepository,
	sa repository.SocialAccountRepository,
	tw TwitterService,
	mu MediaUploader) PublisherService {
	return &publisherService{
		cfg: cfg,
		pr:  pr,
		pm:  pm,
		sa:  sa,
		tw:  tw,
		mu:  mu,
	}
}

// PublishPost runs the full publication path for one due post and never
// returns an error: every failure mode ends in a terminal status update
// so one post cannot abort the batch. Only a failure to persist the
// terminal status is reported as a store error, since the post's remote
// state may then be ambiguous.
func (s *publisherService) PublishPost(ctx context.Context, post *models.Post) transfer.PostResult {
	claimed, err := s.pr.ClaimForPublishing(ctx, post.ID)
	if err != nil {
		slog.Info(err.Error())
		return transfer.PostResult{PostID: post.ID, Status: transfer.ResultStoreError, Detail: "failed to claim post: " + err.Error()}
	}
	if !claimed {
		return transfer.PostResult{PostID: post.ID, Status: transfer.ResultSkipped, Detail: "post already claimed by another sweep"}
	}

	acc, err := s.sa.GetByUserAndPlatform(ctx, post.UserID, models.PlatformTwitter)
	if err != nil {
		return s.fail(ctx, post.ID, "unable to load the connected account")
	}
	if acc == nil {
		return s.fail(ctx, post.ID, "twitter account is not connected, please reconnect your account")
	}

	accessToken, err := utils.Decrypt(acc.AccessToken, s.cfg.SecretKey)
	if err != nil {
		slog.Error("stored access token could not be decrypted", "account_id", acc.ID)
		return s.fail(ctx, post.ID, "stored credentials are corrupted, please reconnect your account")
	}
	refreshToken, err := utils.Decrypt(acc.RefreshToken, s.cfg.SecretKey)
	if err != nil {
		slog.Error("stored refresh token could not be decrypted", "account_id", acc.ID)
		return s.fail(ctx, post.ID, "stored credentials are corrupted, please reconnect your account")
	}

	// Best-effort refresh; on failure the original pair comes back and
	// the publish call below surfaces the real authorization error.
	newAccess, newRefresh, expiresIn := s.tw.RefreshAccessToken(ctx, accessToken, refreshToken)
	if expiresIn > 0 {
		s.persistTokens(ctx, acc.ID, newAccess, newRefresh, expiresIn)
	}
	accessToken = newAccess

	mediaIDs := s.uploadMedia(ctx, accessToken, post.ID)

	tweetID, err := s.tw.CreateTweet(ctx, accessToken, post.Content, mediaIDs)
	if err != nil {
		return s.fail(ctx, post.ID, publishErrorMessage(err))
	}

	if err := s.pr.MarkPublished(ctx, post.ID, tweetID); err != nil {
		return transfer.PostResult{PostID: post.ID, Status: transfer.ResultStoreError, Detail: "tweet created but status update failed: " + err.Error()}
	}

	return transfer.PostResult{PostID: post.ID, Status: transfer.ResultPublished, Detail: tweetID}
}

// uploadMedia uploads the post's attachments in parallel, capped at the
// platform limit, and reassembles the handles in display order. Any
// failure abandons the media path entirely: the post falls back to a
// text-only publish rather than failing outright.
func (s *publisherService) uploadMedia(ctx context.Context, accessToken string, postID int64) []string {
	medias, err := s.pm.ListByPostID(ctx, postID)
	if err != nil {
		slog.Info("unable to load post media, falling back to text-only", "post_id", postID)
		return nil
	}
	if len(medias) == 0 {
		return nil
	}

	if len(medias) > MaxMediaPerPost {
		medias = medias[:MaxMediaPerPost]
	}

	mediaIDs := make([]string, len(medias))
	errs := make([]error, len(medias))

	var wg sync.WaitGroup
	for i, media := range medias {
		wg.Add(1)
		go func(i int, media *models.PostMedia) {
			defer wg.Done()
			mediaIDs[i], errs[i] = s.mu.UploadFromURL(ctx, accessToken, media.URL, i)
		}(i, media)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			slog.Info("media upload failed, falling back to text-only", "post_id", postID, "index", i, "error", err.Error())
			return nil
		}
	}

	return mediaIDs
}

func (s *publisherService) persistTokens(ctx context.Context, accountID int64, accessToken, refreshToken string, expiresIn int) {
	encryptedAccess, err := utils.Encrypt([]byte(accessToken), s.cfg.SecretKey)
	if err != nil {
		slog.Info(err.Error())
		return
	}
	encryptedRefresh, err := utils.Encrypt([]byte(refreshToken), s.cfg.SecretKey)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	sa := models.SocialAccount{
		AccessToken:    encryptedAccess,
		RefreshToken:   encryptedRefresh,
		TokenExpiresAt: time.Now().Add(time.Duration(expiresIn) * time.Second),
	}
	if err := s.sa.SetToken(ctx, accountID, &sa); err != nil {
		slog.Info("unable to persist refreshed tokens", "account_id", accountID)
	}
}

func (s *publisherService) fail(ctx context.Context, postID int64, message string) transfer.PostResult {
	if err := s.pr.MarkFailed(ctx, postID, message); err != nil {
		return transfer.PostResult{PostID: postID, Status: transfer.ResultStoreError, Detail: "publish failed and status update failed: " + err.Error()}
	}
	return transfer.PostResult{PostID: postID, Status: transfer.ResultFailed, Detail: message}
}

// publishErrorMessage maps a platform error to the user-facing message
// stored on the post. Classification only shapes the message; every
// classified error still ends in the same terminal failed state.
func publishErrorMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401:
			return "twitter authorization expired, please reconnect your account"
		case 403:
			return "twitter rejected the post: " + apiErr.Detail
		case 429:
			return "twitter rate limit reached, please try again later"
		}
	}
	return "failed to publish tweet: " + err.Error()
}
