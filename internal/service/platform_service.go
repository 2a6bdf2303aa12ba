package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	config "github.com/HScode1/Tweeter-automation-sub000/configs"
	"github.com/HScode1/Tweeter-automation-sub000/internal/models"
	"github.com/HScode1/Tweeter-automation-sub000/internal/repository"
	"github.com/HScode1/Tweeter-automation-sub000/pkg/utils"
)

const TWITTER_AUTH_URL = "https://twitter.com/i/oauth2/authorize"

type PlatformService interface {
	GetAuthURL(ctx context.Context, userID int64) (string, error)
	TwitterCallback(ctx context.Context, code, state string) error
	List(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	Delete(ctx context.Context, userID, accountID int64) error
}

type platformService struct {
	cfg config.Config
	sa  repository.SocialAccountRepository
	tw  TwitterService
}

func NewPlatformService(cfg config.Config, sa repository.SocialAccountRepository, tw TwitterService) PlatformService {
	return &platformService{
		cfg: cfg,
		sa:  sa,
		tw:  tw,
	}
}

// GetAuthURL builds the PKCE authorize URL. The code verifier travels
// inside the signed state token so the callback can finish the exchange
// without server-side session state.
func (s *platformService) GetAuthURL(ctx context.Context, userID int64) (string, error) {
	verifier, err := utils.GenerateRandomKey(32)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	state, err := utils.GenerateStateToken(s.cfg.SecretKey, fmt.Sprintf("%d", userID), verifier)
	if err != nil {
		return "", err
	}

	challenge := sha256.Sum256([]byte(verifier))

	params := url.Values{}
	params.Add("response_type", "code")
	params.Add("client_id", s.cfg.TwitterClientID)
	params.Add("redirect_uri", s.cfg.TwitterRedirectURI)
	params.Add("scope", "tweet.read tweet.write users.read offline.access")
	params.Add("state", state)
	params.Add("code_challenge", base64.RawURLEncoding.EncodeToString(challenge[:]))
	params.Add("code_challenge_method", "S256")

	return fmt.Sprintf("%s?%s", TWITTER_AUTH_URL, params.Encode()), nil
}

func (s *platformService) TwitterCallback(ctx context.Context, code, state string) error {
	if code == "" || state == "" {
		err := errors.New("code or state is empty")
		slog.Info(err.Error())
		return err
	}

	claims, err := utils.ValidateToken(s.cfg.SecretKey, state)
	if err != nil {
		return err
	}

	var userID int64
	if _, err := fmt.Sscanf(claims.UserID, "%d", &userID); err != nil || userID == 0 {
		err = errors.New("state does not carry a valid user id")
		slog.Info(err.Error())
		return err
	}

	tokenResponse, err := s.tw.ExchangeCode(ctx, code, claims.CodeVerifier)
	if err != nil {
		return err
	}

	userInfo, err := s.tw.GetUserInfo(ctx, tokenResponse.AccessToken)
	if err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(tokenResponse.AccessToken), s.cfg.SecretKey)
	if err != nil {
		return err
	}

	encryptedRefreshToken, err := utils.Encrypt([]byte(tokenResponse.RefreshToken), s.cfg.SecretKey)
	if err != nil {
		return err
	}

	accountInfo := &models.SocialAccount{
		UserID:          userID,
		Platform:        models.PlatformTwitter,
		AccountID:       userInfo.ID,
		AccountName:     userInfo.Name,
		AccountUsername: userInfo.Username,
		ProfilePicture:  userInfo.ProfileImageURL,
		AccessToken:     encryptedAccessToken,
		RefreshToken:    encryptedRefreshToken,
		TokenExpiresAt:  time.Now().Add(time.Duration(tokenResponse.ExpiresIn) * time.Second),
	}

	_, err = s.sa.Upsert(ctx, accountInfo)
	if err != nil {
		return err
	}

	return nil
}

func (s *platformService) List(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	var err error

	if userID == 0 {
		err = errors.New("UserID is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	accounts, err := s.sa.ListInfoByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Error getting social accounts")
	}

	return accounts, nil
}

func (s *platformService) Delete(ctx context.Context, userID, accountID int64) error {
	var err error

	if userID == 0 {
		err = errors.New("UserID is not valid")
		slog.Info(err.Error())
		return err
	}

	if accountID == 0 {
		err = errors.New("AccountID is not valid")
		slog.Info(err.Error())
		return err
	}

	isValid, err := s.sa.CheckByUserID(ctx, accountID, userID)
	if err != nil {
		return err
	}

	if !isValid {
		err = errors.New("Social account doesn't exist")
		slog.Info(err.Error())
		return err
	}

	accountInfo, err := s.sa.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("Unable to get social account info")
	}

	decryptedAccessToken, err := utils.Decrypt(accountInfo.AccessToken, s.cfg.SecretKey)
	if err == nil {
		if err := s.tw.RevokeAccess(ctx, decryptedAccessToken); err != nil {
			slog.Info(err.Error())
		}
	}

	err = s.sa.Remove(ctx, accountID)
	if err != nil {
		return fmt.Errorf("Error removing account Info")
	}

	return nil
}
