package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	config "github.com/HScode1/Tweeter-automation-sub000/configs"
	"github.com/HScode1/Tweeter-automation-sub000/internal/transfer"
)

const (
	twitterTokenURL   = "https://api.twitter.com/2/oauth2/token"
	twitterRevokeURL  = "https://api.twitter.com/2/oauth2/revoke"
	twitterAPIBase    = "https://api.twitter.com"
	twitterUploadBase = "https://upload.twitter.com"

	uploadChunkSize = 4 * 1024 * 1024
)

// APIError is the classified form of a Twitter API failure. The status
// code drives the user-facing message chosen by the publisher.
type APIError struct {
	StatusCode int
	Code       string
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitter api error (status %d): %s %s", e.StatusCode, e.Code, e.Detail)
}

type TwitterService interface {
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*transfer.TwitterTokenResponse, error)
	RefreshAccessToken(ctx context.Context, accessToken, refreshToken string) (string, string, int)
	GetUserInfo(ctx context.Context, accessToken string) (*transfer.TwitterUser, error)
	CreateTweet(ctx context.Context, accessToken, text string, mediaIDs []string) (string, error)
	UploadMedia(ctx context.Context, accessToken, filePath, mimeType string) (string, error)
	RevokeAccess(ctx context.Context, accessToken string) error
}

type twitterService struct {
	cfg        config.Config
	httpClient *http.Client
	tokenURL   string
	revokeURL  string
	apiBase    string
	uploadBase string
}

func NewTwitterService(cfg config.Config) TwitterService {
	return &twitterService{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		tokenURL:   twitterTokenURL,
		revokeURL:  twitterRevokeURL,
		apiBase:    twitterAPIBase,
		uploadBase: twitterUploadBase,
	}
}

func (s *twitterService) basicAuth() string {
	creds := s.cfg.TwitterClientID + ":" + s.cfg.TwitterClientSecret
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(creds))
}

func (s *twitterService) ExchangeCode(ctx context.Context, code, codeVerifier string) (*transfer.TwitterTokenResponse, error) {
	if code == "" {
		err := errors.New("authorization code is empty")
		slog.Info(err.Error())
		return nil, err
	}

	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", s.cfg.TwitterRedirectURI)
	data.Set("code_verifier", codeVerifier)
	data.Set("client_id", s.cfg.TwitterClientID)

	return s.requestToken(ctx, data)
}

// RefreshAccessToken exchanges the refresh token for a new pair. An empty
// refresh token is a no-op: the input comes back unchanged and no request
// is made, so publication proceeds with the existing access token. Any
// failure is logged and the original pair is returned; the downstream
// publish call surfaces the real authorization error. The returned
// expires_in is zero whenever no refresh actually happened.
func (s *twitterService) RefreshAccessToken(ctx context.Context, accessToken, refreshToken string) (string, string, int) {
	if refreshToken == "" {
		return accessToken, refreshToken, 0
	}

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)
	data.Set("client_id", s.cfg.TwitterClientID)

	tokenResponse, err := s.requestToken(ctx, data)
	if err != nil {
		slog.Info("token refresh failed, keeping existing tokens", "error", err.Error())
		return accessToken, refreshToken, 0
	}

	newRefresh := tokenResponse.RefreshToken
	if newRefresh == "" {
		newRefresh = refreshToken
	}

	return tokenResponse.AccessToken, newRefresh, tokenResponse.ExpiresIn
}

func (s *twitterService) requestToken(ctx context.Context, data url.Values) (*transfer.TwitterTokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", s.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", s.basicAuth())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(resp)
	}

	var tokenResponse transfer.TwitterTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	return &tokenResponse, nil
}

func (s *twitterService) GetUserInfo(ctx context.Context, accessToken string) (*transfer.TwitterUser, error) {
	reqURL := s.apiBase + "/2/users/me?user.fields=profile_image_url"

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(resp)
	}

	var result transfer.TwitterUserResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return &result.Data, nil
}

// CreateTweet submits the tweet and returns the platform-assigned id.
// mediaIDs must already be in display order; the platform renders media
// in the order of the submitted list.
func (s *twitterService) CreateTweet(ctx context.Context, accessToken, text string, mediaIDs []string) (string, error) {
	payload := transfer.TweetCreateRequest{Text: text}
	if len(mediaIDs) > 0 {
		payload.Media = &transfer.TweetMedia{MediaIDs: mediaIDs}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.apiBase+"/2/tweets", bytes.NewBuffer(body))
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", newAPIError(resp)
	}

	var result transfer.TweetCreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return "", err
	}

	if result.Data.ID == "" {
		return "", errors.New("no tweet id returned")
	}

	return result.Data.ID, nil
}

// UploadMedia pushes a local file through the chunked upload flow
// (INIT, APPEND per chunk, FINALIZE) and returns the media handle.
func (s *twitterService) UploadMedia(ctx context.Context, accessToken, filePath, mimeType string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	mediaID, err := s.uploadInit(ctx, accessToken, stat.Size(), mimeType)
	if err != nil {
		return "", err
	}

	buf := make([]byte, uploadChunkSize)
	segment := 0
	for {
		n, readErr := file.Read(buf)
		if n > 0 {
			if err := s.uploadAppend(ctx, accessToken, mediaID, segment, buf[:n]); err != nil {
				return "", err
			}
			segment++
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			slog.Info(readErr.Error())
			return "", readErr
		}
	}

	return s.uploadFinalize(ctx, accessToken, mediaID)
}

func mediaCategory(mimeType string) string {
	switch mimeType {
	case "video/mp4":
		return "tweet_video"
	case "image/gif":
		return "tweet_gif"
	default:
		return "tweet_image"
	}
}

func (s *twitterService) uploadInit(ctx context.Context, accessToken string, totalBytes int64, mimeType string) (string, error) {
	data := url.Values{}
	data.Set("command", "INIT")
	data.Set("total_bytes", strconv.FormatInt(totalBytes, 10))
	data.Set("media_type", mimeType)
	data.Set("media_category", mediaCategory(mimeType))

	req, err := http.NewRequestWithContext(ctx, "POST", s.uploadBase+"/1.1/media/upload.json", strings.NewReader(data.Encode()))
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newAPIError(resp)
	}

	var result transfer.MediaUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return "", err
	}

	if result.MediaIDString == "" {
		return "", errors.New("no media id returned from INIT")
	}

	return result.MediaIDString, nil
}

func (s *twitterService) uploadAppend(ctx context.Context, accessToken, mediaID string, segment int, chunk []byte) error {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	if err := form.WriteField("command", "APPEND"); err != nil {
		return err
	}
	if err := form.WriteField("media_id", mediaID); err != nil {
		return err
	}
	if err := form.WriteField("segment_index", strconv.Itoa(segment)); err != nil {
		return err
	}

	part, err := form.CreateFormFile("media", "media")
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if _, err := part.Write(chunk); err != nil {
		slog.Info(err.Error())
		return err
	}
	if err := form.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.uploadBase+"/1.1/media/upload.json", &body)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp)
	}

	io.Copy(io.Discard, resp.Body)
	return nil
}

func (s *twitterService) uploadFinalize(ctx context.Context, accessToken, mediaID string) (string, error) {
	data := url.Values{}
	data.Set("command", "FINALIZE")
	data.Set("media_id", mediaID)

	req, err := http.NewRequestWithContext(ctx, "POST", s.uploadBase+"/1.1/media/upload.json", strings.NewReader(data.Encode()))
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newAPIError(resp)
	}

	var result transfer.MediaUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return "", err
	}

	// Video uploads finish asynchronously; wait for processing to settle.
	if result.ProcessingInfo != nil {
		if err := s.waitForProcessing(ctx, accessToken, mediaID, result.ProcessingInfo); err != nil {
			return "", err
		}
	}

	return result.MediaIDString, nil
}

func (s *twitterService) waitForProcessing(ctx context.Context, accessToken, mediaID string, info *transfer.MediaProcessingInfo) error {
	for attempts := 0; attempts < 10; attempts++ {
		switch info.State {
		case "succeeded":
			return nil
		case "failed":
			detail := "media processing failed"
			if info.Error != nil {
				detail = info.Error.Message
			}
			return &APIError{StatusCode: http.StatusUnprocessableEntity, Code: "processing_failed", Detail: detail}
		}

		wait := time.Duration(info.CheckAfterSecs) * time.Second
		if wait <= 0 {
			wait = time.Second
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}

		status, err := s.uploadStatus(ctx, accessToken, mediaID)
		if err != nil {
			return err
		}
		if status.ProcessingInfo == nil {
			return nil
		}
		info = status.ProcessingInfo
	}

	return errors.New("media processing did not finish in time")
}

func (s *twitterService) uploadStatus(ctx context.Context, accessToken, mediaID string) (*transfer.MediaUploadResponse, error) {
	reqURL := fmt.Sprintf("%s/1.1/media/upload.json?command=STATUS&media_id=%s", s.uploadBase, mediaID)

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp)
	}

	var result transfer.MediaUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return &result, nil
}

func (s *twitterService) RevokeAccess(ctx context.Context, accessToken string) error {
	data := url.Values{}
	data.Set("token", accessToken)
	data.Set("token_type_hint", "access_token")

	req, err := http.NewRequestWithContext(ctx, "POST", s.revokeURL, strings.NewReader(data.Encode()))
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", s.basicAuth())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return newAPIError(resp)
	}
	return nil
}

// newAPIError reads the response body once and classifies the failure at
// the boundary where the platform call is made.
func newAPIError(resp *http.Response) *APIError {
	bodyBytes, _ := io.ReadAll(resp.Body)

	apiErr := &APIError{StatusCode: resp.StatusCode, Detail: string(bodyBytes)}

	var parsed transfer.TwitterErrorResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err == nil {
		if parsed.Title != "" {
			apiErr.Code = parsed.Title
			apiErr.Detail = parsed.Detail
		} else if len(parsed.Errors) > 0 {
			apiErr.Code = strconv.Itoa(parsed.Errors[0].Code)
			apiErr.Detail = parsed.Errors[0].Message
		}
	}

	slog.Info("twitter api error", "status", resp.StatusCode, "detail", apiErr.Detail)
	return apiErr
}
