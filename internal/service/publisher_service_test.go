package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	config "github.com/HScode1/Tweeter-automation-sub000/configs"
	"github.com/HScode1/Tweeter-automation-sub000/internal/models"
	"github.com/HScode1/Tweeter-automation-sub000/internal/repository"
	"github.com/HScode1/Tweeter-automation-sub000/internal/transfer"
	"github.com/HScode1/Tweeter-automation-sub000/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "publisher-test-secret"

type fakePostRepo struct {
	repository.PostRepository

	mu sync.Mutex

	duePosts []*models.Post
	dueErr   error

	claimed    map[int64]bool
	claimErr   error
	claimDeny  bool
	claimCalls int

	publishedTweetID map[int64]string
	markPublishedErr error
	failedMessage    map[int64]string
	markFailedErr    error
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{
		claimed:          make(map[int64]bool),
		publishedTweetID: make(map[int64]string),
		failedMessage:    make(map[int64]string),
	}
}

func (r *fakePostRepo) ListDue(ctx context.Context, now time.Time) ([]*models.Post, error) {
	return r.duePosts, r.dueErr
}

func (r *fakePostRepo) ClaimForPublishing(ctx context.Context, postID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claimCalls++
	if r.claimErr != nil {
		return false, r.claimErr
	}
	if r.claimDeny || r.claimed[postID] {
		return false, nil
	}
	r.claimed[postID] = true
	return true, nil
}

func (r *fakePostRepo) MarkPublished(ctx context.Context, postID int64, tweetID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markPublishedErr != nil {
		return r.markPublishedErr
	}
	r.publishedTweetID[postID] = tweetID
	return nil
}

func (r *fakePostRepo) MarkFailed(ctx context.Context, postID int64, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markFailedErr != nil {
		return r.markFailedErr
	}
	r.failedMessage[postID] = errorMessage
	return nil
}

type fakePostMediaRepo struct {
	repository.PostMediaRepository

	medias []*models.PostMedia
	err    error
}

func (r *fakePostMediaRepo) ListByPostID(ctx context.Context, postID int64) ([]*models.PostMedia, error) {
	return r.medias, r.err
}

type fakeSocialAccountRepo struct {
	repository.SocialAccountRepository

	account *models.SocialAccount
	err     error

	setTokenCalls int
	lastTokens    *models.SocialAccount
}

func (r *fakeSocialAccountRepo) GetByUserAndPlatform(ctx context.Context, userID int64, platform string) (*models.SocialAccount, error) {
	return r.account, r.err
}

func (r *fakeSocialAccountRepo) SetToken(ctx context.Context, accountID int64, sa *models.SocialAccount) error {
	r.setTokenCalls++
	r.lastTokens = sa
	return nil
}

type fakeTwitter struct {
	TwitterService

	refreshAccess    string
	refreshRefresh   string
	refreshExpiresIn int

	tweetID  string
	tweetErr error

	lastAccessToken string
	lastText        string
	lastMediaIDs    []string
	lastVerifier    string
}

func (f *fakeTwitter) RefreshAccessToken(ctx context.Context, accessToken, refreshToken string) (string, string, int) {
	if f.refreshExpiresIn == 0 {
		return accessToken, refreshToken, 0
	}
	return f.refreshAccess, f.refreshRefresh, f.refreshExpiresIn
}

func (f *fakeTwitter) CreateTweet(ctx context.Context, accessToken, text string, mediaIDs []string) (string, error) {
	f.lastAccessToken = accessToken
	f.lastText = text
	f.lastMediaIDs = mediaIDs
	return f.tweetID, f.tweetErr
}

type fakeUploader struct {
	mu sync.Mutex

	ids     map[int]string
	errs    map[int]error
	urls    []string
	indexes []int
}

func (f *fakeUploader) UploadFromURL(ctx context.Context, accessToken, mediaURL string, index int) (string, error) {
	f.mu.Lock()
	f.urls = append(f.urls, mediaURL)
	f.indexes = append(f.indexes, index)
	f.mu.Unlock()
	if err, ok := f.errs[index]; ok {
		return "", err
	}
	if id, ok := f.ids[index]; ok {
		return id, nil
	}
	return "uploaded", nil
}

func encryptedAccount(t *testing.T) *models.SocialAccount {
	t.Helper()

	access, err := utils.Encrypt([]byte("access-token"), testSecret)
	require.NoError(t, err)
	refresh, err := utils.Encrypt([]byte("refresh-token"), testSecret)
	require.NoError(t, err)

	return &models.SocialAccount{
		ID:           11,
		UserID:       7,
		Platform:     models.PlatformTwitter,
		AccessToken:  access,
		RefreshToken: refresh,
	}
}

func newTestPublisher(pr *fakePostRepo, pm *fakePostMediaRepo, sa *fakeSocialAccountRepo, tw *fakeTwitter, mu MediaUploader) PublisherService {
	return NewPublisherService(config.Config{SecretKey: testSecret}, pr, pm, sa, tw, mu)
}

func duePost() *models.Post {
	return &models.Post{
		ID:      1,
		UserID:  7,
		Content: "hello world",
		Status:  models.PostStatusScheduled,
	}
}

func TestPublishPostSuccess(t *testing.T) {
	pr := newFakePostRepo()
	sa := &fakeSocialAccountRepo{account: encryptedAccount(t)}
	tw := &fakeTwitter{tweetID: "1849"}

	p := newTestPublisher(pr, &fakePostMediaRepo{}, sa, tw, &fakeUploader{})

	result := p.PublishPost(context.Background(), duePost())

	assert.Equal(t, transfer.ResultPublished, result.Status)
	assert.Equal(t, "1849", result.Detail)
	assert.Equal(t, "1849", pr.publishedTweetID[1])
	assert.Equal(t, "access-token", tw.lastAccessToken)
	assert.Equal(t, "hello world", tw.lastText)
	assert.Empty(t, tw.lastMediaIDs)
}

func TestPublishPostSkippedWhenAlreadyClaimed(t *testing.T) {
	pr := newFakePostRepo()
	pr.claimDeny = true

	p := newTestPublisher(pr, &fakePostMediaRepo{}, &fakeSocialAccountRepo{}, &fakeTwitter{}, &fakeUploader{})

	result := p.PublishPost(context.Background(), duePost())
	assert.Equal(t, transfer.ResultSkipped, result.Status)
	assert.Empty(t, pr.failedMessage)
}

func TestPublishPostClaimError(t *testing.T) {
	pr := newFakePostRepo()
	pr.claimErr = errors.New("connection reset")

	p := newTestPublisher(pr, &fakePostMediaRepo{}, &fakeSocialAccountRepo{}, &fakeTwitter{}, &fakeUploader{})

	result := p.PublishPost(context.Background(), duePost())
	assert.Equal(t, transfer.ResultStoreError, result.Status)
}

func TestPublishPostNoConnectedAccount(t *testing.T) {
	pr := newFakePostRepo()

	p := newTestPublisher(pr, &fakePostMediaRepo{}, &fakeSocialAccountRepo{account: nil}, &fakeTwitter{}, &fakeUploader{})

	result := p.PublishPost(context.Background(), duePost())
	assert.Equal(t, transfer.ResultFailed, result.Status)
	assert.Contains(t, pr.failedMessage[1], "not connected")
}

func TestPublishPostCorruptedCredentials(t *testing.T) {
	pr := newFakePostRepo()
	sa := &fakeSocialAccountRepo{account: &models.SocialAccount{
		ID:           11,
		UserID:       7,
		AccessToken:  "not-an-encrypted-value",
		RefreshToken: "also-not-encrypted",
	}}

	p := newTestPublisher(pr, &fakePostMediaRepo{}, sa, &fakeTwitter{}, &fakeUploader{})

	result := p.PublishPost(context.Background(), duePost())
	assert.Equal(t, transfer.ResultFailed, result.Status)
	assert.Contains(t, pr.failedMessage[1], "corrupted")
}

func TestPublishPostPersistsRefreshedTokens(t *testing.T) {
	pr := newFakePostRepo()
	sa := &fakeSocialAccountRepo{account: encryptedAccount(t)}
	tw := &fakeTwitter{
		tweetID:          "1850",
		refreshAccess:    "rotated-access",
		refreshRefresh:   "rotated-refresh",
		refreshExpiresIn: 7200,
	}

	p := newTestPublisher(pr, &fakePostMediaRepo{}, sa, tw, &fakeUploader{})

	result := p.PublishPost(context.Background(), duePost())
	assert.Equal(t, transfer.ResultPublished, result.Status)

	// The tweet goes out with the rotated token and the new pair lands
	// encrypted in the store.
	assert.Equal(t, "rotated-access", tw.lastAccessToken)
	require.Equal(t, 1, sa.setTokenCalls)

	storedAccess, err := utils.Decrypt(sa.lastTokens.AccessToken, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "rotated-access", storedAccess)
}

func TestPublishPostWithMediaInOrder(t *testing.T) {
	pr := newFakePostRepo()
	sa := &fakeSocialAccountRepo{account: encryptedAccount(t)}
	tw := &fakeTwitter{tweetID: "1851"}
	pm := &fakePostMediaRepo{medias: []*models.PostMedia{
		{PostID: 1, URL: "https://cdn.example.com/a.jpg", DisplayOrder: 0},
		{PostID: 1, URL: "https://cdn.example.com/b.jpg", DisplayOrder: 1},
		{PostID: 1, URL: "https://cdn.example.com/c.jpg", DisplayOrder: 2},
	}}
	up := &fakeUploader{ids: map[int]string{0: "m0", 1: "m1", 2: "m2"}}

	p := newTestPublisher(pr, pm, sa, tw, up)

	result := p.PublishPost(context.Background(), duePost())
	assert.Equal(t, transfer.ResultPublished, result.Status)
	assert.Equal(t, []string{"m0", "m1", "m2"}, tw.lastMediaIDs)
}

func TestPublishPostTruncatesMediaToLimit(t *testing.T) {
	pr := newFakePostRepo()
	sa := &fakeSocialAccountRepo{account: encryptedAccount(t)}
	tw := &fakeTwitter{tweetID: "1852"}

	var medias []*models.PostMedia
	for i := 0; i < 5; i++ {
		medias = append(medias, &models.PostMedia{PostID: 1, DisplayOrder: i})
	}
	up := &fakeUploader{ids: map[int]string{0: "m0", 1: "m1", 2: "m2", 3: "m3", 4: "m4"}}

	p := newTestPublisher(pr, &fakePostMediaRepo{medias: medias}, sa, tw, up)

	result := p.PublishPost(context.Background(), duePost())
	assert.Equal(t, transfer.ResultPublished, result.Status)
	assert.Equal(t, []string{"m0", "m1", "m2", "m3"}, tw.lastMediaIDs)
	assert.Len(t, up.indexes, MaxMediaPerPost)
}

func TestPublishPostMediaFailureFallsBackToText(t *testing.T) {
	pr := newFakePostRepo()
	sa := &fakeSocialAccountRepo{account: encryptedAccount(t)}
	tw := &fakeTwitter{tweetID: "1853"}
	pm := &fakePostMediaRepo{medias: []*models.PostMedia{
		{PostID: 1, DisplayOrder: 0},
		{PostID: 1, DisplayOrder: 1},
	}}
	up := &fakeUploader{errs: map[int]error{1: errors.New("upload timed out")}}

	p := newTestPublisher(pr, pm, sa, tw, up)

	result := p.PublishPost(context.Background(), duePost())
	assert.Equal(t, transfer.ResultPublished, result.Status)
	assert.Empty(t, tw.lastMediaIDs)
}

func TestPublishPostAuthErrorMessage(t *testing.T) {
	pr := newFakePostRepo()
	sa := &fakeSocialAccountRepo{account: encryptedAccount(t)}
	tw := &fakeTwitter{tweetErr: &APIError{StatusCode: 401, Detail: "Unauthorized"}}

	p := newTestPublisher(pr, &fakePostMediaRepo{}, sa, tw, &fakeUploader{})

	result := p.PublishPost(context.Background(), duePost())
	assert.Equal(t, transfer.ResultFailed, result.Status)
	assert.Equal(t, "twitter authorization expired, please reconnect your account", pr.failedMessage[1])
}

func TestPublishPostRateLimitMessage(t *testing.T) {
	pr := newFakePostRepo()
	sa := &fakeSocialAccountRepo{account: encryptedAccount(t)}
	tw := &fakeTwitter{tweetErr: &APIError{StatusCode: 429, Detail: "Too Many Requests"}}

	p := newTestPublisher(pr, &fakePostMediaRepo{}, sa, tw, &fakeUploader{})

	result := p.PublishPost(context.Background(), duePost())
	assert.Equal(t, transfer.ResultFailed, result.Status)
	assert.Equal(t, "twitter rate limit reached, please try again later", pr.failedMessage[1])
}

func TestPublishPostStoreErrorOnStatusUpdate(t *testing.T) {
	pr := newFakePostRepo()
	pr.markPublishedErr = errors.New("connection reset")
	sa := &fakeSocialAccountRepo{account: encryptedAccount(t)}
	tw := &fakeTwitter{tweetID: "1854"}

	p := newTestPublisher(pr, &fakePostMediaRepo{}, sa, tw, &fakeUploader{})

	result := p.PublishPost(context.Background(), duePost())
	assert.Equal(t, transfer.ResultStoreError, result.Status)
	assert.Contains(t, result.Detail, "tweet created")
}

func TestPublishErrorMessageDefault(t *testing.T) {
	msg := publishErrorMessage(errors.New("dial tcp: i/o timeout"))
	assert.Equal(t, "failed to publish tweet: dial tcp: i/o timeout", msg)
}
