package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	config "github.com/HScode1/Tweeter-automation-sub000/configs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTwitterService(serverURL string) *twitterService {
	return &twitterService{
		cfg: config.Config{
			TwitterClientID:     "client-id",
			TwitterClientSecret: "client-secret",
			TwitterRedirectURI:  "http://localhost:3000/auth/twitter/callback",
		},
		httpClient: &http.Client{Timeout: 5 * time.Second},
		tokenURL:   serverURL + "/2/oauth2/token",
		revokeURL:  serverURL + "/2/oauth2/revoke",
		apiBase:    serverURL,
		uploadBase: serverURL,
	}
}

func TestRefreshAccessTokenEmptyRefreshIsNoOp(t *testing.T) {
	// No server at all: an empty refresh token must not trigger a request.
	s := newTestTwitterService("http://127.0.0.1:0")

	access, refresh, expiresIn := s.RefreshAccessToken(context.Background(), "existing-access", "")
	assert.Equal(t, "existing-access", access)
	assert.Equal(t, "", refresh)
	assert.Equal(t, 0, expiresIn)
}

func TestRefreshAccessTokenFailureKeepsTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"title":"invalid_request","detail":"refresh token revoked"}`))
	}))
	defer server.Close()

	s := newTestTwitterService(server.URL)

	access, refresh, expiresIn := s.RefreshAccessToken(context.Background(), "old-access", "old-refresh")
	assert.Equal(t, "old-access", access)
	assert.Equal(t, "old-refresh", refresh)
	assert.Equal(t, 0, expiresIn)
}

func TestRefreshAccessTokenSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "old-refresh", r.Form.Get("refresh_token"))
		assert.NotEmpty(t, r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"expires_in":    7200,
		})
	}))
	defer server.Close()

	s := newTestTwitterService(server.URL)

	access, refresh, expiresIn := s.RefreshAccessToken(context.Background(), "old-access", "old-refresh")
	assert.Equal(t, "new-access", access)
	assert.Equal(t, "new-refresh", refresh)
	assert.Equal(t, 7200, expiresIn)
}

func TestRefreshAccessTokenKeepsRefreshWhenOmitted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "new-access",
			"expires_in":   7200,
		})
	}))
	defer server.Close()

	s := newTestTwitterService(server.URL)

	_, refresh, _ := s.RefreshAccessToken(context.Background(), "old-access", "old-refresh")
	assert.Equal(t, "old-refresh", refresh)
}

func TestCreateTweetSuccess(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/2/tweets", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"1849","text":"hello"}}`))
	}))
	defer server.Close()

	s := newTestTwitterService(server.URL)

	tweetID, err := s.CreateTweet(context.Background(), "token", "hello", []string{"m1", "m2"})
	require.NoError(t, err)
	assert.Equal(t, "1849", tweetID)

	media, ok := gotBody["media"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"m1", "m2"}, media["media_ids"])
}

func TestCreateTweetOmitsMediaWhenEmpty(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"1850","text":"hello"}}`))
	}))
	defer server.Close()

	s := newTestTwitterService(server.URL)

	_, err := s.CreateTweet(context.Background(), "token", "hello", nil)
	require.NoError(t, err)
	_, hasMedia := gotBody["media"]
	assert.False(t, hasMedia)
}

func TestCreateTweetClassifiesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"title":"Forbidden","detail":"duplicate content"}`))
	}))
	defer server.Close()

	s := newTestTwitterService(server.URL)

	_, err := s.CreateTweet(context.Background(), "token", "hello", nil)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "Forbidden", apiErr.Code)
	assert.Equal(t, "duplicate content", apiErr.Detail)
}

func TestGetUserInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/2/users/me", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		w.Write([]byte(`{"data":{"id":"99","name":"Test User","username":"testuser","profile_image_url":"https://pbs.example/img.jpg"}}`))
	}))
	defer server.Close()

	s := newTestTwitterService(server.URL)

	user, err := s.GetUserInfo(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, "99", user.ID)
	assert.Equal(t, "testuser", user.Username)
}

func TestUploadMediaChunkedFlow(t *testing.T) {
	var commands []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/1.1/media/upload.json", r.URL.Path)

		command := r.URL.Query().Get("command")
		if command == "" {
			if r.Header.Get("Content-Type") == "application/x-www-form-urlencoded" {
				require.NoError(t, r.ParseForm())
				command = r.Form.Get("command")
			} else {
				require.NoError(t, r.ParseMultipartForm(32<<20))
				command = r.FormValue("command")
			}
		}
		commands = append(commands, command)

		switch command {
		case "INIT":
			w.Write([]byte(`{"media_id_string":"555"}`))
		case "APPEND":
			w.WriteHeader(http.StatusNoContent)
		case "FINALIZE":
			w.Write([]byte(`{"media_id_string":"555"}`))
		}
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "pic.jpg")
	require.NoError(t, os.WriteFile(path, []byte("fake image bytes"), 0o600))

	s := newTestTwitterService(server.URL)

	mediaID, err := s.UploadMedia(context.Background(), "token", path, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "555", mediaID)
	assert.Equal(t, []string{"INIT", "APPEND", "FINALIZE"}, commands)
}

func TestMediaCategory(t *testing.T) {
	assert.Equal(t, "tweet_video", mediaCategory("video/mp4"))
	assert.Equal(t, "tweet_gif", mediaCategory("image/gif"))
	assert.Equal(t, "tweet_image", mediaCategory("image/png"))
	assert.Equal(t, "tweet_image", mediaCategory("image/jpeg"))
}
