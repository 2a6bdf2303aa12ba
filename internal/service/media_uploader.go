package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/h2non/filetype"
)

// youtubeThumbPattern matches YouTube thumbnail URLs and captures the
// video id. High-resolution thumbnails for recent uploads frequently 404
// before the platform generates them, so the uploader degrades through
// lower qualities instead of failing the post.
var youtubeThumbPattern = regexp.MustCompile(`(?:img\.youtube\.com|i\.ytimg\.com)/vi/([\w-]+)/`)

var youtubeThumbQualities = []string{
	"maxresdefault",
	"sddefault",
	"hqdefault",
	"mqdefault",
	"default",
}

type FetchError struct {
	URL        string
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch media %s: status %d", e.URL, e.StatusCode)
}

type MediaUploader interface {
	UploadFromURL(ctx context.Context, accessToken, mediaURL string, index int) (string, error)
}

type mediaUploader struct {
	tw         TwitterService
	httpClient *http.Client
	scratchDir string
}

func NewMediaUploader(tw TwitterService) MediaUploader {
	return &mediaUploader{
		tw:         tw,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		scratchDir: os.TempDir(),
	}
}

// UploadFromURL fetches the media, writes it to a scratch file and pushes
// it through the chunked upload. The scratch file is removed on every
// exit path.
func (u *mediaUploader) UploadFromURL(ctx context.Context, accessToken, mediaURL string, index int) (string, error) {
	data, resolvedURL, err := u.fetch(ctx, mediaURL)
	if err != nil {
		return "", err
	}

	mimeType, ext := inferMediaType(resolvedURL, data)

	scratchPath := filepath.Join(u.scratchDir, fmt.Sprintf("media-%d-%d%s", index, time.Now().UnixNano(), ext))
	if err := os.WriteFile(scratchPath, data, 0o600); err != nil {
		slog.Info(err.Error())
		return "", err
	}
	defer os.Remove(scratchPath)

	mediaID, err := u.tw.UploadMedia(ctx, accessToken, scratchPath, mimeType)
	if err != nil {
		return "", err
	}

	return mediaID, nil
}

// fetch downloads the media bytes. YouTube thumbnail URLs are resolved
// through the quality fallback list, highest resolution first.
func (u *mediaUploader) fetch(ctx context.Context, mediaURL string) ([]byte, string, error) {
	if m := youtubeThumbPattern.FindStringSubmatch(mediaURL); m != nil {
		videoID := m[1]
		var lastErr error
		for _, quality := range youtubeThumbQualities {
			candidate := fmt.Sprintf("https://img.youtube.com/vi/%s/%s.jpg", videoID, quality)
			data, err := u.fetchOne(ctx, candidate)
			if err == nil {
				return data, candidate, nil
			}
			lastErr = err
		}
		slog.Info("all thumbnail qualities failed", "video_id", videoID)
		return nil, "", lastErr
	}

	data, err := u.fetchOne(ctx, mediaURL)
	if err != nil {
		return nil, "", err
	}
	return data, mediaURL, nil
}

func (u *mediaUploader) fetchOne(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", mediaURL, nil)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{URL: mediaURL, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return data, nil
}

// inferMediaType picks the MIME type and scratch-file extension from the
// URL extension, refined by a content sniff when the extension is not
// recognized. Defaults to JPEG.
func inferMediaType(mediaURL string, data []byte) (string, string) {
	cleanURL := mediaURL
	if idx := strings.IndexByte(cleanURL, '?'); idx >= 0 {
		cleanURL = cleanURL[:idx]
	}

	switch strings.ToLower(filepath.Ext(cleanURL)) {
	case ".png":
		return "image/png", ".png"
	case ".gif":
		return "image/gif", ".gif"
	case ".mp4":
		return "video/mp4", ".mp4"
	case ".jpg", ".jpeg":
		return "image/jpeg", ".jpg"
	}

	if kind, err := filetype.Match(data); err == nil {
		switch kind.MIME.Value {
		case "image/png":
			return "image/png", ".png"
		case "image/gif":
			return "image/gif", ".gif"
		case "video/mp4":
			return "video/mp4", ".mp4"
		}
	}

	return "image/jpeg", ".jpg"
}
