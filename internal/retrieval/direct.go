package retrieval

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"scribe/internal/services"
)

// DirectStrategy streams the URL body straight to disk. It is the last
// resort for hosts that serve the media file at the given URL without any
// player page in front of it.
type DirectStrategy struct {
	client    *http.Client
	userAgent string
}

// NewDirectStrategy builds the strategy around the given HTTP client.
func NewDirectStrategy(client *http.Client, userAgent string) *DirectStrategy {
	if client == nil {
		client = http.DefaultClient
	}
	return &DirectStrategy{client: client, userAgent: userAgent}
}

// Name identifies the strategy in logs and outcomes.
func (s *DirectStrategy) Name() string { return "direct" }

// CanHandle claims only URLs that already point at a media file.
func (s *DirectStrategy) CanHandle(mediaURL string) bool {
	return HasMediaExtension(mediaURL)
}

// Fetch downloads the URL body to a file in destDir.
func (s *DirectStrategy) Fetch(ctx context.Context, mediaURL, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", services.Wrap(services.ErrFatal, "downloading", "direct", "build request", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrRetryable, "downloading", "direct", "request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		marker := services.ErrRetryable
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			marker = services.ErrFatal
		}
		return "", services.Wrap(marker, "downloading", "direct",
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	dest := filepath.Join(destDir, "media"+inferExtension(mediaURL, resp.Header.Get("Content-Type")))
	file, err := os.Create(dest)
	if err != nil {
		return "", services.Wrap(services.ErrRetryable, "downloading", "direct", "create file", err)
	}

	if _, err := io.Copy(file, resp.Body); err != nil {
		_ = file.Close()
		_ = os.Remove(dest)
		return "", services.Wrap(services.ErrRetryable, "downloading", "direct", "stream body", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(dest)
		return "", services.Wrap(services.ErrRetryable, "downloading", "direct", "close file", err)
	}
	return dest, nil
}

// mediaExtensions are container suffixes recognized in URL paths.
var mediaExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".webm": true,
	".mov":  true,
	".avi":  true,
	".m4v":  true,
	".mp3":  true,
	".m4a":  true,
	".wav":  true,
	".flac": true,
	".ogg":  true,
}

// HasMediaExtension reports whether the URL path ends in a recognized
// media container suffix.
func HasMediaExtension(mediaURL string) bool {
	parsed, err := url.Parse(mediaURL)
	if err != nil {
		return false
	}
	return mediaExtensions[strings.ToLower(path.Ext(parsed.Path))]
}

func inferExtension(mediaURL, contentType string) string {
	if parsed, err := url.Parse(mediaURL); err == nil {
		if ext := strings.ToLower(path.Ext(parsed.Path)); mediaExtensions[ext] {
			return ext
		}
	}
	if contentType != "" {
		if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
			switch mediaType {
			case "video/mp4":
				return ".mp4"
			case "video/webm":
				return ".webm"
			case "video/quicktime":
				return ".mov"
			case "video/x-matroska":
				return ".mkv"
			case "audio/mpeg":
				return ".mp3"
			case "audio/mp4":
				return ".m4a"
			case "audio/wav", "audio/x-wav":
				return ".wav"
			}
		}
	}
	return ".mp4"
}
