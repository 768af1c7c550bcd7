package retrieval

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"scribe/internal/config"
	"scribe/internal/services"
)

const ytdlpOutputStem = "media"

// YtdlpStrategy downloads media with yt-dlp. It is first in the chain
// because it handles streaming sites, playlisted URLs, and plain file URLs
// alike.
type YtdlpStrategy struct {
	binary        string
	cfg           config.Download
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewYtdlpStrategy builds the strategy from download configuration.
func NewYtdlpStrategy(binary string, cfg config.Download) *YtdlpStrategy {
	if strings.TrimSpace(binary) == "" {
		binary = "yt-dlp"
	}
	return &YtdlpStrategy{binary: binary, cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *YtdlpStrategy) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Name identifies the strategy in logs and outcomes.
func (s *YtdlpStrategy) Name() string { return "ytdlp" }

// CanHandle accepts every URL; yt-dlp resolves platform pages and plain
// file URLs alike.
func (s *YtdlpStrategy) CanHandle(string) bool { return true }

// Fetch runs yt-dlp against the URL and returns the downloaded file path.
func (s *YtdlpStrategy) Fetch(ctx context.Context, mediaURL, destDir string) (string, error) {
	args := s.buildArgs(mediaURL, destDir)
	if err := s.run(ctx, s.binary, args...); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "downloading", "yt-dlp", "", err)
	}

	matches, err := filepath.Glob(filepath.Join(destDir, ytdlpOutputStem+".*"))
	if err != nil {
		return "", services.Wrap(services.ErrRetryable, "downloading", "yt-dlp", "locate output", err)
	}
	for _, match := range matches {
		// yt-dlp leaves .part files behind on interrupted downloads.
		if strings.HasSuffix(match, ".part") || strings.HasSuffix(match, ".ytdl") {
			continue
		}
		return match, nil
	}
	return "", services.Wrap(services.ErrValidation, "downloading", "yt-dlp", "no output produced", nil)
}

func (s *YtdlpStrategy) buildArgs(mediaURL, destDir string) []string {
	format := "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"
	if s.cfg.MaxHeight > 0 {
		format = fmt.Sprintf(
			"bestvideo[ext=mp4][height<=%d]+bestaudio[ext=m4a]/best[ext=mp4][height<=%d]/best",
			s.cfg.MaxHeight, s.cfg.MaxHeight)
	}

	args := []string{
		"--no-playlist",
		"--no-progress",
		"--socket-timeout", strconv.Itoa(s.cfg.SocketTimeoutSeconds),
		"--retries", strconv.Itoa(s.cfg.Retries),
		"--fragment-retries", strconv.Itoa(s.cfg.FragmentRetries),
		"--file-access-retries", strconv.Itoa(s.cfg.FileAccessRetries),
		"-f", format,
		"-o", filepath.Join(destDir, ytdlpOutputStem+".%(ext)s"),
	}
	if s.cfg.RateLimit != "" {
		args = append(args, "--limit-rate", s.cfg.RateLimit)
	}
	if s.cfg.MaxFilesize != "" {
		args = append(args, "--max-filesize", s.cfg.MaxFilesize)
	}
	args = append(args, "--", mediaURL)
	return args
}

func (s *YtdlpStrategy) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
