package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"scribe/internal/services"
)

// FFmpegCommand is the default ffmpeg binary name.
const FFmpegCommand = "ffmpeg"

// Extractor converts downloaded media into mono 16kHz WAV audio suitable
// for transcription.
type Extractor struct {
	binary        string
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewExtractor creates an Extractor using the given ffmpeg binary.
func NewExtractor(binary string) *Extractor {
	if strings.TrimSpace(binary) == "" {
		binary = FFmpegCommand
	}
	return &Extractor{binary: binary}
}

// WithCommandRunner sets a custom command runner (for testing).
func (e *Extractor) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	e.commandRunner = runner
}

// Extract writes the audio track of source to dest. A partial output file
// is removed on failure so retries never see a truncated WAV.
func (e *Extractor) Extract(ctx context.Context, source, dest string) error {
	if strings.TrimSpace(source) == "" {
		return services.Wrap(services.ErrValidation, "extracting-audio", "ffmpeg", "source path required", nil)
	}
	if strings.TrimSpace(dest) == "" {
		return services.Wrap(services.ErrValidation, "extracting-audio", "ffmpeg", "dest path required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return services.Wrap(services.ErrRetryable, "extracting-audio", "ffmpeg", "ensure output dir", err)
	}

	args := BuildExtractArgs(source, dest)
	if err := e.run(ctx, e.binary, args...); err != nil {
		_ = os.Remove(dest)
		return services.Wrap(services.ErrExternalTool, "extracting-audio", "ffmpeg", "", err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return services.Wrap(services.ErrValidation, "extracting-audio", "ffmpeg", "output missing", err)
	}
	if info.Size() == 0 {
		_ = os.Remove(dest)
		return services.Wrap(services.ErrValidation, "extracting-audio", "ffmpeg", "output empty", nil)
	}
	return nil
}

// BuildExtractArgs constructs the ffmpeg arguments for audio extraction.
func BuildExtractArgs(source, dest string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", source,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", "16000",
		dest,
	}
}

func (e *Extractor) run(ctx context.Context, name string, args ...string) error {
	if e.commandRunner != nil {
		return e.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
