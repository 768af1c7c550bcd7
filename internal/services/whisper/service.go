package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"scribe/internal/config"
	"scribe/internal/services"
)

// UVXCommand launches whisperx through uvx so no Python environment needs
// to be managed by hand.
const UVXCommand = "uvx"

const (
	// DefaultModel balances speed and accuracy for meeting-style audio.
	DefaultModel = "base"

	cpuDevice      = "cpu"
	cudaDevice     = "cuda"
	cpuComputeType = "int8"
	outputFormat   = "json"
	batchSize      = "8"
)

// Service transcribes audio files with WhisperX.
type Service struct {
	cfg           config.Whisper
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a transcription service from configuration.
func NewService(cfg config.Whisper) *Service {
	return &Service{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

// Result contains the output of a transcription.
type Result struct {
	// Text is the full transcription as plain text.
	Text string
	// Segments carries the timed segments from the WhisperX output.
	Segments []Segment
	// JSONPath is the path of the raw WhisperX JSON file.
	JSONPath string
}

// Transcribe runs WhisperX over the audio file and loads the produced
// transcript. The source should be a mono 16kHz WAV.
func (s *Service) Transcribe(ctx context.Context, source, outputDir string) (Result, error) {
	var result Result

	if strings.TrimSpace(source) == "" {
		return result, services.Wrap(services.ErrValidation, "transcribing", "whisperx", "source path required", nil)
	}
	if outputDir == "" {
		outputDir = filepath.Dir(source)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return result, services.Wrap(services.ErrRetryable, "transcribing", "whisperx", "ensure output dir", err)
	}

	args := s.buildArgs(source, outputDir)
	if err := s.run(ctx, UVXCommand, args...); err != nil {
		return result, services.Wrap(services.ErrExternalTool, "transcribing", "whisperx", "", err)
	}

	baseName := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	result.JSONPath = filepath.Join(outputDir, baseName+".json")

	segments, err := LoadSegments(result.JSONPath)
	if err != nil {
		return result, services.Wrap(services.ErrValidation, "transcribing", "whisperx", "load transcript", err)
	}
	result.Segments = segments
	result.Text = joinSegmentText(segments)

	if strings.TrimSpace(result.Text) == "" {
		return result, services.Wrap(services.ErrValidation, "transcribing", "whisperx", "empty transcript", nil)
	}
	return result, nil
}

func (s *Service) buildArgs(source, outputDir string) []string {
	args := []string{
		"whisperx",
		source,
		"--model", s.Model(),
		"--batch_size", batchSize,
		"--output_dir", outputDir,
		"--output_format", outputFormat,
	}
	if lang := strings.TrimSpace(s.cfg.Language); lang != "" {
		args = append(args, "--language", lang)
	}
	if s.cfg.CUDAEnabled {
		args = append(args, "--device", cudaDevice)
	} else {
		args = append(args, "--device", cpuDevice, "--compute_type", cpuComputeType)
	}
	return args
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Segment is one transcribed span with timing.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type whisperPayload struct {
	Segments []Segment `json:"segments"`
}

// LoadSegments reads segments from a WhisperX JSON file.
func LoadSegments(jsonPath string) ([]Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var payload whisperPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	return payload.Segments, nil
}

func joinSegmentText(segments []Segment) string {
	var parts []string
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
