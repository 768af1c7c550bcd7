package retrieval

import (
	"context"
	"fmt"
	"os"

	"scribe/internal/media/ffprobe"
	"scribe/internal/services"
)

// minDurationSeconds rejects zero-length containers that some hosts serve
// for unavailable media.
const minDurationSeconds = 0.1

// ProbeFunc inspects a media file. It exists so tests can validate without
// a real ffprobe binary.
type ProbeFunc func(ctx context.Context, path string) (ffprobe.Result, error)

// Validator checks that a downloaded file is actually usable media with an
// audio track to transcribe.
type Validator struct {
	probe ProbeFunc
}

// NewValidator builds a Validator that shells out to the given ffprobe
// binary.
func NewValidator(ffprobeBinary string) *Validator {
	return &Validator{
		probe: func(ctx context.Context, path string) (ffprobe.Result, error) {
			return ffprobe.Inspect(ctx, ffprobeBinary, path)
		},
	}
}

// NewValidatorWithProbe builds a Validator around a custom probe (for
// testing).
func NewValidatorWithProbe(probe ProbeFunc) *Validator {
	return &Validator{probe: probe}
}

// Validate inspects path and returns a validation error when the file is
// not transcribable media.
func (v *Validator) Validate(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return services.Wrap(services.ErrValidation, "downloading", "validate", "file missing", err)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrValidation, "downloading", "validate", "file empty", nil)
	}

	result, err := v.probe(ctx, path)
	if err != nil {
		return services.Wrap(services.ErrValidation, "downloading", "validate", "not parseable media", err)
	}
	if duration := result.DurationSeconds(); duration <= minDurationSeconds {
		return services.Wrap(services.ErrValidation, "downloading", "validate",
			fmt.Sprintf("duration %.2fs too short", duration), nil)
	}
	if result.AudioStreamCount() == 0 {
		return services.Wrap(services.ErrValidation, "downloading", "validate", "no audio stream", nil)
	}
	return nil
}
