package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFatal marks failures no retry can recover (unresolvable host,
	// malformed input). The retrieval chain short-circuits on these.
	ErrFatal = errors.New("fatal error")
	// ErrRetryable marks failures worth another strategy or round.
	ErrRetryable = errors.New("retryable failure")
	// ErrExternalTool marks subprocess failures (yt-dlp, ffmpeg, whisperx).
	ErrExternalTool = errors.New("external tool error")
	// ErrValidation marks produced artifacts that failed inspection.
	ErrValidation = errors.New("validation error")
	// ErrTimeout marks wall-clock budget exhaustion.
	ErrTimeout = errors.New("timeout")
	// ErrUnavailable marks an unreachable backing store or broker.
	ErrUnavailable = errors.New("store unavailable")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrRetryable
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatal reports whether err should abort the retrieval chain outright.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// Details extracts the human-readable portion of a wrapped service error,
// stripping the sentinel prefix so terminal records read cleanly.
type ErrorDetails struct {
	Message string
}

// Details returns the message portion of err for terminal records.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	msg := err.Error()
	for _, sentinel := range []error{ErrFatal, ErrRetryable, ErrExternalTool, ErrValidation, ErrTimeout, ErrUnavailable} {
		prefix := sentinel.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			msg = strings.TrimPrefix(msg, prefix)
			break
		}
	}
	return ErrorDetails{Message: strings.TrimSpace(msg)}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
