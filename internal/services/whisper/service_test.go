package whisper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scribe/internal/config"
	"scribe/internal/services"
)

func writeTranscript(t *testing.T, dir, baseName string, payload string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, baseName+".json"), []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestTranscribeLoadsSegments(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "audio.wav")

	svc := NewService(config.Whisper{Model: "small", Language: "en"})
	var gotArgs []string
	svc.WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		if name != UVXCommand {
			t.Fatalf("binary = %q", name)
		}
		gotArgs = args
		writeTranscript(t, dir, "audio", `{"segments":[
			{"text":" Hello everyone. ","start":0,"end":2.5},
			{"text":"Let's begin.","start":2.5,"end":4}
		]}`)
		return nil
	})

	result, err := svc.Transcribe(context.Background(), source, dir)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if result.Text != "Hello everyone. Let's begin." {
		t.Fatalf("text = %q", result.Text)
	}
	if len(result.Segments) != 2 {
		t.Fatalf("segments = %d", len(result.Segments))
	}

	joined := strings.Join(gotArgs, " ")
	for _, want := range []string{"--model small", "--language en", "--output_format json"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args missing %q: %v", want, gotArgs)
		}
	}
}

func TestTranscribeUsesCPUDefaults(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(config.Whisper{})
	var gotArgs []string
	svc.WithCommandRunner(func(_ context.Context, _ string, args ...string) error {
		gotArgs = args
		writeTranscript(t, dir, "audio", `{"segments":[{"text":"x","start":0,"end":1}]}`)
		return nil
	})

	if _, err := svc.Transcribe(context.Background(), filepath.Join(dir, "audio.wav"), dir); err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	joined := strings.Join(gotArgs, " ")
	if !strings.Contains(joined, "--device cpu") || !strings.Contains(joined, "--compute_type int8") {
		t.Fatalf("expected cpu defaults: %v", gotArgs)
	}
	if !strings.Contains(joined, "--model "+DefaultModel) {
		t.Fatalf("expected default model: %v", gotArgs)
	}
}

func TestTranscribeRejectsEmptyTranscript(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(config.Whisper{})
	svc.WithCommandRunner(func(context.Context, string, ...string) error {
		writeTranscript(t, dir, "audio", `{"segments":[{"text":"  ","start":0,"end":1}]}`)
		return nil
	})

	_, err := svc.Transcribe(context.Background(), filepath.Join(dir, "audio.wav"), dir)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTranscribeWrapsToolFailure(t *testing.T) {
	svc := NewService(config.Whisper{})
	svc.WithCommandRunner(func(context.Context, string, ...string) error {
		return errors.New("exit status 2")
	})

	dir := t.TempDir()
	_, err := svc.Transcribe(context.Background(), filepath.Join(dir, "audio.wav"), dir)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}
