package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"scribe/internal/fileutil"
	"scribe/internal/logging"
	"scribe/internal/retrieval"
	"scribe/internal/services"
	"scribe/internal/services/actionpoints"
	"scribe/internal/services/whisper"
	"scribe/internal/taskstore"
)

// Stage names appear in logs and in failure messages persisted to the
// task record.
const (
	StageDownloading            = "downloading"
	StageExtractingAudio        = "extracting-audio"
	StageTranscribing           = "transcribing"
	StageExtractingActionPoints = "extracting-action-points"
)

// Retriever downloads the media URL into the workspace.
type Retriever interface {
	Retrieve(ctx context.Context, mediaURL, destDir string) (retrieval.Outcome, error)
}

// AudioExtractor produces transcription-ready audio from a media file.
type AudioExtractor interface {
	Extract(ctx context.Context, source, dest string) error
}

// Transcriber turns an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, source, outputDir string) (whisper.Result, error)
}

// PointExtractor pulls action points from a transcript.
type PointExtractor interface {
	Extract(ctx context.Context, transcript string) (actionpoints.Extraction, error)
}

// Pipeline runs the processing stages for one task: download, audio
// extraction, transcription, action point extraction. The first stage
// failure aborts the rest. The task workspace is removed regardless of
// outcome.
type Pipeline struct {
	scratchDir  string
	retriever   Retriever
	audio       AudioExtractor
	transcriber Transcriber
	points      PointExtractor
	logger      *slog.Logger
}

// New assembles a pipeline.
func New(scratchDir string, retriever Retriever, audio AudioExtractor, transcriber Transcriber, points PointExtractor, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		scratchDir:  scratchDir,
		retriever:   retriever,
		audio:       audio,
		transcriber: transcriber,
		points:      points,
		logger:      logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Process runs all stages for the task and returns the assembled result.
func (p *Pipeline) Process(ctx context.Context, taskID, mediaURL string) (*taskstore.Result, error) {
	ctx = services.WithTaskID(ctx, taskID)

	workspace, err := fileutil.CreateTaskWorkspace(p.scratchDir, taskID)
	if err != nil {
		return nil, services.Wrap(services.ErrRetryable, StageDownloading, "workspace", "", err)
	}
	defer func() {
		if err := fileutil.RemoveWorkspace(workspace); err != nil {
			p.logger.Warn("workspace cleanup failed",
				logging.String(logging.FieldTaskID, taskID),
				logging.Error(err))
		}
	}()

	mediaPath, err := p.runDownload(ctx, mediaURL, workspace)
	if err != nil {
		return nil, err
	}

	audioPath := filepath.Join(workspace, "audio.wav")
	if err := p.runStage(ctx, StageExtractingAudio, func(ctx context.Context) error {
		return p.audio.Extract(ctx, mediaPath, audioPath)
	}); err != nil {
		return nil, err
	}

	var transcript whisper.Result
	if err := p.runStage(ctx, StageTranscribing, func(ctx context.Context) error {
		var err error
		transcript, err = p.transcriber.Transcribe(ctx, audioPath, workspace)
		return err
	}); err != nil {
		return nil, err
	}

	var extraction actionpoints.Extraction
	if err := p.runStage(ctx, StageExtractingActionPoints, func(ctx context.Context) error {
		var err error
		extraction, err = p.points.Extract(ctx, transcript.Text)
		return err
	}); err != nil {
		return nil, err
	}

	return &taskstore.Result{
		Transcription:   transcript.Text,
		ActionPoints:    extraction.ActionPoints,
		ContextPoints:   extraction.ContextPoints,
		FormattedOutput: actionpoints.Format(extraction),
	}, nil
}

func (p *Pipeline) runDownload(ctx context.Context, mediaURL, workspace string) (string, error) {
	stageCtx := services.WithStage(ctx, StageDownloading)
	logger := logging.WithContext(stageCtx, p.logger)
	logger.Info("stage start", logging.String(logging.FieldURL, mediaURL))
	start := time.Now()

	outcome, err := p.retriever.Retrieve(stageCtx, mediaURL, workspace)
	if err != nil {
		logger.Error("stage failed", logging.Error(err))
		return "", err
	}

	logger.Info("stage done",
		logging.String("strategy", outcome.Strategy),
		logging.String(logging.FieldDuration, time.Since(start).Round(time.Millisecond).String()))
	return outcome.Path, nil
}

func (p *Pipeline) runStage(ctx context.Context, stage string, fn func(ctx context.Context) error) error {
	stageCtx := services.WithStage(ctx, stage)
	logger := logging.WithContext(stageCtx, p.logger)
	logger.Info("stage start")
	start := time.Now()

	if err := fn(stageCtx); err != nil {
		logger.Error("stage failed", logging.Error(err))
		return err
	}

	logger.Info("stage done",
		logging.String(logging.FieldDuration, time.Since(start).Round(time.Millisecond).String()))
	return nil
}
