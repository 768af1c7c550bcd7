package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/hibiken/asynq"

	"scribe/internal/config"
	"scribe/internal/notifications"
	"scribe/internal/queue"
	"scribe/internal/services"
	"scribe/internal/taskstore"
)

type fakeCoordinator struct {
	claimOutcome taskstore.ClaimOutcome
	claimErr     error
	claims       []taskstore.Claim
	completed    map[string]*taskstore.Result
	failed       map[string]string
	completeErr  error
}

func newFakeCoordinator(outcome taskstore.ClaimOutcome) *fakeCoordinator {
	return &fakeCoordinator{
		claimOutcome: outcome,
		completed:    map[string]*taskstore.Result{},
		failed:       map[string]string{},
	}
}

func (f *fakeCoordinator) Claim(_ context.Context, _ string, claim taskstore.Claim) (taskstore.ClaimOutcome, error) {
	f.claims = append(f.claims, claim)
	return f.claimOutcome, f.claimErr
}

func (f *fakeCoordinator) Complete(_ context.Context, taskID string, result *taskstore.Result) error {
	if f.completeErr != nil {
		return f.completeErr
	}
	f.completed[taskID] = result
	return nil
}

func (f *fakeCoordinator) Fail(_ context.Context, taskID string, message string) error {
	f.failed[taskID] = message
	return nil
}

type fakeProcessor struct {
	result     *taskstore.Result
	err        error
	calls      int
	blockOnCtx bool
}

func (f *fakeProcessor) Process(ctx context.Context, _, _ string) (*taskstore.Result, error) {
	f.calls++
	if f.blockOnCtx {
		<-ctx.Done()
		return nil, errors.New("ffmpeg: signal: killed")
	}
	return f.result, f.err
}

type recordingNotifier struct {
	payloads []notifications.Payload
	urls     []string
}

func (r *recordingNotifier) NotifyResult(_ context.Context, url string, payload notifications.Payload) error {
	r.urls = append(r.urls, url)
	r.payloads = append(r.payloads, payload)
	return nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Queue.TaskTimeoutSeconds = 60
	return &cfg
}

func newAsynqTask(t *testing.T, message queue.TaskMessage) *asynq.Task {
	t.Helper()
	task, err := queue.NewTask(message)
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	return task
}

func validMessage() queue.TaskMessage {
	return queue.TaskMessage{
		TaskID:       "task-1",
		TaskSendTime: 1700000000,
		VideoURL:     "https://example.com/v.mp4",
		WebhookURL:   "https://example.com/hook",
	}
}

func TestHandleTaskCompletesClaimedTask(t *testing.T) {
	coordinator := newFakeCoordinator(taskstore.Claimed)
	processor := &fakeProcessor{result: &taskstore.Result{Transcription: "hi"}}
	notifier := &recordingNotifier{}
	w := New(testConfig(), coordinator, processor, notifier, nil)

	if err := w.HandleTask(context.Background(), newAsynqTask(t, validMessage())); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if processor.calls != 1 {
		t.Fatalf("processor calls = %d", processor.calls)
	}
	if coordinator.completed["task-1"] == nil {
		t.Fatal("task should be recorded completed")
	}
	if len(coordinator.claims) != 1 || coordinator.claims[0].WorkerID != w.WorkerID() {
		t.Fatalf("claims = %+v", coordinator.claims)
	}
	if len(notifier.payloads) != 1 || notifier.payloads[0].Status != "completed" {
		t.Fatalf("notifications = %+v", notifier.payloads)
	}
	if notifier.urls[0] != "https://example.com/hook" {
		t.Fatalf("webhook url = %q", notifier.urls[0])
	}
}

func TestHandleTaskSkipsAlreadyTaken(t *testing.T) {
	coordinator := newFakeCoordinator(taskstore.ClaimAlreadyTaken)
	processor := &fakeProcessor{}
	w := New(testConfig(), coordinator, processor, nil, nil)

	if err := w.HandleTask(context.Background(), newAsynqTask(t, validMessage())); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if processor.calls != 0 {
		t.Fatal("lost claim must not process")
	}
}

func TestHandleTaskSkipsUnknownTask(t *testing.T) {
	coordinator := newFakeCoordinator(taskstore.ClaimNotFound)
	processor := &fakeProcessor{}
	w := New(testConfig(), coordinator, processor, nil, nil)

	if err := w.HandleTask(context.Background(), newAsynqTask(t, validMessage())); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if processor.calls != 0 {
		t.Fatal("unknown task must not process")
	}
}

func TestHandleTaskReturnsErrorWhenClaimUnverifiable(t *testing.T) {
	coordinator := newFakeCoordinator(taskstore.ClaimNotFound)
	coordinator.claimErr = services.Wrap(services.ErrUnavailable, "claiming", "store", "down", nil)
	processor := &fakeProcessor{}
	w := New(testConfig(), coordinator, processor, nil, nil)

	err := w.HandleTask(context.Background(), newAsynqTask(t, validMessage()))
	if !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("expected unavailable error for broker retry, got %v", err)
	}
	if processor.calls != 0 {
		t.Fatal("must not process without a verified claim")
	}
}

func TestHandleTaskDropsMalformedMessage(t *testing.T) {
	coordinator := newFakeCoordinator(taskstore.Claimed)
	w := New(testConfig(), coordinator, &fakeProcessor{}, nil, nil)

	payload, _ := json.Marshal(map[string]string{"task_id": ""})
	err := w.HandleTask(context.Background(), asynq.NewTask(queue.TypeProcessVideo, payload))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
	if len(coordinator.claims) != 0 {
		t.Fatal("malformed message must not reach the store")
	}
}

func TestHandleTaskRecordsFailureAndAcks(t *testing.T) {
	coordinator := newFakeCoordinator(taskstore.Claimed)
	processor := &fakeProcessor{err: services.Wrap(services.ErrRetryable, "downloading", "", "all strategies exhausted", nil)}
	notifier := &recordingNotifier{}
	w := New(testConfig(), coordinator, processor, notifier, nil)

	if err := w.HandleTask(context.Background(), newAsynqTask(t, validMessage())); err != nil {
		t.Fatalf("failure should ack the delivery, got %v", err)
	}

	if coordinator.failed["task-1"] != "downloading: all strategies exhausted" {
		t.Fatalf("failure message = %q", coordinator.failed["task-1"])
	}
	if len(notifier.payloads) != 1 || notifier.payloads[0].Status != "failed" {
		t.Fatalf("notifications = %+v", notifier.payloads)
	}
	if notifier.payloads[0].Error == nil || *notifier.payloads[0].Error == "" {
		t.Fatal("failure payload must carry the error")
	}
	if notifier.payloads[0].Results != nil {
		t.Fatal("failure payload must have null results")
	}
}

func TestHandleTaskRecordsTimeoutSpecificError(t *testing.T) {
	coordinator := newFakeCoordinator(taskstore.Claimed)
	processor := &fakeProcessor{blockOnCtx: true}
	cfg := testConfig()
	cfg.Queue.TaskTimeoutSeconds = 1
	w := New(cfg, coordinator, processor, nil, nil)

	if err := w.HandleTask(context.Background(), newAsynqTask(t, validMessage())); err != nil {
		t.Fatalf("timed-out task should still ack, got %v", err)
	}

	recorded := coordinator.failed["task-1"]
	if !strings.Contains(recorded, "task timed out after 1s") {
		t.Fatalf("record must name the timeout, got %q", recorded)
	}
	if !strings.Contains(recorded, "ffmpeg") {
		t.Fatalf("record should keep the underlying cause, got %q", recorded)
	}
}

func TestHandleTaskPropagatesLostTerminalWrite(t *testing.T) {
	coordinator := newFakeCoordinator(taskstore.Claimed)
	coordinator.completeErr = services.Wrap(services.ErrUnavailable, "finalizing", "store", "gone", nil)
	w := New(testConfig(), coordinator, &fakeProcessor{result: &taskstore.Result{}}, nil, nil)

	err := w.HandleTask(context.Background(), newAsynqTask(t, validMessage()))
	if !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("expected propagated terminal failure, got %v", err)
	}
}

func TestWorkerIdentityIsStable(t *testing.T) {
	w := New(testConfig(), newFakeCoordinator(taskstore.Claimed), &fakeProcessor{result: &taskstore.Result{}}, nil, nil)
	if w.WorkerID() == "" {
		t.Fatal("worker id must be set")
	}

	coordinator := newFakeCoordinator(taskstore.ClaimAlreadyTaken)
	w2 := New(testConfig(), coordinator, &fakeProcessor{}, nil, nil)
	_ = w2.HandleTask(context.Background(), newAsynqTask(t, validMessage()))
	_ = w2.HandleTask(context.Background(), newAsynqTask(t, validMessage()))
	if coordinator.claims[0].WorkerID != coordinator.claims[1].WorkerID {
		t.Fatal("worker id must not change between deliveries")
	}
}
