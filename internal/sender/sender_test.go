package sender

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"

	"scribe/internal/config"
	"scribe/internal/queue"
	"scribe/internal/taskstore"
)

type fakeStore struct {
	taskstore.Store
	created   []*taskstore.TaskRecord
	createErr error
	terminals map[string]taskstore.Terminal
}

func newFakeStore() *fakeStore {
	return &fakeStore{terminals: map[string]taskstore.Terminal{}}
}

func (f *fakeStore) Create(_ context.Context, record *taskstore.TaskRecord) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, record)
	return nil
}

func (f *fakeStore) RecordTerminal(_ context.Context, taskID string, terminal taskstore.Terminal) error {
	f.terminals[taskID] = terminal
	return nil
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	return &asynq.TaskInfo{}, nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	return &cfg
}

func TestSendCreatesRecordAndEnqueues(t *testing.T) {
	store := newFakeStore()
	enqueuer := &fakeEnqueuer{}
	s := New(testConfig(), store, enqueuer, nil)

	taskID, err := s.Send(context.Background(), "https://example.com/v.mp4", "https://example.com/hook")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if taskID == "" {
		t.Fatal("task id must be returned")
	}

	if len(store.created) != 1 {
		t.Fatalf("created = %d records", len(store.created))
	}
	record := store.created[0]
	if record.TaskID != taskID || record.Status != taskstore.StatusSent {
		t.Fatalf("record = %+v", record)
	}
	if record.SendTime <= 0 {
		t.Fatal("send time must be set")
	}

	if len(enqueuer.tasks) != 1 {
		t.Fatalf("enqueued = %d tasks", len(enqueuer.tasks))
	}
	message, err := queue.ParseTask(enqueuer.tasks[0])
	if err != nil {
		t.Fatalf("parse enqueued task: %v", err)
	}
	if message.TaskID != taskID || message.VideoURL != "https://example.com/v.mp4" {
		t.Fatalf("message = %+v", message)
	}
	if message.TaskSendTime != record.SendTime {
		t.Fatal("message send time must match the record")
	}
}

func TestSendRejectsBadURL(t *testing.T) {
	s := New(testConfig(), newFakeStore(), &fakeEnqueuer{}, nil)
	for _, bad := range []string{"", "not a url", "/relative/path", "example.com/v"} {
		if _, err := s.Send(context.Background(), bad, ""); err == nil {
			t.Errorf("url %q should be rejected", bad)
		}
	}
}

func TestSendStopsWhenCreateFails(t *testing.T) {
	store := newFakeStore()
	store.createErr = errors.New("disk full")
	enqueuer := &fakeEnqueuer{}
	s := New(testConfig(), store, enqueuer, nil)

	if _, err := s.Send(context.Background(), "https://example.com/v", ""); err == nil {
		t.Fatal("expected error")
	}
	if len(enqueuer.tasks) != 0 {
		t.Fatal("must not enqueue without a record")
	}
}

func TestSendMarksRecordFailedWhenEnqueueFails(t *testing.T) {
	store := newFakeStore()
	enqueuer := &fakeEnqueuer{err: errors.New("broker down")}
	s := New(testConfig(), store, enqueuer, nil)

	_, err := s.Send(context.Background(), "https://example.com/v", "")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(store.created) != 1 {
		t.Fatal("record should have been created first")
	}
	terminal, ok := store.terminals[store.created[0].TaskID]
	if !ok {
		t.Fatal("unenqueued record should be marked failed")
	}
	if terminal.Status != taskstore.StatusFailed {
		t.Fatalf("terminal status = %s", terminal.Status)
	}
}
