package queue

import (
	"testing"

	"github.com/hibiken/asynq"
)

func validMessage() TaskMessage {
	return TaskMessage{
		TaskID:       "abc-123",
		TaskSendTime: 1700000000,
		VideoURL:     "https://example.com/talk.mp4",
		WebhookURL:   "https://example.com/hook",
	}
}

func TestRoundTrip(t *testing.T) {
	task, err := NewTask(validMessage())
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if task.Type() != TypeProcessVideo {
		t.Fatalf("type = %s", task.Type())
	}

	parsed, err := ParseTask(task)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != validMessage() {
		t.Fatalf("parsed = %+v", parsed)
	}
}

func TestValidateRejectsBadMessages(t *testing.T) {
	cases := map[string]func(*TaskMessage){
		"missing task id":   func(m *TaskMessage) { m.TaskID = "" },
		"missing send time": func(m *TaskMessage) { m.TaskSendTime = 0 },
		"missing url":       func(m *TaskMessage) { m.VideoURL = "" },
		"relative url":      func(m *TaskMessage) { m.VideoURL = "/just/a/path" },
		"no scheme":         func(m *TaskMessage) { m.VideoURL = "example.com/talk.mp4" },
	}
	for name, mutate := range cases {
		message := validMessage()
		mutate(&message)
		if err := message.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestParseRejectsMalformedPayload(t *testing.T) {
	task := asynq.NewTask(TypeProcessVideo, []byte("not json"))
	if _, err := ParseTask(task); err == nil {
		t.Fatal("expected decode error")
	}
}
