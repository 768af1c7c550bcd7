package notifications

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"scribe/internal/config"
	"scribe/internal/taskstore"
)

func TestNotifyResultPostsSuccessPayload(t *testing.T) {
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %s", ct)
		}
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := NewService(config.Webhook{RequestTimeoutSeconds: 5}, nil)
	payload := SuccessPayload("job-1", &taskstore.Result{
		Transcription: "hello",
		ActionPoints:  []taskstore.ActionPoint{{Task: "do it"}},
	})
	if err := svc.NotifyResult(context.Background(), server.URL, payload); err != nil {
		t.Fatalf("notify: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded["job_id"] != "job-1" || decoded["status"] != "completed" {
		t.Fatalf("body = %v", decoded)
	}
	if decoded["error"] != nil {
		t.Fatalf("error should be null, got %v", decoded["error"])
	}
	if decoded["results"] == nil {
		t.Fatal("results should be present")
	}
}

func TestNotifyResultPostsFailurePayload(t *testing.T) {
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
	}))
	defer server.Close()

	svc := NewService(config.Webhook{}, nil)
	if err := svc.NotifyResult(context.Background(), server.URL, FailurePayload("job-2", "downloading: all strategies exhausted")); err != nil {
		t.Fatalf("notify: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded["status"] != "failed" {
		t.Fatalf("status = %v", decoded["status"])
	}
	if decoded["results"] != nil {
		t.Fatalf("results should be null, got %v", decoded["results"])
	}
	if decoded["error"] != "downloading: all strategies exhausted" {
		t.Fatalf("error = %v", decoded["error"])
	}
}

func TestNotifyResultRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	svc := NewService(config.Webhook{}, nil)
	if err := svc.NotifyResult(context.Background(), server.URL, FailurePayload("job-3", "x")); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestNotifyResultSkipsEmptyURL(t *testing.T) {
	svc := NewService(config.Webhook{}, nil)
	if err := svc.NotifyResult(context.Background(), "  ", SuccessPayload("job-4", nil)); err != nil {
		t.Fatalf("empty url should be a no-op: %v", err)
	}
}

func TestNoopService(t *testing.T) {
	if err := NewNoopService().NotifyResult(context.Background(), "https://example.com", Payload{}); err != nil {
		t.Fatalf("noop: %v", err)
	}
}
