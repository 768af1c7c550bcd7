package actionpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"scribe/internal/services"
	"scribe/internal/taskstore"
)

const (
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultModel       = "gpt-4o"
	jsonResponseType   = "json_object"
	defaultHTTPTimeout = 120 * time.Second
)

// Client extracts action points from transcripts through an
// OpenAI-compatible chat completion API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the default API base (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimSpace(base)
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *Client) {
		model = strings.TrimSpace(model)
		if model != "" {
			c.model = model
		}
	}
}

// NewClient constructs an extraction client.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Extraction is the structured payload returned by the model.
type Extraction struct {
	ActionPoints  []taskstore.ActionPoint `json:"action_points"`
	ContextPoints []string                `json:"context_points"`
	Raw           string                  `json:"-"`
}

// Extract asks the model for the action and context points in transcript.
func (c *Client) Extract(ctx context.Context, transcript string) (Extraction, error) {
	var empty Extraction
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return empty, services.Wrap(services.ErrValidation, "extracting-action-points", "llm", "transcript required", nil)
	}
	if c.apiKey == "" {
		return empty, services.Wrap(services.ErrFatal, "extracting-action-points", "llm", "api key required", nil)
	}

	endpoint, err := url.JoinPath(c.baseURL, "/chat/completions")
	if err != nil {
		return empty, fmt.Errorf("action points: build url: %w", err)
	}
	encoded, err := json.Marshal(chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: ExtractionPrompt},
			{Role: "user", Content: transcript},
		},
		Temperature:    0,
		ResponseFormat: map[string]string{"type": jsonResponseType},
	})
	if err != nil {
		return empty, fmt.Errorf("action points: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return empty, fmt.Errorf("action points: request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, services.Wrap(services.ErrRetryable, "extracting-action-points", "llm", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, services.Wrap(services.ErrRetryable, "extracting-action-points", "llm", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		marker := services.ErrRetryable
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			marker = services.ErrFatal
		}
		return empty, services.Wrap(marker, "extracting-action-points", "llm",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return empty, fmt.Errorf("action points: decode response: %w", err)
	}
	if completion.Error != nil {
		return empty, fmt.Errorf("action points: api error: %s", strings.TrimSpace(completion.Error.Message))
	}
	if len(completion.Choices) == 0 {
		return empty, errors.New("action points: empty choices")
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return empty, errors.New("action points: empty content")
	}

	var parsed Extraction
	parsed.Raw = content
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return empty, services.Wrap(services.ErrValidation, "extracting-action-points", "llm", "parse payload", err)
	}
	parsed.normalize()
	return parsed, nil
}

func (e *Extraction) normalize() {
	cleaned := e.ActionPoints[:0]
	for _, point := range e.ActionPoints {
		point.Task = strings.TrimSpace(point.Task)
		point.Assignee = strings.TrimSpace(point.Assignee)
		point.Deadline = strings.TrimSpace(point.Deadline)
		point.Details = strings.TrimSpace(point.Details)
		if point.Task != "" {
			cleaned = append(cleaned, point)
		}
	}
	e.ActionPoints = cleaned

	contexts := e.ContextPoints[:0]
	for _, point := range e.ContextPoints {
		if point = strings.TrimSpace(point); point != "" {
			contexts = append(contexts, point)
		}
	}
	e.ContextPoints = contexts
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}
