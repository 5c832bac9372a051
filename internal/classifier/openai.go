package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const maxErrorBody = 512

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// OpenAIBackend calls an OpenAI-compatible chat completions endpoint.
type OpenAIBackend struct {
	httpClient  *http.Client
	url         string
	token       string
	model       string
	temperature float32
	log         *slog.Logger
}

// NewOpenAIBackend creates a backend posting to the full endpoint url.
// A nil httpClient uses http.DefaultClient; the timeout is applied per call by
// Client.
func NewOpenAIBackend(httpClient *http.Client, url, token, model string, temperature float32, log *slog.Logger) *OpenAIBackend {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = slog.Default()
	}
	return &OpenAIBackend{
		httpClient:  httpClient,
		url:         url,
		token:       token,
		model:       model,
		temperature: temperature,
		log:         log.With("component", "openai_backend"),
	}
}

// Complete sends one chat completion request and returns the first choice.
func (b *OpenAIBackend) Complete(ctx context.Context, system, user string) (string, error) {
	req, err := b.buildRequest(ctx, chatRequest{
		Model: b.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: b.temperature,
		Stream:      false,
	})
	if err != nil {
		return "", err
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("response has no choices")
	}

	b.log.DebugContext(ctx, "Chat completion received", "model", b.model, "length", len(out.Choices[0].Message.Content))
	return out.Choices[0].Message.Content, nil
}

func (b *OpenAIBackend) buildRequest(ctx context.Context, body chatRequest) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.token)
	return req, nil
}
