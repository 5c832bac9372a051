package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgard/jobsift/internal/config"
)

// Backend sends one system instruction and one user message to a model and
// returns its raw text answer.
type Backend interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Client classifies rendered batches with a fixed system instruction.
type Client struct {
	backend Backend
	system  string
	timeout time.Duration
	log     *slog.Logger
}

// NewClient wraps backend. A non-positive timeout disables the per-call bound.
func NewClient(backend Backend, system string, timeout time.Duration, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		backend: backend,
		system:  system,
		timeout: timeout,
		log:     log.With("component", "classifier"),
	}
}

// New builds a client for the configured backend.
func New(ctx context.Context, cfg config.ClassifierConfig, log *slog.Logger) (*Client, error) {
	var backend Backend
	switch cfg.Backend {
	case "openai":
		backend = NewOpenAIBackend(nil, cfg.URL, cfg.Token, cfg.Model, cfg.Temperature, log)
	case "gemini":
		gb, err := NewGeminiBackend(ctx, cfg.Token, cfg.Model, cfg.Temperature, log)
		if err != nil {
			return nil, err
		}
		backend = gb
	default:
		return nil, fmt.Errorf("unknown classifier backend %q", cfg.Backend)
	}
	return NewClient(backend, cfg.SystemInstruction, cfg.Timeout, log), nil
}

// Classify sends prompt and parses the answer. Backend errors, including the
// timeout, become TransportFailure; nothing is retried.
func (c *Client) Classify(ctx context.Context, prompt string) Result {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	startTime := time.Now()
	text, err := c.backend.Complete(ctx, c.system, prompt)
	duration := time.Since(startTime)
	if err != nil {
		c.log.ErrorContext(ctx, "Classifier request failed", "error", err, "duration_ms", duration.Milliseconds())
		return TransportFailure{Err: err}
	}

	result := Parse(text)
	switch r := result.(type) {
	case Matches:
		c.log.InfoContext(ctx, "Classifier answered", "matches", len(r.Items), "duration_ms", duration.Milliseconds())
	case Unparseable:
		c.log.WarnContext(ctx, "Classifier answer is not JSON", "raw_length", len(r.Raw), "duration_ms", duration.Milliseconds())
	}
	return result
}
