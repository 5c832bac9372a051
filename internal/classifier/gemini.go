package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/genai"
)

var matchListSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"matches": {
			Type:        genai.TypeArray,
			Description: "Accepted messages. Empty when nothing matches.",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"id":      {Type: genai.TypeInteger, Description: "The message id exactly as given."},
					"summary": {Type: genai.TypeString, Description: "Short summary of the opening."},
				},
				Required: []string{"id", "summary"},
			},
		},
	},
	Required: []string{"matches"},
}

// GeminiBackend calls the Gemini API through the GenAI SDK.
type GeminiBackend struct {
	client      *genai.Client
	model       string
	temperature float32
	log         *slog.Logger
}

// NewGeminiBackend creates a Gemini backend authenticated with apiKey.
func NewGeminiBackend(ctx context.Context, apiKey, model string, temperature float32, log *slog.Logger) (*GeminiBackend, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	return newGeminiBackend(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}, model, temperature, log)
}

func newGeminiBackend(ctx context.Context, cc *genai.ClientConfig, model string, temperature float32, log *slog.Logger) (*GeminiBackend, error) {
	if log == nil {
		log = slog.Default()
	}

	gi, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	logger := log.With("component", "gemini_backend")
	logger.Info("Gemini backend initialized", "model", model)
	return &GeminiBackend{client: gi, model: model, temperature: temperature, log: logger}, nil
}

func (b *GeminiBackend) contentConfig(system string) *genai.GenerateContentConfig {
	temperature := b.temperature
	return &genai.GenerateContentConfig{
		Temperature:       &temperature,
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    matchListSchema,
	}
}

// Complete asks for a JSON answer constrained to the match list schema.
func (b *GeminiBackend) Complete(ctx context.Context, system, user string) (string, error) {
	cfg := b.contentConfig(system)
	contents := []*genai.Content{genai.NewContentFromText(user, genai.RoleUser)}

	resp, err := b.client.Models.GenerateContent(ctx, b.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("gemini returned no candidates")
	}

	text := resp.Text()
	b.log.DebugContext(ctx, "Gemini response received", "model", b.model, "length", len(text))
	return text, nil
}
