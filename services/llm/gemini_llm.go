package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiClient generates text through Google's Gemini API.
type GeminiClient struct {
	model llms.Model
	name  string
}

func NewGeminiClient(ctx context.Context, cfg Config) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		slog.Warn("Gemini API key is missing.")
		return nil, fmt.Errorf("gemini: %w", ErrMissingAPIKey)
	}
	name := cfg.Model
	if name == "" {
		name = defaultGeminiModel
	}
	model, err := googleai.New(ctx,
		googleai.WithAPIKey(cfg.APIKey),
		googleai.WithDefaultModel(name),
	)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{model: model, name: name}, nil
}

// NewGeminiClientWithModel wraps an existing langchaingo model.
func NewGeminiClientWithModel(model llms.Model, name string) *GeminiClient {
	return &GeminiClient{model: model, name: name}
}

// Generate implements the LLMClient interface
func (g *GeminiClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	slog.Debug("Generating text via Gemini", "model", g.name)

	var opts []llms.CallOption
	if params.Temperature != nil {
		opts = append(opts, llms.WithTemperature(float64(*params.Temperature)))
	}
	if params.TopK != nil {
		opts = append(opts, llms.WithTopK(*params.TopK))
	}
	if params.TopP != nil {
		opts = append(opts, llms.WithTopP(float64(*params.TopP)))
	}
	if params.MaxTokens != nil {
		opts = append(opts, llms.WithMaxTokens(*params.MaxTokens))
	}
	if len(params.Stop) > 0 {
		opts = append(opts, llms.WithStopWords(params.Stop))
	}

	text, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt, opts...)
	if err != nil {
		slog.Error("Gemini API call failed", "error", err)
		return "", fmt.Errorf("Gemini API call failed: %w", err)
	}
	return text, nil
}
