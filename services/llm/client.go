package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Backend names accepted by NewClient.
const (
	BackendGemini    = "gemini"
	BackendOpenAI    = "openai"
	BackendAnthropic = "anthropic"
	BackendOllama    = "ollama"
)

const defaultTimeout = 60 * time.Second

// ErrMissingAPIKey is returned when a hosted backend has no credential.
var ErrMissingAPIKey = errors.New("llm: api key is required")

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any LLM backend
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// Config selects and configures a backend. Credentials are injected by the
// caller; nothing in this package reads the environment.
type Config struct {
	Backend string        `yaml:"backend"`
	Model   string        `yaml:"model"`
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"-"`
	Timeout time.Duration `yaml:"timeout"`

	// HTTPClient overrides the transport of the HTTP based backends.
	HTTPClient *http.Client `yaml:"-"`
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// NewClient builds the configured backend. An empty Backend selects Gemini.
func NewClient(ctx context.Context, cfg Config) (LLMClient, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	slog.Info("Initializing LLM client", "backend", backend, "model", cfg.Model)
	switch backend {
	case "", BackendGemini:
		return NewGeminiClient(ctx, cfg)
	case BackendOpenAI:
		return NewOpenAIClient(cfg)
	case BackendAnthropic:
		return NewAnthropicClient(cfg)
	case BackendOllama:
		return NewOllamaClient(cfg)
	default:
		return nil, fmt.Errorf("unknown LLM backend %q", cfg.Backend)
	}
}
