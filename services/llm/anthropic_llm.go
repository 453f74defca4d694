package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/awnumar/memguard"
)

const (
	anthropicAPIVersion   = "2023-06-01"
	defaultAnthropicURL   = "https://api.anthropic.com/v1/messages"
	defaultAnthropicModel = "claude-3-5-sonnet-20240620"
	defaultMaxTokens      = 4096
)

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float32           `json:"temperature,omitempty"`
	TopP        *float32           `json:"top_p,omitempty"`
	TopK        *int               `json:"top_k,omitempty"`
	StopSeqs    []string           `json:"stop_sequences,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID      string             `json:"id"`
	Type    string             `json:"type"`
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
	Error   *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// --- Client Implementation ---

// AnthropicClient calls the Messages API over plain HTTP. The API key is
// sealed in a memguard enclave and only opened for the duration of a request.
type AnthropicClient struct {
	httpClient *http.Client
	apiKey     *memguard.Enclave
	model      string
	url        string
}

func NewAnthropicClient(cfg Config) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		slog.Warn("Anthropic API Key is missing.")
		return nil, fmt.Errorf("anthropic: %w", ErrMissingAPIKey)
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
		slog.Info("Anthropic model not set, defaulting to", "model", model)
	}
	url := defaultAnthropicURL
	if cfg.BaseURL != "" {
		url = strings.TrimSuffix(cfg.BaseURL, "/") + "/v1/messages"
	}

	return &AnthropicClient{
		httpClient: cfg.httpClient(),
		apiKey:     memguard.NewEnclave([]byte(cfg.APIKey)),
		model:      model,
		url:        url,
	}, nil
}

// Generate implements the LLMClient interface
func (a *AnthropicClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	reqPayload := anthropicRequest{
		Model:       a.model,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
		MaxTokens:   defaultMaxTokens,
		Temperature: params.Temperature,
		TopP:        params.TopP,
		TopK:        params.TopK,
		StopSeqs:    params.Stop,
	}
	if params.MaxTokens != nil {
		reqPayload.MaxTokens = *params.MaxTokens
	}

	reqBodyBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewBuffer(reqBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	key, err := a.apiKey.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open api key enclave: %w", err)
	}
	req.Header.Set("x-api-key", key.String())
	key.Destroy()
	req.Header.Set("anthropic-version", anthropicAPIVersion)
	req.Header.Set("content-type", "application/json")

	slog.Debug("Sending REST request to Anthropic", "model", a.model)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	slog.Debug("Raw Anthropic Response", "status", resp.StatusCode, "body_length", len(bodyBytes))

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic API returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return "", fmt.Errorf("failed to parse response JSON: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("anthropic API error: %s - %s", apiResp.Error.Type, apiResp.Error.Message)
	}

	var finalText strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			finalText.WriteString(block.Text)
		}
	}
	if finalText.Len() == 0 {
		return "", fmt.Errorf("received no text content from Anthropic")
	}
	return finalText.String(), nil
}
