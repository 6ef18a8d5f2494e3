package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenRouterConfig configures an OpenRouter provider. Any API speaking
// the OpenAI chat completions format works.
type OpenRouterConfig struct {
	BaseURL     string
	APIKey      string
	Referer     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// OpenRouter implements Provider over /chat/completions.
type OpenRouter struct {
	httpClient *http.Client
	cfg        OpenRouterConfig
}

func NewOpenRouter(cfg OpenRouterConfig) *OpenRouter {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &OpenRouter{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
	}
}

func (p *OpenRouter) Name() string { return "openrouter" }

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openaiResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message openaiMessage `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

func (p *OpenRouter) Complete(ctx context.Context, request Request) (*Reply, error) {
	body, err := json.Marshal(openaiRequest{
		Model: request.Model,
		Messages: []openaiMessage{
			{Role: "system", Content: request.System},
			{Role: "user", Content: request.Message},
		},
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("ai/openrouter: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ai/openrouter: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	if p.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", p.cfg.Referer)
	}
	req.Header.Set("X-Title", "Assistant Pronote IA")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ai/openrouter: sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readProviderError(resp)
	}

	var wire openaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("ai/openrouter: decoding response: %w", err)
	}
	if len(wire.Choices) == 0 || strings.TrimSpace(wire.Choices[0].Message.Content) == "" {
		return nil, errors.New("ai/openrouter: empty completion")
	}

	model := wire.Model
	if model == "" {
		model = request.Model
	}
	return &Reply{
		Text:  strings.TrimSpace(wire.Choices[0].Message.Content),
		Model: model,
		Usage: wire.Usage,
	}, nil
}

// readProviderError reads {"error":{"message":...}} bodies, falling back
// to the raw body.
func readProviderError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var wire struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &wire) == nil && wire.Error.Message != "" {
		return &ProviderError{StatusCode: resp.StatusCode, Message: wire.Error.Message}
	}
	return &ProviderError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}
