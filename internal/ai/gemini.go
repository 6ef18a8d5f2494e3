package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when the request names no Gemini model.
const DefaultGeminiModel = "gemini-1.5-flash"

// Gemini implements Provider with the Google Gemini API.
type Gemini struct {
	client      *genai.Client
	temperature float32
	maxTokens   int32
}

// NewGemini creates a Gemini client. Close it when done.
func NewGemini(ctx context.Context, apiKey string, temperature float64, maxTokens int) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gemini client: %w", err)
	}
	return &Gemini{client: client, temperature: float32(temperature), maxTokens: int32(maxTokens)}, nil
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Complete(ctx context.Context, request Request) (*Reply, error) {
	name := request.Model
	if !strings.HasPrefix(name, "gemini") {
		name = DefaultGeminiModel
	}

	model := g.client.GenerativeModel(name)
	model.SetTemperature(g.temperature)
	if g.maxTokens > 0 {
		model.SetMaxOutputTokens(g.maxTokens)
	}
	if request.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(request.System)}}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(request.Message))
	if err != nil {
		return nil, fmt.Errorf("ai/gemini: %w", err)
	}

	text := geminiText(resp)
	if text == "" {
		return nil, errors.New("ai/gemini: empty completion")
	}
	return &Reply{Text: text, Model: name, Usage: geminiUsage(resp)}, nil
}

// Close releases the underlying client.
func (g *Gemini) Close() error {
	return g.client.Close()
}

// geminiText joins the text parts of the first candidate.
func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return strings.TrimSpace(b.String())
}

func geminiUsage(resp *genai.GenerateContentResponse) Usage {
	if resp == nil || resp.UsageMetadata == nil {
		return Usage{}
	}
	return Usage{
		PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
		CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
	}
}
