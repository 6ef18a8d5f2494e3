// Package ai talks to the language model that answers chat messages.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Request is one chat turn.
type Request struct {
	Model   string
	System  string
	Message string
}

// Usage is the token accounting reported by the provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Reply is the model's answer.
type Reply struct {
	Text  string
	Model string
	Usage Usage
}

// Provider completes chat requests.
type Provider interface {
	Complete(ctx context.Context, request Request) (*Reply, error)
	Name() string
}

// ProviderError is returned when the upstream API answers with an error.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (err *ProviderError) Error() string {
	return fmt.Sprintf("ai: HTTP %d: %s", err.StatusCode, err.Message)
}

// SystemPrompt is the instruction given to the model for a student.
func SystemPrompt(studentName string) string {
	if strings.TrimSpace(studentName) == "" {
		studentName = "l'élève"
	}
	return fmt.Sprintf(`Tu es un assistant pédagogique intelligent qui aide %s.
Tu as accès à ses données scolaires Pronote et tu dois répondre de manière claire, concise et utile.
Analyse le contexte fourni et réponds de façon pertinente, en français.
Si une information ne figure pas dans le contexte, dis-le au lieu de l'inventer.`, studentName)
}

// UserTurn renders the message followed by its context as indented JSON.
// An empty context is omitted.
func UserTurn(message string, payload map[string]any) string {
	if len(payload) == 0 {
		return message
	}
	rendered, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return message
	}
	return message + "\n\nContexte:\n" + string(rendered)
}
