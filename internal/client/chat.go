package client

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// FallbackReply is shown instead of any chat failure.
const FallbackReply = "Désolé, je n'ai pas pu répondre pour le moment. Réessayez dans un instant."

type chatRequest struct {
	Message string `json:"message"`
	Context any    `json:"context"`
	Model   string `json:"model"`
}

type chatResponse struct {
	Success  bool    `json:"success"`
	Response *string `json:"response"`
}

// SendChatMessage forwards text and the caller-assembled payload to the
// AI endpoint and returns the assistant's reply. Failures become
// FallbackReply so the conversation never shows a raw error; the only
// error returned after the request is sent is ErrSessionExpired.
func (c *Client) SendChatMessage(ctx context.Context, text string, payload any) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", invalidInput("message vide")
	}

	raw, err := c.transport.Do(ctx, pathChat, RequestOptions{Body: chatRequest{
		Message: text,
		Context: payload,
		Model:   c.model,
	}})
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return "", err
		}
		c.logger.Warn("chat request failed", "kind", KindOf(err), "error", err)
		return FallbackReply, nil
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil || !resp.Success || resp.Response == nil {
		c.logger.Warn("unexpected chat response", "error", err)
		return FallbackReply, nil
	}
	return *resp.Response, nil
}
