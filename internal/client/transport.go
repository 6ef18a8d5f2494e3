package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// maxResponseSize limits response body reads.
const maxResponseSize = 10 * 1024 * 1024

// RequestOptions describes one call. Method defaults to GET, or POST when
// Body is set.
type RequestOptions struct {
	Method  string
	Body    any
	Headers map[string]string
	Query   url.Values
}

// Transport issues JSON requests against the backend and classifies the
// failures. It reads the token store on every call and clears it on 401.
type Transport struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenStore
	logger     *slog.Logger
}

// NewTransport creates a transport for baseURL (scheme and host, optional
// path prefix). A nil httpClient means http.DefaultClient.
func NewTransport(baseURL string, tokens TokenStore, httpClient *http.Client, logger *slog.Logger) *Transport {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		tokens:     tokens,
		logger:     logger,
	}
}

// Do performs the request and returns the raw JSON body of a 2xx answer.
func (t *Transport) Do(ctx context.Context, path string, opts RequestOptions) (json.RawMessage, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
		if opts.Body != nil {
			method = http.MethodPost
		}
	}

	target := t.baseURL + path
	if len(opts.Query) > 0 {
		target += "?" + opts.Query.Encode()
	}

	var body io.Reader
	if opts.Body != nil {
		payload, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}
	// Set after the extra headers so a caller cannot inject a second token.
	if token, ok := t.tokens.Load(); ok && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		req.Header.Del("Authorization")
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.logger.Warn("backend unreachable", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrNetworkUnavailable, err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		t.tokens.Clear()
		t.logger.Info("session rejected by backend, token cleared", "path", path)
		return nil, ErrSessionExpired
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &RequestFailedError{
			Status:  resp.StatusCode,
			Message: errorMessage(resp.StatusCode, raw),
		}
	case len(raw) > maxResponseSize:
		t.logger.Warn("oversized response discarded", "method", method, "path", path, "status", resp.StatusCode)
		return nil, ErrResponseTooLarge
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(raw), nil
}

// errorMessage extracts a readable message from a JSON error body.
func errorMessage(status int, raw []byte) string {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err == nil {
		for _, field := range []string{"detail", "error", "message"} {
			if text, ok := body[field].(string); ok && strings.TrimSpace(text) != "" {
				return text
			}
		}
	}
	return fmt.Sprintf("HTTP %d", status)
}
