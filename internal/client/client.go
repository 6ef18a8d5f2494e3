// Package client is the front-end core of the Pronote assistant: it keeps
// the bearer token of the current session, talks to the backend over JSON
// and turns every answer into either display data or a classified error.
//
// A Client is safe for concurrent use. Concurrent calls are independent
// and unordered; the only shared state is the token store, which every
// request reads and a 401 clears.
package client

import (
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Backend endpoints.
const (
	pathLoginDirect    = "/api/auth/login/direct"
	pathLoginFederated = "/api/auth/login/cas"
	pathLogout         = "/api/auth/logout"
	pathHomework       = "/api/pronote/homework"
	pathTimetable      = "/api/pronote/timetable"
	pathGrades         = "/api/pronote/grades"
	pathChat           = "/api/ai/chat"
	pathProviders      = "/api/ents"
	pathHealth         = "/api/health"
)

// DefaultModel is the AI model identifier sent with chat messages.
const DefaultModel = "deepseek/deepseek-r1:free"

// Client bundles the transport, the token store and the session state.
type Client struct {
	transport *Transport
	tokens    TokenStore
	model     string
	logger    *slog.Logger

	mu      sync.RWMutex
	student *Student
}

type options struct {
	tokens     TokenStore
	httpClient *http.Client
	model      string
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*options)

// WithTokenStore replaces the default in-memory token store.
func WithTokenStore(tokens TokenStore) Option {
	return func(o *options) { o.tokens = tokens }
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *options) { o.httpClient = httpClient }
}

// WithTimeout sets the HTTP client timeout. It replaces any client set
// with WithHTTPClient.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) { o.httpClient = &http.Client{Timeout: timeout} }
}

// WithModel sets the AI model identifier sent with chat messages.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New creates a Client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	o := options{model: DefaultModel}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tokens == nil {
		o.tokens = NewMemoryTokenStore()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.model == "" {
		o.model = DefaultModel
	}
	return &Client{
		transport: NewTransport(baseURL, o.tokens, o.httpClient, o.logger),
		tokens:    o.tokens,
		model:     o.model,
		logger:    o.logger,
	}
}

// Tokens returns the token store used by the client.
func (c *Client) Tokens() TokenStore {
	return c.tokens
}

// Transport returns the underlying transport.
func (c *Client) Transport() *Transport {
	return c.transport
}
