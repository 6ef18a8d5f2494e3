// Package session keeps the server side of a login: the portal
// credentials and profile behind a bearer token, sealed at rest and
// expiring after a sliding TTL.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Ultrahd-dev/pronote-assistant/internal/crypt"
	"github.com/Ultrahd-dev/pronote-assistant/internal/portal"
)

// ErrNotFound is returned for unknown, expired or unreadable sessions.
var ErrNotFound = errors.New("session not found")

// tokenBytes is the entropy of a session token.
const tokenBytes = 32

// Store persists sealed session payloads under their token.
type Store interface {
	// Set writes value with the given TTL, replacing any previous value.
	Set(ctx context.Context, token, value string, ttl time.Duration) error
	// Touch replaces the value and TTL of a live token only. It returns
	// ErrNotFound when the token is unknown, expired or deleted, and
	// never recreates it.
	Touch(ctx context.Context, token, value string, ttl time.Duration) error
	// Get returns ErrNotFound when the token is unknown or expired.
	Get(ctx context.Context, token string) (string, error)
	// Delete returns ErrNotFound when nothing was deleted.
	Delete(ctx context.Context, token string) error
	Ping(ctx context.Context) error
	Name() string
}

// Data is the session payload.
type Data struct {
	UserID       string             `json:"user_id"`
	Credentials  portal.Credentials `json:"credentials"`
	Student      portal.Student     `json:"student"`
	CreatedAt    time.Time          `json:"created_at"`
	LastActivity time.Time          `json:"last_activity"`
}

// Manager creates, reads and deletes sessions.
type Manager struct {
	store  Store
	sealer *crypt.Sealer
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewManager returns a Manager storing sessions in store for ttl after
// their last use.
func NewManager(store Store, sealer *crypt.Sealer, ttl time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, sealer: sealer, ttl: ttl, logger: logger, now: time.Now}
}

// Create stores data under a fresh random token and returns the token.
func (m *Manager) Create(ctx context.Context, data Data) (string, error) {
	token, err := crypt.RandomToken(tokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}

	now := m.now().UTC()
	data.CreatedAt = now
	data.LastActivity = now
	sealed, err := m.seal(&data)
	if err != nil {
		return "", err
	}
	if err := m.store.Set(ctx, token, sealed, m.ttl); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	m.logger.Info("session created", "user_id", data.UserID, "store", m.store.Name())
	return token, nil
}

// Get returns the session and extends its TTL. A session deleted while
// the request was in flight stays deleted.
func (m *Manager) Get(ctx context.Context, token string) (*Data, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	sealed, err := m.store.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	plain, err := m.sealer.Open(sealed)
	if err != nil {
		m.logger.Warn("unreadable session dropped", "error", err)
		_ = m.store.Delete(ctx, token)
		return nil, ErrNotFound
	}
	var data Data
	if err := json.Unmarshal(plain, &data); err != nil {
		m.logger.Warn("malformed session dropped", "error", err)
		_ = m.store.Delete(ctx, token)
		return nil, ErrNotFound
	}

	data.LastActivity = m.now().UTC()
	resealed, err := m.seal(&data)
	if err != nil {
		return nil, err
	}
	err = m.store.Touch(ctx, token, resealed, m.ttl)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	return &data, nil
}

// Delete removes the session. A missing session is not an error.
func (m *Manager) Delete(ctx context.Context, token string) error {
	err := m.store.Delete(ctx, token)
	if errors.Is(err, ErrNotFound) {
		m.logger.Info("logout of unknown session")
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	m.logger.Info("session deleted")
	return nil
}

// Ping checks the store.
func (m *Manager) Ping(ctx context.Context) error {
	return m.store.Ping(ctx)
}

// StoreName names the backing store.
func (m *Manager) StoreName() string {
	return m.store.Name()
}

// TTL is the idle lifetime of a session.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

func (m *Manager) seal(data *Data) (string, error) {
	plain, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	sealed, err := m.sealer.Seal(plain)
	if err != nil {
		return "", fmt.Errorf("seal session: %w", err)
	}
	return sealed, nil
}
