// Package auth связывает вход в Pronote, серверные сессии и JWT токены
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Ultrahd-dev/pronote-assistant/internal/jwt"
	"github.com/Ultrahd-dev/pronote-assistant/internal/portal"
	"github.com/Ultrahd-dev/pronote-assistant/internal/session"
)

// ErrUnauthorized возвращается для отсутствующего, неверного или
// просроченного токена, а также для удаленной сессии
var ErrUnauthorized = errors.New("token invalide ou expiré")

// Result результат успешного входа
type Result struct {
	AccessToken string
	ExpiresIn   int // секунды
	Student     portal.Student
}

// Principal аутентифицированный запрос: сессия и ее ключ
type Principal struct {
	SessionToken string
	Session      *session.Data
}

// Service выполняет вход, проверку токенов и выход
type Service struct {
	connector portal.Connector
	sessions  *session.Manager
	tokens    *jwt.Manager
	logger    *slog.Logger
}

// NewService создает сервис аутентификации
func NewService(connector portal.Connector, sessions *session.Manager, tokens *jwt.Manager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{connector: connector, sessions: sessions, tokens: tokens, logger: logger}
}

// Login проверяет учетные данные на портале, создает сессию и выдает
// JWT. Для входа через ENT провайдер должен быть в списке portal.Providers.
func (s *Service) Login(ctx context.Context, creds portal.Credentials) (*Result, error) {
	if creds.Provider != "" {
		provider, ok := portal.LookupProvider(creds.Provider)
		if !ok {
			return nil, fmt.Errorf("%w: %s", portal.ErrUnknownProvider, creds.Provider)
		}
		creds.Provider = provider.ID
	}

	client, err := s.connector.Connect(ctx, creds)
	if err != nil {
		s.logger.Warn("portal login failed", "username", creds.Username, "ent", creds.Provider, "error", err)
		return nil, err
	}
	defer client.Close()
	student := client.Student()

	// Пароль хранится в сессии: библиотека портала не умеет
	// восстанавливать соединение, каждый запрос входит заново
	sessionToken, err := s.sessions.Create(ctx, session.Data{
		UserID:      creds.Username,
		Credentials: creds,
		Student:     student,
	})
	if err != nil {
		return nil, err
	}

	accessToken, err := s.tokens.GenerateToken(creds.Username, sessionToken)
	if err != nil {
		_ = s.sessions.Delete(ctx, sessionToken)
		return nil, err
	}

	s.logger.Info("user logged in", "username", creds.Username, "ent", creds.Provider)
	return &Result{
		AccessToken: accessToken,
		ExpiresIn:   int(s.tokens.Lifetime().Seconds()),
		Student:     student,
	}, nil
}

// Authenticate проверяет JWT и находит его сессию. Сессия продлевается.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*Principal, error) {
	claims, err := s.tokens.ParseToken(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	data, err := s.sessions.Get(ctx, claims.SessionToken)
	if errors.Is(err, session.ErrNotFound) {
		return nil, fmt.Errorf("%w: session inconnue", ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("session lookup: %w", err)
	}
	if data.UserID != claims.UserID {
		return nil, fmt.Errorf("%w: session d'un autre utilisateur", ErrUnauthorized)
	}

	return &Principal{SessionToken: claims.SessionToken, Session: data}, nil
}

// Logout удаляет сессию
func (s *Service) Logout(ctx context.Context, p *Principal) error {
	return s.sessions.Delete(ctx, p.SessionToken)
}

// Portal открывает соединение с порталом от имени сессии
func (s *Service) Portal(ctx context.Context, p *Principal) (portal.Client, error) {
	return s.connector.Connect(ctx, p.Session.Credentials)
}
