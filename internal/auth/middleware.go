package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// Ключи для хранения данных в контексте HTTP запроса
type contextKey string

const (
	// Ключ для хранения сессии в контексте
	PrincipalContextKey contextKey = "principal"
)

// PrincipalFromContext извлекает сессию из контекста HTTP запроса
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(PrincipalContextKey).(*Principal)
	return p, ok
}

// Middleware предоставляет middleware функции для аутентификации
type Middleware struct {
	service *Service
	logger  *slog.Logger
}

// NewMiddleware создает новый middleware для аутентификации
func NewMiddleware(service *Service, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{service: service, logger: logger}
}

// Authenticate проверяет JWT токен из заголовка Authorization
// и добавляет сессию в контекст запроса
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorized(w, "Authentification requise")
			return
		}

		// Формат заголовка: "Bearer <token>"
		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			unauthorized(w, "Format du jeton invalide")
			return
		}

		principal, err := m.service.Authenticate(r.Context(), strings.TrimSpace(token))
		if errors.Is(err, ErrUnauthorized) {
			unauthorized(w, "Token invalide ou expiré")
			return
		}
		if err != nil {
			m.logger.Error("authentication failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Erreur serveur lors de l'authentification")
			return
		}

		ctx := context.WithValue(r.Context(), PrincipalContextKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, detail)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   http.StatusText(status),
		"detail":  detail,
	})
}
