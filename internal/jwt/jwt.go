// Package jwt предоставляет функции для работы с JWT токенами доступа
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer значение iss во всех выдаваемых токенах
const Issuer = "pronote-assistant"

// ErrInvalidToken возвращается для любого непринятого токена
var ErrInvalidToken = errors.New("invalid token")

// Claims данные токена. Токен привязан к серверной сессии через
// SessionToken, сам по себе он ничего не дает.
type Claims struct {
	UserID               string `json:"user_id"`       // Логин Pronote
	SessionToken         string `json:"session_token"` // Ключ сессии в хранилище
	jwt.RegisteredClaims        // iss, sub, iat, exp, jti
}

// Manager выдает и проверяет токены доступа
type Manager struct {
	key      []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewManager создает менеджер. secret подписывает токены (HS256),
// lifetime задает срок их действия.
func NewManager(secret string, lifetime time.Duration) *Manager {
	return &Manager{
		key:      []byte(secret),
		lifetime: lifetime,
		now:      time.Now,
	}
}

// Lifetime возвращает время жизни выдаваемых токенов
func (m *Manager) Lifetime() time.Duration {
	return m.lifetime
}

// GenerateToken выдает токен для сессии sessionToken пользователя userID
func (m *Manager) GenerateToken(userID, sessionToken string) (string, error) {
	issuedAt := m.now()
	claims := &Claims{
		UserID:       userID,
		SessionToken: sessionToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(m.lifetime)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("ошибка подписи токена: %w", err)
	}
	return signed, nil
}

// ParseToken проверяет подпись, издателя и срок действия токена.
// Все ошибки оборачивают ErrInvalidToken.
func (m *Manager) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return m.key, nil },
		// Принимаем только HS256: alg=none и RS* отклоняются до проверки подписи
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.SessionToken == "" || claims.UserID == "" {
		return nil, fmt.Errorf("%w: токен не привязан к сессии", ErrInvalidToken)
	}
	return claims, nil
}
