package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestGenerateAndParse(t *testing.T) {
	m := NewManager(secret, time.Hour)

	token, err := m.GenerateToken("demonstration@demo", "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := m.ParseToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != "demonstration@demo" || claims.SessionToken != "sess-1" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.ID == "" || claims.IssuedAt == nil || claims.Issuer != Issuer || claims.Subject != "demonstration@demo" {
		t.Errorf("registered claims = %+v", claims.RegisteredClaims)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != time.Hour {
		t.Errorf("lifetime = %v", got)
	}
}

func TestParseRejects(t *testing.T) {
	m := NewManager(secret, time.Hour)
	valid, err := m.GenerateToken("u", "s")
	if err != nil {
		t.Fatal(err)
	}

	expired := NewManager(secret, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _ := expired.GenerateToken("u", "s")

	other, _ := NewManager(strings.Repeat("x", 32), time.Hour).GenerateToken("u", "s")

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{SessionToken: "s"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)

	noSession, _ := m.GenerateToken("u", "")

	foreign, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID:       "u",
		SessionToken: "s",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(secret))

	tests := map[string]string{
		"garbage":        "not-a-token",
		"tampered":       swapPayload(valid, other),
		"expired":        old,
		"wrong secret":   other,
		"alg none":       none,
		"no session key": noSession,
		"foreign issuer": foreign,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := m.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

// swapPayload keeps the header and signature of token but carries the
// claims of donor.
func swapPayload(token, donor string) string {
	parts := strings.Split(token, ".")
	parts[1] = strings.Split(donor, ".")[1]
	return strings.Join(parts, ".")
}
