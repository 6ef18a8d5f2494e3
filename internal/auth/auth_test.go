package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Ultrahd-dev/pronote-assistant/internal/crypt"
	"github.com/Ultrahd-dev/pronote-assistant/internal/jwt"
	"github.com/Ultrahd-dev/pronote-assistant/internal/portal"
	"github.com/Ultrahd-dev/pronote-assistant/internal/session"
)

const fixture = `
accounts:
  - portal_url: https://demo.index-education.net/pronote/eleve.html
    username: demo
    password: secret
    student: {name: Jean Dupont}
  - portal_url: https://ent.example.fr/pronote/
    username: lea
    password: ent-pass
    ent: monlycee_net
    student: {name: Léa Martin}
`

var demo = portal.Credentials{
	PortalURL:   "https://demo.index-education.net/pronote/eleve.html",
	Username:    "demo",
	Password:    "secret",
	AccountType: portal.AccountStudent,
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	connector, err := portal.ParseFixture(strings.NewReader(fixture))
	if err != nil {
		t.Fatal(err)
	}
	sealer, err := crypt.NewSealer("auth test secret of sufficient length")
	if err != nil {
		t.Fatal(err)
	}
	sessions := session.NewManager(session.NewMemoryStore(), sealer, time.Hour, logger)
	tokens := jwt.NewManager("0123456789abcdef0123456789abcdef", 24*time.Hour)
	return NewService(connector, sessions, tokens, logger)
}

func TestLoginAndAuthenticate(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	result, err := s.Login(ctx, demo)
	if err != nil {
		t.Fatal(err)
	}
	if result.Student.Name != "Jean Dupont" || result.ExpiresIn != 86400 || result.AccessToken == "" {
		t.Fatalf("result = %+v", result)
	}

	principal, err := s.Authenticate(ctx, result.AccessToken)
	if err != nil {
		t.Fatal(err)
	}
	if principal.Session.Credentials.Password != "secret" {
		t.Error("session must keep the password to reconnect")
	}

	client, err := s.Portal(ctx, principal)
	if err != nil {
		t.Fatal(err)
	}
	client.Close()

	if err := s.Logout(ctx, principal); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Authenticate(ctx, result.AccessToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("token still valid after logout: %v", err)
	}
}

func TestLoginFailures(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	wrong := demo
	wrong.Password = "nope"
	if _, err := s.Login(ctx, wrong); !errors.Is(err, portal.ErrAuthentication) {
		t.Errorf("wrong password: %v", err)
	}

	cas := portal.Credentials{PortalURL: "https://ent.example.fr/pronote/", Username: "lea", Password: "ent-pass", Provider: "ent_inconnu"}
	if _, err := s.Login(ctx, cas); !errors.Is(err, portal.ErrUnknownProvider) {
		t.Errorf("unknown ENT: %v", err)
	}

	cas.Provider = "MonLycee_Net"
	if _, err := s.Login(ctx, cas); err != nil {
		t.Errorf("federated login: %v", err)
	}
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	s := newTestService(t)
	if _, err := s.Authenticate(context.Background(), "abc.def.ghi"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	s := newTestService(t)
	result, err := s.Login(context.Background(), demo)
	if err != nil {
		t.Fatal(err)
	}

	handler := NewMiddleware(s, nil).Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			t.Error("no principal in context")
			return
		}
		io.WriteString(w, p.Session.Student.Name)
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + result.AccessToken, http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + result.AccessToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/pronote/grades", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.status == http.StatusUnauthorized {
				if rec.Header().Get("WWW-Authenticate") != "Bearer" {
					t.Error("missing WWW-Authenticate header")
				}
				if !strings.Contains(rec.Body.String(), `"success":false`) {
					t.Errorf("body = %s", rec.Body)
				}
			} else if rec.Body.String() != "Jean Dupont" {
				t.Errorf("body = %s", rec.Body)
			}
		})
	}
}
