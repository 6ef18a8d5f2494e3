package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
)

const loginOK = `{"success":true,"access_token":"T1","token_type":"bearer","expires_in":86400,
	"student":{"student_name":"Jean Dupont","class_name":"3eB","establishment":"Collège Test"}}`

func TestLoginDirectThenSetStudent(t *testing.T) {
	var got map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pathLoginDirect {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(loginOK))
	})

	student, err := c.LoginDirect(context.Background(), DirectLogin{
		PortalURL: "https://demo.index-education.net/pronote/eleve.html",
		Username:  "demonstration",
		Password:  "pronotevs",
	})
	if err != nil {
		t.Fatal(err)
	}
	if student.StudentName != "Jean Dupont" {
		t.Fatalf("student = %+v", student)
	}
	if got["account_type"] != float64(AccountStudent) {
		t.Errorf("account_type = %v, want default %d", got["account_type"], AccountStudent)
	}

	if token, _ := c.Tokens().Load(); token != "T1" {
		t.Fatalf("token = %q", token)
	}
	// Token without a recorded profile is not authenticated.
	if c.IsAuthenticated() {
		t.Fatal("authenticated before SetStudent")
	}
	c.SetStudent(student)
	if !c.IsAuthenticated() {
		t.Fatal("not authenticated after SetStudent")
	}
}

func TestLoginRejected(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"detail":"Identifiants invalides"}`},
		{"success false", http.StatusOK, `{"success":false}`},
		{"no token", http.StatusOK, `{"success":true,"student":{"student_name":"x"}}`},
		{"no student", http.StatusOK, `{"success":true,"access_token":"T"}`},
		{"garbage", http.StatusOK, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.LoginDirect(context.Background(), DirectLogin{PortalURL: "https://x.index-education.net", Username: "u", Password: "p"})
			if !errors.Is(err, ErrAuthenticationRejected) {
				t.Fatalf("err = %v, want ErrAuthenticationRejected", err)
			}
			if c.Tokens().IsPresent() {
				t.Fatal("token stored after rejected login")
			}
		})
	}
}

func TestLoginValidation(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(loginOK))
	})
	ctx := context.Background()

	_, err := c.LoginFederated(ctx, FederatedLogin{PortalURL: "https://x.index-education.net", Username: "u", Password: "p"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty provider: err = %v", err)
	}
	_, err = c.LoginDirect(ctx, DirectLogin{PortalURL: "https://x", Username: "u", Password: "p", AccountKind: 7})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad account kind: err = %v", err)
	}
	_, err = c.LoginDirect(ctx, DirectLogin{PortalURL: " ", Username: "u", Password: "p"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty url: err = %v", err)
	}
	if n := calls.Load(); n != 0 {
		t.Fatalf("%d requests sent for invalid input", n)
	}
}

func TestLoginFederated(t *testing.T) {
	var got map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pathLoginFederated {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(loginOK))
	})

	_, err := c.LoginFederated(context.Background(), FederatedLogin{
		PortalURL: "https://x.index-education.net/pronote/",
		Username:  "u",
		Password:  "p",
		Provider:  " ac_lyon ",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got["ent_name"] != "ac_lyon" {
		t.Fatalf("ent_name = %v", got["ent_name"])
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	c.Tokens().Save("T1")
	c.SetStudent(&Student{StudentName: "Jean"})

	c.Logout(context.Background())
	if c.IsAuthenticated() || c.Tokens().IsPresent() || c.Student() != nil {
		t.Fatal("state not cleared after logout")
	}
	c.Logout(context.Background())
	if n := calls.Load(); n != 1 {
		t.Fatalf("backend called %d times, want 1", n)
	}
}
