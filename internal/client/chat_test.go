package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSendChatMessage(t *testing.T) {
	var got chatRequest
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"success":true,"response":"Tu as un DM de maths pour lundi."}`))
	})

	reply, err := c.SendChatMessage(context.Background(), "J'ai des devoirs ?", map[string]any{"date": "2025-03-07"})
	if err != nil {
		t.Fatal(err)
	}
	if reply != "Tu as un DM de maths pour lundi." {
		t.Fatalf("reply = %q", reply)
	}
	if got.Message != "J'ai des devoirs ?" || got.Model != DefaultModel {
		t.Errorf("request = %+v", got)
	}
}

func TestSendChatMessageFallback(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"bad gateway", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"detail":"OpenRouter indisponible"}`))
		}},
		{"success false", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success":false,"response":"ignored"}`))
		}},
		{"missing response", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success":true}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, tt.handler)
			reply, err := c.SendChatMessage(context.Background(), "Bonjour", nil)
			if err != nil {
				t.Fatal(err)
			}
			if reply != FallbackReply {
				t.Fatalf("reply = %q", reply)
			}
		})
	}
}

func TestSendChatMessageNetworkDown(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	c := New(server.URL, WithLogger(discardLogger()))
	reply, err := c.SendChatMessage(context.Background(), "Bonjour", nil)
	if err != nil || reply != FallbackReply {
		t.Fatalf("reply = %q, err = %v", reply, err)
	}
}

func TestSendChatMessageSessionExpired(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	c.Tokens().Save("old")

	_, err := c.SendChatMessage(context.Background(), "Bonjour", nil)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v", err)
	}
	if c.Tokens().IsPresent() {
		t.Fatal("token kept after 401")
	}
}

func TestSendChatMessageEmpty(t *testing.T) {
	c := New("http://127.0.0.1:1", WithLogger(discardLogger()))
	if _, err := c.SendChatMessage(context.Background(), "  ", nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
}

func TestBuildChatContext(t *testing.T) {
	var paths []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case pathHomework:
			w.Write([]byte(`{"success":true,"homework":[
				{"subject":"Maths","description":"<p>Exercices <b>3</b> et 4</p>","date":"2025-03-10"}]}`))
		case pathGrades:
			w.Write([]byte(`{"success":true,"grades":[
				{"subject":"Maths","grade":"15","out_of":"20","coefficient":2},
				{"subject":"Maths","grade":"12","out_of":"20","coefficient":1},
				{"subject":"Art","grade":null,"out_of":"20","coefficient":1}]}`))
		default:
			paths = append(paths, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	c.SetStudent(&Student{StudentName: "Jean Dupont"})

	now := time.Date(2025, 3, 7, 9, 0, 0, 0, time.UTC)
	payload, err := c.BuildChatContext(context.Background(), "Quelles sont mes notes et mes devoirs ?", now)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 0 {
		t.Fatalf("unexpected requests %v", paths)
	}
	if payload["date"] != "2025-03-07" || payload["student"] != "Jean Dupont" {
		t.Errorf("payload = %v", payload)
	}
	if _, ok := payload["timetable"]; ok {
		t.Error("timetable fetched without being asked for")
	}

	homework := payload["homework"].([]map[string]any)
	if len(homework) != 1 || homework[0]["description"] != "Exercices 3 et 4" || homework[0]["due"] != "2025-03-10" {
		t.Errorf("homework = %v", homework)
	}

	grades := payload["grades"].(map[string]any)
	if grades["overall"] != 14.0 {
		t.Errorf("overall = %v", grades["overall"])
	}
	subjects := grades["subjects"].([]map[string]any)
	if len(subjects) != 1 || subjects[0]["subject"] != "Maths" || subjects[0]["count"] != 2 {
		t.Errorf("subjects = %v", subjects)
	}
}

func TestBuildChatContextNoTopic(t *testing.T) {
	c := New("http://127.0.0.1:1", WithLogger(discardLogger()))
	payload, err := c.BuildChatContext(context.Background(), "Salut !", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if len(payload) != 1 {
		t.Fatalf("payload = %v", payload)
	}
}

func TestPlainText(t *testing.T) {
	tests := map[string]string{
		"  Lire   le chapitre\n2 ":                    "Lire le chapitre 2",
		"<p>Ex 1</p><p>Ex 2</p>":                      "Ex 1 Ex 2",
		"ligne 1<br>ligne 2":                          "ligne 1 ligne 2",
		"<ul><li>a</li><li>b</li></ul>":               "a b",
		"Fich&eacute; &amp; r&eacute;sum&eacute;":     "Fiché & résumé",
		"<div><b>Important</b> : <i>rendre</i></div>": "Important : rendre",
	}
	for in, want := range tests {
		if got := PlainText(in); got != want {
			t.Errorf("PlainText(%q) = %q, want %q", in, got, want)
		}
	}
	if strings.Contains(PlainText("<script>x</script>ok"), "<") {
		t.Error("markup left in output")
	}
}
