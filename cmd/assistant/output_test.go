package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/Ultrahd-dev/pronote-assistant/internal/client"
)

func TestNumber(t *testing.T) {
	tests := map[float64]string{15: "15", 12.5: "12.5", 0: "0", 7.25: "7.25", 20: "20"}
	for in, want := range tests {
		if got := number(in); got != want {
			t.Errorf("number(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("Exercices", 20); got != "Exercices" {
		t.Errorf("short string changed: %q", got)
	}
	if got := truncate("Préparer l'exposé", 8); got != "Prépare…" {
		t.Errorf("truncate = %q", got)
	}
}

func TestDateRange(t *testing.T) {
	from, to, err := dateRange("2025-03-10", "2025-03-14")
	if err != nil {
		t.Fatal(err)
	}
	if from.Day() != 10 || to.Day() != 15 || to.Hour() != 0 {
		t.Errorf("range = %v .. %v", from, to)
	}

	if from, to, err := dateRange("", ""); err != nil || from != nil || to != nil {
		t.Errorf("empty range = %v, %v, %v", from, to, err)
	}
	if _, _, err := dateRange("10/03/2025", ""); err == nil {
		t.Error("expected an error for a non-ISO date")
	}
}

func TestPrintGrades(t *testing.T) {
	grades := []client.Grade{
		{Subject: "Maths", Value: client.NewScore(15), OutOf: client.NewScore(20), Coefficient: client.NewScore(2)},
		{Subject: "Maths", Value: client.NewScore(12), OutOf: client.NewScore(20), Coefficient: client.NewScore(1)},
		{Subject: "Art"},
	}
	var buf bytes.Buffer
	printGrades(&buf, grades)
	out := buf.String()

	for _, want := range []string{"15/20", "Maths", "14.00", "Moyenne générale: 14.00/20"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestPrintTimetable(t *testing.T) {
	monday := time.Date(2025, 3, 10, 8, 0, 0, 0, time.Local)
	lessons := []client.Lesson{
		{Subject: "SVT", Start: client.Timestamp{Time: monday.AddDate(0, 0, 2)}, Canceled: true},
		{Subject: "Maths", Start: client.Timestamp{Time: monday}, End: client.Timestamp{Time: monday.Add(time.Hour)}},
	}
	var buf bytes.Buffer
	printTimetable(&buf, lessons)
	out := buf.String()

	if !strings.Contains(out, "Lundi 10/03") || !strings.Contains(out, "08:00-09:00") {
		t.Errorf("missing Monday:\n%s", out)
	}
	if strings.Index(out, "Lundi") > strings.Index(out, "Mercredi") || !strings.Contains(out, "annulé") {
		t.Errorf("bad order or status:\n%s", out)
	}
}

func TestPrintHomeworkEmpty(t *testing.T) {
	var buf bytes.Buffer
	printHomework(&buf, nil)
	if buf.String() != "Aucun devoir.\n" {
		t.Errorf("output = %q", buf.String())
	}
}
