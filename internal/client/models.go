package client

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Student is the profile returned by a successful login.
type Student struct {
	StudentName   string `json:"student_name"`
	ClassName     string `json:"class_name,omitempty"`
	Establishment string `json:"establishment,omitempty"`
	LoggedIn      bool   `json:"logged_in,omitempty"`
}

// Attachment is a file linked to a homework item.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Homework is one homework item.
type Homework struct {
	ID          string       `json:"id,omitempty"`
	Subject     string       `json:"subject"`
	Description string       `json:"description"`
	Due         Timestamp    `json:"date"`
	Done        bool         `json:"done"`
	Files       []Attachment `json:"files,omitempty"`
}

// Lesson is one timetable entry. End is not guaranteed to be after Start.
type Lesson struct {
	ID        string    `json:"id,omitempty"`
	Subject   string    `json:"subject"`
	Teacher   string    `json:"teacher,omitempty"`
	Classroom string    `json:"classroom,omitempty"`
	Start     Timestamp `json:"start"`
	End       Timestamp `json:"end"`
	Status    string    `json:"status,omitempty"`
	Canceled  bool      `json:"canceled"`
}

// Duration is zero when the lesson bounds are missing or inverted.
func (l Lesson) Duration() time.Duration {
	if l.Start.IsZero() || l.End.IsZero() || !l.End.After(l.Start.Time) {
		return 0
	}
	return l.End.Sub(l.Start.Time)
}

// Grade is one mark. An absent Value means "not graded yet".
type Grade struct {
	Subject     string    `json:"subject"`
	Value       Score     `json:"grade"`
	OutOf       Score     `json:"out_of"`
	Coefficient Score     `json:"coefficient"`
	Date        Timestamp `json:"date"`
	Period      string    `json:"period,omitempty"`
	Comment     string    `json:"comment,omitempty"`
}

// Scale returns the out-of value, 20 when absent or not positive.
func (g Grade) Scale() float64 {
	if g.OutOf.Valid && g.OutOf.Value > 0 {
		return g.OutOf.Value
	}
	return 20
}

// Weight returns the coefficient, 1 when absent or negative.
func (g Grade) Weight() float64 {
	if g.Coefficient.Valid && g.Coefficient.Value >= 0 {
		return g.Coefficient.Value
	}
	return 1
}

// Provider is one federated identity provider (ENT).
type Provider struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Health is the backend status indicator.
type Health struct {
	Status    string `json:"status"`
	Store     string `json:"store,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Healthy reports whether the backend declared itself fully operational.
func (h Health) Healthy() bool {
	return h.Status == "healthy"
}

// Score is a numeric value that the portal may send as a number, a
// numeric string ("15", "15,5") or null. Non-numeric markers such as
// "Abs" or "Disp" decode as absent.
type Score struct {
	Value float64
	Valid bool
}

// NewScore returns a present score.
func NewScore(v float64) Score {
	return Score{Value: v, Valid: true}
}

func (s *Score) UnmarshalJSON(data []byte) error {
	*s = Score{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	var number float64
	if err := json.Unmarshal(data, &number); err == nil {
		if !math.IsNaN(number) && !math.IsInf(number, 0) {
			*s = NewScore(number)
		}
		return nil
	}

	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return nil
	}
	text = strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	if number, err := strconv.ParseFloat(text, 64); err == nil && !math.IsNaN(number) && !math.IsInf(number, 0) {
		*s = NewScore(number)
	}
	return nil
}

func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}

// timestampLayouts are tried in order when decoding a Timestamp.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Timestamp is a time that decodes from RFC 3339, naive ISO-8601 or a
// bare date. null, "" and unrecognised values decode as the zero time so
// one malformed field does not discard a whole list.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	t.Time = time.Time{}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return nil
	}
	text = strings.TrimSpace(text)
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, text); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339))
}
