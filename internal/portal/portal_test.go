package portal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

const fixtureYAML = `
accounts:
  - portal_url: https://demo.index-education.net/pronote/eleve.html
    username: demo
    password: secret
    student: {name: Jean Dupont, class_name: 3eB}
    homework:
      - {subject: Maths, description: Ex 1, due_in_days: 1}
      - {subject: Histoire, description: Exposé, due_in_days: 20}
      - {subject: Anglais, description: Vocabulaire, due_in_days: -3, done: true}
    lessons:
      - {weekday: 1, start: "08:00", end: "09:00", subject: Maths}
      - {weekday: 3, start: "10:00", end: "11:00", subject: SVT}
    periods:
      - name: Trimestre 1
        grades:
          - {subject: Maths, grade: "15", out_of: "20", coefficient: "1", days_ago: 30}
      - name: Trimestre 2
        grades:
          - {subject: Art, grade: "", out_of: "20", coefficient: "1", days_ago: 2}
  - portal_url: https://ent.example.fr/pronote/
    username: lea
    password: ent-pass
    ent: monlycee_net
    student: {name: Léa Martin}
`

// Wednesday 12 March 2025, 15:00.
var wednesday = time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)

func testFixture(t *testing.T) *Fixture {
	t.Helper()
	f, err := ParseFixture(strings.NewReader(fixtureYAML))
	if err != nil {
		t.Fatal(err)
	}
	return f.WithClock(func() time.Time { return wednesday })
}

func connectDemo(t *testing.T) Client {
	t.Helper()
	client, err := testFixture(t).Connect(context.Background(), Credentials{
		PortalURL: "https://demo.index-education.net/pronote/eleve.html/",
		Username:  "demo",
		Password:  "secret",
	})
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestFixtureConnect(t *testing.T) {
	f := testFixture(t)
	ctx := context.Background()

	client := connectDemo(t)
	if client.Student().Name != "Jean Dupont" {
		t.Errorf("student = %+v", client.Student())
	}

	_, err := f.Connect(ctx, Credentials{PortalURL: "https://demo.index-education.net/pronote/eleve.html", Username: "demo", Password: "wrong"})
	if !errors.Is(err, ErrAuthentication) {
		t.Errorf("wrong password: err = %v", err)
	}

	lea := Credentials{PortalURL: "https://ent.example.fr/pronote", Username: "lea", Password: "ent-pass", Provider: "MONLYCEE_NET"}
	if _, err := f.Connect(ctx, lea); err != nil {
		t.Errorf("federated login: %v", err)
	}
	lea.Provider = "toutatice"
	if _, err := f.Connect(ctx, lea); !errors.Is(err, ErrAuthentication) {
		t.Errorf("wrong provider: err = %v", err)
	}
}

func TestFixtureHomework(t *testing.T) {
	client := connectDemo(t)
	from, to := HomeworkRange(nil, nil, wednesday)

	items, err := client.Homework(context.Background(), from, to)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Subject != "Maths" {
		t.Fatalf("items = %+v", items)
	}
	if want := time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC); !items[0].Date.Equal(want) {
		t.Errorf("due = %v, want %v", items[0].Date, want)
	}

	past := wednesday.AddDate(0, 0, -7)
	items, _ = client.Homework(context.Background(), past, wednesday)
	if len(items) != 1 || !items[0].Done {
		t.Fatalf("past items = %+v", items)
	}
}

func TestFixtureLessons(t *testing.T) {
	client := connectDemo(t)
	from, to := TimetableRange(nil, nil, wednesday)

	lessons, err := client.Lessons(context.Background(), from, to)
	if err != nil {
		t.Fatal(err)
	}
	if len(lessons) != 2 {
		t.Fatalf("lessons = %+v", lessons)
	}
	if lessons[0].Subject != "Maths" || lessons[0].Start != time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC) {
		t.Errorf("first = %+v", lessons[0])
	}
	if lessons[1].Subject != "SVT" || lessons[1].End.Sub(lessons[1].Start) != time.Hour {
		t.Errorf("second = %+v", lessons[1])
	}
}

func TestFixtureGrades(t *testing.T) {
	client := connectDemo(t)
	ctx := context.Background()

	all, err := client.Grades(ctx, "")
	if err != nil || len(all) != 2 {
		t.Fatalf("all = %+v, %v", all, err)
	}
	second, err := client.Grades(ctx, "Trimestre 2")
	if err != nil || len(second) != 1 || second[0].Period != "Trimestre 2" || second[0].Value != "" {
		t.Fatalf("second = %+v, %v", second, err)
	}
	if _, err := client.Grades(ctx, "Trimestre 9"); !errors.Is(err, ErrPeriodNotFound) {
		t.Fatalf("unknown period: err = %v", err)
	}
}

func TestFixtureClosed(t *testing.T) {
	client := connectDemo(t)
	client.Close()
	if _, err := client.Grades(context.Background(), ""); err == nil {
		t.Fatal("read after Close should fail")
	}
}

func TestParseFixtureRejectsBadTimes(t *testing.T) {
	bad := `
accounts:
  - username: x
    lessons:
      - {weekday: 1, start: "8h", end: "09:00", subject: Maths}
`
	if _, err := ParseFixture(strings.NewReader(bad)); err == nil {
		t.Fatal("expected an error")
	}
}

func TestLoadFixtureShippedFile(t *testing.T) {
	f, err := LoadFixture("../../configs/portal_fixture.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Connect(context.Background(), Credentials{
		PortalURL: "https://demo.index-education.net/pronote/eleve.html",
		Username:  "demonstration",
		Password:  "pronotevs",
	}); err != nil {
		t.Fatal(err)
	}
}

func TestRanges(t *testing.T) {
	from, to := TimetableRange(nil, nil, wednesday)
	if from != time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC) || to != time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC) {
		t.Errorf("timetable range = %v..%v", from, to)
	}

	sunday := time.Date(2025, 3, 16, 20, 0, 0, 0, time.UTC)
	if from, _ := TimetableRange(nil, nil, sunday); from.Day() != 10 {
		t.Errorf("Sunday belongs to the week starting on the 10th, got %v", from)
	}

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	from, to = HomeworkRange(&start, nil, wednesday)
	if from != start || to != start.AddDate(0, 0, 14) {
		t.Errorf("homework range = %v..%v", from, to)
	}
}

func TestLookupProvider(t *testing.T) {
	p, ok := LookupProvider(" Toutatice ")
	if !ok || p.Name != "Toutatice (Bretagne)" {
		t.Fatalf("got %+v, %v", p, ok)
	}
	if _, ok := LookupProvider("nope"); ok {
		t.Fatal("unknown provider found")
	}
	if n := len(Providers()); n != 28 {
		t.Fatalf("%d providers", n)
	}
}

// flaky fails the first failures calls of every operation with err.
type flaky struct {
	failures int
	err      error
	connects int
	reads    int
}

func (f *flaky) Connect(ctx context.Context, creds Credentials) (Client, error) {
	f.connects++
	if f.connects <= f.failures {
		return nil, f.err
	}
	return &flakyClient{f: f}, nil
}

type flakyClient struct {
	Client
	f *flaky
}

func (c *flakyClient) Grades(ctx context.Context, period string) ([]Grade, error) {
	c.f.reads++
	if c.f.reads <= c.f.failures {
		return nil, c.f.err
	}
	return []Grade{{Subject: "Maths", Value: "12"}}, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRetrying(t *testing.T) {
	inner := &flaky{failures: 2, err: errors.New("timeout")}
	r := NewRetrying(inner, 3, time.Millisecond, discard())

	client, err := r.Connect(context.Background(), Credentials{})
	if err != nil {
		t.Fatal(err)
	}
	grades, err := client.Grades(context.Background(), "")
	if err != nil || len(grades) != 1 {
		t.Fatalf("grades = %+v, %v", grades, err)
	}
	if inner.connects != 3 || inner.reads != 3 {
		t.Fatalf("connects %d, reads %d; want 3 each", inner.connects, inner.reads)
	}
}

func TestRetryingGivesUp(t *testing.T) {
	boom := errors.New("portal down")
	inner := &flaky{failures: 5, err: boom}
	r := NewRetrying(inner, 3, time.Millisecond, discard())

	if _, err := r.Connect(context.Background(), Credentials{}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if inner.connects != 3 {
		t.Fatalf("connects = %d", inner.connects)
	}
}

func TestRetryingPermanent(t *testing.T) {
	inner := &flaky{failures: 5, err: ErrAuthentication}
	r := NewRetrying(inner, 3, time.Millisecond, discard())

	if _, err := r.Connect(context.Background(), Credentials{}); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("err = %v", err)
	}
	if inner.connects != 1 {
		t.Fatalf("authentication errors must not be retried, got %d connects", inner.connects)
	}
}
