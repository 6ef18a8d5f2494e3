package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// FixtureFile is the YAML layout read by LoadFixture. Dates are relative
// to the current day so the demo data never goes stale.
type FixtureFile struct {
	Accounts []FixtureAccount `yaml:"accounts"`
}

// FixtureAccount is one demo account.
type FixtureAccount struct {
	PortalURL string            `yaml:"portal_url"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	Provider  string            `yaml:"ent"`
	Student   Student           `yaml:"student"`
	Homework  []FixtureHomework `yaml:"homework"`
	Lessons   []FixtureLesson   `yaml:"lessons"`
	Periods   []FixturePeriod   `yaml:"periods"`
}

type FixtureHomework struct {
	Subject     string       `yaml:"subject"`
	Description string       `yaml:"description"`
	DueInDays   int          `yaml:"due_in_days"`
	Done        bool         `yaml:"done"`
	Files       []Attachment `yaml:"files"`
}

// FixtureLesson repeats every week on Weekday (1 = Monday).
type FixtureLesson struct {
	Weekday   int    `yaml:"weekday"`
	Start     string `yaml:"start"` // HH:MM
	End       string `yaml:"end"`
	Subject   string `yaml:"subject"`
	Teacher   string `yaml:"teacher"`
	Classroom string `yaml:"classroom"`
	Status    string `yaml:"status"`
	Canceled  bool   `yaml:"canceled"`
}

type FixturePeriod struct {
	Name   string         `yaml:"name"`
	Grades []FixtureGrade `yaml:"grades"`
}

type FixtureGrade struct {
	Subject     string `yaml:"subject"`
	Value       string `yaml:"grade"`
	OutOf       string `yaml:"out_of"`
	Coefficient string `yaml:"coefficient"`
	DaysAgo     int    `yaml:"days_ago"`
	Comment     string `yaml:"comment"`
}

// Fixture is a Connector serving demo accounts from a FixtureFile. It
// stands in for a live Pronote instance in development and tests.
type Fixture struct {
	accounts []FixtureAccount
	now      func() time.Time
}

// LoadFixture reads a fixture from a YAML file.
func LoadFixture(filename string) (*Fixture, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixture file %s: %w", filename, err)
	}
	defer file.Close()

	fixture, err := ParseFixture(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode fixture file %s: %w", filename, err)
	}
	return fixture, nil
}

// ParseFixture decodes a fixture and checks its lesson times.
func ParseFixture(r io.Reader) (*Fixture, error) {
	var data FixtureFile
	if err := yaml.NewDecoder(r).Decode(&data); err != nil {
		return nil, err
	}
	for _, account := range data.Accounts {
		for _, lesson := range account.Lessons {
			if lesson.Weekday < 1 || lesson.Weekday > 7 {
				return nil, fmt.Errorf("%s: lesson %s: weekday %d out of range", account.Username, lesson.Subject, lesson.Weekday)
			}
			if _, err := clock(lesson.Start); err != nil {
				return nil, fmt.Errorf("%s: lesson %s: %w", account.Username, lesson.Subject, err)
			}
			if _, err := clock(lesson.End); err != nil {
				return nil, fmt.Errorf("%s: lesson %s: %w", account.Username, lesson.Subject, err)
			}
		}
	}
	return &Fixture{accounts: data.Accounts, now: time.Now}, nil
}

// WithClock replaces the clock used to resolve relative dates.
func (f *Fixture) WithClock(now func() time.Time) *Fixture {
	f.now = now
	return f
}

func (f *Fixture) Connect(ctx context.Context, creds Credentials) (Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i := range f.accounts {
		account := &f.accounts[i]
		if !sameURL(account.PortalURL, creds.PortalURL) ||
			account.Username != creds.Username ||
			account.Password != creds.Password {
			continue
		}
		if creds.Provider != "" && !strings.EqualFold(account.Provider, creds.Provider) {
			continue
		}
		return &fixtureClient{account: account, now: f.now}, nil
	}
	return nil, ErrAuthentication
}

func sameURL(a, b string) bool {
	norm := func(s string) string {
		return strings.TrimRight(strings.ToLower(strings.TrimSpace(s)), "/")
	}
	return norm(a) == norm(b)
}

type fixtureClient struct {
	account *FixtureAccount
	now     func() time.Time
	closed  bool
}

var errClosed = errors.New("portal: session closed")

func (c *fixtureClient) Student() Student {
	return c.account.Student
}

func (c *fixtureClient) Homework(ctx context.Context, from, to time.Time) ([]Homework, error) {
	if c.closed {
		return nil, errClosed
	}
	today := startOfDay(c.now())
	first, last := startOfDay(from), to

	items := make([]Homework, 0)
	for i, hw := range c.account.Homework {
		due := today.AddDate(0, 0, hw.DueInDays)
		if due.Before(first) || due.After(last) {
			continue
		}
		items = append(items, Homework{
			ID:          fmt.Sprintf("hw-%d", i+1),
			Subject:     hw.Subject,
			Description: hw.Description,
			Date:        due,
			Done:        hw.Done,
			Files:       hw.Files,
		})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Date.Before(items[j].Date) })
	return items, ctx.Err()
}

func (c *fixtureClient) Lessons(ctx context.Context, from, to time.Time) ([]Lesson, error) {
	if c.closed {
		return nil, errClosed
	}
	items := make([]Lesson, 0)
	for day := startOfDay(from); day.Before(to); day = day.AddDate(0, 0, 1) {
		weekday := (int(day.Weekday())+6)%7 + 1
		for i, l := range c.account.Lessons {
			if l.Weekday != weekday {
				continue
			}
			start := at(day, l.Start)
			if start.Before(from) || !start.Before(to) {
				continue
			}
			items = append(items, Lesson{
				ID:        fmt.Sprintf("%s-%d", day.Format("20060102"), i+1),
				Subject:   l.Subject,
				Teacher:   l.Teacher,
				Classroom: l.Classroom,
				Start:     start,
				End:       at(day, l.End),
				Status:    l.Status,
				Canceled:  l.Canceled,
			})
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Start.Before(items[j].Start) })
	return items, ctx.Err()
}

func (c *fixtureClient) Grades(ctx context.Context, period string) ([]Grade, error) {
	if c.closed {
		return nil, errClosed
	}
	periods := c.account.Periods
	if period != "" {
		periods = nil
		for _, p := range c.account.Periods {
			if p.Name == period {
				periods = append(periods, p)
			}
		}
		if len(periods) == 0 {
			return nil, fmt.Errorf("%w: '%s'", ErrPeriodNotFound, period)
		}
	}

	today := startOfDay(c.now())
	items := make([]Grade, 0)
	for _, p := range periods {
		for _, g := range p.Grades {
			items = append(items, Grade{
				Subject:     g.Subject,
				Value:       g.Value,
				OutOf:       g.OutOf,
				Coefficient: g.Coefficient,
				Date:        today.AddDate(0, 0, -g.DaysAgo),
				Period:      p.Name,
				Comment:     g.Comment,
			})
		}
	}
	return items, ctx.Err()
}

func (c *fixtureClient) Close() error {
	c.closed = true
	return nil
}

// clock parses HH:MM into an offset from midnight.
func clock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("bad time %q", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func at(day time.Time, hhmm string) time.Time {
	offset, _ := clock(hhmm)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location()).Add(offset)
}
