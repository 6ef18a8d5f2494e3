// Package portal is the backend's access to Pronote: one authenticated
// Client per request, obtained from a Connector.
package portal

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAuthentication means the portal refused the credentials.
	ErrAuthentication = errors.New("échec d'authentification - identifiants incorrects")

	// ErrUnknownProvider means the federated login named an ENT that is
	// not in Providers.
	ErrUnknownProvider = errors.New("ENT non trouvé")

	// ErrPeriodNotFound means the requested grade period does not exist.
	ErrPeriodNotFound = errors.New("période non trouvée")
)

// Account kinds of the direct login.
const (
	AccountTeacher = 1
	AccountParent  = 2
	AccountStudent = 3
)

// Credentials identify a portal account. Provider is empty for the
// direct login.
type Credentials struct {
	PortalURL   string `json:"pronote_url"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	AccountType int    `json:"account_type,omitempty"`
	Provider    string `json:"ent_name,omitempty"`
}

// Student is the profile of the logged-in account.
type Student struct {
	Name          string `json:"student_name" yaml:"name"`
	ClassName     string `json:"class_name,omitempty" yaml:"class_name"`
	Establishment string `json:"establishment,omitempty" yaml:"establishment"`
}

type Attachment struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type Homework struct {
	ID          string
	Subject     string
	Description string
	Date        time.Time
	Done        bool
	Files       []Attachment
}

type Lesson struct {
	ID        string
	Subject   string
	Teacher   string
	Classroom string
	Start     time.Time
	End       time.Time
	Status    string
	Canceled  bool
}

// Grade values are kept as the portal renders them ("15", "15,5",
// "Abs"). An empty Value means not graded yet.
type Grade struct {
	Subject     string
	Value       string
	OutOf       string
	Coefficient string
	Date        time.Time
	Period      string
	Comment     string
}

// Connector opens authenticated portal sessions.
type Connector interface {
	Connect(ctx context.Context, creds Credentials) (Client, error)
}

// Client is one authenticated portal session. It is not safe for
// concurrent use.
type Client interface {
	Student() Student
	Homework(ctx context.Context, from, to time.Time) ([]Homework, error)
	Lessons(ctx context.Context, from, to time.Time) ([]Lesson, error)
	// Grades returns the grades of period, of every period when empty.
	Grades(ctx context.Context, period string) ([]Grade, error)
	Close() error
}

// HomeworkRange fills the missing bounds: today through 14 days later.
func HomeworkRange(from, to *time.Time, now time.Time) (time.Time, time.Time) {
	start := startOfDay(now)
	if from != nil {
		start = *from
	}
	end := start.AddDate(0, 0, 14)
	if to != nil {
		end = *to
	}
	return start, end
}

// TimetableRange fills the missing bounds: Monday of the current week
// through 7 days later.
func TimetableRange(from, to *time.Time, now time.Time) (time.Time, time.Time) {
	offset := (int(now.Weekday()) + 6) % 7
	start := startOfDay(now).AddDate(0, 0, -offset)
	if from != nil {
		start = *from
	}
	end := start.AddDate(0, 0, 7)
	if to != nil {
		end = *to
	}
	return start, end
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
