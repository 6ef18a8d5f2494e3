package server

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Ultrahd-dev/pronote-assistant/internal/portal"
)

// Значения по умолчанию для пустых полей портала
const (
	defaultSubject     = "Matière inconnue"
	defaultDescription = "Pas de description"
	defaultLesson      = "Cours"
	defaultOutOf       = "20"
	defaultCoefficient = "1"
	maxMessageLength   = 2000
)

type loginDirectRequest struct {
	PronoteURL  string `json:"pronote_url"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	AccountType *int   `json:"account_type"`
}

func (req *loginDirectRequest) validate() error {
	if err := validatePortalURL(req.PronoteURL); err != nil {
		return err
	}
	if !strings.Contains(req.PronoteURL, "index-education.net") && !strings.Contains(strings.ToLower(req.PronoteURL), "pronote") {
		return errors.New("URL Pronote invalide")
	}
	if err := validateAccount(req.Username, req.Password); err != nil {
		return err
	}
	if req.AccountType == nil {
		accountType := portal.AccountStudent
		req.AccountType = &accountType
	}
	if *req.AccountType < portal.AccountTeacher || *req.AccountType > portal.AccountStudent {
		return errors.New("account_type doit être compris entre 1 et 3")
	}
	return nil
}

func (req *loginDirectRequest) credentials() portal.Credentials {
	return portal.Credentials{
		PortalURL:   strings.TrimSpace(req.PronoteURL),
		Username:    strings.TrimSpace(req.Username),
		Password:    req.Password,
		AccountType: *req.AccountType,
	}
}

type loginCASRequest struct {
	PronoteURL string `json:"pronote_url"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	ENTName    string `json:"ent_name"`
}

func (req *loginCASRequest) validate() error {
	if err := validatePortalURL(req.PronoteURL); err != nil {
		return err
	}
	if err := validateAccount(req.Username, req.Password); err != nil {
		return err
	}
	if strings.TrimSpace(req.ENTName) == "" {
		return errors.New("ent_name est requis")
	}
	return nil
}

func (req *loginCASRequest) credentials() portal.Credentials {
	return portal.Credentials{
		PortalURL:   strings.TrimSpace(req.PronoteURL),
		Username:    strings.TrimSpace(req.Username),
		Password:    req.Password,
		AccountType: portal.AccountStudent,
		Provider:    strings.TrimSpace(req.ENTName),
	}
}

func validatePortalURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("pronote_url est requis")
	}
	if !strings.HasPrefix(raw, "https://") {
		return errors.New("l'URL doit commencer par https://")
	}
	return nil
}

func validateAccount(username, password string) error {
	if strings.TrimSpace(username) == "" {
		return errors.New("username est requis")
	}
	if password == "" {
		return errors.New("password est requis")
	}
	return nil
}

type dateRangeRequest struct {
	DateFrom *string `json:"date_from"`
	DateTo   *string `json:"date_to"`
}

// bounds разбирает даты запроса. Отсутствующая граница остается nil.
func (req *dateRangeRequest) bounds() (from, to *time.Time, err error) {
	if from, err = parseDate("date_from", req.DateFrom); err != nil {
		return nil, nil, err
	}
	if to, err = parseDate("date_to", req.DateTo); err != nil {
		return nil, nil, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, errors.New("date_to doit être postérieure à date_from")
	}
	return from, to, nil
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func parseDate(field string, value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(*value), time.Local); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%s: date invalide %q", field, *value)
}

type chatRequest struct {
	Message string         `json:"message"`
	Context map[string]any `json:"context"`
	Model   string         `json:"model"`
}

func (req *chatRequest) validate() error {
	n := utf8.RuneCountInString(strings.TrimSpace(req.Message))
	if n == 0 {
		return errors.New("le message est vide")
	}
	if n > maxMessageLength {
		return fmt.Errorf("le message dépasse %d caractères", maxMessageLength)
	}
	return nil
}

type studentJSON struct {
	StudentName   string `json:"student_name"`
	ClassName     string `json:"class_name"`
	Establishment string `json:"establishment"`
	LoggedIn      bool   `json:"logged_in"`
}

type loginResponse struct {
	Success     bool        `json:"success"`
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int         `json:"expires_in"`
	Student     studentJSON `json:"student"`
}

type fileJSON struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

type homeworkJSON struct {
	ID          string     `json:"id,omitempty"`
	Subject     string     `json:"subject"`
	Description string     `json:"description"`
	Date        *string    `json:"date"`
	Done        bool       `json:"done"`
	Files       []fileJSON `json:"files"`
}

type lessonJSON struct {
	ID        string  `json:"id,omitempty"`
	Subject   string  `json:"subject"`
	Teacher   string  `json:"teacher"`
	Classroom string  `json:"classroom"`
	Start     *string `json:"start"`
	End       *string `json:"end"`
	Status    string  `json:"status,omitempty"`
	Canceled  bool    `json:"canceled"`
}

type gradeJSON struct {
	Subject     string  `json:"subject"`
	Grade       *string `json:"grade"`
	OutOf       string  `json:"out_of"`
	Coefficient string  `json:"coefficient"`
	Date        *string `json:"date"`
	Period      string  `json:"period,omitempty"`
	Comment     *string `json:"comment"`
}

func timestamp(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func toHomeworkJSON(items []portal.Homework) []homeworkJSON {
	out := make([]homeworkJSON, 0, len(items))
	for _, hw := range items {
		files := make([]fileJSON, 0, len(hw.Files))
		for _, f := range hw.Files {
			files = append(files, fileJSON{Name: f.Name, URL: f.URL})
		}
		out = append(out, homeworkJSON{
			ID:          hw.ID,
			Subject:     orDefault(hw.Subject, defaultSubject),
			Description: orDefault(hw.Description, defaultDescription),
			Date:        timestamp(hw.Date),
			Done:        hw.Done,
			Files:       files,
		})
	}
	return out
}

func toLessonJSON(items []portal.Lesson) []lessonJSON {
	out := make([]lessonJSON, 0, len(items))
	for _, l := range items {
		out = append(out, lessonJSON{
			ID:        l.ID,
			Subject:   orDefault(l.Subject, defaultLesson),
			Teacher:   l.Teacher,
			Classroom: l.Classroom,
			Start:     timestamp(l.Start),
			End:       timestamp(l.End),
			Status:    l.Status,
			Canceled:  l.Canceled,
		})
	}
	return out
}

func toGradeJSON(items []portal.Grade) []gradeJSON {
	out := make([]gradeJSON, 0, len(items))
	for _, g := range items {
		out = append(out, gradeJSON{
			Subject:     orDefault(g.Subject, defaultSubject),
			Grade:       optional(g.Value),
			OutOf:       orDefault(g.OutOf, defaultOutOf),
			Coefficient: orDefault(g.Coefficient, defaultCoefficient),
			Date:        timestamp(g.Date),
			Period:      g.Period,
			Comment:     optional(g.Comment),
		})
	}
	return out
}
