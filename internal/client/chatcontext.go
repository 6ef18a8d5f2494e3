package client

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
)

// How far ahead the chat context looks.
const (
	contextHomeworkDays  = 14
	contextTimetableDays = 7
)

// BuildChatContext fetches the views the message refers to (see
// ClassifyIntent) and shapes them for SendChatMessage. A message with no
// recognised topic yields a context holding only the current date.
// Transport failures are returned; the caller may still send the message
// without context.
func (c *Client) BuildChatContext(ctx context.Context, text string, now time.Time) (map[string]any, error) {
	topics := ClassifyIntent(text)
	payload := map[string]any{
		"date": now.Format("2006-01-02"),
	}
	if student := c.Student(); student != nil {
		payload["student"] = student.StudentName
	}

	var (
		homework []Homework
		lessons  []Lesson
		grades   []Grade
	)
	group, gctx := errgroup.WithContext(ctx)
	if topics.Has(TopicHomework) {
		group.Go(func() (err error) {
			to := now.AddDate(0, 0, contextHomeworkDays)
			homework, err = c.FetchHomework(gctx, &now, &to)
			return err
		})
	}
	if topics.Has(TopicTimetable) {
		group.Go(func() (err error) {
			to := now.AddDate(0, 0, contextTimetableDays)
			lessons, err = c.FetchTimetable(gctx, &now, &to)
			return err
		})
	}
	if topics.Has(TopicGrades) {
		group.Go(func() (err error) {
			grades, err = c.FetchGrades(gctx, "")
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	if topics.Has(TopicHomework) {
		payload["homework"] = homeworkContext(homework)
	}
	if topics.Has(TopicTimetable) {
		payload["timetable"] = timetableContext(lessons)
	}
	if topics.Has(TopicGrades) {
		payload["grades"] = gradesContext(grades)
	}
	return payload, nil
}

func homeworkContext(homework []Homework) []map[string]any {
	items := make([]map[string]any, 0, len(homework))
	for _, hw := range homework {
		item := map[string]any{
			"subject":     hw.Subject,
			"description": PlainText(hw.Description),
			"done":        hw.Done,
		}
		if !hw.Due.IsZero() {
			item["due"] = hw.Due.Format("2006-01-02")
		}
		items = append(items, item)
	}
	return items
}

func timetableContext(lessons []Lesson) []map[string]any {
	var items []map[string]any
	for _, day := range GroupByDay(lessons, nil) {
		for _, lesson := range day.Lessons {
			item := map[string]any{
				"day":     day.Date.Format("2006-01-02"),
				"start":   lesson.Start.Format("15:04"),
				"subject": lesson.Subject,
			}
			if !lesson.End.IsZero() {
				item["end"] = lesson.End.Format("15:04")
			}
			if lesson.Teacher != "" {
				item["teacher"] = lesson.Teacher
			}
			if lesson.Classroom != "" {
				item["classroom"] = lesson.Classroom
			}
			if lesson.Canceled {
				item["canceled"] = true
			}
			items = append(items, item)
		}
	}
	if items == nil {
		items = []map[string]any{}
	}
	return items
}

func gradesContext(grades []Grade) map[string]any {
	subjects := make([]map[string]any, 0)
	for _, avg := range SubjectAverages(grades) {
		subjects = append(subjects, map[string]any{
			"subject": avg.Subject,
			"average": roundTenth(avg.Average),
			"count":   avg.Count,
		})
	}
	summary := map[string]any{"subjects": subjects}
	if overall, ok := Average(grades); ok {
		summary["overall"] = roundTenth(overall)
	}
	return summary
}

func roundTenth(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}

// PlainText flattens an HTML fragment (homework descriptions may carry
// markup) into whitespace-normalised text. Text without markup is
// returned with its whitespace collapsed.
func PlainText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc.Find("br").ReplaceWithHtml(" ")
	doc.Find("p, li, div").AppendHtml(" ")
	return strings.Join(strings.Fields(doc.Text()), " ")
}
