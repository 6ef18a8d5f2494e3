package client

import (
	"sort"
	"time"
)

// Day is the lessons of one calendar day.
type Day struct {
	Date    time.Time
	Lessons []Lesson
}

// GroupByDay buckets lessons by the calendar day of their start in loc
// (time.Local when nil), days and lessons in chronological order.
// Lessons without a start time are dropped.
func GroupByDay(lessons []Lesson, loc *time.Location) []Day {
	if loc == nil {
		loc = time.Local
	}

	index := make(map[time.Time]int)
	var days []Day
	for _, lesson := range lessons {
		if lesson.Start.IsZero() {
			continue
		}
		start := lesson.Start.In(loc)
		date := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
		i, ok := index[date]
		if !ok {
			i = len(days)
			index[date] = i
			days = append(days, Day{Date: date})
		}
		days[i].Lessons = append(days[i].Lessons, lesson)
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	for _, day := range days {
		sort.SliceStable(day.Lessons, func(i, j int) bool {
			return day.Lessons[i].Start.Before(day.Lessons[j].Start.Time)
		})
	}
	return days
}
