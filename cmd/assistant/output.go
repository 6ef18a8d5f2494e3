package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Ultrahd-dev/pronote-assistant/internal/client"
)

var weekdays = [...]string{"Dimanche", "Lundi", "Mardi", "Mercredi", "Jeudi", "Vendredi", "Samedi"}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printProviders(w io.Writer, providers []client.Provider) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNOM")
	for _, p := range providers {
		fmt.Fprintf(tw, "%s\t%s\n", p.ID, p.Name)
	}
	tw.Flush()
}

func printHomework(w io.Writer, homework []client.Homework) {
	if len(homework) == 0 {
		fmt.Fprintln(w, "Aucun devoir.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "POUR LE\tMATIÈRE\tFAIT\tÀ FAIRE")
	for _, hw := range homework {
		due := "-"
		if !hw.Due.IsZero() {
			due = hw.Due.Local().Format("02/01")
		}
		done := ""
		if hw.Done {
			done = "✓"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", due, hw.Subject, done, truncate(client.PlainText(hw.Description), 60))
	}
	tw.Flush()
}

func printTimetable(w io.Writer, lessons []client.Lesson) {
	days := client.GroupByDay(lessons, nil)
	if len(days) == 0 {
		fmt.Fprintln(w, "Aucun cours.")
		return
	}
	for i, day := range days {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s %s\n", weekdays[day.Date.Weekday()], day.Date.Format("02/01"))
		tw := newTable(w)
		for _, lesson := range day.Lessons {
			hours := lesson.Start.Local().Format("15:04")
			if !lesson.End.IsZero() {
				hours += "-" + lesson.End.Local().Format("15:04")
			}
			note := lesson.Status
			if lesson.Canceled && note == "" {
				note = "annulé"
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", hours, lesson.Subject, lesson.Teacher, lesson.Classroom, note)
		}
		tw.Flush()
	}
}

func printGrades(w io.Writer, grades []client.Grade) {
	if len(grades) == 0 {
		fmt.Fprintln(w, "Aucune note.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "DATE\tMATIÈRE\tNOTE\tCOEF\tPÉRIODE")
	for _, g := range grades {
		date := "-"
		if !g.Date.IsZero() {
			date = g.Date.Local().Format("02/01")
		}
		value := "-"
		if g.Value.Valid {
			value = fmt.Sprintf("%s/%s", number(g.Value.Value), number(g.Scale()))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", date, g.Subject, value, number(g.Weight()), g.Period)
	}
	tw.Flush()

	averages := client.SubjectAverages(grades)
	if len(averages) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw = newTable(w)
	fmt.Fprintln(tw, "MATIÈRE\tMOYENNE\tNOTES")
	for _, a := range averages {
		fmt.Fprintf(tw, "%s\t%.2f\t%d\n", a.Subject, a.Average, a.Count)
	}
	tw.Flush()
	if overall, ok := client.Average(grades); ok {
		fmt.Fprintf(w, "\nMoyenne générale: %.2f/20\n", overall)
	}
}

func printDashboard(w io.Writer, student *client.Student, snapshot *client.Snapshot) {
	if student != nil {
		fmt.Fprintf(w, "== %s ==\n\n", student.StudentName)
	}
	fmt.Fprintln(w, "-- Devoirs --")
	printHomework(w, snapshot.Homework)
	fmt.Fprintln(w, "\n-- Emploi du temps --")
	printTimetable(w, snapshot.Lessons)
	fmt.Fprintln(w, "\n-- Notes --")
	printGrades(w, snapshot.Grades)
}

// number prints 15 as "15" and 12.5 as "12.5".
func number(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
