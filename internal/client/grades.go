package client

import "sort"

// Normalized returns the grade on a /20 scale, false when not graded.
func (g Grade) Normalized() (float64, bool) {
	if !g.Value.Valid {
		return 0, false
	}
	return g.Value.Value / g.Scale() * 20, true
}

// Average returns the coefficient-weighted mean of the graded entries on
// a /20 scale. It reports false when no entry carries weight.
func Average(grades []Grade) (float64, bool) {
	var sum, weights float64
	for _, grade := range grades {
		value, ok := grade.Normalized()
		if !ok {
			continue
		}
		weight := grade.Weight()
		sum += value * weight
		weights += weight
	}
	if weights == 0 {
		return 0, false
	}
	return sum / weights, true
}

// SubjectAverage is the mean of one subject.
type SubjectAverage struct {
	Subject string
	Average float64
	Count   int
}

// SubjectAverages computes Average per subject, sorted by subject name.
// Subjects without any graded entry are omitted.
func SubjectAverages(grades []Grade) []SubjectAverage {
	bySubject := make(map[string][]Grade)
	for _, grade := range grades {
		bySubject[grade.Subject] = append(bySubject[grade.Subject], grade)
	}

	averages := make([]SubjectAverage, 0, len(bySubject))
	for subject, entries := range bySubject {
		average, ok := Average(entries)
		if !ok {
			continue
		}
		count := 0
		for _, entry := range entries {
			if entry.Value.Valid {
				count++
			}
		}
		averages = append(averages, SubjectAverage{Subject: subject, Average: average, Count: count})
	}
	sort.Slice(averages, func(i, j int) bool { return averages[i].Subject < averages[j].Subject })
	return averages
}
