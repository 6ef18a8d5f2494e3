package client

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Topic is a data view a chat message may refer to.
type Topic string

const (
	TopicHomework  Topic = "homework"
	TopicTimetable Topic = "timetable"
	TopicGrades    Topic = "grades"
)

// TopicSet is a set of topics.
type TopicSet map[Topic]bool

// Has reports whether topic is in the set.
func (s TopicSet) Has(topic Topic) bool {
	return s[topic]
}

// Sorted returns the topics in a stable order.
func (s TopicSet) Sorted() []Topic {
	topics := make([]Topic, 0, len(s))
	for topic, ok := range s {
		if ok {
			topics = append(topics, topic)
		}
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i] < topics[j] })
	return topics
}

// topicKeywords are matched as substrings of the folded message.
var topicKeywords = map[Topic][]string{
	TopicHomework: {
		"devoir", "exercice", "a faire", "a rendre", "rendre", "dm ", "homework",
	},
	TopicTimetable: {
		"emploi du temps", "edt", "cours", "horaire", "salle", "demain",
		"aujourd'hui", "cette semaine", "lundi", "mardi", "mercredi", "jeudi",
		"vendredi", "samedi", "timetable", "schedule",
	},
	TopicGrades: {
		"note", "moyenne", "bulletin", "evaluation", "controle", "resultat",
		"grade",
	},
}

// ClassifyIntent returns the topics mentioned in text. Matching ignores
// case and accents ("Évaluation" matches "evaluation").
func ClassifyIntent(text string) TopicSet {
	folded := fold(text) + " "
	topics := make(TopicSet)
	for topic, keywords := range topicKeywords {
		for _, keyword := range keywords {
			if strings.Contains(folded, keyword) {
				topics[topic] = true
				break
			}
		}
	}
	return topics
}

// fold lowercases s and strips combining marks.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ReplaceAll(folded, "’", "'")
	return strings.ToLower(folded)
}
