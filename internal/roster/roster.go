// Package roster holds the static school catalogs and the synthetic class rosters.
package roster

import (
	"errors"
	"fmt"
	"slices"
)

// ClassSize is the number of students generated for every class.
const ClassSize = 35

// Student is a pupil of one class. Students are generated, never stored.
type Student struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	ClassID string `json:"classId"`
}

// RosterFor returns the students of classID in roster order. The same
// classID always yields the same students in the same order.
func RosterFor(classID string) []Student {
	out := make([]Student, 0, ClassSize)
	for i := 1; i <= ClassSize; i++ {
		out = append(out, Student{
			ID:      fmt.Sprintf("%s-pupil-%d", classID, i),
			Name:    fmt.Sprintf("Élève %d", i),
			ClassID: classID,
		})
	}
	return out
}

// Names maps student ids of a roster to display names.
func Names(students []Student) map[string]string {
	out := make(map[string]string, len(students))
	for _, s := range students {
		out[s.ID] = s.Name
	}
	return out
}

// FirstLevel is the level whose classes carry no section.
const FirstLevel = "1ére"

var (
	Levels   = []string{FirstLevel, "2éme", "3éme", "bac"}
	Sections = []string{"Sc.Informatique", "Mathématiques", "Lettres", "Science.Exp", "Eco + gestion"}
	Numbers  = []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"}
	Subjects = []string{"Mathematics", "Physics", "Biology", "Literature", "History", "Philosophy", "Chemistry", "Arts", "Computer Science"}
)

// ErrInvalidClass is returned when a class label cannot be built from the given parts.
var ErrInvalidClass = errors.New("invalid class selection")

// ClassLabel builds the class identifier from catalog values. The first
// level ignores section and is labelled "1ére s<number>".
func ClassLabel(level, section, number string) (string, error) {
	if !slices.Contains(Levels, level) {
		return "", fmt.Errorf("%w: unknown level %q", ErrInvalidClass, level)
	}
	if !slices.Contains(Numbers, number) {
		return "", fmt.Errorf("%w: unknown number %q", ErrInvalidClass, number)
	}
	if level == FirstLevel {
		return FirstLevel + " s" + number, nil
	}
	if !slices.Contains(Sections, section) {
		return "", fmt.Errorf("%w: level %s needs a section", ErrInvalidClass, level)
	}
	return level + " " + section + " " + number, nil
}

// ValidSubject reports whether s is in the subject catalog.
func ValidSubject(s string) bool {
	return slices.Contains(Subjects, s)
}
