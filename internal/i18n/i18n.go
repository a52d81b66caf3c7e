// Package i18n holds the supported interface languages and their labels.
package i18n

import "strings"

// Language is an interface language tag.
type Language string

const (
	English Language = "en"
	French  Language = "fr"
	Arabic  Language = "ar"
)

// Default is used when no language has been chosen.
const Default = French

// Supported lists the languages in display order.
var Supported = []Language{English, French, Arabic}

// Parse returns the language for tag, or false if it is not supported.
func Parse(tag string) (Language, bool) {
	l := Language(strings.ToLower(strings.TrimSpace(tag)))
	switch l {
	case English, French, Arabic:
		return l, true
	}
	return "", false
}

// RTL reports whether the language is written right to left.
func (l Language) RTL() bool { return l == Arabic }

// Labels are the fixed strings used in attendance reports.
type Labels struct {
	Time     string
	Teacher  string
	Presents string
	Absents  string
	Billet   string
	None     string
	// Name is the language name used when prompting for advisory text.
	Name string
}

var labels = map[Language]Labels{
	English: {Time: "Time", Teacher: "Teacher", Presents: "Presents", Absents: "Absents", Billet: "Billet", None: "None", Name: "English"},
	French:  {Time: "Heure", Teacher: "Enseignant", Presents: "Présents", Absents: "Absents", Billet: "Billet", None: "None", Name: "French"},
	Arabic:  {Time: "الوقت", Teacher: "الأستاذ", Presents: "الحاضرون", Absents: "الغائبون", Billet: "بطاقة", None: "None", Name: "Arabic"},
}

// For returns the labels of l, falling back to Default for unknown languages.
func For(l Language) Labels {
	if lb, ok := labels[l]; ok {
		return lb
	}
	return labels[Default]
}
