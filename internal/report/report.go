// Package report renders confirmed attendance sessions for reading and sending.
package report

import (
	"strings"

	"smartattend/internal/attendance"
	"smartattend/internal/i18n"
	"smartattend/internal/roster"
)

// Input is everything needed to render one session report.
type Input struct {
	Teacher  string
	ClassID  string
	Time     string
	Language i18n.Language
	Students []roster.Student
	Records  []attendance.Record
}

// Partition holds student names by outcome, in roster order.
type Partition struct {
	Presents []string
	Absents  []string
	Verified []string
}

// Split partitions the roster using the records. Students without a record
// are left out.
func Split(students []roster.Student, records []attendance.Record) Partition {
	byID := make(map[string]attendance.Record, len(records))
	for _, r := range records {
		byID[r.StudentID] = r
	}
	var p Partition
	for _, s := range students {
		r, ok := byID[s.ID]
		if !ok {
			continue
		}
		if r.IsPresent {
			p.Presents = append(p.Presents, s.Name)
		} else {
			p.Absents = append(p.Absents, s.Name)
		}
		if r.IsVerified {
			p.Verified = append(p.Verified, s.Name)
		}
	}
	return p
}

// Format renders the fixed-layout text report. Empty lists render as the
// language's None placeholder.
func Format(in Input) string {
	lb := i18n.For(in.Language)
	p := Split(in.Students, in.Records)

	var b strings.Builder
	b.WriteString(lb.Time + " : " + in.Time + "\n")
	b.WriteString(lb.Teacher + " : " + in.Teacher + "\n\n")
	b.WriteString(lb.Presents + " : " + joinOr(p.Presents, lb.None) + "\n\n")
	b.WriteString(lb.Absents + " : " + joinOr(p.Absents, lb.None) + "\n\n")
	b.WriteString(lb.Billet + " : " + joinOr(p.Verified, lb.None))
	return b.String()
}

func joinOr(names []string, none string) string {
	if len(names) == 0 {
		return none
	}
	return strings.Join(names, ", ")
}

// Subject returns the mail subject for classID.
func Subject(classID string) string {
	return "Attendance Report - " + classID
}

// MailtoURL builds the mail-composition link handing the report to the
// user's mail client.
func MailtoURL(recipient, classID, body string) string {
	return "mailto:" + recipient + "?subject=" + encodeComponent(Subject(classID)) + "&body=" + encodeComponent(body)
}

// encodeComponent percent-encodes every UTF-8 byte of s except letters,
// digits and -_.!~*'().
func encodeComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreservedComponent(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&15])
	}
	return b.String()
}

func unreservedComponent(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}
