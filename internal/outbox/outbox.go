// Package outbox hands confirmed sessions to the mail client by writing the
// report text, its mailto link and a spreadsheet into a directory.
package outbox

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"smartattend/internal/attendance"
	"smartattend/internal/i18n"
	"smartattend/internal/queue"
	"smartattend/internal/report"
)

// Writer writes one report pair per confirmation.
type Writer struct {
	Dir       string
	Recipient string
	// Language picks the report labels; nil uses i18n.Default.
	Language func(ctx context.Context) i18n.Language
}

// Files are the paths written for one confirmation.
type Files struct {
	Text     string
	Workbook string
}

// Deliver writes <class>-<timestamp>.txt and .xlsx for c.
func (w *Writer) Deliver(ctx context.Context, c attendance.Confirmation) (Files, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return Files{}, fmt.Errorf("outbox: %w", err)
	}
	lang := i18n.Default
	if w.Language != nil {
		lang = w.Language(ctx)
	}
	in := report.Input{
		Teacher:  c.Teacher,
		ClassID:  c.ClassID,
		Time:     c.Time,
		Language: lang,
		Students: c.Students,
		Records:  c.Records,
	}
	text := report.Format(in)

	base := filepath.Join(w.Dir, fmt.Sprintf("%s-%d", fileSafe(c.ClassID), c.Timestamp))
	files := Files{Text: base + ".txt", Workbook: base + ".xlsx"}

	body := text + "\n\n" + report.MailtoURL(w.Recipient, c.ClassID, text) + "\n"
	if err := os.WriteFile(files.Text, []byte(body), 0o644); err != nil {
		return Files{}, fmt.Errorf("outbox: write report: %w", err)
	}

	f, err := os.Create(files.Workbook)
	if err != nil {
		return Files{}, fmt.Errorf("outbox: create workbook: %w", err)
	}
	if err := report.WriteSessionWorkbook(f, in); err != nil {
		f.Close()
		return Files{}, fmt.Errorf("outbox: write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return Files{}, fmt.Errorf("outbox: close workbook: %w", err)
	}
	return files, nil
}

// Run delivers every session.confirmed message of q until ctx is done.
func (w *Writer) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("outbox: consume: %w", err)
	}
	for msg := range messages {
		if msg.Type != attendance.EventSessionConfirmed {
			continue
		}
		c, err := attendance.DecodeConfirmation(msg)
		if err != nil {
			log.Printf("outbox: decode event failed: %v", err)
			continue
		}
		files, err := w.Deliver(ctx, c)
		if err != nil {
			log.Printf("outbox: deliver %s@%d failed: %v", c.ClassID, c.Timestamp, err)
			continue
		}
		log.Printf("outbox: session %s@%d: %d absent, report %s", c.ClassID, c.Timestamp, len(c.AbsentIDs), files.Text)
	}
	return nil
}

func fileSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '+', '/', '\\', ':':
			return '_'
		}
		return r
	}, s)
}
