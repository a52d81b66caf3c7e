package report

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/xuri/excelize/v2"

	"smartattend/internal/i18n"
	"smartattend/internal/registry"
	"smartattend/internal/roster"
)

// WriteSessionWorkbook writes one row per student of the session with its
// presence and billet status.
func WriteSessionWorkbook(w io.Writer, in Input) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("report: close workbook: %v", err)
		}
	}()

	lb := i18n.For(in.Language)
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{lb.Time, in.Time},
		{lb.Teacher, in.Teacher},
		{"Class", in.ClassID},
		{"Student", lb.Presents, lb.Billet},
	}
	byID := make(map[string]bool, len(in.Records))
	verified := make(map[string]bool, len(in.Records))
	for _, r := range in.Records {
		byID[r.StudentID] = r.IsPresent
		verified[r.StudentID] = r.IsVerified
	}
	for _, s := range in.Students {
		present, ok := byID[s.ID]
		if !ok {
			continue
		}
		rows = append(rows, []any{s.Name, yesNo(present), yesNo(verified[s.ID])})
	}
	if err := writeRows(f, sheet, rows); err != nil {
		return err
	}
	_, err := f.WriteTo(w)
	return err
}

// WriteAbsenceWorkbook exports the absence log, resolving student names from
// the class rosters.
func WriteAbsenceWorkbook(w io.Writer, entries []registry.AbsenceEntry) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("report: close workbook: %v", err)
		}
	}()

	const sheet = "Absences"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return err
	}

	names := map[string]map[string]string{}
	rows := [][]any{{"Class", "Student ID", "Student", "Recorded At"}}
	for _, e := range entries {
		if _, ok := names[e.ClassID]; !ok {
			names[e.ClassID] = roster.Names(roster.RosterFor(e.ClassID))
		}
		at := time.UnixMilli(e.Timestamp).UTC().Format(time.RFC3339)
		rows = append(rows, []any{e.ClassID, e.StudentID, names[e.ClassID][e.StudentID], at})
	}
	if err := writeRows(f, sheet, rows); err != nil {
		return err
	}
	_, err := f.WriteTo(w)
	return err
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("report: write row %d: %w", i+1, err)
		}
	}
	return nil
}
