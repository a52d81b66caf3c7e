package attendance

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"smartattend/internal/roster"
	"smartattend/internal/store"
)

// TimeLabelLayout formats the confirmation time shown on reports.
const TimeLabelLayout = "15:04"

// Record is the attendance of one student in the session being taken.
// IsVerified implies IsPresent.
type Record struct {
	StudentID  string `json:"studentId"`
	IsPresent  bool   `json:"isPresent"`
	IsVerified bool   `json:"isVerified"`
}

// Entry joins a student with its gating flag and current record.
type Entry struct {
	Student roster.Student `json:"student"`
	Gated   bool           `json:"gated"`
	Record  Record         `json:"record"`
}

// Draft is the in-progress attendance of one class. Every mutation is
// persisted under the class draft key so an interrupted session resumes.
type Draft struct {
	classID  string
	students []roster.Student
	index    map[string]int
	gated    map[string]bool
	records  map[string]Record
	resumed  bool

	store  store.Store
	now    func() time.Time
	reject func()
}

func newDraft(classID string, students []roster.Student, gatedIDs []string, s store.Store, now func() time.Time) *Draft {
	d := &Draft{
		classID:  classID,
		students: students,
		index:    make(map[string]int, len(students)),
		gated:    make(map[string]bool, len(gatedIDs)),
		store:    s,
		now:      now,
	}
	for i, st := range students {
		d.index[st.ID] = i
	}
	for _, id := range gatedIDs {
		d.gated[id] = true
	}
	return d
}

// load resumes the persisted draft if one is well formed, otherwise starts
// every student absent and unverified and saves that draft. A draft that
// could not be read is never overwritten.
func (d *Draft) load(ctx context.Context) {
	var saved map[string]Record
	found, err := store.ReadJSON(ctx, d.store, store.DraftKey(d.classID), &saved)
	if found && wellFormed(saved) {
		d.records = saved
		d.resumed = true
		return
	}
	d.records = make(map[string]Record, len(d.students))
	for _, st := range d.students {
		d.records[st.ID] = Record{StudentID: st.ID}
	}
	if err != nil {
		log.Printf("attendance: %v, starting unsaved draft", err)
		return
	}
	if err := d.persist(ctx); err != nil {
		log.Printf("attendance: %v", err)
	}
}

func wellFormed(records map[string]Record) bool {
	if len(records) == 0 {
		return false
	}
	for id, r := range records {
		if r.StudentID != id {
			log.Printf("attendance: draft record %q keyed as %q, discarding draft", r.StudentID, id)
			return false
		}
	}
	return true
}

// ClassID returns the class this draft belongs to.
func (d *Draft) ClassID() string { return d.classID }

// Resumed reports whether the records came from a persisted draft.
func (d *Draft) Resumed() bool { return d.resumed }

// Students returns the roster in order.
func (d *Draft) Students() []roster.Student { return d.students }

// Gated reports whether id was absent in the previous session of the class.
func (d *Draft) Gated(id string) bool { return d.gated[id] }

// Record returns the current record of id.
func (d *Draft) Record(id string) (Record, bool) {
	if _, ok := d.index[id]; !ok {
		return Record{}, false
	}
	return d.record(id), true
}

func (d *Draft) record(id string) Record {
	if r, ok := d.records[id]; ok {
		return r
	}
	return Record{StudentID: id}
}

// Entries returns every student with its gating flag and record, in roster order.
func (d *Draft) Entries() []Entry {
	out := make([]Entry, 0, len(d.students))
	for _, st := range d.students {
		out = append(out, Entry{Student: st, Gated: d.gated[st.ID], Record: d.record(st.ID)})
	}
	return out
}

// Records returns a copy of the records map.
func (d *Draft) Records() map[string]Record {
	out := make(map[string]Record, len(d.records))
	for k, v := range d.records {
		out[k] = v
	}
	return out
}

// PresentCount counts records marked present.
func (d *Draft) PresentCount() int {
	n := 0
	for _, st := range d.students {
		if d.record(st.ID).IsPresent {
			n++
		}
	}
	return n
}

// NeedsVerification counts gated students not yet verified.
func (d *Draft) NeedsVerification() int {
	n := 0
	for _, st := range d.students {
		if d.gated[st.ID] && !d.record(st.ID).IsVerified {
			n++
		}
	}
	return n
}

// ToggleCheck flips the presence of id. Marking a gated, unverified student
// present is rejected with a *VerificationRequiredError and changes nothing.
func (d *Draft) ToggleCheck(ctx context.Context, id string) error {
	i, ok := d.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStudent, id)
	}
	r := d.record(id)
	if !r.IsPresent && d.gated[id] && !r.IsVerified {
		if d.reject != nil {
			d.reject()
		}
		return &VerificationRequiredError{StudentID: id, StudentName: d.students[i].Name}
	}
	r.IsPresent = !r.IsPresent
	d.records[id] = r
	return d.persist(ctx)
}

// Verify records the billet of id and marks it present. It is idempotent.
func (d *Draft) Verify(ctx context.Context, id string) error {
	if _, ok := d.index[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStudent, id)
	}
	d.records[id] = Record{StudentID: id, IsPresent: true, IsVerified: true}
	return d.persist(ctx)
}

// VerifyAll verifies every gated, unverified student and returns how many
// changed. Nothing is written when that number is zero.
func (d *Draft) VerifyAll(ctx context.Context) (int, error) {
	changed := 0
	for _, st := range d.students {
		if d.gated[st.ID] && !d.record(st.ID).IsVerified {
			d.records[st.ID] = Record{StudentID: st.ID, IsPresent: true, IsVerified: true}
			changed++
		}
	}
	if changed == 0 {
		return 0, nil
	}
	return changed, d.persist(ctx)
}

// MarkAllPresent marks present every student that is not gated or is
// already verified. Gated, unverified students are left untouched.
func (d *Draft) MarkAllPresent(ctx context.Context) error {
	for _, st := range d.students {
		r := d.record(st.ID)
		if !d.gated[st.ID] || r.IsVerified {
			r.IsPresent = true
			d.records[st.ID] = r
		}
	}
	return d.persist(ctx)
}

// Finalize returns the records in roster order and the confirmation time
// label, without touching the persisted draft.
func (d *Draft) Finalize() ([]Record, string) {
	out := make([]Record, 0, len(d.students))
	for _, st := range d.students {
		out = append(out, d.record(st.ID))
	}
	return out, d.now().Format(TimeLabelLayout)
}

// Discard removes the persisted draft so the next open starts fresh.
func (d *Draft) Discard(ctx context.Context) error {
	if err := d.store.Remove(ctx, store.DraftKey(d.classID)); err != nil {
		return fmt.Errorf("attendance: clear draft %s: %w", d.classID, err)
	}
	return nil
}

// Confirm finalizes the draft and clears it from the store. Recording the
// session is left to the caller.
func (d *Draft) Confirm(ctx context.Context) ([]Record, string, error) {
	records, label := d.Finalize()
	if err := d.Discard(ctx); err != nil {
		return nil, "", err
	}
	return records, label, nil
}

func (d *Draft) persist(ctx context.Context) error {
	raw, err := json.Marshal(d.records)
	if err != nil {
		return fmt.Errorf("attendance: encode draft %s: %w", d.classID, err)
	}
	if err := d.store.Set(ctx, store.DraftKey(d.classID), raw); err != nil {
		return fmt.Errorf("attendance: save draft %s: %w", d.classID, err)
	}
	return nil
}

// AbsentIDs returns the ids of records not marked present.
func AbsentIDs(records []Record) []string {
	var out []string
	for _, r := range records {
		if !r.IsPresent {
			out = append(out, r.StudentID)
		}
	}
	return out
}
