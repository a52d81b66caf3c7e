package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartattend/internal/registry"
	"smartattend/internal/roster"
	"smartattend/internal/store"
)

var fixedNow = func() time.Time { return time.Date(2026, 3, 2, 9, 5, 0, 0, time.Local) }

func threeStudents(classID string) []roster.Student {
	return []roster.Student{
		{ID: "A", Name: "Amine", ClassID: classID},
		{ID: "B", Name: "Basma", ClassID: classID},
		{ID: "C", Name: "Chiheb", ClassID: classID},
	}
}

// setup returns a service over a fresh store whose previous session of C1
// recorded absent as absentees (none when absent is nil).
func setup(t *testing.T, absent []string) (*Service, *registry.Registry, store.Store) {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()
	reg := registry.New(st)
	if absent != nil {
		_, err := reg.RecordSession(ctx, "C1", absent)
		require.NoError(t, err)
	}
	svc := NewService(st, reg, WithRoster(threeStudents), WithClock(fixedNow))
	return svc, reg, st
}

func TestNoPriorSessionMeansNoGating(t *testing.T) {
	svc, _, _ := setup(t, nil)
	d := svc.Open(context.Background(), "C1")

	for _, e := range d.Entries() {
		assert.False(t, e.Gated, e.Student.ID)
		assert.Equal(t, Record{StudentID: e.Student.ID}, e.Record)
	}
	assert.False(t, d.Resumed())
	assert.Zero(t, d.NeedsVerification())
}

func TestGatingFollowsLastSessionOnly(t *testing.T) {
	ctx := context.Background()
	svc, reg, _ := setup(t, []string{"A"})
	time.Sleep(2 * time.Millisecond)
	_, err := reg.RecordSession(ctx, "C1", []string{"C"})
	require.NoError(t, err)

	d := svc.Open(ctx, "C1")
	assert.False(t, d.Gated("A"))
	assert.True(t, d.Gated("C"))

	other := svc.Open(ctx, "C2")
	assert.False(t, other.Gated("C"))
}

func TestToggleCheckOnGatedStudent(t *testing.T) {
	ctx := context.Background()
	svc, _, st := setup(t, []string{"B"})
	d := svc.Open(ctx, "C1")
	before := d.Records()
	saved, _, _ := st.Get(ctx, store.DraftKey("C1"))

	err := d.ToggleCheck(ctx, "B")
	var vr *VerificationRequiredError
	require.True(t, errors.As(err, &vr))
	assert.ErrorIs(t, err, ErrVerificationRequired)
	assert.Equal(t, "Basma", vr.StudentName)
	assert.Equal(t, before, d.Records())

	after, _, _ := st.Get(ctx, store.DraftKey("C1"))
	assert.Equal(t, saved, after, "rejected toggle must not persist")
}

func TestToggleCheckFlips(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t, []string{"B"})
	d := svc.Open(ctx, "C1")

	require.NoError(t, d.ToggleCheck(ctx, "A"))
	r, _ := d.Record("A")
	assert.True(t, r.IsPresent)
	require.NoError(t, d.ToggleCheck(ctx, "A"))
	r, _ = d.Record("A")
	assert.False(t, r.IsPresent)

	// A verified gated student can be unchecked and checked again.
	require.NoError(t, d.Verify(ctx, "B"))
	require.NoError(t, d.ToggleCheck(ctx, "B"))
	r, _ = d.Record("B")
	assert.Equal(t, Record{StudentID: "B", IsPresent: false, IsVerified: true}, r)
	require.NoError(t, d.ToggleCheck(ctx, "B"))
	r, _ = d.Record("B")
	assert.True(t, r.IsPresent)
}

func TestToggleCheckUnknownStudent(t *testing.T) {
	svc, _, _ := setup(t, nil)
	d := svc.Open(context.Background(), "C1")
	assert.ErrorIs(t, d.ToggleCheck(context.Background(), "Z"), ErrUnknownStudent)
	assert.ErrorIs(t, d.Verify(context.Background(), "Z"), ErrUnknownStudent)
}

func TestVerifyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		gated []string
		prep  func(d *Draft)
	}{
		{name: "gated unverified", gated: []string{"A"}},
		{name: "not gated absent"},
		{name: "not gated present", prep: func(d *Draft) { _ = d.ToggleCheck(ctx, "A") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := setup(t, tt.gated)
			d := svc.Open(ctx, "C1")
			if tt.prep != nil {
				tt.prep(d)
			}
			require.NoError(t, d.Verify(ctx, "A"))
			once := d.Records()
			require.NoError(t, d.Verify(ctx, "A"))
			assert.Equal(t, once, d.Records())
			assert.Equal(t, Record{StudentID: "A", IsPresent: true, IsVerified: true}, once["A"])
		})
	}
}

func TestVerifyAll(t *testing.T) {
	ctx := context.Background()

	t.Run("no-op without gated students", func(t *testing.T) {
		svc, _, st := setup(t, nil)
		d := svc.Open(ctx, "C1")
		saved, _, _ := st.Get(ctx, store.DraftKey("C1"))
		n, err := d.VerifyAll(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		after, _, _ := st.Get(ctx, store.DraftKey("C1"))
		assert.Equal(t, saved, after)
	})

	t.Run("no-op when all gated are verified", func(t *testing.T) {
		svc, _, _ := setup(t, []string{"A"})
		d := svc.Open(ctx, "C1")
		require.NoError(t, d.Verify(ctx, "A"))
		before := d.Records()
		n, err := d.VerifyAll(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, before, d.Records())
	})

	t.Run("verifies exactly the gated unverified subset", func(t *testing.T) {
		svc, _, _ := setup(t, []string{"A", "C"})
		d := svc.Open(ctx, "C1")
		require.NoError(t, d.ToggleCheck(ctx, "B"))
		require.NoError(t, d.Verify(ctx, "C"))
		require.NoError(t, d.ToggleCheck(ctx, "C")) // verified but unchecked

		n, err := d.VerifyAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		recs := d.Records()
		assert.Equal(t, Record{StudentID: "A", IsPresent: true, IsVerified: true}, recs["A"])
		assert.Equal(t, Record{StudentID: "B", IsPresent: true}, recs["B"])
		assert.Equal(t, Record{StudentID: "C", IsPresent: false, IsVerified: true}, recs["C"])
	})
}

func TestMarkAllPresentNeverBypassesGate(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t, []string{"A", "B"})
	d := svc.Open(ctx, "C1")
	require.NoError(t, d.Verify(ctx, "B"))
	require.NoError(t, d.ToggleCheck(ctx, "B"))

	require.NoError(t, d.MarkAllPresent(ctx))

	recs := d.Records()
	assert.Equal(t, Record{StudentID: "A"}, recs["A"])
	assert.Equal(t, Record{StudentID: "B", IsPresent: true, IsVerified: true}, recs["B"])
	assert.Equal(t, Record{StudentID: "C", IsPresent: true}, recs["C"])
	assert.Equal(t, 2, d.PresentCount())
	assert.Equal(t, 1, d.NeedsVerification())
}

func TestDraftResumesAfterReopen(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t, []string{"B"})
	d := svc.Open(ctx, "C1")
	require.NoError(t, d.ToggleCheck(ctx, "A"))
	require.NoError(t, d.Verify(ctx, "B"))
	want := d.Records()

	// Opening another class leaves C1 alone.
	other := svc.Open(ctx, "C2")
	require.NoError(t, other.MarkAllPresent(ctx))

	again := svc.Open(ctx, "C1")
	assert.True(t, again.Resumed())
	assert.Equal(t, want, again.Records())
	assert.True(t, again.Gated("B"))
}

func TestResumedDraftKeepsFlagsWhenGatingChanged(t *testing.T) {
	ctx := context.Background()
	svc, reg, _ := setup(t, nil)
	d := svc.Open(ctx, "C1")
	require.NoError(t, d.ToggleCheck(ctx, "A"))

	// A session recorded elsewhere now gates A, but the draft is resumed verbatim.
	_, err := reg.RecordSession(ctx, "C1", []string{"A"})
	require.NoError(t, err)

	again := svc.Open(ctx, "C1")
	assert.True(t, again.Gated("A"))
	r, _ := again.Record("A")
	assert.Equal(t, Record{StudentID: "A", IsPresent: true}, r)
}

func TestMalformedDraftStartsFresh(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `{"A":`},
		{name: "empty object", raw: `{}`},
		{name: "mismatched key", raw: `{"A":{"studentId":"B","isPresent":true,"isVerified":false}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, st := setup(t, nil)
			require.NoError(t, st.Set(ctx, store.DraftKey("C1"), []byte(tt.raw)))
			d := svc.Open(ctx, "C1")
			assert.False(t, d.Resumed())
			assert.Len(t, d.Records(), 3)
			assert.Zero(t, d.PresentCount())
		})
	}
}

type unreadableDraft struct{ *store.Memory }

func (unreadableDraft) Get(context.Context, store.Key) ([]byte, bool, error) {
	return nil, false, errors.New("read timeout")
}

func TestOpenSavesFreshDraft(t *testing.T) {
	ctx := context.Background()
	svc, _, st := setup(t, nil)

	d := svc.Open(ctx, "C1")
	assert.False(t, d.Resumed())
	raw, ok, err := st.Get(ctx, store.DraftKey("C1"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{
		"A":{"studentId":"A","isPresent":false,"isVerified":false},
		"B":{"studentId":"B","isPresent":false,"isVerified":false},
		"C":{"studentId":"C","isPresent":false,"isVerified":false}
	}`, string(raw))

	assert.True(t, svc.Open(ctx, "C1").Resumed())
}

func TestOpenDoesNotOverwriteUnreadableDraft(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	saved := []byte(`{"A":{"studentId":"A","isPresent":true,"isVerified":false}}`)
	require.NoError(t, m.Set(ctx, store.DraftKey("C1"), saved))
	svc := NewService(unreadableDraft{m}, registry.New(m), WithRoster(threeStudents), WithClock(fixedNow))

	d := svc.Open(ctx, "C1")
	assert.False(t, d.Resumed())
	raw, _, err := m.Get(ctx, store.DraftKey("C1"))
	require.NoError(t, err)
	assert.Equal(t, saved, raw)
}

func TestConfirmClearsDraft(t *testing.T) {
	ctx := context.Background()
	svc, _, st := setup(t, nil)
	d := svc.Open(ctx, "C1")
	require.NoError(t, d.ToggleCheck(ctx, "C"))

	records, label, err := d.Confirm(ctx)
	require.NoError(t, err)
	assert.Equal(t, "09:05", label)
	assert.Equal(t, []Record{{StudentID: "A"}, {StudentID: "B"}, {StudentID: "C", IsPresent: true}}, records)
	assert.Equal(t, []string{"A", "B"}, AbsentIDs(records))

	_, ok, _ := st.Get(ctx, store.DraftKey("C1"))
	assert.False(t, ok)
	assert.False(t, svc.Open(ctx, "C1").Resumed())
}
