// Package registry keeps the log of confirmed class sessions and the absences
// recorded in each of them.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"smartattend/internal/store"
)

// DefaultRetention is how long markers and absences are kept.
const DefaultRetention = 24 * time.Hour

// SessionMarker records that classID was confirmed at Timestamp (unix milliseconds).
type SessionMarker struct {
	ClassID   string `json:"classId"`
	Timestamp int64  `json:"timestamp"`
}

// AbsenceEntry records that StudentID was absent from the session of ClassID at Timestamp.
type AbsenceEntry struct {
	ClassID   string `json:"classId"`
	StudentID string `json:"studentId"`
	Timestamp int64  `json:"timestamp"`
}

// Registry is the sole writer of the session and absence logs.
type Registry struct {
	store     store.Store
	delay     time.Duration
	retention time.Duration
	now       func() time.Time

	// mu serializes writers so two recordings never interleave their
	// read-modify-write of the logs.
	mu sync.Mutex
}

// Option configures a Registry.
type Option func(*Registry)

// WithDelay sets the simulated remote-sync delay applied before each write.
func WithDelay(d time.Duration) Option {
	return func(r *Registry) { r.delay = d }
}

// WithRetention overrides DefaultRetention.
func WithRetention(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.retention = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New creates a registry over s.
func New(s store.Store, opts ...Option) *Registry {
	r := &Registry{store: s, retention: DefaultRetention, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecordSession waits for the sync delay, then appends one absence per
// distinct id in absentIDs and one marker for classID, all at the same
// timestamp, pruning entries older than the retention window from both logs
// with a single cutoff. Both logs are written in one batch, so readers see
// either the previous state or the complete new one. Cancelling ctx before
// the write leaves the registry untouched.
func (r *Registry) RecordSession(ctx context.Context, classID string, absentIDs []string) (int64, error) {
	if r.delay > 0 {
		t := time.NewTimer(r.delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UnixMilli()
	cutoff := now - r.retention.Milliseconds()

	var stored []AbsenceEntry
	if _, err := store.ReadJSON(ctx, r.store, store.KeyAbsences, &stored); err != nil {
		return 0, fmt.Errorf("registry: write session for %s: %w", classID, err)
	}
	absences := prune(stored, func(e AbsenceEntry) int64 { return e.Timestamp }, cutoff)
	seen := make(map[string]bool, len(absentIDs))
	for _, id := range absentIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		absences = append(absences, AbsenceEntry{ClassID: classID, StudentID: id, Timestamp: now})
	}

	var markers []SessionMarker
	if _, err := store.ReadJSON(ctx, r.store, store.KeySessions, &markers); err != nil {
		return 0, fmt.Errorf("registry: write session for %s: %w", classID, err)
	}
	sessions := prune(markers, func(m SessionMarker) int64 { return m.Timestamp }, cutoff)
	sessions = append(sessions, SessionMarker{ClassID: classID, Timestamp: now})

	batch := store.Batch{}
	if err := batch.Put(store.KeyAbsences, absences); err != nil {
		return 0, err
	}
	if err := batch.Put(store.KeySessions, sessions); err != nil {
		return 0, err
	}
	if err := r.store.SetMany(ctx, batch); err != nil {
		return 0, fmt.Errorf("registry: write session for %s: %w", classID, err)
	}
	return now, nil
}

// LastSessionTimestamp returns the latest marker timestamp of classID.
// ok is false when the class has never been confirmed.
func (r *Registry) LastSessionTimestamp(ctx context.Context, classID string) (ts int64, ok bool) {
	for _, m := range r.loadSessions(ctx) {
		if m.ClassID == classID && (!ok || m.Timestamp > ts) {
			ts, ok = m.Timestamp, true
		}
	}
	return ts, ok
}

// AbsenteesAt returns the ids recorded absent for classID at exactly timestamp.
func (r *Registry) AbsenteesAt(ctx context.Context, classID string, timestamp int64) []string {
	var out []string
	for _, e := range r.loadAbsences(ctx) {
		if e.ClassID == classID && e.Timestamp == timestamp {
			out = append(out, e.StudentID)
		}
	}
	return out
}

// LastAbsentees returns the absentees of the most recent session of classID,
// or nil when the class has no session.
func (r *Registry) LastAbsentees(ctx context.Context, classID string) []string {
	ts, ok := r.LastSessionTimestamp(ctx, classID)
	if !ok {
		return nil
	}
	return r.AbsenteesAt(ctx, classID, ts)
}

// AllAbsences returns the whole absence log.
func (r *Registry) AllAbsences(ctx context.Context) []AbsenceEntry {
	return r.loadAbsences(ctx)
}

// Sessions returns the whole session log.
func (r *Registry) Sessions(ctx context.Context) []SessionMarker {
	return r.loadSessions(ctx)
}

func (r *Registry) loadAbsences(ctx context.Context) []AbsenceEntry {
	var out []AbsenceEntry
	if !store.GetJSON(ctx, r.store, store.KeyAbsences, &out) {
		return nil
	}
	return out
}

func (r *Registry) loadSessions(ctx context.Context) []SessionMarker {
	var out []SessionMarker
	if !store.GetJSON(ctx, r.store, store.KeySessions, &out) {
		return nil
	}
	return out
}

func prune[T any](in []T, ts func(T) int64, cutoff int64) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		if ts(v) > cutoff {
			out = append(out, v)
		}
	}
	return out
}
