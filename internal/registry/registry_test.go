package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartattend/internal/store"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
}

type failingStore struct{ *store.Memory }

func (f failingStore) SetMany(context.Context, map[store.Key][]byte) error {
	return errors.New("network down")
}

func TestEmptyRegistry(t *testing.T) {
	ctx := context.Background()
	r := New(store.NewMemory())

	_, ok := r.LastSessionTimestamp(ctx, "C1")
	assert.False(t, ok)
	assert.Empty(t, r.AbsenteesAt(ctx, "C1", 0))
	assert.Empty(t, r.LastAbsentees(ctx, "C1"))
	assert.Empty(t, r.AllAbsences(ctx))
}

func TestRecordSession(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	r := New(store.NewMemory(), WithClock(c.now))

	ts, err := r.RecordSession(ctx, "C1", []string{"C1-pupil-2", "C1-pupil-5", "C1-pupil-2"})
	require.NoError(t, err)
	assert.Equal(t, c.now().UnixMilli(), ts)

	last, ok := r.LastSessionTimestamp(ctx, "C1")
	require.True(t, ok)
	assert.Equal(t, ts, last)
	assert.ElementsMatch(t, []string{"C1-pupil-2", "C1-pupil-5"}, r.AbsenteesAt(ctx, "C1", ts))

	c.advance(time.Minute)
	ts2, err := r.RecordSession(ctx, "C1", nil)
	require.NoError(t, err)
	last, _ = r.LastSessionTimestamp(ctx, "C1")
	assert.Equal(t, ts2, last)
	assert.Empty(t, r.LastAbsentees(ctx, "C1"))
	assert.Len(t, r.AbsenteesAt(ctx, "C1", ts), 2, "older session keeps its absentees")
}

func TestClassesAreIndependent(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	r := New(store.NewMemory(), WithClock(c.now))

	tsA, err := r.RecordSession(ctx, "A", []string{"A-pupil-1"})
	require.NoError(t, err)
	c.advance(time.Second)
	_, err = r.RecordSession(ctx, "B", []string{"B-pupil-9"})
	require.NoError(t, err)

	last, ok := r.LastSessionTimestamp(ctx, "A")
	require.True(t, ok)
	assert.Equal(t, tsA, last)
	assert.Equal(t, []string{"A-pupil-1"}, r.LastAbsentees(ctx, "A"))
	assert.Equal(t, []string{"B-pupil-9"}, r.LastAbsentees(ctx, "B"))
	assert.Len(t, r.AllAbsences(ctx), 2)
}

func TestPruneOnNextWrite(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	r := New(store.NewMemory(), WithClock(c.now))

	old, err := r.RecordSession(ctx, "A", []string{"A-pupil-1"})
	require.NoError(t, err)

	c.advance(25 * time.Hour)
	// Reads before the next write still see the stale entries.
	assert.Len(t, r.AllAbsences(ctx), 1)

	_, err = r.RecordSession(ctx, "B", []string{"B-pupil-1"})
	require.NoError(t, err)

	for _, e := range r.AllAbsences(ctx) {
		assert.NotEqual(t, "A", e.ClassID)
	}
	assert.Empty(t, r.AbsenteesAt(ctx, "A", old))
	_, ok := r.LastSessionTimestamp(ctx, "A")
	assert.False(t, ok)
}

func TestPruneKeepsEntriesInsideWindow(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	r := New(store.NewMemory(), WithClock(c.now), WithRetention(time.Hour))

	ts, err := r.RecordSession(ctx, "A", []string{"A-pupil-1"})
	require.NoError(t, err)
	c.advance(59 * time.Minute)
	_, err = r.RecordSession(ctx, "A", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"A-pupil-1"}, r.AbsenteesAt(ctx, "A", ts))
	assert.Len(t, r.Sessions(ctx), 2)
}

type unreadableStore struct {
	*store.Memory
	fail func(store.Key) bool
}

func (u unreadableStore) Get(ctx context.Context, key store.Key) ([]byte, bool, error) {
	if u.fail(key) {
		return nil, false, errors.New("read timeout")
	}
	return u.Memory.Get(ctx, key)
}

func TestFailedReadKeepsOtherClasses(t *testing.T) {
	tests := []struct {
		name string
		key  store.Key
	}{
		{name: "absences unreadable", key: store.KeyAbsences},
		{name: "sessions unreadable", key: store.KeySessions},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			m := store.NewMemory()
			c := newClock()
			r := New(m, WithClock(c.now))
			ts, err := r.RecordSession(ctx, "C1", []string{"B"})
			require.NoError(t, err)

			c.advance(time.Minute)
			broken := New(unreadableStore{Memory: m, fail: func(k store.Key) bool { return k == tt.key }}, WithClock(c.now))
			_, err = broken.RecordSession(ctx, "C2", []string{"X"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "read timeout")

			last, ok := r.LastSessionTimestamp(ctx, "C1")
			require.True(t, ok)
			assert.Equal(t, ts, last)
			assert.Equal(t, []string{"B"}, r.LastAbsentees(ctx, "C1"))
			_, ok = r.LastSessionTimestamp(ctx, "C2")
			assert.False(t, ok)
		})
	}
}

func TestCorruptedLogsReadAsEmpty(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.Set(ctx, store.KeySessions, []byte("{not json")))
	require.NoError(t, m.Set(ctx, store.KeyAbsences, []byte("[{")))
	r := New(m)

	_, ok := r.LastSessionTimestamp(ctx, "C1")
	assert.False(t, ok)
	assert.Empty(t, r.AllAbsences(ctx))

	ts, err := r.RecordSession(ctx, "C1", []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, r.AbsenteesAt(ctx, "C1", ts))
}

func TestFailedWriteLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	c := newClock()
	ok := New(m, WithClock(c.now))
	ts, err := ok.RecordSession(ctx, "C1", []string{"a"})
	require.NoError(t, err)

	c.advance(time.Minute)
	broken := New(failingStore{m}, WithClock(c.now))
	_, err = broken.RecordSession(ctx, "C1", []string{"b"})
	require.Error(t, err)

	last, _ := ok.LastSessionTimestamp(ctx, "C1")
	assert.Equal(t, ts, last)
	assert.Equal(t, []string{"a"}, ok.LastAbsentees(ctx, "C1"))
}

func TestWriteNotVisibleDuringDelay(t *testing.T) {
	ctx := context.Background()
	r := New(store.NewMemory(), WithDelay(50*time.Millisecond))

	done := make(chan int64, 1)
	go func() {
		ts, err := r.RecordSession(ctx, "C1", []string{"a"})
		if err == nil {
			done <- ts
		}
		close(done)
	}()

	_, ok := r.LastSessionTimestamp(ctx, "C1")
	assert.False(t, ok, "pending write must not be observable")

	ts, received := <-done
	require.True(t, received)
	last, ok := r.LastSessionTimestamp(ctx, "C1")
	require.True(t, ok)
	assert.Equal(t, ts, last)
}

func TestCancelledBeforeWrite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := New(store.NewMemory(), WithDelay(time.Hour))
	cancel()

	_, err := r.RecordSession(ctx, "C1", []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
	_, ok := r.LastSessionTimestamp(context.Background(), "C1")
	assert.False(t, ok)
}
