package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"smartattend/internal/metrics"
	"smartattend/internal/queue"
	"smartattend/internal/roster"
	"smartattend/internal/store"
)

// EventSessionConfirmed is the queue message type published after a confirmation.
const EventSessionConfirmed = "session.confirmed"

// SessionLog is the registry of confirmed sessions.
type SessionLog interface {
	LastSessionTimestamp(ctx context.Context, classID string) (int64, bool)
	AbsenteesAt(ctx context.Context, classID string, timestamp int64) []string
	RecordSession(ctx context.Context, classID string, absentIDs []string) (int64, error)
}

// Publisher sends messages to background workers.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// RosterFunc returns the students of a class in roster order.
type RosterFunc func(classID string) []roster.Student

// Confirmation is the outcome of a recorded session.
type Confirmation struct {
	ClassID   string           `json:"classId"`
	Teacher   string           `json:"teacher"`
	Time      string           `json:"time"`
	Timestamp int64            `json:"timestamp"`
	Records   []Record         `json:"records"`
	AbsentIDs []string         `json:"absentIds"`
	Students  []roster.Student `json:"-"`
}

// ClassStatus is one class tile of the dashboard.
type ClassStatus struct {
	ClassID      string `json:"classId"`
	HasAbsentees bool   `json:"hasAbsentees"`
}

// Dashboard aggregates the registry for one teacher.
type Dashboard struct {
	Summary      *Summary      `json:"summary,omitempty"`
	TotalAbsents int           `json:"totalAbsents"`
	Classes      []ClassStatus `json:"classes"`
	Syncing      bool          `json:"syncing"`
}

// Service opens drafts and records confirmed sessions.
type Service struct {
	store     store.Store
	sessions  SessionLog
	summaries *SummaryCache
	roster    RosterFunc
	events    Publisher
	metrics   *metrics.Metrics
	now       func() time.Time

	publishTimeout time.Duration

	mu       sync.Mutex
	inflight map[string]bool
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets where confirmation events are sent.
func WithPublisher(p Publisher) Option { return func(s *Service) { s.events = p } }

// WithPublishTimeout bounds how long a confirmation event may wait for
// queue space before it is dropped.
func WithPublishTimeout(d time.Duration) Option { return func(s *Service) { s.publishTimeout = d } }

// WithMetrics sets the collectors to update.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithRoster replaces roster.RosterFor.
func WithRoster(f RosterFunc) Option { return func(s *Service) { s.roster = f } }

// WithClock replaces time.Now for time labels.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService creates a service over the store and session log.
func NewService(st store.Store, sessions SessionLog, opts ...Option) *Service {
	s := &Service{
		store:     st,
		sessions:  sessions,
		summaries: NewSummaryCache(st),
		roster:    roster.RosterFor,
		now:       time.Now,
		inflight:  make(map[string]bool),

		publishTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summaries returns the last-session summary cache.
func (s *Service) Summaries() *SummaryCache { return s.summaries }

// Open loads the roster of classID, derives which students are gated from
// the previous session, and resumes or starts the draft.
func (s *Service) Open(ctx context.Context, classID string) *Draft {
	d := newDraft(classID, s.roster(classID), s.gatedIDs(ctx, classID), s.store, s.now)
	d.reject = s.metrics.VerificationRejected
	d.load(ctx)
	return d
}

func (s *Service) gatedIDs(ctx context.Context, classID string) []string {
	ts, ok := s.sessions.LastSessionTimestamp(ctx, classID)
	if !ok {
		return nil
	}
	return s.sessions.AbsenteesAt(ctx, classID, ts)
}

// Confirm records the current draft of classID as a session taken by
// teacher. The draft is cleared and the summary updated only once the
// registry write has completed; on failure both are left as they were and
// the returned error wraps ErrSyncFailed. The confirmation event is
// published after the class is released.
func (s *Service) Confirm(ctx context.Context, teacher, classID string) (Confirmation, error) {
	c, err := s.record(ctx, teacher, classID)
	if err != nil {
		return Confirmation{}, err
	}
	s.publish(ctx, c)
	return c, nil
}

func (s *Service) record(ctx context.Context, teacher, classID string) (Confirmation, error) {
	if !s.begin(classID) {
		return Confirmation{}, ErrSyncInProgress
	}
	defer s.end(classID)

	d := s.Open(ctx, classID)
	records, label := d.Finalize()
	absent := AbsentIDs(records)

	start := time.Now()
	ts, err := s.sessions.RecordSession(ctx, classID, absent)
	if err != nil {
		s.metrics.SyncFailed(time.Since(start))
		return Confirmation{}, fmt.Errorf("%w: %w", ErrSyncFailed, err)
	}
	s.metrics.SessionRecorded(classID, len(absent), time.Since(start))

	if err := s.summaries.Save(ctx, Summary{ClassID: classID, AbsentCount: len(absent), Time: label}); err != nil {
		log.Printf("attendance: save summary for %s failed: %v", classID, err)
	}
	if err := d.Discard(ctx); err != nil {
		log.Printf("attendance: %v", err)
	}

	return Confirmation{
		ClassID:   classID,
		Teacher:   teacher,
		Time:      label,
		Timestamp: ts,
		Records:   records,
		AbsentIDs: absent,
		Students:  d.Students(),
	}, nil
}

func (s *Service) publish(ctx context.Context, c Confirmation) {
	if s.events == nil {
		return
	}
	msg, err := queue.Encode(EventSessionConfirmed, c)
	if err != nil {
		log.Printf("attendance: encode event for %s: %v", c.ClassID, err)
		return
	}
	// Detached from the request and bounded: a full queue never holds the response.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	if err := s.events.Publish(ctx, msg); err != nil {
		log.Printf("attendance: queue publish failed: %v", err)
	}
}

// DecodeConfirmation reads a session.confirmed message body and restores
// the roster of the class.
func DecodeConfirmation(msg queue.Message) (Confirmation, error) {
	if msg.Type != EventSessionConfirmed {
		return Confirmation{}, fmt.Errorf("unexpected message type %q", msg.Type)
	}
	var c Confirmation
	if err := json.Unmarshal(msg.Body, &c); err != nil {
		return Confirmation{}, err
	}
	if c.ClassID == "" {
		return Confirmation{}, errors.New("confirmation without class")
	}
	c.Students = roster.RosterFor(c.ClassID)
	return c, nil
}

func (s *Service) begin(classID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[classID] {
		return false
	}
	s.inflight[classID] = true
	return true
}

func (s *Service) end(classID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, classID)
}

// Syncing reports whether any confirmation is being recorded.
func (s *Service) Syncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight) > 0
}

// Dashboard summarizes the last session of each class in classes.
func (s *Service) Dashboard(ctx context.Context, classes []string) Dashboard {
	out := Dashboard{Classes: make([]ClassStatus, 0, len(classes)), Syncing: s.Syncing()}
	if sum, ok := s.summaries.Last(ctx); ok {
		out.Summary = &sum
	}
	for _, c := range classes {
		n := len(s.gatedIDs(ctx, c))
		out.TotalAbsents += n
		out.Classes = append(out.Classes, ClassStatus{ClassID: c, HasAbsentees: n > 0})
	}
	return out
}
