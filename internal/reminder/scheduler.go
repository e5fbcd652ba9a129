package reminder

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"duely/internal/task"
)

const noDetailsBody = "No additional details"

// Payload is what a delivered notification carries.
type Payload struct {
	TaskID task.ID
	Title  string
	Body   string
}

// Delivery arms and disarms point-in-time notifications. Schedule on an id
// that already has one must replace it.
type Delivery interface {
	Schedule(ctx context.Context, id task.ID, fireAt time.Time, p Payload) error
	Cancel(ctx context.Context, id task.ID) error
}

type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeScheduled
	OutcomeCancelled
	OutcomeRescheduled
	OutcomeSkippedPast
)

func (o Outcome) String() string {
	switch o {
	case OutcomeScheduled:
		return "scheduled"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeRescheduled:
		return "rescheduled"
	case OutcomeSkippedPast:
		return "skipped-past"
	default:
		return "none"
	}
}

// Scheduler keeps at most one pending notification per task id and derives
// the required delivery calls from task state transitions.
type Scheduler struct {
	delivery Delivery
	now      func() time.Time
	logger   *log.Logger

	mu      sync.Mutex
	pending map[task.ID]time.Time
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

func NewScheduler(d Delivery, opts ...Option) *Scheduler {
	s := &Scheduler{
		delivery: d,
		now:      time.Now,
		logger:   log.New(io.Discard, "", 0),
		pending:  map[task.ID]time.Time{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reconcile brings the notification for t in line with its new state, given
// the reminder flag and due time it had before the mutation. A returned error
// is always a *task.SchedulingError and never means the task change failed.
func (s *Scheduler) Reconcile(ctx context.Context, t task.Task, prevReminder bool, prevDue time.Time) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome := OutcomeNone
	if prevReminder && (!t.Reminder || !t.Due.Equal(prevDue)) {
		s.cancelLocked(ctx, t.ID)
		outcome = OutcomeCancelled
	}
	if !t.Reminder {
		return outcome, nil
	}

	now := s.now()
	if !t.Due.After(now) {
		s.logger.Printf("reminder for %s not armed: due %s is not in the future", t.ID, t.Due.Format(time.RFC3339))
		if outcome == OutcomeCancelled {
			return outcome, nil
		}
		return OutcomeSkippedPast, nil
	}

	if err := s.delivery.Schedule(ctx, t.ID, t.Due, payloadFor(t)); err != nil {
		serr := task.Scheduling(t.ID, err)
		s.logger.Printf("%v", serr)
		return outcome, serr
	}
	s.pending[t.ID] = t.Due
	s.logger.Printf("reminder for %s armed at %s", t.ID, t.Due.Format(time.RFC3339))
	if outcome == OutcomeCancelled {
		return OutcomeRescheduled, nil
	}
	return OutcomeScheduled, nil
}

// Cancel removes any notification for id. Calling it for an id with nothing
// pending is fine.
func (s *Scheduler) Cancel(ctx context.Context, id task.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(ctx, id)
}

func (s *Scheduler) cancelLocked(ctx context.Context, id task.ID) {
	delete(s.pending, id)
	if err := s.delivery.Cancel(ctx, id); err != nil {
		s.logger.Printf("cancel reminder for %s: %v (ignored)", id, err)
	}
}

// Pending returns the fire time of the notification armed for id. Entries
// whose fire time has passed are treated as delivered.
func (s *Scheduler) Pending(id task.ID) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	at, ok := s.pending[id]
	return at, ok
}

func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	return len(s.pending)
}

func (s *Scheduler) pruneLocked() {
	now := s.now()
	for id, at := range s.pending {
		if !at.After(now) {
			delete(s.pending, id)
		}
	}
}

func payloadFor(t task.Task) Payload {
	body := t.Details
	if body == "" {
		body = noDetailsBody
	}
	return Payload{
		TaskID: t.ID,
		Title:  "Task Reminder: " + t.Title,
		Body:   body,
	}
}
