package store

import (
	"context"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"duely/internal/reminder"
	"duely/internal/task"
)

// Repository persists task records. FetchAll returns tasks ordered by due
// time, ties in insertion order, each with its insertion Seq set.
type Repository interface {
	FetchAll(ctx context.Context) ([]task.Task, error)
	Insert(ctx context.Context, t task.Task) error
	Update(ctx context.Context, t task.Task) error
	Delete(ctx context.Context, id task.ID) error
}

// Reconciler keeps notifications in step with task state.
type Reconciler interface {
	Reconcile(ctx context.Context, t task.Task, prevReminder bool, prevDue time.Time) (reminder.Outcome, error)
	Cancel(ctx context.Context, id task.ID)
}

// Store is the only writer of task records. Mutations are serialised; List
// may run concurrently and sees a consistent snapshot.
type Store struct {
	repo   Repository
	sched  Reconciler
	logger *log.Logger
	onErr  func(task.ID, error)

	mu    sync.RWMutex
	tasks []task.Task // insertion order
	seq   int64       // highest Seq handed out or loaded
}

type Option func(*Store)

func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithSchedulingErrorHandler is called for every non-fatal scheduling
// failure after the task mutation has succeeded.
func WithSchedulingErrorHandler(fn func(task.ID, error)) Option {
	return func(s *Store) { s.onErr = fn }
}

func New(repo Repository, sched Reconciler, opts ...Option) *Store {
	s := &Store{
		repo:   repo,
		sched:  sched,
		logger: log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the projection with the persisted records and arms reminders
// for every task that should have one. On failure the projection is empty.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.repo.FetchAll(ctx)
	if err != nil {
		s.tasks = nil
		s.logger.Printf("load tasks: %v", err)
		return task.Persistence("fetch", err)
	}
	s.replace(tasks)
	for _, t := range tasks {
		if t.Reminder {
			s.reconcile(ctx, t, false, time.Time{})
		}
	}
	s.logger.Printf("loaded %d tasks", len(tasks))
	return nil
}

// Refresh re-reads the full set and brings reminders in line with it: tasks
// that disappeared are cancelled, changed ones are reconciled against their
// previous state. A failed read leaves the projection as it was.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.repo.FetchAll(ctx)
	if err != nil {
		s.logger.Printf("refresh tasks: %v", err)
		return task.Persistence("fetch", err)
	}
	prev := make(map[task.ID]task.Task, len(s.tasks))
	for _, t := range s.tasks {
		prev[t.ID] = t
	}
	s.replace(tasks)

	for _, t := range s.tasks {
		old, ok := prev[t.ID]
		delete(prev, t.ID)
		switch {
		case !ok:
			if t.Reminder {
				s.reconcile(ctx, t, false, time.Time{})
			}
		case old.Reminder != t.Reminder || !old.Due.Equal(t.Due) || old.Title != t.Title || old.Details != t.Details:
			s.reconcile(ctx, t, old.Reminder, old.Due)
		}
	}
	for id := range prev {
		s.sched.Cancel(ctx, id)
	}
	return nil
}

// replace installs fetched tasks in insertion order.
func (s *Store) replace(tasks []task.Task) {
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Seq < tasks[j].Seq })
	s.tasks = tasks
	s.seq = 0
	for _, t := range tasks {
		if t.Seq > s.seq {
			s.seq = t.Seq
		}
	}
}

func (s *Store) Create(ctx context.Context, d task.Draft) (task.ID, error) {
	t, err := task.New(d)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t.Seq = s.seq + 1
	if err := s.repo.Insert(ctx, t); err != nil {
		return "", task.Persistence("insert", err)
	}
	s.seq = t.Seq
	s.tasks = append(s.tasks, t)
	s.reconcile(ctx, t, false, time.Time{})
	return t.ID, nil
}

func (s *Store) Update(ctx context.Context, id task.ID, d task.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return task.NotFound(id)
	}
	d, err := d.Validate()
	if err != nil {
		return err
	}
	prev := s.tasks[i]
	next := prev.Apply(d)
	if err := s.repo.Update(ctx, next); err != nil {
		return task.Persistence("update", err)
	}
	s.tasks[i] = next
	s.reconcile(ctx, next, prev.Reminder, prev.Due)
	return nil
}

// Delete cancels the task's notification before removing it. If the removal
// fails the notification is armed again.
func (s *Store) Delete(ctx context.Context, id task.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return task.NotFound(id)
	}
	t := s.tasks[i]
	s.sched.Cancel(ctx, id)
	if err := s.repo.Delete(ctx, id); err != nil {
		if t.Reminder {
			s.reconcile(ctx, t, false, time.Time{})
		}
		return task.Persistence("delete", err)
	}
	s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
	return nil
}

// ToggleCompletion flips the completed flag. Reminders are independent of
// completion and are left alone.
func (s *Store) ToggleCompletion(ctx context.Context, id task.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return task.NotFound(id)
	}
	next := s.tasks[i]
	next.Completed = !next.Completed
	if err := s.repo.Update(ctx, next); err != nil {
		return task.Persistence("update", err)
	}
	s.tasks[i] = next
	return nil
}

func (s *Store) Get(id task.ID) (task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexLocked(id)
	if i < 0 {
		return task.Task{}, task.NotFound(id)
	}
	return s.tasks[i], nil
}

// List returns every task sorted by due time, ties in insertion order.
func (s *Store) List() []task.Task {
	s.mu.RLock()
	out := make([]task.Task, len(s.tasks))
	copy(out, s.tasks)
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Due.Equal(out[j].Due) {
			return out[i].Due.Before(out[j].Due)
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

func (s *Store) indexLocked(id task.ID) int {
	for i, t := range s.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) reconcile(ctx context.Context, t task.Task, prevReminder bool, prevDue time.Time) {
	outcome, err := s.sched.Reconcile(ctx, t, prevReminder, prevDue)
	if err != nil {
		s.logger.Printf("task %s saved, reminder not armed: %v", t.ID, err)
		if s.onErr != nil {
			s.onErr(t.ID, err)
		}
		return
	}
	if outcome != reminder.OutcomeNone {
		s.logger.Printf("task %s reminder %s", t.ID, outcome)
	}
}
