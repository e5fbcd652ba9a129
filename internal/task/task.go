package task

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ID identifies a task for its whole lifetime. It doubles as the dedup key
// for scheduled notifications.
type ID string

func NewID() ID {
	return ID(uuid.NewString())
}

func (id ID) String() string { return string(id) }

type Task struct {
	ID        ID
	Title     string
	Details   string
	Due       time.Time
	Completed bool
	Reminder  bool

	// Seq is the insertion sequence. Repositories fill it on read; it orders
	// tasks that share a due time.
	Seq int64
}

// Draft holds the user-editable fields of a task.
type Draft struct {
	Title     string
	Details   string
	Due       time.Time
	Reminder  bool
	Completed bool
}

// New validates d and builds a task with a fresh id.
func New(d Draft) (Task, error) {
	d, err := d.normalize()
	if err != nil {
		return Task{}, err
	}
	t := Task{ID: NewID()}
	return t.Apply(d), nil
}

// Apply returns a copy of t with every editable field taken from d.
func (t Task) Apply(d Draft) Task {
	t.Title = d.Title
	t.Details = d.Details
	t.Due = d.Due
	t.Reminder = d.Reminder
	t.Completed = d.Completed
	return t
}

// Draft returns the editable fields of t.
func (t Task) Draft() Draft {
	return Draft{
		Title:     t.Title,
		Details:   t.Details,
		Due:       t.Due,
		Reminder:  t.Reminder,
		Completed: t.Completed,
	}
}

// Validate trims the title and checks the required fields.
func (d Draft) Validate() (Draft, error) {
	return d.normalize()
}

func (d Draft) normalize() (Draft, error) {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return d, validation("title", "must not be empty")
	}
	if d.Due.IsZero() {
		return d, validation("due", "is required")
	}
	return d, nil
}

// Overdue reports whether t is incomplete and due on a calendar day before
// the day of now.
func (t Task) Overdue(now time.Time) bool {
	if t.Completed {
		return false
	}
	return StartOfDay(t.Due.In(now.Location())).Before(StartOfDay(now))
}

// StartOfDay truncates ts to local midnight in its own location.
func StartOfDay(ts time.Time) time.Time {
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, ts.Location())
}
