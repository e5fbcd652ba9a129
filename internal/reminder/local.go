package reminder

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"duely/internal/task"
)

var (
	ErrPermissionDenied = errors.New("notification permission not granted")
	ErrPastFireTime     = errors.New("fire time is not in the future")
	ErrClosed           = errors.New("delivery closed")
)

// Notification is a reminder that has fired.
type Notification struct {
	Payload
	FiredAt time.Time
}

type armed struct {
	timer *time.Timer
	gen   uint64
}

// Local delivers notifications inside the running process with one timer per
// task id.
type Local struct {
	authorized bool
	selection  *Selection
	logger     *log.Logger

	mu        sync.Mutex
	timers    map[task.ID]armed
	gen       uint64
	delivered chan Notification
	closed    bool
}

type LocalOption func(*Local)

func WithAuthorized(ok bool) LocalOption {
	return func(l *Local) { l.authorized = ok }
}

func WithSelection(s *Selection) LocalOption {
	return func(l *Local) { l.selection = s }
}

func WithLocalLogger(lg *log.Logger) LocalOption {
	return func(l *Local) { l.logger = lg }
}

// WithBuffer sets how many fired notifications may wait unread before new
// ones are dropped.
func WithBuffer(n int) LocalOption {
	return func(l *Local) { l.delivered = make(chan Notification, n) }
}

func NewLocal(opts ...LocalOption) *Local {
	l := &Local{
		authorized: true,
		logger:     log.New(io.Discard, "", 0),
		timers:     map[task.ID]armed{},
		delivered:  make(chan Notification, 16),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.selection == nil {
		l.selection = NewSelection()
	}
	return l
}

func (l *Local) Schedule(ctx context.Context, id task.ID, fireAt time.Time, p Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !l.authorized {
		return ErrPermissionDenied
	}
	wait := time.Until(fireAt)
	if wait <= 0 {
		return ErrPastFireTime
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if old, ok := l.timers[id]; ok {
		old.timer.Stop()
	}
	l.gen++
	gen := l.gen
	l.timers[id] = armed{
		timer: time.AfterFunc(wait, func() { l.fire(id, gen, p) }),
		gen:   gen,
	}
	return nil
}

func (l *Local) Cancel(_ context.Context, id task.ID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.timers[id]; ok {
		a.timer.Stop()
		delete(l.timers, id)
	}
	return nil
}

func (l *Local) fire(id task.ID, gen uint64, p Payload) {
	l.mu.Lock()
	// a replaced timer that already started running must not deliver
	if cur, ok := l.timers[id]; !ok || cur.gen != gen {
		l.mu.Unlock()
		return
	}
	delete(l.timers, id)
	l.mu.Unlock()

	n := Notification{Payload: p, FiredAt: time.Now()}
	select {
	case l.delivered <- n:
	default:
		l.logger.Printf("dropped reminder for %s: delivery buffer full", id)
	}
}

// Delivered yields notifications as they fire.
func (l *Local) Delivered() <-chan Notification {
	return l.delivered
}

// Activate is called when the user opens a delivered notification.
func (l *Local) Activate(id task.ID) {
	l.selection.Set(id)
}

func (l *Local) Selection() *Selection {
	return l.selection
}

// Scheduled reports whether a timer is armed for id.
func (l *Local) Scheduled(id task.ID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.timers[id]
	return ok
}

func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, a := range l.timers {
		a.timer.Stop()
		delete(l.timers, id)
	}
	l.closed = true
	return nil
}
