package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duely/internal/reminder"
	"duely/internal/storage"
	"duely/internal/task"
)

var refNow = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

var errDisk = errors.New("disk unavailable")

type fakeDelivery struct {
	mu          sync.Mutex
	armed       map[task.ID]time.Time
	schedules   int
	scheduleErr error
}

func newFakeDelivery() *fakeDelivery {
	return &fakeDelivery{armed: map[task.ID]time.Time{}}
}

func (f *fakeDelivery) Schedule(_ context.Context, id task.ID, at time.Time, _ reminder.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schedules++
	if f.scheduleErr != nil {
		return f.scheduleErr
	}
	f.armed[id] = at
	return nil
}

func (f *fakeDelivery) Cancel(_ context.Context, id task.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.armed, id)
	return nil
}

func (f *fakeDelivery) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.armed)
}

func (f *fakeDelivery) fireAt(id task.ID) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	at, ok := f.armed[id]
	return at, ok
}

// flakyRepo fails the next call of whichever operation has an error set.
type flakyRepo struct {
	*storage.Memory
	fetchErr, insertErr, updateErr, deleteErr error
}

func (r *flakyRepo) FetchAll(ctx context.Context) ([]task.Task, error) {
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	return r.Memory.FetchAll(ctx)
}

func (r *flakyRepo) Insert(ctx context.Context, t task.Task) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	return r.Memory.Insert(ctx, t)
}

func (r *flakyRepo) Update(ctx context.Context, t task.Task) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	return r.Memory.Update(ctx, t)
}

func (r *flakyRepo) Delete(ctx context.Context, id task.ID) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	return r.Memory.Delete(ctx, id)
}

type fixture struct {
	store    *Store
	repo     *flakyRepo
	delivery *fakeDelivery
	sched    *reminder.Scheduler
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	repo := &flakyRepo{Memory: storage.NewMemory()}
	d := newFakeDelivery()
	sched := reminder.NewScheduler(d, reminder.WithClock(func() time.Time { return refNow }))
	return fixture{
		store:    New(repo, sched, opts...),
		repo:     repo,
		delivery: d,
		sched:    sched,
	}
}

func draft(title string, due time.Time, rem bool) task.Draft {
	return task.Draft{Title: title, Details: "details of " + title, Due: due, Reminder: rem}
}

func TestCreate_ListsExactlyOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d := draft("pay rent", refNow.Add(48*time.Hour), false)
	id, err := f.store.Create(ctx, d)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	list := f.store.List()
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
	assert.Equal(t, d, list[0].Draft())

	persisted, err := f.repo.Memory.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, list, persisted)

	id2, err := f.store.Create(ctx, d)
	require.NoError(t, err)
	assert.NotEqual(t, id, id2)
}

func TestCreate_ValidationLeavesStoreUnchanged(t *testing.T) {
	f := newFixture(t)

	_, err := f.store.Create(context.Background(), draft("   ", refNow.Add(time.Hour), true))
	assert.ErrorIs(t, err, task.ErrValidation)
	assert.Zero(t, f.store.Len())
	assert.Zero(t, f.delivery.schedules)
}

func TestCreate_PastReminderNotScheduled(t *testing.T) {
	f := newFixture(t)

	yesterday := refNow.AddDate(0, 0, -1)
	id, err := f.store.Create(context.Background(), draft("A", yesterday, true))
	require.NoError(t, err)

	assert.Zero(t, f.delivery.count())
	assert.Zero(t, f.delivery.schedules)

	got, err := f.store.Get(id)
	require.NoError(t, err)
	assert.True(t, got.Reminder)

	groups := task.Bucket(f.store.List(), refNow)
	require.Len(t, groups, 1)
	assert.Equal(t, task.Overdue, groups[0].Label)
}

func TestCreateThenDisableReminder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	due := refNow.Add(time.Hour)
	id, err := f.store.Create(ctx, draft("B", due, true))
	require.NoError(t, err)

	require.Equal(t, 1, f.delivery.count())
	at, ok := f.delivery.fireAt(id)
	require.True(t, ok)
	assert.True(t, at.Equal(due))

	require.NoError(t, f.store.Update(ctx, id, draft("B", due, false)))
	assert.Zero(t, f.delivery.count())
	assert.Zero(t, f.sched.PendingCount())
}

func TestUpdate_DueChangeMovesFireTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.store.Create(ctx, draft("standup", refNow.Add(time.Hour), true))
	require.NoError(t, err)

	newDue := refNow.Add(5 * time.Hour)
	require.NoError(t, f.store.Update(ctx, id, draft("standup", newDue, true)))

	require.Equal(t, 1, f.delivery.count())
	at, _ := f.delivery.fireAt(id)
	assert.True(t, at.Equal(newDue))
	pending, ok := f.sched.Pending(id)
	require.True(t, ok)
	assert.True(t, pending.Equal(newDue))
}

func TestUpdate_EnableLater(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	due := refNow.Add(time.Hour)
	id, err := f.store.Create(ctx, draft("x", due, false))
	require.NoError(t, err)
	assert.Zero(t, f.delivery.count())

	require.NoError(t, f.store.Update(ctx, id, draft("x", due, true)))
	assert.Equal(t, 1, f.delivery.count())
}

func TestUpdate_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.store.Update(ctx, "missing", draft("x", refNow, false))
	assert.ErrorIs(t, err, task.ErrNotFound)

	id, err := f.store.Create(ctx, draft("x", refNow.Add(time.Hour), false))
	require.NoError(t, err)
	err = f.store.Update(ctx, id, draft("", refNow.Add(time.Hour), false))
	assert.ErrorIs(t, err, task.ErrValidation)

	got, err := f.store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "x", got.Title)
}

func TestUpdate_PersistenceFailureSkipsScheduler(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	due := refNow.Add(time.Hour)
	id, err := f.store.Create(ctx, draft("x", due, false))
	require.NoError(t, err)

	f.repo.updateErr = errDisk
	err = f.store.Update(ctx, id, draft("y", due.Add(time.Hour), true))
	require.Error(t, err)
	assert.ErrorIs(t, err, task.ErrPersistence)
	assert.ErrorIs(t, err, errDisk)

	got, err := f.store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "x", got.Title)
	assert.False(t, got.Reminder)
	assert.Zero(t, f.delivery.schedules)
}

func TestCreate_PersistenceFailure(t *testing.T) {
	f := newFixture(t)
	f.repo.insertErr = errDisk

	id, err := f.store.Create(context.Background(), draft("x", refNow.Add(time.Hour), true))
	assert.ErrorIs(t, err, task.ErrPersistence)
	assert.Empty(t, id)
	assert.Zero(t, f.store.Len())
	assert.Zero(t, f.delivery.schedules)
}

func TestDelete_CancelsReminder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.store.Create(ctx, draft("x", refNow.Add(time.Hour), true))
	require.NoError(t, err)
	require.Equal(t, 1, f.delivery.count())

	require.NoError(t, f.store.Delete(ctx, id))
	assert.Zero(t, f.delivery.count())
	assert.Zero(t, f.store.Len())

	_, err = f.store.Get(id)
	assert.ErrorIs(t, err, task.ErrNotFound)
}

func TestDelete_UnknownID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.Create(ctx, draft("x", refNow, false))
	require.NoError(t, err)

	err = f.store.Delete(ctx, "nope")
	assert.ErrorIs(t, err, task.ErrNotFound)
	var nf *task.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, task.ID("nope"), nf.ID)
	assert.Equal(t, 1, f.store.Len())
}

func TestDelete_PersistenceFailureRearms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	due := refNow.Add(time.Hour)
	id, err := f.store.Create(ctx, draft("x", due, true))
	require.NoError(t, err)

	f.repo.deleteErr = errDisk
	err = f.store.Delete(ctx, id)
	assert.ErrorIs(t, err, task.ErrPersistence)
	assert.Equal(t, 1, f.store.Len())

	at, ok := f.delivery.fireAt(id)
	require.True(t, ok)
	assert.True(t, at.Equal(due))
}

func TestToggleCompletion_LeavesReminder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.store.Create(ctx, draft("x", refNow.Add(time.Hour), true))
	require.NoError(t, err)
	schedules := f.delivery.schedules

	require.NoError(t, f.store.ToggleCompletion(ctx, id))
	got, err := f.store.Get(id)
	require.NoError(t, err)
	assert.True(t, got.Completed)
	assert.Equal(t, 1, f.delivery.count())
	assert.Equal(t, schedules, f.delivery.schedules)

	require.NoError(t, f.store.ToggleCompletion(ctx, id))
	got, _ = f.store.Get(id)
	assert.False(t, got.Completed)

	assert.ErrorIs(t, f.store.ToggleCompletion(ctx, "missing"), task.ErrNotFound)

	f.repo.updateErr = errDisk
	assert.ErrorIs(t, f.store.ToggleCompletion(ctx, id), task.ErrPersistence)
	got, _ = f.store.Get(id)
	assert.False(t, got.Completed)
}

func TestSchedulingFailureIsNonFatal(t *testing.T) {
	var reported []task.ID
	f := newFixture(t, WithSchedulingErrorHandler(func(id task.ID, err error) {
		assert.ErrorIs(t, err, task.ErrScheduling)
		reported = append(reported, id)
	}))
	f.delivery.scheduleErr = reminder.ErrPermissionDenied

	id, err := f.store.Create(context.Background(), draft("x", refNow.Add(time.Hour), true))
	require.NoError(t, err)
	assert.Equal(t, []task.ID{id}, reported)

	got, err := f.store.Get(id)
	require.NoError(t, err)
	assert.True(t, got.Reminder)
}

func TestList_SortedByDueThenInsertion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	same := refNow.Add(3 * time.Hour)
	idLate, _ := f.store.Create(ctx, draft("late", refNow.Add(9*time.Hour), false))
	idFirst, _ := f.store.Create(ctx, draft("tie-first", same, false))
	idEarly, _ := f.store.Create(ctx, draft("early", refNow.Add(time.Hour), false))
	idSecond, _ := f.store.Create(ctx, draft("tie-second", same, false))

	var ids []task.ID
	for _, tk := range f.store.List() {
		ids = append(ids, tk.ID)
	}
	assert.Equal(t, []task.ID{idEarly, idFirst, idSecond, idLate}, ids)
}

func TestBucketScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	today, _ := f.store.Create(ctx, draft("today", refNow.Add(time.Hour), false))
	tomorrow, _ := f.store.Create(ctx, draft("tomorrow", refNow.AddDate(0, 0, 1), false))
	later, _ := f.store.Create(ctx, draft("later", refNow.AddDate(0, 0, 5), false))

	groups := task.Bucket(f.store.List(), refNow)
	require.Len(t, groups, 3)
	want := []struct {
		label task.Label
		id    task.ID
	}{{task.Today, today}, {task.Tomorrow, tomorrow}, {task.Upcoming, later}}
	for i, w := range want {
		assert.Equal(t, w.label, groups[i].Label)
		require.Len(t, groups[i].Tasks, 1)
		assert.Equal(t, w.id, groups[i].Tasks[0].ID)
	}
}

func TestLoad_RearmsReminders(t *testing.T) {
	ctx := context.Background()
	repo := &flakyRepo{Memory: storage.NewMemory()}

	future, _ := task.New(draft("future", refNow.Add(time.Hour), true))
	past, _ := task.New(draft("past", refNow.Add(-time.Hour), true))
	plain, _ := task.New(draft("plain", refNow.Add(time.Hour), false))
	for _, tk := range []task.Task{future, past, plain} {
		require.NoError(t, repo.Insert(ctx, tk))
	}

	d := newFakeDelivery()
	s := New(repo, reminder.NewScheduler(d, reminder.WithClock(func() time.Time { return refNow })))
	require.NoError(t, s.Load(ctx))

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 1, d.count())
	_, ok := d.fireAt(future.ID)
	assert.True(t, ok)
}

func TestLoad_FailureYieldsEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.Create(ctx, draft("x", refNow, false))
	require.NoError(t, err)

	f.repo.fetchErr = errDisk
	err = f.store.Load(ctx)
	assert.ErrorIs(t, err, task.ErrPersistence)
	assert.Empty(t, f.store.List())
}

func TestRefresh_FailureKeepsProjection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.Create(ctx, draft("x", refNow, false))
	require.NoError(t, err)

	f.repo.fetchErr = errDisk
	assert.ErrorIs(t, f.store.Refresh(ctx), task.ErrPersistence)
	assert.Equal(t, 1, f.store.Len())

	f.repo.fetchErr = nil
	require.NoError(t, f.store.Refresh(ctx))
	assert.Equal(t, 1, f.store.Len())
}

func TestList_TieOrderSurvivesReload(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemory()
	clock := reminder.WithClock(func() time.Time { return refNow })

	first := New(repo, reminder.NewScheduler(newFakeDelivery(), clock))
	idA, err := first.Create(ctx, draft("a", refNow.Add(10*time.Hour), false))
	require.NoError(t, err)
	idB, err := first.Create(ctx, draft("b", refNow.Add(5*time.Hour), false))
	require.NoError(t, err)

	s := New(repo, reminder.NewScheduler(newFakeDelivery(), clock))
	require.NoError(t, s.Load(ctx))
	require.NoError(t, s.Update(ctx, idB, draft("b", refNow.Add(10*time.Hour), false)))
	idC, err := s.Create(ctx, draft("c", refNow.Add(10*time.Hour), false))
	require.NoError(t, err)

	var ids []task.ID
	for _, tk := range s.List() {
		ids = append(ids, tk.ID)
	}
	assert.Equal(t, []task.ID{idA, idB, idC}, ids)
}

func TestRefresh_ReconcilesReminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	gone, err := f.store.Create(ctx, draft("gone", refNow.Add(time.Hour), true))
	require.NoError(t, err)
	moved, err := f.store.Create(ctx, draft("moved", refNow.Add(2*time.Hour), true))
	require.NoError(t, err)
	require.Equal(t, 2, f.delivery.count())

	// another writer changes the repository behind the store's back
	require.NoError(t, f.repo.Memory.Delete(ctx, gone))
	tk, err := f.store.Get(moved)
	require.NoError(t, err)
	tk.Due = refNow.Add(4 * time.Hour)
	require.NoError(t, f.repo.Memory.Update(ctx, tk))
	added, err := task.New(draft("added", refNow.Add(3*time.Hour), true))
	require.NoError(t, err)
	require.NoError(t, f.repo.Memory.Insert(ctx, added))

	require.NoError(t, f.store.Refresh(ctx))

	assert.Equal(t, 2, f.store.Len())
	assert.Equal(t, 2, f.delivery.count())
	_, ok := f.delivery.fireAt(gone)
	assert.False(t, ok)
	at, ok := f.delivery.fireAt(moved)
	require.True(t, ok)
	assert.True(t, at.Equal(refNow.Add(4*time.Hour)))
	_, ok = f.delivery.fireAt(added.ID)
	assert.True(t, ok)
	_, ok = f.sched.Pending(gone)
	assert.False(t, ok)
}

func TestConcurrentMutationsAndReads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.store.Create(ctx, draft("t", refNow.Add(time.Duration(i+1)*time.Minute), true))
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			for _, tk := range f.store.List() {
				assert.NotEmpty(t, tk.ID)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, f.store.Len())
	assert.Equal(t, 20, f.delivery.count())
	assert.Equal(t, 20, f.sched.PendingCount())
}
