package task

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/todo/domain"
	"github.com/fastygo/todo/internal/infrastructure/boltdb"
	"github.com/fastygo/todo/internal/infrastructure/realtime"
	"github.com/fastygo/todo/repository"
	boltrepo "github.com/fastygo/todo/repository/bolt"
)

type fakeCalendar struct {
	mu      sync.Mutex
	deleted []string
	err     error
}

func (f *fakeCalendar) DeleteEvent(_ context.Context, token, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, token+"/"+eventID)
	return f.err
}

func (f *fakeCalendar) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type fixture struct {
	uc       *UseCase
	bus      *realtime.MemoryBus
	calendar *fakeCalendar
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := boltdb.Open(filepath.Join(t.TempDir(), "todo.db"), boltrepo.Buckets...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	bus := realtime.NewMemoryBus()
	cal := &fakeCalendar{}
	return &fixture{
		uc:       New(boltrepo.NewTaskRepository(store), bus, cal, nil, nil),
		bus:      bus,
		calendar: cal,
	}
}

func TestAdd_TrimsAndStoresOpenTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	before := time.Now()
	created, err := f.uc.Add(ctx, "u1", "  buy milk  ")
	require.NoError(t, err)
	assert.Equal(t, "buy milk", created.Text)
	assert.False(t, created.Completed)
	assert.False(t, created.CreatedAt.Before(before), "created_at %s is before %s", created.CreatedAt, before)

	tasks, err := f.uc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "buy milk", tasks[0].Text)
	assert.False(t, tasks[0].CreatedAt.Before(before), "stored created_at %s is before %s", tasks[0].CreatedAt, before)
}

func TestAdd_RejectsBlankText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, text := range []string{"", "   ", "\t\n"} {
		_, err := f.uc.Add(ctx, "u1", text)
		assert.ErrorIs(t, err, domain.ErrEmptyTaskText)
	}
	tasks, err := f.uc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestList_NewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, text := range []string{"first", "second", "third"} {
		f.uc.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		_, err := f.uc.Add(ctx, "u1", text)
		require.NoError(t, err)
	}

	tasks, err := f.uc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, []string{"third", "second", "first"}, []string{tasks[0].Text, tasks[1].Text, tasks[2].Text})
}

func TestToggle_TwiceRestoresState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.uc.Add(ctx, "u1", "walk")
	require.NoError(t, err)

	toggled, err := f.uc.Toggle(ctx, "u1", created.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Completed)

	toggled, err = f.uc.Toggle(ctx, "u1", created.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Completed)
}

func TestToggle_OtherUsersTaskIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.uc.Add(ctx, "u1", "private")
	require.NoError(t, err)

	_, err = f.uc.Toggle(ctx, "u2", created.ID)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestDelete_LinkedTaskWithTokenDeletesEventOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.uc.Add(ctx, "u1", "meeting")
	require.NoError(t, err)
	_, err = f.uc.AttachEvent(ctx, "u1", created.ID, "evt-1")
	require.NoError(t, err)

	require.NoError(t, f.uc.Delete(ctx, "u1", created.ID, "tok"))
	assert.Equal(t, []string{"tok/evt-1"}, f.calendar.calls())

	_, err = f.uc.Get(ctx, "u1", created.ID)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestDelete_CalendarFailureStillDeletes(t *testing.T) {
	f := newFixture(t)
	f.calendar.err = errors.New("boom")
	ctx := context.Background()

	created, err := f.uc.Add(ctx, "u1", "meeting")
	require.NoError(t, err)
	_, err = f.uc.AttachEvent(ctx, "u1", created.ID, "evt-1")
	require.NoError(t, err)

	require.NoError(t, f.uc.Delete(ctx, "u1", created.ID, "tok"))
	assert.Len(t, f.calendar.calls(), 1)

	tasks, err := f.uc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

// deadlineTasks fails writes whose context is already done, like pgx does.
type deadlineTasks struct {
	repository.TaskRepository
}

func (r deadlineTasks) Delete(ctx context.Context, userID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.TaskRepository.Delete(ctx, userID, id)
}

type hangingCalendar struct{}

func (hangingCalendar) DeleteEvent(ctx context.Context, _, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestDelete_HangingCalendarDoesNotConsumeDeadline(t *testing.T) {
	store, err := boltdb.Open(filepath.Join(t.TempDir(), "todo.db"), boltrepo.Buckets...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	uc := New(deadlineTasks{boltrepo.NewTaskRepository(store)}, realtime.NewMemoryBus(), hangingCalendar{}, nil, nil)
	created, err := uc.Add(context.Background(), "u1", "meeting")
	require.NoError(t, err)
	_, err = uc.AttachEvent(context.Background(), "u1", created.ID, "evt-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, uc.Delete(ctx, "u1", created.ID, "tok"))

	tasks, err := uc.List(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestDelete_NoRemoteCallWithoutTokenOrEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	linked, err := f.uc.Add(ctx, "u1", "linked")
	require.NoError(t, err)
	_, err = f.uc.AttachEvent(ctx, "u1", linked.ID, "evt-1")
	require.NoError(t, err)
	plain, err := f.uc.Add(ctx, "u1", "plain")
	require.NoError(t, err)

	require.NoError(t, f.uc.Delete(ctx, "u1", linked.ID, ""))
	require.NoError(t, f.uc.Delete(ctx, "u1", plain.ID, "tok"))
	assert.Empty(t, f.calendar.calls())
}

func TestDelete_MissingTask(t *testing.T) {
	f := newFixture(t)
	err := f.uc.Delete(context.Background(), "u1", "nope", "tok")
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestWritesPublishNotifications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub, err := f.bus.Subscribe(ctx, realtime.TodosTopic("u1"))
	require.NoError(t, err)
	defer sub.Close()

	_, err = f.uc.Add(ctx, "u1", "ping")
	require.NoError(t, err)

	select {
	case payload := <-sub.C():
		assert.Equal(t, "add", string(payload))
	case <-time.After(time.Second):
		t.Fatal("expected a notification")
	}
}

func TestRequiresIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.Add(ctx, "", "x")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = f.uc.List(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.ErrorIs(t, f.uc.Delete(ctx, "", "id", ""), domain.ErrUnauthorized)
}
