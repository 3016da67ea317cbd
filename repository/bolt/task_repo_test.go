package bolt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/todo/domain"
)

func TestTaskRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(openStore(t))

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	first, err := repo.Create(ctx, &domain.Task{UserID: "u1", Text: "first", CreatedAt: base})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	second, err := repo.Create(ctx, &domain.Task{UserID: "u1", Text: "second", CreatedAt: base.Add(time.Minute)})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &domain.Task{UserID: "u2", Text: "other"})
	require.NoError(t, err)

	tasks, err := repo.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, second.ID, tasks[0].ID)
	assert.Equal(t, first.ID, tasks[1].ID)

	toggled, err := repo.ToggleCompleted(ctx, "u1", first.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Completed)
	toggled, err = repo.ToggleCompleted(ctx, "u1", first.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Completed)

	require.NoError(t, repo.SetCalendarEvent(ctx, "u1", first.ID, "evt-1"))
	got, err := repo.GetByID(ctx, "u1", first.ID)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", got.CalendarEventID)

	require.NoError(t, repo.Delete(ctx, "u1", first.ID))
	_, err = repo.GetByID(ctx, "u1", first.ID)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "u1", first.ID), domain.ErrTaskNotFound)
}

func TestTaskRepositoryScopesByUser(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(openStore(t))

	task, err := repo.Create(ctx, &domain.Task{UserID: "owner", Text: "private"})
	require.NoError(t, err)

	_, err = repo.GetByID(ctx, "intruder", task.ID)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	_, err = repo.ToggleCompleted(ctx, "intruder", task.ID)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "intruder", task.ID), domain.ErrTaskNotFound)

	empty, err := repo.List(ctx, "intruder")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTaskRepositoryRejectsOwnerlessTask(t *testing.T) {
	repo := NewTaskRepository(openStore(t))
	_, err := repo.Create(context.Background(), &domain.Task{Text: "orphan"})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}
