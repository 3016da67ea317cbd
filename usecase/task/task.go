package task

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/todo/domain"
	"github.com/fastygo/todo/internal/infrastructure/realtime"
	"github.com/fastygo/todo/internal/metrics"
	"github.com/fastygo/todo/repository"
)

// CalendarEvents removes remote events of linked tasks.
type CalendarEvents interface {
	DeleteEvent(ctx context.Context, token, eventID string) error
}

const (
	cleanupTimeout = 3 * time.Second
	writeTimeout   = 5 * time.Second
)

type UseCase struct {
	tasks    repository.TaskRepository
	bus      realtime.Bus
	calendar CalendarEvents
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time

	cleanupTimeout time.Duration
	writeTimeout   time.Duration
}

func New(tasks repository.TaskRepository, bus realtime.Bus, calendar CalendarEvents, m *metrics.Metrics, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tasks:    tasks,
		bus:      bus,
		calendar: calendar,
		metrics:  m,
		logger:   logger,
		now:      time.Now,

		cleanupTimeout: cleanupTimeout,
		writeTimeout:   writeTimeout,
	}
}

// List returns the user's tasks, newest first.
func (uc *UseCase) List(ctx context.Context, userID string) ([]domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	tasks, err := uc.tasks.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	domain.SortNewestFirst(tasks)
	return tasks, nil
}

func (uc *UseCase) Get(ctx context.Context, userID, id string) (*domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	return uc.tasks.GetByID(ctx, userID, id)
}

// Add stores a new open task. Blank text is rejected without touching the store.
func (uc *UseCase) Add(ctx context.Context, userID, text string) (task *domain.Task, err error) {
	defer func() { uc.metrics.TaskOperation("add", err) }()

	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	text, err = domain.NormalizeTaskText(text)
	if err != nil {
		return nil, err
	}

	task, err = uc.tasks.Create(ctx, &domain.Task{
		UserID:    userID,
		Text:      text,
		Completed: false,
		CreatedAt: uc.now(),
	})
	if err != nil {
		return nil, err
	}
	uc.notify(ctx, userID, "add")
	return task, nil
}

// Toggle flips the stored completion flag.
func (uc *UseCase) Toggle(ctx context.Context, userID, id string) (task *domain.Task, err error) {
	defer func() { uc.metrics.TaskOperation("toggle", err) }()

	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	task, err = uc.tasks.ToggleCompleted(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	uc.notify(ctx, userID, "toggle")
	return task, nil
}

// AttachEvent records the calendar event created for a task.
func (uc *UseCase) AttachEvent(ctx context.Context, userID, id, eventID string) (*domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if eventID == "" {
		return nil, domain.ErrInvalidPayload
	}
	if err := uc.tasks.SetCalendarEvent(ctx, userID, id, eventID); err != nil {
		return nil, err
	}
	uc.notify(ctx, userID, "link")
	return uc.tasks.GetByID(ctx, userID, id)
}

// Delete removes a task. A linked task first gets one attempt at deleting its
// calendar event when token is set; that attempt never prevents the removal.
func (uc *UseCase) Delete(ctx context.Context, userID, id, token string) (err error) {
	defer func() { uc.metrics.TaskOperation("delete", err) }()

	if userID == "" {
		return domain.ErrUnauthorized
	}
	task, err := uc.tasks.GetByID(ctx, userID, id)
	if err != nil {
		return err
	}

	if task.IsLinked() && token != "" && uc.calendar != nil {
		uc.deleteEvent(ctx, token, task)
	}

	// The removal must not depend on what the cleanup left of the request deadline.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.writeTimeout)
	defer cancel()

	if err := uc.tasks.Delete(writeCtx, userID, id); err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			return err
		}
		uc.logger.Error("failed to delete task", zap.String("task_id", id), zap.Error(err))
		return err
	}
	uc.notify(writeCtx, userID, "delete")
	return nil
}

// deleteEvent makes one attempt at removing the task's remote event. It gets
// at most half of the caller's remaining deadline.
func (uc *UseCase) deleteEvent(ctx context.Context, token string, task *domain.Task) {
	budget := uc.cleanupTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if half := time.Until(deadline) / 2; half < budget {
			budget = half
		}
	}
	cleanupCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	if err := uc.calendar.DeleteEvent(cleanupCtx, token, task.CalendarEventID); err != nil {
		uc.logger.Warn("failed to delete calendar event",
			zap.String("task_id", task.ID),
			zap.String("event_id", task.CalendarEventID),
			zap.Error(err),
		)
	}
}

func (uc *UseCase) notify(ctx context.Context, userID, operation string) {
	if uc.bus == nil {
		return
	}
	if err := uc.bus.Publish(ctx, realtime.TodosTopic(userID), []byte(operation)); err != nil {
		uc.logger.Warn("failed to publish task change",
			zap.String("user_id", userID),
			zap.String("operation", operation),
			zap.Error(err),
		)
	}
}
