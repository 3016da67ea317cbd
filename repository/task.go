package repository

import (
	"context"

	"github.com/fastygo/todo/domain"
)

// TaskRepository stores tasks under users/{uid}/todos/{id}. Every call is
// scoped by user id; a task id from another user behaves as not found.
type TaskRepository interface {
	List(ctx context.Context, userID string) ([]domain.Task, error)
	GetByID(ctx context.Context, userID, id string) (*domain.Task, error)
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	ToggleCompleted(ctx context.Context, userID, id string) (*domain.Task, error)
	SetCalendarEvent(ctx context.Context, userID, id, eventID string) error
	Delete(ctx context.Context, userID, id string) error
}
