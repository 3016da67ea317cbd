package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/todo/domain"
	"github.com/fastygo/todo/repository"
)

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository returns a Postgres-backed implementation of TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) repository.TaskRepository {
	return &taskRepository{pool: pool}
}

const taskColumns = `id, user_id, text, completed, created_at, calendar_event_id`

func (r *taskRepository) List(ctx context.Context, userID string) ([]domain.Task, error) {
	const query = `
	SELECT ` + taskColumns + `
	FROM todos
	WHERE user_id = $1
	ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (r *taskRepository) GetByID(ctx context.Context, userID, id string) (*domain.Task, error) {
	const query = `
	SELECT ` + taskColumns + `
	FROM todos
	WHERE user_id = $1 AND id = $2
	`
	return scanTask(r.pool.QueryRow(ctx, query, userID, id))
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil || task.UserID == "" {
		return nil, domain.ErrInvalidPayload
	}
	if task.ID == "" {
		task.ID = uuid.Must(uuid.NewV7()).String()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}

	const query = `
	INSERT INTO todos (id, user_id, text, completed, created_at, calendar_event_id)
	VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.pool.Exec(ctx, query,
		task.ID,
		task.UserID,
		task.Text,
		task.Completed,
		task.CreatedAt,
		nullString(task.CalendarEventID),
	); err != nil {
		return nil, err
	}
	return task, nil
}

func (r *taskRepository) ToggleCompleted(ctx context.Context, userID, id string) (*domain.Task, error) {
	const query = `
	UPDATE todos
	SET completed = NOT completed,
		updated_at = NOW()
	WHERE user_id = $1 AND id = $2
	RETURNING ` + taskColumns
	return scanTask(r.pool.QueryRow(ctx, query, userID, id))
}

func (r *taskRepository) SetCalendarEvent(ctx context.Context, userID, id, eventID string) error {
	const query = `
	UPDATE todos
	SET calendar_event_id = $3,
		updated_at = NOW()
	WHERE user_id = $1 AND id = $2
	`
	tag, err := r.pool.Exec(ctx, query, userID, id, nullString(eventID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *taskRepository) Delete(ctx context.Context, userID, id string) error {
	const query = `DELETE FROM todos WHERE user_id = $1 AND id = $2`
	tag, err := r.pool.Exec(ctx, query, userID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var (
		task    domain.Task
		eventID *string
	)
	if err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Text,
		&task.Completed,
		&task.CreatedAt,
		&eventID,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}
	if eventID != nil {
		task.CalendarEventID = *eventID
	}
	return &task, nil
}
