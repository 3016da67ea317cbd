package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/todo/domain"
	"github.com/fastygo/todo/internal/infrastructure/boltdb"
	"github.com/fastygo/todo/repository"
)

type taskRepository struct {
	store *boltdb.Store
}

// NewTaskRepository returns a BoltDB-backed TaskRepository.
func NewTaskRepository(store *boltdb.Store) repository.TaskRepository {
	return &taskRepository{store: store}
}

func (r *taskRepository) List(ctx context.Context, userID string) ([]domain.Task, error) {
	tasks := []domain.Task{}
	err := r.store.View(func(tx *bbolt.Tx) error {
		b := userTodos(tx, userID)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var task domain.Task
			if err := json.Unmarshal(v, &task); err != nil {
				return err
			}
			tasks = append(tasks, task)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	domain.SortNewestFirst(tasks)
	return tasks, nil
}

func (r *taskRepository) GetByID(ctx context.Context, userID, id string) (*domain.Task, error) {
	var task domain.Task
	err := r.store.View(func(tx *bbolt.Tx) error {
		return getTask(userTodos(tx, userID), id, &task)
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
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

	err := r.store.Update(func(tx *bbolt.Tx) error {
		b, err := tx.Bucket([]byte(bucketTodos)).CreateBucketIfNotExists([]byte(task.UserID))
		if err != nil {
			return err
		}
		return boltdb.PutJSON(b, task.ID, task)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (r *taskRepository) ToggleCompleted(ctx context.Context, userID, id string) (*domain.Task, error) {
	var task domain.Task
	err := r.store.Update(func(tx *bbolt.Tx) error {
		b := userTodos(tx, userID)
		if err := getTask(b, id, &task); err != nil {
			return err
		}
		task.Completed = !task.Completed
		return boltdb.PutJSON(b, id, task)
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) SetCalendarEvent(ctx context.Context, userID, id, eventID string) error {
	return r.store.Update(func(tx *bbolt.Tx) error {
		b := userTodos(tx, userID)
		var task domain.Task
		if err := getTask(b, id, &task); err != nil {
			return err
		}
		task.CalendarEventID = eventID
		return boltdb.PutJSON(b, id, task)
	})
}

func (r *taskRepository) Delete(ctx context.Context, userID, id string) error {
	return r.store.Update(func(tx *bbolt.Tx) error {
		b := userTodos(tx, userID)
		if b == nil || b.Get([]byte(id)) == nil {
			return domain.ErrTaskNotFound
		}
		return b.Delete([]byte(id))
	})
}

func userTodos(tx *bbolt.Tx, userID string) *bbolt.Bucket {
	if userID == "" {
		return nil
	}
	return tx.Bucket([]byte(bucketTodos)).Bucket([]byte(userID))
}

func getTask(b *bbolt.Bucket, id string, task *domain.Task) error {
	if err := boltdb.GetJSON(b, id, task); err != nil {
		if errors.Is(err, boltdb.ErrNotFound) {
			return domain.ErrTaskNotFound
		}
		return err
	}
	return nil
}
