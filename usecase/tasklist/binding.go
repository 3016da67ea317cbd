// Package tasklist keeps an in-memory copy of one identity's task list in sync
// with the store. Every change notification triggers a full reload that
// replaces the list wholesale.
package tasklist

import (
	"context"
	"errors"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/fastygo/todo/domain"
	"github.com/fastygo/todo/internal/infrastructure/realtime"
)

// ErrClosed is returned by Bind after Close.
var ErrClosed = errors.New("tasklist: binding closed")

// Loader reads the full, ordered task list of a user.
type Loader interface {
	List(ctx context.Context, userID string) ([]domain.Task, error)
}

// Snapshot is the complete list of an identity at one point in time. An empty
// UserID means no identity is bound.
type Snapshot struct {
	UserID string        `json:"user_id"`
	Tasks  []domain.Task `json:"tasks"`
}

// Binding holds at most one live subscription, tied to the bound identity.
type Binding struct {
	loader     Loader
	bus        realtime.Bus
	logger     *zap.Logger
	onSnapshot func(Snapshot)

	bindMu sync.Mutex

	mu         sync.Mutex
	userID     string
	tasks      []domain.Task
	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}
	closed     bool
}

// NewBinding creates an unbound binding. onSnapshot may be nil; it is called
// sequentially, never while the binding's lock is held.
func NewBinding(loader Loader, bus realtime.Bus, logger *zap.Logger, onSnapshot func(Snapshot)) *Binding {
	if logger == nil {
		logger = zap.NewNop()
	}
	if onSnapshot == nil {
		onSnapshot = func(Snapshot) {}
	}
	return &Binding{
		loader:     loader,
		bus:        bus,
		logger:     logger,
		onSnapshot: onSnapshot,
	}
}

// Bind attaches the binding to user. A nil user clears the list, emits an
// empty snapshot and drops the subscription. Binding the current identity
// again is a no-op.
func (b *Binding) Bind(ctx context.Context, user *domain.User) error {
	b.bindMu.Lock()
	defer b.bindMu.Unlock()

	userID := ""
	if user != nil {
		userID = user.ID
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if userID == b.userID {
		b.mu.Unlock()
		return nil
	}
	b.detachLocked()
	b.generation++
	gen := b.generation
	b.userID = userID
	b.tasks = nil
	b.mu.Unlock()

	b.waitDetached()

	if userID == "" {
		b.apply(gen, nil)
		return nil
	}

	sub, err := b.bus.Subscribe(ctx, realtime.TodosTopic(userID))
	if err != nil {
		b.reset(gen)
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	b.mu.Lock()
	b.cancel, b.done = cancel, done
	b.mu.Unlock()

	b.reload(watchCtx, gen, userID)
	go b.watch(watchCtx, gen, userID, sub, done)
	return nil
}

// Tasks returns a copy of the current list.
func (b *Binding) Tasks() []domain.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Task(nil), b.tasks...)
}

// UserID returns the bound identity, or "".
func (b *Binding) UserID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.userID
}

// Close drops the subscription. The binding cannot be reused.
func (b *Binding) Close() error {
	b.bindMu.Lock()
	defer b.bindMu.Unlock()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.detachLocked()
	b.generation++
	b.userID = ""
	b.tasks = nil
	b.mu.Unlock()

	b.waitDetached()
	return nil
}

func (b *Binding) watch(ctx context.Context, gen uint64, userID string, sub realtime.Subscription, done chan struct{}) {
	defer close(done)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-sub.C():
			if !ok {
				return
			}
			b.reload(ctx, gen, userID)
		}
	}
}

func (b *Binding) reload(ctx context.Context, gen uint64, userID string) {
	tasks, err := b.loader.List(ctx, userID)
	if err != nil {
		if ctx.Err() == nil {
			b.logger.Error("failed to load task snapshot", zap.String("user_id", userID), zap.Error(err))
		}
		return
	}
	b.apply(gen, tasks)
}

// apply installs tasks if gen is still current and emits the snapshot.
func (b *Binding) apply(gen uint64, tasks []domain.Task) {
	if tasks == nil {
		tasks = []domain.Task{}
	}
	domain.SortNewestFirst(tasks)

	b.mu.Lock()
	if gen != b.generation {
		b.mu.Unlock()
		return
	}
	b.tasks = tasks
	snap := Snapshot{UserID: b.userID, Tasks: slices.Clone(tasks)}
	b.mu.Unlock()

	b.onSnapshot(snap)
}

func (b *Binding) reset(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen == b.generation {
		b.userID = ""
	}
}

// detachLocked cancels the active watcher. Callers wait with waitDetached
// after releasing mu.
func (b *Binding) detachLocked() {
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
}

func (b *Binding) waitDetached() {
	b.mu.Lock()
	done := b.done
	b.done = nil
	b.mu.Unlock()
	if done != nil {
		<-done
	}
}
