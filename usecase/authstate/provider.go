// Package authstate tracks whether a session currently has a signed-in
// identity and reports every change to an observer.
package authstate

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/fastygo/todo/domain"
	"github.com/fastygo/todo/internal/infrastructure/realtime"
)

// Resolver loads the identity behind a session.
type Resolver interface {
	Resolve(ctx context.Context, sessionID string) (*domain.Session, *domain.User, error)
}

type Provider struct {
	resolver Resolver
	bus      realtime.Bus
	logger   *zap.Logger
}

func NewProvider(resolver Resolver, bus realtime.Bus, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{resolver: resolver, bus: bus, logger: logger}
}

// Watch resolves sessionID and re-resolves it on every auth event for that
// session. onChange receives each state that differs from the previous one,
// starting with the first resolution; it may be nil.
func (p *Provider) Watch(ctx context.Context, sessionID string, onChange func(domain.AuthState)) (*Watch, error) {
	if onChange == nil {
		onChange = func(domain.AuthState) {}
	}
	watchCtx, cancel := context.WithCancel(ctx)
	w := &Watch{
		provider:  p,
		sessionID: sessionID,
		onChange:  onChange,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	if sessionID == "" {
		close(w.done)
		w.set(domain.SignedOut())
		return w, nil
	}

	sub, err := p.bus.Subscribe(watchCtx, realtime.AuthTopic(sessionID))
	if err != nil {
		cancel()
		return nil, err
	}

	w.refresh(watchCtx)
	go w.run(watchCtx, sub)
	return w, nil
}

// Watch is a live view of one session's auth state.
type Watch struct {
	provider  *Provider
	sessionID string
	onChange  func(domain.AuthState)
	cancel    context.CancelFunc
	done      chan struct{}

	mu    sync.Mutex
	state domain.AuthState
}

// Current returns the latest resolved state. Before the first resolution it is
// AuthUninitialized.
func (w *Watch) Current() domain.AuthState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Close stops watching and waits for the watcher goroutine to exit.
func (w *Watch) Close() error {
	w.cancel()
	<-w.done
	return nil
}

func (w *Watch) run(ctx context.Context, sub realtime.Subscription) {
	defer close(w.done)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-sub.C():
			if !ok {
				return
			}
			w.refresh(ctx)
		}
	}
}

func (w *Watch) refresh(ctx context.Context) {
	_, user, err := w.provider.resolver.Resolve(ctx, w.sessionID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if !isSignedOut(err) {
			w.provider.logger.Warn("failed to resolve session", zap.String("session_id", w.sessionID), zap.Error(err))
		}
		w.set(domain.SignedOut())
		return
	}
	w.set(domain.SignedIn(user))
}

func (w *Watch) set(next domain.AuthState) {
	w.mu.Lock()
	prev := w.state
	w.state = next
	w.mu.Unlock()

	if sameState(prev, next) {
		return
	}
	w.onChange(next)
}

func sameState(a, b domain.AuthState) bool {
	if a.Status != b.Status {
		return false
	}
	if a.User == nil || b.User == nil {
		return a.User == b.User
	}
	return a.User.ID == b.User.ID && len(a.User.Providers) == len(b.User.Providers)
}

func isSignedOut(err error) bool {
	return errors.Is(err, domain.ErrSessionNotFound) ||
		errors.Is(err, domain.ErrUserNotFound) ||
		errors.Is(err, domain.ErrUnauthorized)
}
