package bolt

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SessionSweeper periodically purges expired sessions from BoltDB.
type SessionSweeper struct {
	repo   *SessionRepository
	cron   *cron.Cron
	logger *zap.Logger
}

// NewSessionSweeper schedules Sweep every interval.
func NewSessionSweeper(repo *SessionRepository, interval time.Duration, logger *zap.Logger) *SessionSweeper {
	if interval < time.Second {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &SessionSweeper{
		repo:   repo,
		cron:   cron.New(cron.WithSeconds()),
		logger: logger,
	}

	schedule := fmt.Sprintf("@every %ds", int(interval.Seconds()))
	_, _ = s.cron.AddFunc(schedule, func() { s.RunOnce(time.Now()) })
	return s
}

// RunOnce removes sessions expired at reference.
func (s *SessionSweeper) RunOnce(reference time.Time) {
	removed, err := s.repo.Sweep(reference)
	if err != nil {
		s.logger.Error("session sweep failed", zap.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Debug("expired sessions removed", zap.Int("count", removed))
	}
}

// Start launches the cron scheduler.
func (s *SessionSweeper) Start() {
	s.cron.Start()
	s.logger.Info("session sweeper started")
}

// Stop waits for a running sweep or ctx, whichever ends first.
func (s *SessionSweeper) Stop(ctx context.Context) {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.logger.Info("session sweeper stopped")
}
