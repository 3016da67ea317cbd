package profile

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/todo/domain"
	"github.com/fastygo/todo/repository"
)

// Profile is what a signed-in session knows about its identity.
type Profile struct {
	User           *domain.User `json:"user"`
	Label          string       `json:"label"`
	GoogleLinked   bool         `json:"google_linked"`
	CalendarLinked bool         `json:"calendar_linked"`
	ExpiresAt      string       `json:"session_expires_at"`
}

type UseCase struct {
	users  repository.UserRepository
	logger *zap.Logger
}

func New(users repository.UserRepository, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		users:  users,
		logger: logger,
	}
}

// GetProfile describes the identity of session. CalendarLinked is true only
// when the session holds a calendar token.
func (uc *UseCase) GetProfile(ctx context.Context, session *domain.Session) (*Profile, error) {
	if session == nil || session.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	user, err := uc.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	return &Profile{
		User:           user,
		Label:          user.Label(),
		GoogleLinked:   user.HasProvider(domain.ProviderGoogle),
		CalendarLinked: session.HasCalendarToken(),
		ExpiresAt:      session.ExpiresAt.UTC().Format(time.RFC3339),
	}, nil
}
