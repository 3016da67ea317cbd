package repository

import (
	"context"

	"github.com/fastygo/todo/domain"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByProvider(ctx context.Context, provider, subject string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	// LinkProvider appends a provider link. It fails with domain.ErrCredentialInUse
	// when the provider subject already belongs to another user.
	LinkProvider(ctx context.Context, userID string, link domain.ProviderLink) error
}
