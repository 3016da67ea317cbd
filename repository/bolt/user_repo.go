package bolt

import (
	"context"
	"errors"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/todo/domain"
	"github.com/fastygo/todo/internal/infrastructure/boltdb"
	"github.com/fastygo/todo/repository"
)

type userRepository struct {
	store *boltdb.Store
}

// NewUserRepository returns a BoltDB-backed UserRepository.
func NewUserRepository(store *boltdb.Store) repository.UserRepository {
	return &userRepository{store: store}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var user *domain.User
	err := r.store.View(func(tx *bbolt.Tx) error {
		var err error
		user, err = getUser(tx, id)
		return err
	})
	return user, err
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.lookup(bucketEmails, domain.NormalizeEmail(email))
}

func (r *userRepository) GetByProvider(ctx context.Context, provider, subject string) (*domain.User, error) {
	return r.lookup(bucketProviders, providerKey(provider, subject))
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if user == nil || user.ID == "" {
		return domain.ErrInvalidPayload
	}
	user.Email = domain.NormalizeEmail(user.Email)
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	for i := range user.Providers {
		if user.Providers[i].CreatedAt.IsZero() {
			user.Providers[i].CreatedAt = now
		}
	}

	return r.store.Update(func(tx *bbolt.Tx) error {
		emails := tx.Bucket([]byte(bucketEmails))
		if user.Email != "" && emails.Get([]byte(user.Email)) != nil {
			return domain.ErrEmailInUse
		}
		providers := tx.Bucket([]byte(bucketProviders))
		for _, link := range user.Providers {
			if providers.Get([]byte(providerKey(link.Provider, link.Subject))) != nil {
				return domain.ErrCredentialInUse
			}
		}

		if err := boltdb.PutJSON(tx.Bucket([]byte(bucketUsers)), user.ID, toStored(user)); err != nil {
			return err
		}
		if user.Email != "" {
			if err := emails.Put([]byte(user.Email), []byte(user.ID)); err != nil {
				return err
			}
		}
		for _, link := range user.Providers {
			if err := providers.Put([]byte(providerKey(link.Provider, link.Subject)), []byte(user.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *userRepository) LinkProvider(ctx context.Context, userID string, link domain.ProviderLink) error {
	return r.store.Update(func(tx *bbolt.Tx) error {
		user, err := getUser(tx, userID)
		if err != nil {
			return err
		}
		if user.HasProvider(link.Provider) {
			return domain.ErrProviderLinked
		}
		providers := tx.Bucket([]byte(bucketProviders))
		key := []byte(providerKey(link.Provider, link.Subject))
		if providers.Get(key) != nil {
			return domain.ErrCredentialInUse
		}

		now := time.Now()
		if link.CreatedAt.IsZero() {
			link.CreatedAt = now
		}
		user.Providers = append(user.Providers, link)
		user.UpdatedAt = now

		if err := boltdb.PutJSON(tx.Bucket([]byte(bucketUsers)), user.ID, toStored(user)); err != nil {
			return err
		}
		return providers.Put(key, []byte(user.ID))
	})
}

func (r *userRepository) lookup(index, key string) (*domain.User, error) {
	var user *domain.User
	err := r.store.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket([]byte(index)).Get([]byte(key))
		if id == nil {
			return domain.ErrUserNotFound
		}
		var err error
		user, err = getUser(tx, string(id))
		return err
	})
	return user, err
}

func getUser(tx *bbolt.Tx, id string) (*domain.User, error) {
	var stored storedUser
	if err := boltdb.GetJSON(tx.Bucket([]byte(bucketUsers)), id, &stored); err != nil {
		if errors.Is(err, boltdb.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return stored.toDomain(), nil
}
