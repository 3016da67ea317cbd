package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/todo/domain"
	"github.com/fastygo/todo/repository"
)

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository instantiates a Postgres-backed user repository.
func NewUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `u.id, u.email, u.display_name, u.password_hash, u.created_at, u.updated_at`

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users u WHERE u.id = $1`
	return r.getOne(ctx, query, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users u WHERE u.email = $1`
	return r.getOne(ctx, query, domain.NormalizeEmail(email))
}

func (r *userRepository) GetByProvider(ctx context.Context, provider, subject string) (*domain.User, error) {
	const query = `
	SELECT ` + userColumns + `
	FROM users u
	JOIN user_providers p ON p.user_id = u.id
	WHERE p.provider = $1 AND p.subject = $2
	`
	return r.getOne(ctx, query, provider, subject)
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if user == nil || user.ID == "" {
		return domain.ErrInvalidPayload
	}
	user.Email = domain.NormalizeEmail(user.Email)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const insertUser = `
	INSERT INTO users (id, email, display_name, password_hash, created_at, updated_at)
	VALUES ($1, $2, $3, $4, COALESCE($5, NOW()), NOW())
	RETURNING created_at, updated_at
	`
	if err := tx.QueryRow(ctx, insertUser,
		user.ID,
		nullString(user.Email),
		user.DisplayName,
		user.PasswordHash,
		nullTime(user.CreatedAt),
	).Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		if violates(err, "users_email_key") {
			return domain.ErrEmailInUse
		}
		return err
	}

	for i := range user.Providers {
		if err := insertProvider(ctx, tx, user.ID, &user.Providers[i]); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *userRepository) LinkProvider(ctx context.Context, userID string, link domain.ProviderLink) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := insertProvider(ctx, tx, userID, &link); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE users SET updated_at = NOW() WHERE id = $1`, userID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertProvider(ctx context.Context, tx pgx.Tx, userID string, link *domain.ProviderLink) error {
	const query = `
	INSERT INTO user_providers (user_id, provider, subject, email, created_at)
	VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))
	RETURNING created_at
	`
	err := tx.QueryRow(ctx, query,
		userID,
		link.Provider,
		link.Subject,
		link.Email,
		nullTime(link.CreatedAt),
	).Scan(&link.CreatedAt)
	switch {
	case err == nil:
		return nil
	case violates(err, "user_providers_pkey"):
		return domain.ErrProviderLinked
	case violates(err, "user_providers_provider_subject_key"):
		return domain.ErrCredentialInUse
	default:
		return err
	}
}

func (r *userRepository) getOne(ctx context.Context, query string, args ...interface{}) (*domain.User, error) {
	var (
		user  domain.User
		email *string
	)
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&user.ID,
		&email,
		&user.DisplayName,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	if email != nil {
		user.Email = *email
	}

	providers, err := r.providers(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Providers = providers
	return &user, nil
}

func (r *userRepository) providers(ctx context.Context, userID string) ([]domain.ProviderLink, error) {
	const query = `
	SELECT provider, subject, email, created_at
	FROM user_providers
	WHERE user_id = $1
	ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []domain.ProviderLink
	for rows.Next() {
		var (
			link      domain.ProviderLink
			createdAt time.Time
		)
		if err := rows.Scan(&link.Provider, &link.Subject, &link.Email, &createdAt); err != nil {
			return nil, err
		}
		link.CreatedAt = createdAt
		links = append(links, link)
	}
	return links, rows.Err()
}
