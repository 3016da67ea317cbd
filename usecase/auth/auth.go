package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/todo/domain"
	"github.com/fastygo/todo/internal/infrastructure/realtime"
	"github.com/fastygo/todo/internal/metrics"
	"github.com/fastygo/todo/repository"
)

const minPasswordLength = 6

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// TokenIssuer signs the bearer token handed to the client for a session.
type TokenIssuer interface {
	Issue(session *domain.Session) (string, error)
}

// FederatedProvider runs an external authorization-code flow.
type FederatedProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*domain.FederatedIdentity, error)
}

// Result is a signed-in session together with its identity and token.
type Result struct {
	Session   *domain.Session `json:"-"`
	User      *domain.User    `json:"user"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
}

type UseCase struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	hasher   PasswordHasher
	tokens   TokenIssuer
	google   FederatedProvider
	bus      realtime.Bus
	metrics  *metrics.Metrics
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// Deps groups the collaborators of the auth use case. Google and Bus may be nil.
type Deps struct {
	Users    repository.UserRepository
	Sessions repository.SessionRepository
	Hasher   PasswordHasher
	Tokens   TokenIssuer
	Google   FederatedProvider
	Bus      realtime.Bus
	Metrics  *metrics.Metrics
	TTL      time.Duration
	Logger   *zap.Logger
}

func New(deps Deps) *UseCase {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &UseCase{
		users:    deps.Users,
		sessions: deps.Sessions,
		hasher:   deps.Hasher,
		tokens:   deps.Tokens,
		google:   deps.Google,
		bus:      deps.Bus,
		metrics:  deps.Metrics,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// GoogleEnabled reports whether Google sign-in and linking are available.
func (uc *UseCase) GoogleEnabled() bool {
	return uc.google != nil
}

// SignUp creates a password identity and signs it in.
func (uc *UseCase) SignUp(ctx context.Context, email, password string) (res *Result, err error) {
	defer func() { uc.metrics.AuthOperation("signup", err) }()

	email = domain.NormalizeEmail(email)
	if !strings.Contains(email, "@") {
		return nil, domain.ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return nil, domain.ErrWeakPassword
	}

	if _, err := uc.users.GetByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailInUse
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hash, err := uc.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Providers: []domain.ProviderLink{{
			Provider:  domain.ProviderPassword,
			Subject:   email,
			Email:     email,
			CreatedAt: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.users.Create(ctx, user); err != nil {
		return nil, err
	}
	uc.logger.Info("user signed up", zap.String("user_id", user.ID))
	return uc.startSession(ctx, user, "")
}

// SignIn verifies email and password.
func (uc *UseCase) SignIn(ctx context.Context, email, password string) (res *Result, err error) {
	defer func() { uc.metrics.AuthOperation("signin", err) }()

	user, err := uc.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if user.PasswordHash == "" || uc.hasher.Compare(user.PasswordHash, password) != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return uc.startSession(ctx, user, "")
}

// GoogleAuthURL returns the Google consent URL for state.
func (uc *UseCase) GoogleAuthURL(state string) (string, error) {
	if uc.google == nil {
		return "", domain.ErrFederatedDisabled
	}
	return uc.google.AuthCodeURL(state), nil
}

// SignInWithGoogle completes the Google flow. Unknown Google accounts get a new
// identity unless their email already belongs to a password identity, which
// has to sign in and link instead.
func (uc *UseCase) SignInWithGoogle(ctx context.Context, code string) (res *Result, err error) {
	defer func() { uc.metrics.AuthOperation("google_signin", err) }()

	identity, err := uc.exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	user, err := uc.users.GetByProvider(ctx, domain.ProviderGoogle, identity.Subject)
	switch {
	case err == nil:
		return uc.startSession(ctx, user, identity.AccessToken)
	case !errors.Is(err, domain.ErrUserNotFound):
		return nil, err
	}

	if identity.Email != "" {
		if _, err := uc.users.GetByEmail(ctx, identity.Email); err == nil {
			return nil, domain.ErrAccountExists
		} else if !errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
	}

	now := uc.now()
	user = &domain.User{
		ID:          uuid.NewString(),
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		Providers:   []domain.ProviderLink{linkFor(identity, now)},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.users.Create(ctx, user); err != nil {
		return nil, err
	}
	uc.logger.Info("user signed up with google", zap.String("user_id", user.ID))
	return uc.startSession(ctx, user, identity.AccessToken)
}

// LinkGoogle attaches a Google account to the identity of sessionID and stores
// the granted calendar token on that session. On failure nothing changes.
func (uc *UseCase) LinkGoogle(ctx context.Context, sessionID, code string) (res *Result, err error) {
	defer func() { uc.metrics.AuthOperation("google_link", err) }()

	session, user, err := uc.Resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if user.HasProvider(domain.ProviderGoogle) {
		return nil, domain.ErrProviderLinked
	}

	identity, err := uc.exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	// Token first: a stored link without a token could never be linked again.
	prevToken := session.CalendarToken
	session.CalendarToken = identity.AccessToken
	if err := uc.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	link := linkFor(identity, uc.now())
	if err := uc.users.LinkProvider(ctx, user.ID, link); err != nil {
		session.CalendarToken = prevToken
		if restoreErr := uc.sessions.Save(ctx, session); restoreErr != nil {
			uc.logger.Error("failed to restore session after link failure",
				zap.String("session_id", session.ID),
				zap.Error(restoreErr),
			)
		}
		return nil, err
	}

	updated, err := uc.users.GetByID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	uc.notify(ctx, session.ID)
	uc.logger.Info("google linked", zap.String("user_id", user.ID))
	return uc.result(session, updated)
}

// SignOut ends the session, dropping its calendar token.
func (uc *UseCase) SignOut(ctx context.Context, sessionID string) (err error) {
	defer func() { uc.metrics.AuthOperation("signout", err) }()

	if sessionID == "" {
		return nil
	}
	if err := uc.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return err
	}
	uc.notify(ctx, sessionID)
	return nil
}

// Resolve loads a live session and its identity.
func (uc *UseCase) Resolve(ctx context.Context, sessionID string) (*domain.Session, *domain.User, error) {
	if sessionID == "" {
		return nil, nil, domain.ErrSessionNotFound
	}
	session, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session.IsExpired(uc.now()) {
		_ = uc.sessions.Delete(ctx, sessionID)
		return nil, nil, domain.ErrSessionNotFound
	}
	user, err := uc.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, err
	}
	return session, user, nil
}

func (uc *UseCase) exchange(ctx context.Context, code string) (*domain.FederatedIdentity, error) {
	if uc.google == nil {
		return nil, domain.ErrFederatedDisabled
	}
	identity, err := uc.google.Exchange(ctx, code)
	if err != nil {
		uc.logger.Warn("google exchange failed", zap.Error(err))
		return nil, domain.ErrFederatedSignIn.Wrap(err)
	}
	return identity, nil
}

func (uc *UseCase) startSession(ctx context.Context, user *domain.User, calendarToken string) (*Result, error) {
	now := uc.now()
	session := &domain.Session{
		ID:            uuid.NewString(),
		UserID:        user.ID,
		CalendarToken: calendarToken,
		CreatedAt:     now,
		ExpiresAt:     now.Add(uc.ttl),
	}
	if err := uc.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return uc.result(session, user)
}

func (uc *UseCase) result(session *domain.Session, user *domain.User) (*Result, error) {
	token, err := uc.tokens.Issue(session)
	if err != nil {
		return nil, err
	}
	return &Result{
		Session:   session,
		User:      user,
		Token:     token,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

func (uc *UseCase) notify(ctx context.Context, sessionID string) {
	if uc.bus == nil {
		return
	}
	if err := uc.bus.Publish(ctx, realtime.AuthTopic(sessionID), nil); err != nil {
		uc.logger.Warn("failed to publish auth change", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func linkFor(identity *domain.FederatedIdentity, now time.Time) domain.ProviderLink {
	return domain.ProviderLink{
		Provider:  domain.ProviderGoogle,
		Subject:   identity.Subject,
		Email:     identity.Email,
		CreatedAt: now,
	}
}
