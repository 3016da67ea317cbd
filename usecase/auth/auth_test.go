package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/todo/domain"
	"github.com/fastygo/todo/internal/infrastructure/boltdb"
	"github.com/fastygo/todo/internal/infrastructure/realtime"
	"github.com/fastygo/todo/internal/security"
	"github.com/fastygo/todo/repository"
	boltrepo "github.com/fastygo/todo/repository/bolt"
)

type fakeGoogle struct {
	identities map[string]*domain.FederatedIdentity
}

func (f *fakeGoogle) AuthCodeURL(state string) string {
	return "https://accounts.example/auth?state=" + state
}

func (f *fakeGoogle) Exchange(_ context.Context, code string) (*domain.FederatedIdentity, error) {
	id, ok := f.identities[code]
	if !ok {
		return nil, errors.New("invalid_grant")
	}
	return id, nil
}

type fixture struct {
	uc     *UseCase
	bus    *realtime.MemoryBus
	tokens *security.Tokens
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithSessions(t, nil)
}

// flakySessions fails the next failSaves calls to Save.
type flakySessions struct {
	repository.SessionRepository
	failSaves int
}

func (s *flakySessions) Save(ctx context.Context, session *domain.Session) error {
	if s.failSaves > 0 {
		s.failSaves--
		return errors.New("redis down")
	}
	return s.SessionRepository.Save(ctx, session)
}

func newFixtureWithSessions(t *testing.T, wrap func(repository.SessionRepository) repository.SessionRepository) *fixture {
	t.Helper()
	store, err := boltdb.Open(filepath.Join(t.TempDir(), "todo.db"), boltrepo.Buckets...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	var sessions repository.SessionRepository = boltrepo.NewSessionRepository(store, time.Hour)
	if wrap != nil {
		sessions = wrap(sessions)
	}

	bus := realtime.NewMemoryBus()
	tokens := security.NewTokens("secret", "todo")
	google := &fakeGoogle{identities: map[string]*domain.FederatedIdentity{
		"ada": {Provider: domain.ProviderGoogle, Subject: "g-ada", Email: "ada@example.com", DisplayName: "Ada", AccessToken: "tok-ada"},
		"bob": {Provider: domain.ProviderGoogle, Subject: "g-bob", Email: "bob@example.com", DisplayName: "Bob", AccessToken: "tok-bob"},
	}}

	uc := New(Deps{
		Users:    boltrepo.NewUserRepository(store),
		Sessions: sessions,
		Hasher:   security.NewHasher(4),
		Tokens:   tokens,
		Google:   google,
		Bus:      bus,
		TTL:      time.Hour,
	})
	return &fixture{uc: uc, bus: bus, tokens: tokens}
}

func TestSignUpAndSignIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.uc.SignUp(ctx, " Ada@Example.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", res.User.Email)
	assert.True(t, res.User.HasProvider(domain.ProviderPassword))
	assert.Empty(t, res.Session.CalendarToken)

	claims, err := f.tokens.Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.Session.ID, claims.SessionID)
	assert.Equal(t, res.User.ID, claims.UserID)

	again, err := f.uc.SignIn(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, again.User.ID)
	assert.NotEqual(t, res.Session.ID, again.Session.ID)

	_, err = f.uc.SignIn(ctx, "ada@example.com", "wrong-pass")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = f.uc.SignIn(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestSignUp_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.SignUp(ctx, "not-an-email", "secret1")
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
	_, err = f.uc.SignUp(ctx, "ada@example.com", "123")
	assert.ErrorIs(t, err, domain.ErrWeakPassword)

	_, err = f.uc.SignUp(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	_, err = f.uc.SignUp(ctx, "ADA@example.com", "secret2")
	assert.ErrorIs(t, err, domain.ErrEmailInUse)
}

func TestSignInWithGoogle_CreatesThenReuses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.uc.SignInWithGoogle(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "Bob", first.User.DisplayName)
	assert.True(t, first.User.HasProvider(domain.ProviderGoogle))
	assert.Equal(t, "tok-bob", first.Session.CalendarToken)

	second, err := f.uc.SignInWithGoogle(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)

	// Federated-only identities have no password to sign in with.
	_, err = f.uc.SignIn(ctx, "bob@example.com", "")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestSignInWithGoogle_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.SignInWithGoogle(ctx, "bad-code")
	assert.ErrorIs(t, err, domain.ErrFederatedSignIn)

	_, err = f.uc.SignUp(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	_, err = f.uc.SignInWithGoogle(ctx, "ada")
	assert.ErrorIs(t, err, domain.ErrAccountExists)
}

func TestLinkGoogle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	signed, err := f.uc.SignUp(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	sub, err := f.bus.Subscribe(ctx, realtime.AuthTopic(signed.Session.ID))
	require.NoError(t, err)
	defer sub.Close()

	linked, err := f.uc.LinkGoogle(ctx, signed.Session.ID, "ada")
	require.NoError(t, err)
	assert.True(t, linked.User.HasProvider(domain.ProviderGoogle))
	assert.True(t, linked.User.HasProvider(domain.ProviderPassword))
	assert.Equal(t, signed.Session.ID, linked.Session.ID)

	session, _, err := f.uc.Resolve(ctx, signed.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok-ada", session.CalendarToken)

	select {
	case <-sub.C():
	case <-time.After(time.Second):
		t.Fatal("expected auth notification")
	}

	_, err = f.uc.LinkGoogle(ctx, signed.Session.ID, "ada")
	assert.ErrorIs(t, err, domain.ErrProviderLinked)

	viaGoogle, err := f.uc.SignInWithGoogle(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, signed.User.ID, viaGoogle.User.ID)
}

func TestLinkGoogle_FailureLeavesIdentityUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.SignInWithGoogle(ctx, "bob")
	require.NoError(t, err)
	ada, err := f.uc.SignUp(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	_, err = f.uc.LinkGoogle(ctx, ada.Session.ID, "bob")
	assert.ErrorIs(t, err, domain.ErrCredentialInUse)

	_, err = f.uc.LinkGoogle(ctx, ada.Session.ID, "bad-code")
	assert.ErrorIs(t, err, domain.ErrFederatedSignIn)

	session, user, err := f.uc.Resolve(ctx, ada.Session.ID)
	require.NoError(t, err)
	assert.False(t, user.HasProvider(domain.ProviderGoogle))
	assert.Empty(t, session.CalendarToken)
}

func TestLinkGoogle_SessionSaveFailureAllowsRetry(t *testing.T) {
	flaky := &flakySessions{}
	f := newFixtureWithSessions(t, func(inner repository.SessionRepository) repository.SessionRepository {
		flaky.SessionRepository = inner
		return flaky
	})
	ctx := context.Background()

	ada, err := f.uc.SignUp(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	flaky.failSaves = 1
	_, err = f.uc.LinkGoogle(ctx, ada.Session.ID, "ada")
	require.Error(t, err)

	session, user, err := f.uc.Resolve(ctx, ada.Session.ID)
	require.NoError(t, err)
	assert.False(t, user.HasProvider(domain.ProviderGoogle))
	assert.Empty(t, session.CalendarToken)

	linked, err := f.uc.LinkGoogle(ctx, ada.Session.ID, "ada")
	require.NoError(t, err)
	assert.True(t, linked.User.HasProvider(domain.ProviderGoogle))

	session, _, err = f.uc.Resolve(ctx, ada.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok-ada", session.CalendarToken)
}

func TestSignOutDropsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.uc.SignInWithGoogle(ctx, "bob")
	require.NoError(t, err)

	require.NoError(t, f.uc.SignOut(ctx, res.Session.ID))
	_, _, err = f.uc.Resolve(ctx, res.Session.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.NoError(t, f.uc.SignOut(ctx, res.Session.ID))
}

func TestGoogleDisabled(t *testing.T) {
	uc := New(Deps{})
	assert.False(t, uc.GoogleEnabled())
	_, err := uc.GoogleAuthURL("s")
	assert.ErrorIs(t, err, domain.ErrFederatedDisabled)
	_, err = uc.SignInWithGoogle(context.Background(), "code")
	assert.ErrorIs(t, err, domain.ErrFederatedDisabled)
}
