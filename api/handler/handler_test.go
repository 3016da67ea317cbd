package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/todo/domain"
	"github.com/fastygo/todo/internal/config"
	"github.com/fastygo/todo/internal/infrastructure/boltdb"
	"github.com/fastygo/todo/internal/infrastructure/google"
	"github.com/fastygo/todo/internal/infrastructure/realtime"
	"github.com/fastygo/todo/internal/middleware"
	"github.com/fastygo/todo/internal/security"
	boltrepo "github.com/fastygo/todo/repository/bolt"
	authUC "github.com/fastygo/todo/usecase/auth"
	"github.com/fastygo/todo/usecase/calendarlink"
	taskUC "github.com/fastygo/todo/usecase/task"
)

type fixture struct {
	bus     *realtime.MemoryBus
	auth    *authUC.UseCase
	tasks   *taskUC.UseCase
	flow    *calendarlink.Flow
	session *domain.Session
	user    *domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := boltdb.Open(filepath.Join(t.TempDir(), "todo.db"), boltrepo.Buckets...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"evt-1"}`))
	}))
	t.Cleanup(srv.Close)

	bus := realtime.NewMemoryBus()
	auth := authUC.New(authUC.Deps{
		Users:    boltrepo.NewUserRepository(store),
		Sessions: boltrepo.NewSessionRepository(store, time.Hour),
		Hasher:   security.NewHasher(4),
		Tokens:   security.NewTokens("secret", "todo"),
		Bus:      bus,
		TTL:      time.Hour,
	})
	tasks := taskUC.New(boltrepo.NewTaskRepository(store), bus, nil, nil, nil)
	client := google.NewCalendarClient(config.CalendarConfig{Endpoint: srv.URL + "/", Timeout: 5 * time.Second}, srv.Client(), nil)

	res, err := auth.SignUp(context.Background(), "ada@example.com", "secret1")
	require.NoError(t, err)

	return &fixture{
		bus:     bus,
		auth:    auth,
		tasks:   tasks,
		flow:    calendarlink.New(tasks, client, "UTC", nil),
		session: res.Session,
		user:    res.User,
	}
}

func (f *fixture) authed(rc *fasthttp.RequestCtx) {
	rc.SetUserValue(middleware.UserValueSession, f.session)
	rc.SetUserValue(middleware.UserValueUser, f.user)
}

type envelope struct {
	Status string          `json:"status"`
	Code   string          `json:"code"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
	Meta   json.RawMessage `json:"meta"`
}

func decodeEnvelope(t *testing.T, rc *fasthttp.RequestCtx) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rc.Response.Body(), &env))
	return env
}

func jsonRequest(rc *fasthttp.RequestCtx, method, body string) {
	rc.Request.Header.SetMethod(method)
	rc.Request.Header.SetContentType("application/json")
	rc.Request.SetBodyString(body)
}

func TestMapError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrInvalidCredentials, http.StatusUnauthorized, "UNAUTHORIZED"},
		{domain.ErrCalendarAccessExpired.Wrap(errors.New("401")), http.StatusUnauthorized, "CREDENTIAL_EXPIRED"},
		{domain.ErrFederatedDisabled, http.StatusForbidden, "FORBIDDEN"},
		{domain.ErrEmptyTaskText, http.StatusBadRequest, "INVALID"},
		{domain.ErrTaskNotFound, http.StatusNotFound, "NOT_FOUND"},
		{domain.ErrEmailInUse, http.StatusConflict, "CONFLICT"},
		{domain.ErrCalendarUnreachable, http.StatusBadGateway, "UPSTREAM"},
		{errors.New("disk full"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		status, code := mapError(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestRespondError_HidesInternalMessages(t *testing.T) {
	h := newBaseHandler(nil, nil)

	var rc fasthttp.RequestCtx
	h.respondError(&rc, errors.New("pq: connection refused"))

	env := decodeEnvelope(t, &rc)
	assert.Equal(t, http.StatusInternalServerError, rc.Response.StatusCode())
	assert.Equal(t, "internal error", env.Error)
}
