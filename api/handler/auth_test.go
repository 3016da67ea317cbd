package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/todo/internal/middleware"
)

func TestAuthHandler_SignUpLoginLogout(t *testing.T) {
	f := newFixture(t)
	h := NewAuthHandler(f.auth, middleware.SessionCookie{Name: "todo_session"}, nil, nil)

	var signup fasthttp.RequestCtx
	jsonRequest(&signup, fasthttp.MethodPost, `{"email":"bob@example.com","password":"secret1"}`)
	h.SignUp(&signup)
	require.Equal(t, http.StatusCreated, signup.Response.StatusCode())
	assert.Contains(t, string(signup.Response.Header.PeekCookie("todo_session")), "todo_session=")

	var data struct {
		Token string `json:"token"`
		User  struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, &signup).Data, &data))
	assert.NotEmpty(t, data.Token)
	assert.Equal(t, "bob@example.com", data.User.Email)
	assert.NotContains(t, string(signup.Response.Body()), "password_hash")

	var dup fasthttp.RequestCtx
	jsonRequest(&dup, fasthttp.MethodPost, `{"email":"bob@example.com","password":"secret1"}`)
	h.SignUp(&dup)
	assert.Equal(t, http.StatusConflict, dup.Response.StatusCode())

	var bad fasthttp.RequestCtx
	jsonRequest(&bad, fasthttp.MethodPost, `{"email":"bob@example.com","password":"nope"}`)
	h.Login(&bad)
	assert.Equal(t, http.StatusUnauthorized, bad.Response.StatusCode())
	assert.Equal(t, "UNAUTHORIZED", decodeEnvelope(t, &bad).Code)

	var logout fasthttp.RequestCtx
	jsonRequest(&logout, fasthttp.MethodPost, "")
	f.authed(&logout)
	h.Logout(&logout)
	assert.Equal(t, http.StatusOK, logout.Response.StatusCode())
	assert.Contains(t, string(logout.Response.Header.PeekCookie("todo_session")), "expires=")
}

func TestAuthHandler_RejectsMalformedBodies(t *testing.T) {
	f := newFixture(t)
	h := NewAuthHandler(f.auth, middleware.SessionCookie{Name: "todo_session"}, nil, nil)

	var rc fasthttp.RequestCtx
	jsonRequest(&rc, fasthttp.MethodPost, `{"email":`)
	h.Login(&rc)
	assert.Equal(t, http.StatusBadRequest, rc.Response.StatusCode())

	var google fasthttp.RequestCtx
	jsonRequest(&google, fasthttp.MethodPost, `{"code":""}`)
	h.GoogleSignIn(&google)
	assert.Equal(t, http.StatusBadRequest, google.Response.StatusCode())
}

func TestAuthHandler_GoogleDisabled(t *testing.T) {
	f := newFixture(t)
	h := NewAuthHandler(f.auth, middleware.SessionCookie{Name: "todo_session"}, nil, nil)

	var rc fasthttp.RequestCtx
	h.GoogleURL(&rc)
	assert.Equal(t, http.StatusForbidden, rc.Response.StatusCode())
	assert.Equal(t, "Google sign-in is not configured", decodeEnvelope(t, &rc).Error)
}
