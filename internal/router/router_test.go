package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/todo/api/handler"
	"github.com/fastygo/todo/api/view"
)

func passthrough(next fasthttp.RequestHandler) fasthttp.RequestHandler { return next }

func TestNew_RegistersRoutes(t *testing.T) {
	r := New(Handlers{
		View:     &view.Handler{},
		Auth:     &apiHandler.AuthHandler{},
		Profile:  &apiHandler.ProfileHandler{},
		Task:     &apiHandler.TaskHandler{},
		Calendar: &apiHandler.CalendarHandler{},
		Stream:   &apiHandler.StreamHandler{},
		Health:   &apiHandler.HealthHandler{},
	}, Middlewares{Require: passthrough, Optional: passthrough}, false)

	routes := r.List()
	assert.ElementsMatch(t, []string{
		"/health",
		"/",
		"/auth/google",
		"/auth/google/callback",
		"/api/v1/auth/google/url",
		"/api/v1/profile",
		"/api/v1/tasks",
		"/api/v1/tasks/stream",
		"/api/v1/tasks/{id}/calendar/proposal",
	}, routes[fasthttp.MethodGet])
	assert.ElementsMatch(t, []string{
		"/login",
		"/signup",
		"/logout",
		"/theme",
		"/tasks",
		"/tasks/{id}/toggle",
		"/tasks/{id}/delete",
		"/tasks/{id}/calendar",
		"/api/v1/auth/signup",
		"/api/v1/auth/login",
		"/api/v1/auth/google",
		"/api/v1/auth/google/link",
		"/api/v1/auth/logout",
		"/api/v1/tasks",
		"/api/v1/tasks/{id}/calendar",
	}, routes[fasthttp.MethodPost])
	assert.Equal(t, []string{"/api/v1/tasks/{id}/toggle"}, routes[fasthttp.MethodPatch])
	assert.Equal(t, []string{"/api/v1/tasks/{id}"}, routes[fasthttp.MethodDelete])
	assert.NotContains(t, routes[fasthttp.MethodGet], "/metrics")
}

func TestNew_OptionalEndpoints(t *testing.T) {
	r := New(Handlers{
		View:     &view.Handler{},
		Auth:     &apiHandler.AuthHandler{},
		Profile:  &apiHandler.ProfileHandler{},
		Task:     &apiHandler.TaskHandler{},
		Calendar: &apiHandler.CalendarHandler{},
		Stream:   &apiHandler.StreamHandler{},
		Health:   &apiHandler.HealthHandler{},
		Metrics:  func(*fasthttp.RequestCtx) {},
	}, Middlewares{Require: passthrough, Optional: passthrough}, true)

	routes := r.List()
	assert.Contains(t, routes[fasthttp.MethodGet], "/metrics")
	assert.Contains(t, routes["*"], "/debug/pprof/{profile:*}")
}
