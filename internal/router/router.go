package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/pprofhandler"

	apiHandler "github.com/fastygo/todo/api/handler"
	"github.com/fastygo/todo/api/view"
)

type Handlers struct {
	View     *view.Handler
	Auth     *apiHandler.AuthHandler
	Profile  *apiHandler.ProfileHandler
	Task     *apiHandler.TaskHandler
	Calendar *apiHandler.CalendarHandler
	Stream   *apiHandler.StreamHandler
	Health   *apiHandler.HealthHandler
	Metrics  fasthttp.RequestHandler
}

// Middlewares wrap handlers with authentication.
type Middlewares struct {
	Require  func(fasthttp.RequestHandler) fasthttp.RequestHandler
	Optional func(fasthttp.RequestHandler) fasthttp.RequestHandler
}

func New(handlers Handlers, mw Middlewares, enablePprof bool) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)
	if handlers.Metrics != nil {
		r.GET("/metrics", handlers.Metrics)
	}
	if enablePprof {
		r.ANY("/debug/pprof/{profile:*}", pprofhandler.PprofHandler)
	}

	// Browser screens
	r.GET("/", mw.Optional(handlers.View.Index))
	r.POST("/login", handlers.View.Login)
	r.POST("/signup", handlers.View.SignUp)
	r.POST("/logout", mw.Optional(handlers.View.Logout))
	r.POST("/theme", handlers.View.Theme)
	r.GET("/auth/google", mw.Optional(handlers.View.GoogleStart))
	r.GET("/auth/google/callback", mw.Optional(handlers.View.GoogleCallback))
	r.POST("/tasks", mw.Optional(handlers.View.AddTask))
	r.POST("/tasks/{id}/toggle", mw.Optional(handlers.View.ToggleTask))
	r.POST("/tasks/{id}/delete", mw.Optional(handlers.View.DeleteTask))
	r.POST("/tasks/{id}/calendar", mw.Optional(handlers.View.LinkCalendar))

	// Auth routes
	r.POST("/api/v1/auth/signup", handlers.Auth.SignUp)
	r.POST("/api/v1/auth/login", handlers.Auth.Login)
	r.GET("/api/v1/auth/google/url", handlers.Auth.GoogleURL)
	r.POST("/api/v1/auth/google", handlers.Auth.GoogleSignIn)
	r.POST("/api/v1/auth/google/link", mw.Require(handlers.Auth.GoogleLink))
	r.POST("/api/v1/auth/logout", mw.Require(handlers.Auth.Logout))

	// Protected routes
	r.GET("/api/v1/profile", mw.Require(handlers.Profile.GetProfile))

	r.GET("/api/v1/tasks", mw.Require(handlers.Task.GetTasks))
	r.POST("/api/v1/tasks", mw.Require(handlers.Task.CreateTask))
	r.GET("/api/v1/tasks/stream", mw.Require(handlers.Stream.Stream))
	r.PATCH("/api/v1/tasks/{id}/toggle", mw.Require(handlers.Task.ToggleTask))
	r.DELETE("/api/v1/tasks/{id}", mw.Require(handlers.Task.DeleteTask))
	r.GET("/api/v1/tasks/{id}/calendar/proposal", mw.Require(handlers.Calendar.Proposal))
	r.POST("/api/v1/tasks/{id}/calendar", mw.Require(handlers.Calendar.Link))

	return r
}
