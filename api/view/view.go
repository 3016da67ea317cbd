// Package view renders the browser screens: the login screen for anonymous
// visitors and the task screen for signed-in users. Every form posts back and
// redirects, and an event stream reloads the page when the task list changes.
package view

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	"errors"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/todo/domain"
	"github.com/fastygo/todo/internal/middleware"
	"github.com/fastygo/todo/pkg/httpcontext"
	appLogger "github.com/fastygo/todo/pkg/logger"
	authUC "github.com/fastygo/todo/usecase/auth"
	"github.com/fastygo/todo/usecase/calendarlink"
	taskUC "github.com/fastygo/todo/usecase/task"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	flashCookie = "todo_flash"
	themeCookie = "todo_theme"
	stateCookie = "todo_oauth_state"
	tzCookie    = "todo_tz"

	themeDark  = "dark"
	themeLight = "light"

	modeLink = "link"

	// MsgEventCreated confirms a successful calendar link.
	MsgEventCreated = "Event created in your Google Calendar"
	// MsgGoogleLinked confirms that Google was attached to the signed-in account.
	MsgGoogleLinked = "Google account linked! You can now add events to Calendar."
)

type Handler struct {
	auth    *authUC.UseCase
	tasks   *taskUC.UseCase
	flow    *calendarlink.Flow
	cookie  middleware.SessionCookie
	adapter *httpcontext.Adapter
	logger  *zap.Logger
	pages   map[string]*template.Template
}

func New(auth *authUC.UseCase, tasks *taskUC.UseCase, flow *calendarlink.Flow, cookie middleware.SessionCookie, adapter *httpcontext.Adapter, logger *zap.Logger) (*Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pages := make(map[string]*template.Template, 2)
	for _, name := range []string{"login", "tasks"} {
		tmpl, err := template.New(name).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, err
		}
		pages[name] = tmpl
	}
	return &Handler{
		auth:    auth,
		tasks:   tasks,
		flow:    flow,
		cookie:  cookie,
		adapter: adapter,
		logger:  logger,
		pages:   pages,
	}, nil
}

type loginPage struct {
	Theme         string
	Alert         string
	GoogleEnabled bool
}

type tasksPage struct {
	Theme         string
	Alert         string
	User          *domain.User
	Tasks         []domain.Task
	CanLinkGoogle bool
	CalendarFor   string
	CalendarValue string
}

// Index renders the login screen or the task screen.
func (h *Handler) Index(ctx *fasthttp.RequestCtx) {
	theme := themeOf(ctx)
	alert := h.takeFlash(ctx)

	user := middleware.UserFrom(ctx)
	if user == nil {
		h.render(ctx, "login", loginPage{Theme: theme, Alert: alert, GoogleEnabled: h.auth.GoogleEnabled()})
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	tasks, err := h.tasks.List(stdCtx, user.ID)
	if err != nil {
		h.log(stdCtx).Error("failed to list tasks", zap.Error(err))
		alert = domain.MessageOf(err, "Could not load tasks")
	}

	page := tasksPage{
		Theme:         theme,
		Alert:         alert,
		User:          user,
		Tasks:         tasks,
		CanLinkGoogle: h.auth.GoogleEnabled() && !user.HasProvider(domain.ProviderGoogle),
	}
	if id := string(ctx.QueryArgs().Peek("calendar")); id != "" {
		tz, _ := url.QueryUnescape(string(ctx.Request.Header.Cookie(tzCookie)))
		loc := h.flow.Location(tz)
		page.CalendarFor = id
		page.CalendarValue = h.flow.Propose(time.Now(), loc)
	}
	h.render(ctx, "tasks", page)
}

func (h *Handler) Login(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	res, err := h.auth.SignIn(stdCtx, formValue(ctx, "email"), formValue(ctx, "password"))
	h.signedIn(ctx, res, err)
}

func (h *Handler) SignUp(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	res, err := h.auth.SignUp(stdCtx, formValue(ctx, "email"), formValue(ctx, "password"))
	h.signedIn(ctx, res, err)
}

func (h *Handler) Logout(ctx *fasthttp.RequestCtx) {
	if session := middleware.SessionFrom(ctx); session != nil {
		stdCtx, cancel := h.requestContext(ctx)
		defer cancel()
		if err := h.auth.SignOut(stdCtx, session.ID); err != nil {
			h.log(stdCtx).Error("sign out failed", zap.Error(err))
		}
	}
	h.cookie.Clear(ctx)
	h.redirect(ctx, "/")
}

// GoogleStart redirects to Google. mode=link attaches Google to the current
// identity instead of signing in.
func (h *Handler) GoogleStart(ctx *fasthttp.RequestCtx) {
	mode := string(ctx.QueryArgs().Peek("mode"))
	if mode == modeLink && middleware.SessionFrom(ctx) == nil {
		h.fail(ctx, domain.ErrUnauthorized, "/")
		return
	}

	state := uuid.NewString()
	target, err := h.auth.GoogleAuthURL(state)
	if err != nil {
		h.fail(ctx, err, "/")
		return
	}
	h.setCookie(ctx, stateCookie, mode+":"+state, 10*time.Minute)
	ctx.Redirect(target, fasthttp.StatusFound)
}

func (h *Handler) GoogleCallback(ctx *fasthttp.RequestCtx) {
	expected := string(ctx.Request.Header.Cookie(stateCookie))
	h.deleteCookie(ctx, stateCookie)

	mode, state, _ := strings.Cut(expected, ":")
	if state == "" || state != string(ctx.QueryArgs().Peek("state")) {
		h.fail(ctx, domain.ErrFederatedSignIn, "/")
		return
	}
	if errParam := string(ctx.QueryArgs().Peek("error")); errParam != "" {
		h.fail(ctx, domain.ErrFederatedSignIn.Wrap(errors.New(errParam)), "/")
		return
	}
	code := string(ctx.QueryArgs().Peek("code"))

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if mode == modeLink {
		session := middleware.SessionFrom(ctx)
		if session == nil {
			h.fail(ctx, domain.ErrUnauthorized, "/")
			return
		}
		res, err := h.auth.LinkGoogle(stdCtx, session.ID, code)
		if err == nil {
			h.flash(ctx, MsgGoogleLinked)
		}
		h.signedIn(ctx, res, err)
		return
	}

	res, err := h.auth.SignInWithGoogle(stdCtx, code)
	h.signedIn(ctx, res, err)
}

// Theme flips between dark and light.
func (h *Handler) Theme(ctx *fasthttp.RequestCtx) {
	next := themeLight
	if themeOf(ctx) == themeLight {
		next = themeDark
	}
	h.setCookie(ctx, themeCookie, next, 365*24*time.Hour)
	h.redirect(ctx, "/")
}

func (h *Handler) AddTask(ctx *fasthttp.RequestCtx) {
	user := h.requireUser(ctx)
	if user == nil {
		return
	}
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if _, err := h.tasks.Add(stdCtx, user.ID, formValue(ctx, "text")); err != nil {
		h.fail(ctx, err, "/")
		return
	}
	h.redirect(ctx, "/")
}

func (h *Handler) ToggleTask(ctx *fasthttp.RequestCtx) {
	user := h.requireUser(ctx)
	if user == nil {
		return
	}
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if _, err := h.tasks.Toggle(stdCtx, user.ID, pathID(ctx)); err != nil {
		h.fail(ctx, err, "/")
		return
	}
	h.redirect(ctx, "/")
}

func (h *Handler) DeleteTask(ctx *fasthttp.RequestCtx) {
	user := h.requireUser(ctx)
	if user == nil {
		return
	}
	session := middleware.SessionFrom(ctx)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.tasks.Delete(stdCtx, user.ID, pathID(ctx), session.CalendarToken); err != nil {
		h.fail(ctx, err, "/")
		return
	}
	h.redirect(ctx, "/")
}

// LinkCalendar confirms the picker. The picker stays open while the link is
// still pending so the user can correct the value and retry.
func (h *Handler) LinkCalendar(ctx *fasthttp.RequestCtx) {
	user := h.requireUser(ctx)
	if user == nil {
		return
	}
	session := middleware.SessionFrom(ctx)
	id := pathID(ctx)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	res, err := h.flow.Confirm(stdCtx, calendarlink.Request{
		UserID:   user.ID,
		TaskID:   id,
		DateTime: formValue(ctx, "datetime"),
		TimeZone: formValue(ctx, "tz"),
		Token:    session.CalendarToken,
	})
	if err != nil {
		back := "/"
		if res != nil && res.State == domain.LinkPending {
			back = "/?calendar=" + url.QueryEscape(id)
		}
		h.fail(ctx, err, back)
		return
	}
	h.flash(ctx, MsgEventCreated)
	h.redirect(ctx, "/")
}

func (h *Handler) signedIn(ctx *fasthttp.RequestCtx, res *authUC.Result, err error) {
	if err != nil {
		h.fail(ctx, err, "/")
		return
	}
	h.cookie.Set(ctx, res.Token, res.ExpiresAt)
	h.redirect(ctx, "/")
}

func (h *Handler) requireUser(ctx *fasthttp.RequestCtx) *domain.User {
	user := middleware.UserFrom(ctx)
	if user == nil || middleware.SessionFrom(ctx) == nil {
		h.redirect(ctx, "/")
		return nil
	}
	return user
}

func (h *Handler) fail(ctx *fasthttp.RequestCtx, err error, target string) {
	if !isDomain(err) || domain.IsDomainError(err, domain.ErrCodeInternal) {
		h.logger.Error("request failed", zap.ByteString("path", ctx.Path()), zap.Error(err))
	}
	h.flash(ctx, domain.MessageOf(err, "Something went wrong. Please try again."))
	h.redirect(ctx, target)
}

func (h *Handler) render(ctx *fasthttp.RequestCtx, page string, data interface{}) {
	var buf bytes.Buffer
	if err := h.pages[page].ExecuteTemplate(&buf, "layout", data); err != nil {
		h.logger.Error("template render failed", zap.String("page", page), zap.Error(err))
		ctx.Error("internal error", fasthttp.StatusInternalServerError)
		return
	}
	ctx.Response.Header.SetContentType("text/html; charset=utf-8")
	ctx.Response.Header.Set("Cache-Control", "no-store")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(buf.Bytes())
}

func (h *Handler) redirect(ctx *fasthttp.RequestCtx, target string) {
	ctx.Redirect(target, fasthttp.StatusSeeOther)
}

func (h *Handler) flash(ctx *fasthttp.RequestCtx, message string) {
	h.setCookie(ctx, flashCookie, base64.RawURLEncoding.EncodeToString([]byte(message)), time.Minute)
}

func (h *Handler) takeFlash(ctx *fasthttp.RequestCtx) string {
	raw := ctx.Request.Header.Cookie(flashCookie)
	if len(raw) == 0 {
		return ""
	}
	h.deleteCookie(ctx, flashCookie)
	msg, err := base64.RawURLEncoding.DecodeString(string(raw))
	if err != nil {
		return ""
	}
	return string(msg)
}

func (h *Handler) setCookie(ctx *fasthttp.RequestCtx, name, value string, ttl time.Duration) {
	cookie := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(cookie)

	cookie.SetKey(name)
	cookie.SetValue(value)
	cookie.SetPath("/")
	cookie.SetHTTPOnly(true)
	cookie.SetSecure(h.cookie.Secure)
	cookie.SetSameSite(fasthttp.CookieSameSiteLaxMode)
	cookie.SetMaxAge(int(ttl.Seconds()))
	ctx.Response.Header.SetCookie(cookie)
}

func (h *Handler) deleteCookie(ctx *fasthttp.RequestCtx, name string) {
	cookie := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(cookie)

	cookie.SetKey(name)
	cookie.SetPath("/")
	cookie.SetExpire(fasthttp.CookieExpireDelete)
	ctx.Response.Header.SetCookie(cookie)
}

func (h *Handler) requestContext(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	if h.adapter != nil {
		return h.adapter.Attach(ctx)
	}
	return context.WithCancel(context.Background())
}

func (h *Handler) log(stdCtx context.Context) *zap.Logger {
	return appLogger.WithRequestID(stdCtx, h.logger)
}

func themeOf(ctx *fasthttp.RequestCtx) string {
	if string(ctx.Request.Header.Cookie(themeCookie)) == themeLight {
		return themeLight
	}
	return themeDark
}

func formValue(ctx *fasthttp.RequestCtx, key string) string {
	return string(ctx.FormValue(key))
}

func pathID(ctx *fasthttp.RequestCtx) string {
	id, _ := ctx.UserValue("id").(string)
	return id
}

func isDomain(err error) bool {
	var dErr *domain.Error
	return errors.As(err, &dErr)
}
