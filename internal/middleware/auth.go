package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/todo/api/transport"
	"github.com/fastygo/todo/domain"
	"github.com/fastygo/todo/internal/security"
)

// User values set on authenticated requests.
const (
	UserValueSession = "auth.session"
	UserValueUser    = "auth.user"
)

// SessionResolver loads a live session and its identity.
type SessionResolver interface {
	Resolve(ctx context.Context, sessionID string) (*domain.Session, *domain.User, error)
}

// Auth authenticates requests by the signed session token, taken from the
// Authorization header or the session cookie.
type Auth struct {
	tokens   *security.Tokens
	resolver SessionResolver
	cookie   SessionCookie
	timeout  time.Duration
	logger   *zap.Logger
}

func NewAuth(tokens *security.Tokens, resolver SessionResolver, cookie SessionCookie, timeout time.Duration, logger *zap.Logger) *Auth {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Auth{
		tokens:   tokens,
		resolver: resolver,
		cookie:   cookie,
		timeout:  timeout,
		logger:   logger,
	}
}

// Require rejects unauthenticated requests with 401.
func (a *Auth) Require(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if err := a.authenticate(ctx); err != nil {
			ctx.Response.Header.SetContentType("application/json")
			ctx.SetStatusCode(http.StatusUnauthorized)
			ctx.SetBodyString(transport.NewError(string(domain.ErrCodeUnauthorized), domain.ErrUnauthorized.Message, nil).String())
			return
		}
		next(ctx)
	}
}

// Optional authenticates when possible and always calls next.
func (a *Auth) Optional(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		_ = a.authenticate(ctx)
		next(ctx)
	}
}

func (a *Auth) authenticate(ctx *fasthttp.RequestCtx) error {
	tokenString := extractToken(ctx, a.cookie.Name)
	if tokenString == "" {
		return domain.ErrUnauthorized
	}

	claims, err := a.tokens.Parse(tokenString)
	if err != nil {
		a.logger.Debug("invalid session token", zap.Error(err))
		return domain.ErrUnauthorized
	}

	stdCtx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	session, user, err := a.resolver.Resolve(stdCtx, claims.SessionID)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionNotFound) && !errors.Is(err, domain.ErrUserNotFound) {
			a.logger.Warn("session lookup failed", zap.Error(err))
		}
		return domain.ErrUnauthorized
	}

	ctx.SetUserValue(UserValueSession, session)
	ctx.SetUserValue(UserValueUser, user)
	ctx.Request.Header.Set("X-User-ID", user.ID)
	return nil
}

// SessionFrom returns the session attached by Auth, or nil.
func SessionFrom(ctx *fasthttp.RequestCtx) *domain.Session {
	session, _ := ctx.UserValue(UserValueSession).(*domain.Session)
	return session
}

// UserFrom returns the identity attached by Auth, or nil.
func UserFrom(ctx *fasthttp.RequestCtx) *domain.User {
	user, _ := ctx.UserValue(UserValueUser).(*domain.User)
	return user
}

func extractToken(ctx *fasthttp.RequestCtx, cookieName string) string {
	header := string(ctx.Request.Header.Peek("Authorization"))
	if header != "" {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookieName == "" {
		return ""
	}
	return string(ctx.Request.Header.Cookie(cookieName))
}
