package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/todo/api/transport"
	"github.com/fastygo/todo/domain"
	"github.com/fastygo/todo/internal/middleware"
	"github.com/fastygo/todo/pkg/httpcontext"
	authUC "github.com/fastygo/todo/usecase/auth"
)

type AuthHandler struct {
	baseHandler
	uc     *authUC.UseCase
	cookie middleware.SessionCookie
}

func NewAuthHandler(uc *authUC.UseCase, cookie middleware.SessionCookie, adapter *httpcontext.Adapter, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
		cookie:      cookie,
	}
}

// @Summary Create an email/password account
// @Tags auth
// @Router /api/v1/auth/signup [post]
func (h *AuthHandler) SignUp(ctx *fasthttp.RequestCtx) {
	var req transport.CredentialsRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	res, err := h.uc.SignUp(stdCtx, req.Email, req.Password)
	h.finish(ctx, http.StatusCreated, res, err)
}

// @Summary Sign in with email and password
// @Tags auth
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(ctx *fasthttp.RequestCtx) {
	var req transport.CredentialsRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	res, err := h.uc.SignIn(stdCtx, req.Email, req.Password)
	h.finish(ctx, http.StatusOK, res, err)
}

// @Summary Google consent URL
// @Tags auth
// @Router /api/v1/auth/google/url [get]
func (h *AuthHandler) GoogleURL(ctx *fasthttp.RequestCtx) {
	state := uuid.NewString()
	url, err := h.uc.GoogleAuthURL(state)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.GoogleURLResponse{URL: url, State: state})
}

// @Summary Sign in with a Google authorization code
// @Tags auth
// @Router /api/v1/auth/google [post]
func (h *AuthHandler) GoogleSignIn(ctx *fasthttp.RequestCtx) {
	var req transport.GoogleCodeRequest
	if !h.decode(ctx, &req) {
		return
	}
	if req.Code == "" {
		h.invalidPayload(ctx)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	res, err := h.uc.SignInWithGoogle(stdCtx, req.Code)
	h.finish(ctx, http.StatusOK, res, err)
}

// @Summary Link Google to the signed-in account
// @Tags auth
// @Router /api/v1/auth/google/link [post]
func (h *AuthHandler) GoogleLink(ctx *fasthttp.RequestCtx) {
	session := h.session(ctx)
	if session == nil {
		return
	}
	var req transport.GoogleCodeRequest
	if !h.decode(ctx, &req) {
		return
	}
	if req.Code == "" {
		h.invalidPayload(ctx)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	res, err := h.uc.LinkGoogle(stdCtx, session.ID, req.Code)
	h.finish(ctx, http.StatusOK, res, err)
}

// @Summary End the current session
// @Tags auth
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(ctx *fasthttp.RequestCtx) {
	session := h.session(ctx)
	if session == nil {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.SignOut(stdCtx, session.ID); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.cookie.Clear(ctx)
	h.respondSuccess(ctx, http.StatusOK, map[string]bool{"signed_out": true})
}

func (h *AuthHandler) finish(ctx *fasthttp.RequestCtx, status int, res *authUC.Result, err error) {
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if res == nil {
		h.respondError(ctx, domain.ErrUnauthorized)
		return
	}
	h.cookie.Set(ctx, res.Token, res.ExpiresAt)
	h.respondSuccess(ctx, status, res)
}
