package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/todo/api/transport"
	"github.com/fastygo/todo/pkg/httpcontext"
	"github.com/fastygo/todo/usecase/calendarlink"
	taskUC "github.com/fastygo/todo/usecase/task"
)

type CalendarHandler struct {
	baseHandler
	flow  *calendarlink.Flow
	tasks *taskUC.UseCase
}

func NewCalendarHandler(flow *calendarlink.Flow, tasks *taskUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *CalendarHandler {
	return &CalendarHandler{
		baseHandler: newBaseHandler(adapter, logger),
		flow:        flow,
		tasks:       tasks,
	}
}

// @Summary Default date/time for the calendar picker
// @Tags calendar
// @Param tz query string false "IANA time zone"
// @Router /api/v1/tasks/{id}/calendar/proposal [get]
func (h *CalendarHandler) Proposal(ctx *fasthttp.RequestCtx) {
	session := h.session(ctx)
	if session == nil {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.tasks.Get(stdCtx, session.UserID, pathID(ctx))
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	loc := h.flow.Location(string(ctx.QueryArgs().Peek("tz")))
	h.respondSuccess(ctx, http.StatusOK, transport.CalendarProposal{
		TaskID:   task.ID,
		DateTime: h.flow.Propose(time.Now(), loc),
		TimeZone: loc.String(),
	})
}

// @Summary Create a calendar event for a task
// @Tags calendar
// @Router /api/v1/tasks/{id}/calendar [post]
func (h *CalendarHandler) Link(ctx *fasthttp.RequestCtx) {
	session := h.session(ctx)
	if session == nil {
		return
	}
	var req transport.CalendarLinkRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	res, err := h.flow.Confirm(stdCtx, calendarlink.Request{
		UserID:   session.UserID,
		TaskID:   pathID(ctx),
		DateTime: req.DateTime,
		TimeZone: req.TimeZone,
		Token:    session.CalendarToken,
	})
	if err != nil {
		h.respondErrorMeta(ctx, err, res)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, res)
}
