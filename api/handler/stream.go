package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/todo/domain"
	"github.com/fastygo/todo/internal/infrastructure/realtime"
	"github.com/fastygo/todo/internal/metrics"
	"github.com/fastygo/todo/pkg/httpcontext"
	"github.com/fastygo/todo/usecase/authstate"
	"github.com/fastygo/todo/usecase/tasklist"
)

const defaultHeartbeat = 25 * time.Second

type flushWriter interface {
	io.Writer
	Flush() error
}

// StreamHandler pushes auth state and full task snapshots as Server-Sent Events.
type StreamHandler struct {
	baseHandler
	base      context.Context
	auth      *authstate.Provider
	tasks     tasklist.Loader
	bus       realtime.Bus
	metrics   *metrics.Metrics
	heartbeat time.Duration
}

// NewStreamHandler ties every stream to base, so open streams end when base is cancelled.
func NewStreamHandler(base context.Context, auth *authstate.Provider, tasks tasklist.Loader, bus realtime.Bus, m *metrics.Metrics, adapter *httpcontext.Adapter, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{
		baseHandler: newBaseHandler(adapter, logger),
		base:        base,
		auth:        auth,
		tasks:       tasks,
		bus:         bus,
		metrics:     m,
		heartbeat:   defaultHeartbeat,
	}
}

type authEvent struct {
	Status string       `json:"status"`
	User   *domain.User `json:"user,omitempty"`
}

// @Summary Realtime task snapshots (text/event-stream)
// @Tags tasks
// @Router /api/v1/tasks/stream [get]
func (h *StreamHandler) Stream(ctx *fasthttp.RequestCtx) {
	session := h.session(ctx)
	if session == nil {
		return
	}
	sessionID := session.ID

	stdCtx, cancel := h.streamContext(ctx)

	ctx.Response.Header.SetContentType("text/event-stream")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.Response.Header.Set("Connection", "keep-alive")
	ctx.Response.Header.Set("X-Accel-Buffering", "no")

	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		closeGauge := h.metrics.StreamOpened()
		defer closeGauge()
		h.serve(stdCtx, sessionID, w)
	})
}

func (h *StreamHandler) streamContext(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	var (
		stdCtx context.Context
		cancel context.CancelFunc
	)
	if h.adapter != nil {
		stdCtx, cancel = h.adapter.Stream(ctx)
	} else {
		stdCtx, cancel = context.WithCancel(context.Background())
	}
	if h.base == nil {
		return stdCtx, cancel
	}
	stop := context.AfterFunc(h.base, cancel)
	return stdCtx, func() {
		stop()
		cancel()
	}
}

// serve runs until the client goes away, ctx ends or the session signs out.
func (h *StreamHandler) serve(ctx context.Context, sessionID string, w flushWriter) {
	log := h.log(ctx).With(zap.String("session_id", sessionID))

	authCh := make(chan domain.AuthState, 1)
	snapCh := make(chan tasklist.Snapshot, 1)

	binding := tasklist.NewBinding(h.tasks, h.bus, log, func(s tasklist.Snapshot) { offerLatest(snapCh, s) })
	defer binding.Close()

	watch, err := h.auth.Watch(ctx, sessionID, func(s domain.AuthState) { offerLatest(authCh, s) })
	if err != nil {
		log.Error("failed to watch session", zap.Error(err))
		_ = writeEvent(w, "error", map[string]string{"error": "stream unavailable"})
		return
	}
	defer watch.Close()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		var err error
		select {
		case <-ctx.Done():
			return

		case state := <-authCh:
			if state.Status != domain.AuthPresent {
				_ = binding.Bind(ctx, nil)
				_ = writeEvent(w, "tasks", drain(snapCh))
				_ = writeEvent(w, "auth", authEvent{Status: state.Status.String()})
				return
			}
			if err = writeEvent(w, "auth", authEvent{Status: state.Status.String(), User: state.User}); err != nil {
				break
			}
			if bindErr := binding.Bind(ctx, state.User); bindErr != nil {
				log.Error("failed to bind task list", zap.Error(bindErr))
				return
			}

		case snap := <-snapCh:
			err = writeEvent(w, "tasks", snap)

		case <-ticker.C:
			_, err = io.WriteString(w, ": ping\n\n")
			if err == nil {
				err = w.Flush()
			}
		}
		if err != nil {
			log.Debug("stream client gone", zap.Error(err))
			return
		}
	}
}

func writeEvent(w flushWriter, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return w.Flush()
}

// offerLatest replaces any undelivered value in ch with v.
func offerLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func drain(ch chan tasklist.Snapshot) tasklist.Snapshot {
	select {
	case s := <-ch:
		return s
	default:
		return tasklist.Snapshot{Tasks: []domain.Task{}}
	}
}
