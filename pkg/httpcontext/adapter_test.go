package httpcontext

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"

	appLogger "github.com/fastygo/todo/pkg/logger"
)

func TestAttach_PropagatesRequestID(t *testing.T) {
	var rc fasthttp.RequestCtx
	rc.Request.Header.Set("X-Request-ID", "req-7")
	rc.Request.Header.SetUserAgent("tests")

	ctx, cancel := NewAdapter(time.Second).Attach(&rc)
	defer cancel()

	assert.Equal(t, "req-7", appLogger.RequestID(ctx))
	assert.Equal(t, "req-7", string(rc.Response.Header.Peek("X-Request-ID")))
	assert.Equal(t, "tests", ctx.Value(KeyUserAgent))

	deadline, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 200*time.Millisecond)
}

func TestAttach_GeneratesRequestID(t *testing.T) {
	var rc fasthttp.RequestCtx
	ctx, cancel := NewAdapter(0).Attach(&rc)
	defer cancel()

	assert.NotEmpty(t, appLogger.RequestID(ctx))
	assert.Equal(t, 5*time.Second, NewAdapter(0).Timeout())
}

func TestStream_HasNoDeadline(t *testing.T) {
	var rc fasthttp.RequestCtx
	ctx, cancel := NewAdapter(time.Second).Stream(&rc)

	_, ok := ctx.Deadline()
	assert.False(t, ok)
	cancel()
	assert.Error(t, ctx.Err())
}
