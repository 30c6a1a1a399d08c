package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStartSpanCreatesRoot(t *testing.T) {
	tracer := New("test", zap.NewNop())
	defer tracer.Close()

	span, ctx := tracer.StartSpan(context.Background(), "op")

	assert.True(t, strings.HasPrefix(span.TraceID.String(), "trace_"))
	assert.True(t, strings.HasPrefix(span.SpanID.String(), "span_"))
	assert.Empty(t, span.ParentID)
	assert.Equal(t, "test", span.Service)
	assert.Equal(t, span.TraceID, GetTraceID(ctx))
	assert.Equal(t, span.SpanID, GetSpanID(ctx))
}

func TestStartSpanChildInheritsTrace(t *testing.T) {
	tracer := New("test", zap.NewNop())
	defer tracer.Close()

	parent, ctx := tracer.StartSpan(context.Background(), "parent")
	child, _ := tracer.StartSpan(ctx, "child")

	assert.Equal(t, parent.TraceID, child.TraceID)
	assert.Equal(t, parent.SpanID, child.ParentID)
	assert.NotEqual(t, parent.SpanID, child.SpanID)
}

func TestInjectAndExtract(t *testing.T) {
	tracer := New("test", zap.NewNop())
	defer tracer.Close()

	span, ctx := tracer.StartSpan(context.Background(), "op")
	h := make(http.Header)
	Inject(ctx, h)

	traceID, spanID := Extract(h)
	assert.Equal(t, span.TraceID, traceID)
	assert.Equal(t, span.SpanID, spanID)
	assert.True(t, strings.HasPrefix(h.Get(HeaderRequestID), "req_"))

	empty := make(http.Header)
	Inject(context.Background(), empty)
	assert.Empty(t, empty.Get(HeaderTraceID))
	assert.NotEmpty(t, empty.Get(HeaderRequestID))
}

func TestSubmittedSpansAreLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tracer := New("test", zap.New(core))
	defer tracer.Close()

	ok, _ := tracer.StartSpan(context.Background(), "ok")
	ok.SetStatus(200)
	ok.Finish()
	tracer.Submit(ok)

	failed, _ := tracer.StartSpan(context.Background(), "failed")
	failed.SetError(errors.New("boom"))
	failed.Finish()
	tracer.Submit(failed)

	require.Eventually(t, func() bool { return logs.Len() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, logs.FilterMessage("span completed").Len())
	assert.Equal(t, 1, logs.FilterMessage("span completed with error").Len())
}

func TestSubmitAfterCloseIsDropped(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tracer := New("test", zap.New(core))
	tracer.Close()
	tracer.Close()

	span, _ := tracer.StartSpan(context.Background(), "late")
	tracer.Submit(span)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, logs.Len())
}

func TestHTTPMiddlewareContinuesTrace(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tracer := New("test", zap.NewNop())
	defer tracer.Close()

	var seen string
	router := gin.New()
	router.Use(HTTPMiddleware(tracer))
	router.GET("/ping", func(c *gin.Context) {
		seen = GetTraceID(c.Request.Context()).String()
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderTraceID, "trace_upstream")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "trace_upstream", seen)
	assert.Equal(t, "trace_upstream", w.Header().Get(HeaderTraceID))
	assert.NotEmpty(t, w.Header().Get(HeaderSpanID))
}
