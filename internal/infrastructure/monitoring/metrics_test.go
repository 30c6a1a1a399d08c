package monitoring

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, metric prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, metric.Write(&out))
	if out.Counter != nil {
		return out.GetCounter().GetValue()
	}
	return out.GetGauge().GetValue()
}

func series(t *testing.T, m *Metrics, name string) int {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return len(f.GetMetric())
		}
	}
	return 0
}

func TestNewMetricsAreIndependent(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.IncReconnects()

	assert.Equal(t, 1.0, value(t, a.Reconnects))
	assert.Equal(t, 0.0, value(t, b.Reconnects))
}

func TestRecordAPICallUpdatesSnapshot(t *testing.T) {
	m := NewMetrics()

	m.RecordAPICall("terminal.list", OutcomeSuccess, 10*time.Millisecond)
	m.RecordAPICall("terminal.list", OutcomeError, 10*time.Millisecond)
	m.RecordAPICall("terminal.create", OutcomeRejected, time.Millisecond)

	assert.Equal(t, 1.0, value(t, m.APICalls.WithLabelValues("terminal.list", OutcomeSuccess)))
	assert.Equal(t, 1.0, value(t, m.APICalls.WithLabelValues("terminal.list", OutcomeError)))

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.APICalls)
	assert.Equal(t, int64(2), snap.APIErrors)
}

func TestSessionsTrackedDropsEmptyProjects(t *testing.T) {
	m := NewMetrics()

	m.SetSessionsTracked("p1", 2)
	assert.Equal(t, 1, series(t, m, "worktabs_sessions_tracked"))

	m.SetSessionsTracked("p1", 0)
	assert.Equal(t, 0, series(t, m, "worktabs_sessions_tracked"))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordAPICall("op", OutcomeSuccess, time.Millisecond)
		m.RecordAnomaly("project_mismatch")
		m.RecordFrame("in", "data")
		m.RecordStatus("ready")
		m.IncReconnects()
		m.IncMalformedFrames()
		m.RecordOrderWrite("set")
		m.SetSessionsTracked("p", 1)
		m.SetBreakerOpen("api", true)
		NewTimer(m, "op").Stop(OutcomeSuccess)
	})
}

func TestOutcome(t *testing.T) {
	errOpen := errors.New("open")

	assert.Equal(t, OutcomeSuccess, Outcome(nil))
	assert.Equal(t, OutcomeError, Outcome(errors.New("x"), errOpen))
	assert.Equal(t, OutcomeRejected, Outcome(errOpen, errOpen))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1.0, value(t, m.RequestsTotal.WithLabelValues("GET", "/healthz", "200")))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "worktabs_http_requests_total")
	assert.Contains(t, w.Body.String(), "worktabs_uptime_seconds")
}
