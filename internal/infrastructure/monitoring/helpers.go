package monitoring

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// API call outcomes
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeRejected = "rejected"
)

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Outcome classifies an API call result for the outcome label. Errors
// matching any of rejected are reported as rejected rather than failed.
func Outcome(err error, rejected ...error) string {
	if err == nil {
		return OutcomeSuccess
	}
	for _, r := range rejected {
		if errors.Is(err, r) {
			return OutcomeRejected
		}
	}
	return OutcomeError
}
