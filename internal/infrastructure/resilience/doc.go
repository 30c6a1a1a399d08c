/*
Package resilience provides the circuit breaker that guards calls to the
collaborator REST API.

The breaker opens after ReadyToTrip reports too many failures, rejects calls
with ErrCircuitOpen until Timeout elapses, then admits MaxRequests probes
while half-open. IsFailure lets callers keep client errors (a 404 or a 400)
from counting against the service, and cancelled contexts are never counted.

# Usage

	breaker := resilience.New("terminal-api", resilience.Settings{
		Timeout: 10 * time.Second,
		IsFailure: func(err error) bool {
			var se *rest.StatusError
			return !errors.As(err, &se) || se.Code >= 500
		},
		OnStateChange: func(name string, from, to resilience.State) {
			log.Info("breaker state", zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	items, err := resilience.Execute(ctx, breaker, func(ctx context.Context) ([]Session, error) {
		return fetch(ctx)
	})

# States

	Closed --[ReadyToTrip]-> Open --[Timeout]-> Half-Open --[MaxRequests successes]-> Closed
	                                               |
	                                           [failure]
	                                               v
	                                              Open
*/
package resilience
