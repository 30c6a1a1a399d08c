/*
Package rest is the client for the collaborator terminal REST API.

Routes live under /api/v1. Responses are accepted bare or wrapped as
{"body": ...}. Non-2xx responses come back as *StatusError.

Every call waits on the client-side rate limiter, runs through the
"terminal-api" circuit breaker and carries X-Trace-ID, X-Span-ID and
X-Request-ID headers. GET calls retry on transport errors and 5xx
responses; POST calls are never retried, so a create is never duplicated.
*/
package rest
