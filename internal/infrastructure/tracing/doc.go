/*
Package tracing provides lightweight request tracing for worktabs.

Every call to the collaborator REST API runs inside a span. Trace and span
ids are ULIDs from the id package and travel as X-Trace-ID and X-Span-ID
headers, with a fresh X-Request-ID per request. Completed spans are logged
through zap by a single collector goroutine.

# Usage

	tracer := tracing.New("worktabs", logger)
	defer tracer.Close()

	span, ctx := tracer.StartSpan(ctx, "terminal.list")
	req.Header = make(http.Header)
	tracing.Inject(ctx, req.Header)
	// ... perform call ...
	span.SetStatus(resp.StatusCode)
	span.Finish()
	tracer.Submit(span)

The status server uses HTTPMiddleware to continue traces started by callers.
*/
package tracing
