package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GriffinCanCode/worktabs/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/worktabs/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/worktabs/internal/infrastructure/tracing"
	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// APIPrefix is prepended to every collaborator route
const APIPrefix = "/api/v1"

// Options configures a Client
type Options struct {
	BaseURL   string
	WSBaseURL string
	Token     string
	UserAgent string
	Timeout   time.Duration
	// Retries applies to GET calls only
	Retries   int
	RetryWait time.Duration
	// RateLimit is requests per second; zero disables limiting
	RateLimit float64

	Logger  *zap.Logger
	Metrics *monitoring.Metrics
	Tracer  *tracing.Tracer
}

// Client talks to the collaborator terminal REST API
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker

	baseURL *url.URL
	wsBase  *url.URL

	logger  *zap.Logger
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer
}

// NewClient creates a client with pooled transport, GET retries, optional
// rate limiting and a circuit breaker.
func NewClient(opts Options) (*Client, error) {
	base, err := parseBase(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	wsBase := base
	if opts.WSBaseURL != "" {
		if wsBase, err = parseBase(opts.WSBaseURL); err != nil {
			return nil, fmt.Errorf("ws base url: %w", err)
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 200 * time.Millisecond
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "worktabs/1.0"
	}

	// Pooled transport only; retries are decided by resty per method.
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil

	r := resty.New().
		SetBaseURL(strings.TrimRight(base.String(), "/")+APIPrefix).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(10*opts.RetryWait).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "application/json").
		SetTransport(retryClient.HTTPClient.Transport).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		AddRetryCondition(retryIdempotent)
	if opts.Token != "" {
		r.SetAuthToken(opts.Token)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	c := &Client{
		resty:   r,
		limiter: limiter,
		baseURL: base,
		wsBase:  wsBase,
		logger:  logger,
		metrics: opts.Metrics,
		tracer:  opts.Tracer,
	}

	c.breaker = resilience.New("terminal-api", resilience.Settings{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsFailure: isServerFailure,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			opts.Metrics.SetBreakerOpen(name, to != resilience.StateClosed)
		},
	})

	return c, nil
}

func parseBase(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", raw)
	}
	u.Path = strings.TrimSuffix(strings.TrimRight(u.Path, "/"), APIPrefix)
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// retryIdempotent retries GET calls on transport errors and 5xx. Other
// methods are never retried.
func retryIdempotent(resp *resty.Response, err error) bool {
	if resp == nil || resp.Request == nil || resp.Request.Method != http.MethodGet {
		return false
	}
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return resp.StatusCode() >= http.StatusInternalServerError
}

// isServerFailure keeps client errors from tripping the breaker
func isServerFailure(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}

// BreakerState returns the circuit breaker state
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// call runs one request through the limiter, breaker and tracer and
// decodes a 2xx body into out.
func (c *Client) call(ctx context.Context, op, method, path string, pathParams map[string]string, body, out any) error {
	timer := monitoring.NewTimer(c.metrics, op)

	err := c.limiter.Wait(ctx)
	if err == nil {
		err = c.breaker.Run(ctx, func(ctx context.Context) error {
			return c.do(ctx, op, method, path, pathParams, body, out)
		})
	} else {
		err = fmt.Errorf("rate limit: %w", err)
	}

	duration := timer.Stop(monitoring.Outcome(err, resilience.ErrCircuitOpen, resilience.ErrTooManyRequests))
	if err != nil {
		c.logger.Debug("Terminal API call failed", zap.String("op", op), zap.Duration("duration", duration), zap.Error(err))
		return err
	}
	c.logger.Debug("Terminal API call", zap.String("op", op), zap.Duration("duration", duration))
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path string, pathParams map[string]string, body, out any) error {
	var span *tracing.Span
	if c.tracer != nil {
		span, ctx = c.tracer.StartSpan(ctx, op)
		span.SetTag("http.method", method)
		defer func() {
			span.Finish()
			c.tracer.Submit(span)
		}()
	}

	req := c.resty.R().SetContext(ctx).SetPathParams(pathParams)
	tracing.Inject(ctx, req.Header)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		if span != nil {
			span.SetError(err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if span != nil {
		span.SetStatus(resp.StatusCode())
	}

	if resp.IsError() || resp.StatusCode() >= 300 {
		se := &StatusError{Op: op, StatusCode: resp.StatusCode(), Body: string(resp.Body())}
		if span != nil {
			span.SetError(se)
		}
		return se
	}

	if out == nil {
		return nil
	}
	if err := decode(resp.Body(), out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
