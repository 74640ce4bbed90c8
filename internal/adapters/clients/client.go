package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/synaptik/internal/adapters/http/middleware"
	"github.com/jsamuelsen/synaptik/internal/platform/config"
	"github.com/jsamuelsen/synaptik/internal/platform/logging"
)

const instrumentationName = "github.com/jsamuelsen/synaptik/internal/adapters/clients"

// Defaults for settings left at zero.
const (
	defaultTimeout      = 30 * time.Second
	defaultJitter       = 0.25
	defaultMaxIdle      = 100
	defaultMaxIdleHost  = 10
	defaultIdleTimeout  = 90 * time.Second
	defaultInitialDelay = 100 * time.Millisecond
)

// drainLimit caps how much of a retried response is read so its connection
// can be reused.
const drainLimit = 4 << 10

// Config configures a Client.
type Config struct {
	// BaseURL prefixes every request path, e.g. "http://localhost:8080".
	BaseURL string

	// ServiceName names the API in logs, spans and metrics.
	ServiceName string

	// Timeout bounds each attempt. Retries and backoff come on top.
	Timeout time.Duration

	Retry     config.RetryConfig
	Circuit   config.CircuitBreakerConfig
	Transport config.TransportConfig

	// AuthFunc, if set, signs every attempt.
	AuthFunc func(*http.Request)

	Logger *slog.Logger
}

// Client sends requests to one Synaptik API. Failed attempts are retried
// with exponential backoff when the request is safe to repeat, and a circuit
// breaker stops calling an API that keeps failing. Request and correlation
// IDs and the trace context travel with every request.
type Client struct {
	http    *http.Client
	baseURL string
	service string
	retry   config.RetryConfig
	auth    func(*http.Request)
	logger  *slog.Logger
	breaker *CircuitBreaker

	tracer   trace.Tracer
	duration metric.Float64Histogram
	attempts metric.Int64Counter
}

// New builds a Client from cfg.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	if cfg.ServiceName == "" {
		return nil, errors.New("service name is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.With(slog.String("downstream", cfg.ServiceName))

	meter := otel.Meter(instrumentationName)

	duration, err := meter.Float64Histogram("http.client.request.duration",
		metric.WithDescription("Duration of calls to the task API, retries included."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	attempts, err := meter.Int64Counter("http.client.attempts",
		metric.WithDescription("HTTP attempts sent to the task API."),
	)
	if err != nil {
		return nil, fmt.Errorf("creating attempt counter: %w", err)
	}

	retry := cfg.Retry
	retry.MaxAttempts = max(retry.MaxAttempts, 1)

	return &Client{
		http:    &http.Client{Timeout: timeout, Transport: newTransport(&cfg.Transport)},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		service: cfg.ServiceName,
		retry:   retry,
		auth:    cfg.AuthFunc,
		logger:  logger,
		breaker: NewCircuitBreaker(cfg.Circuit, func(from, to State) {
			logger.Warn("circuit breaker state changed", slog.String("from", from.String()), slog.String("to", to.String()))
		}),
		tracer:   otel.Tracer(instrumentationName),
		duration: duration,
		attempts: attempts,
	}, nil
}

// Do sends req. A response is returned for every status that is not
// retried; retried statuses that never recover end as an error wrapping
// ErrMaxRetriesExceeded and a *StatusError. Bodies are replayed through
// req.GetBody, which http.NewRequest sets for in-memory readers.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	start := time.Now()
	log := logging.FromContextOr(ctx, c.logger).With(
		slog.String("downstream", c.service),
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
	)

	if err := c.breaker.Allow(); err != nil {
		c.observe(ctx, req.Method, start, "circuit_open", 0)
		log.WarnContext(ctx, "request blocked by circuit breaker", slog.Any("error", err))

		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "HTTP "+req.Method+" "+c.service,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.full", req.URL.String()),
			attribute.String("peer.service", c.service),
		),
	)
	defer span.End()

	c.stamp(ctx, req)

	var (
		tries     int
		transient bool
	)

	resp, err := backoff.Retry(ctx, func() (*http.Response, error) {
		tries++
		c.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("peer.service", c.service)))

		resp, err := c.attempt(ctx, req, tries)

		var permanent *backoff.PermanentError
		transient = err != nil && !errors.As(err, &permanent)

		return resp, err
	},
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(uint(c.retry.MaxAttempts)), //nolint:gosec // MaxAttempts is at least 1
		backoff.WithNotify(func(err error, wait time.Duration) {
			log.DebugContext(ctx, "retrying request",
				slog.Int("attempt", tries+1),
				slog.Duration("backoff", wait),
				slog.Any("error", err),
			)
		}),
	)

	c.breaker.Done(outcomeOf(ctx, resp, err))

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		c.observe(ctx, req.Method, start, "error", 0)
		log.ErrorContext(ctx, "request failed", slog.Int("attempts", tries), slog.Duration("duration", time.Since(start)), slog.Any("error", err))

		if transient && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrMaxRetriesExceeded, tries, err)
		}

		return nil, fmt.Errorf("calling %s: %w", c.service, err)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, resp.Status)
	}

	c.observe(ctx, req.Method, start, fmt.Sprintf("%dxx", resp.StatusCode/100), resp.StatusCode)
	log.DebugContext(ctx, "request completed", slog.Int("status", resp.StatusCode), slog.Int("attempts", tries))

	return resp, nil
}

// attempt sends req once. Failures that may succeed on a later attempt are
// returned as plain errors; everything else is marked permanent.
func (c *Client) attempt(ctx context.Context, req *http.Request, n int) (*http.Response, error) {
	if n > 1 {
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, backoff.Permanent(fmt.Errorf("rewinding request body: %w", err))
			}

			req.Body = body
		}

		if c.auth != nil {
			c.auth(req)
		}
	}

	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		if ctx.Err() == nil && retryableError(req.Method, err) {
			return nil, err
		}

		return nil, backoff.Permanent(err)
	}

	if !retryableStatus(req.Method, resp.StatusCode) {
		return resp, nil
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))
	_ = resp.Body.Close()

	return nil, &StatusError{Code: resp.StatusCode}
}

// Get sends a GET to path.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.Send(ctx, http.MethodGet, path, nil)
}

// Post sends a JSON body to path.
func (c *Client) Post(ctx context.Context, path string, body io.Reader) (*http.Response, error) {
	return c.Send(ctx, http.MethodPost, path, body)
}

// Put sends a JSON body to path.
func (c *Client) Put(ctx context.Context, path string, body io.Reader) (*http.Response, error) {
	return c.Send(ctx, http.MethodPut, path, body)
}

// Patch sends a JSON body to path.
func (c *Client) Patch(ctx context.Context, path string, body io.Reader) (*http.Response, error) {
	return c.Send(ctx, http.MethodPatch, path, body)
}

// Delete sends a DELETE to path.
func (c *Client) Delete(ctx context.Context, path string) (*http.Response, error) {
	return c.Send(ctx, http.MethodDelete, path, nil)
}

// Send builds a request for path under the base URL and sends it through Do.
// A nil body sends none; any other body is sent as JSON.
func (c *Client) Send(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	if body == nil {
		body = http.NoBody
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if body != http.NoBody {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.Do(ctx, req)
}

// CircuitState reports the breaker state.
func (c *Client) CircuitState() State {
	return c.breaker.State()
}

// stamp copies the caller's request and correlation IDs and trace context
// onto req and signs the first attempt.
func (c *Client) stamp(ctx context.Context, req *http.Request) {
	if id := middleware.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(middleware.HeaderRequestID, id)
	}

	if id := middleware.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set(middleware.HeaderCorrelationID, id)
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	if c.auth != nil {
		c.auth(req)
	}
}

func (c *Client) newBackOff() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     valueOr(c.retry.InitialInterval, defaultInitialDelay),
		RandomizationFactor: c.retry.JitterFactor,
		Multiplier:          c.retry.Multiplier,
		MaxInterval:         valueOr(c.retry.MaxInterval, backoff.DefaultMaxInterval),
	}

	if b.RandomizationFactor <= 0 {
		b.RandomizationFactor = defaultJitter
	}

	if b.Multiplier <= 1 {
		b.Multiplier = backoff.DefaultMultiplier
	}

	b.Reset()

	return b
}

func (c *Client) observe(ctx context.Context, method string, start time.Time, result string, status int) {
	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", method),
		attribute.String("peer.service", c.service),
		attribute.String("result", result),
	}

	if status > 0 {
		attrs = append(attrs, attribute.Int("http.response.status_code", status))
	}

	c.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))
}

func newTransport(cfg *config.TransportConfig) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // stdlib default

	t.MaxIdleConns = valueOr(cfg.MaxIdleConns, defaultMaxIdle)
	t.MaxIdleConnsPerHost = valueOr(cfg.MaxIdleConnsPerHost, defaultMaxIdleHost)
	t.IdleConnTimeout = valueOr(cfg.IdleConnTimeout, defaultIdleTimeout)

	return t
}

func valueOr[T int | time.Duration](v, fallback T) T {
	if v <= 0 {
		return fallback
	}

	return v
}

// idempotent methods may be repeated even when the server might have acted
// on the first attempt.
func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

// retryableStatus: 429 and the gateway statuses say the request was not
// processed, so any method is retried. Other 5xx answers are retried only
// for idempotent methods.
func retryableStatus(method string, code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}

	return code >= http.StatusInternalServerError && idempotent(method)
}

// retryableError: a failed dial never reached the server and is always
// retried. Other network failures are retried for idempotent methods.
func retryableError(method string, err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return idempotent(method)
	}

	return false
}
