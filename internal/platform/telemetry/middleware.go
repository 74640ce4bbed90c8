package telemetry

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/jsamuelsen/synaptik/internal/platform/telemetry"

// HeaderTraceID echoes the request's trace ID so clients can quote it.
const HeaderTraceID = "X-Trace-ID"

// probePrefix marks health routes, which are neither traced nor measured.
const probePrefix = "/-/"

type requestMetrics struct {
	duration metric.Float64Histogram
	active   metric.Int64UpDownCounter
}

func newRequestMetrics(mp metric.MeterProvider) (*requestMetrics, error) {
	meter := mp.Meter(instrumentationName)

	duration, err := meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Duration of API requests."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	active, err := meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithDescription("API requests in flight."),
	)
	if err != nil {
		return nil, err
	}

	return &requestMetrics{duration: duration, active: active}, nil
}

// Middleware returns the handlers that trace each API request with otelgin,
// then echo its trace ID and record its duration by route and status. Install
// them with engine.Use(Middleware(name)...).
func Middleware(serviceName string, opts ...otelgin.Option) gin.HandlersChain {
	skipProbes := otelgin.WithFilter(func(r *http.Request) bool {
		return !strings.HasPrefix(r.URL.Path, probePrefix)
	})

	metrics, err := newRequestMetrics(otel.GetMeterProvider())
	if err != nil {
		otel.Handle(err)
	}

	return gin.HandlersChain{
		otelgin.Middleware(serviceName, append([]otelgin.Option{skipProbes}, opts...)...),
		measure(metrics),
	}
}

func measure(m *requestMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, probePrefix) {
			c.Next()
			return
		}

		ctx := c.Request.Context()

		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			c.Header(HeaderTraceID, sc.TraceID().String())
		}

		if m == nil {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		inFlight := metric.WithAttributes(attribute.String("http.request.method", c.Request.Method))
		m.active.Add(ctx, 1, inFlight)
		defer m.active.Add(ctx, -1, inFlight)

		start := time.Now()

		c.Next()

		m.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
			attribute.String("http.request.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.String("http.response.status_code", strconv.Itoa(c.Writer.Status())),
		))
	}
}
