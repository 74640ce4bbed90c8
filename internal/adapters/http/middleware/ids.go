// Package middleware holds the Gin middleware chain in front of the Synaptik API.
package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jsamuelsen/synaptik/internal/platform/logging"
)

// Tracing headers. A request ID names one hop; a correlation ID follows a
// user action across every service it touches.
const (
	HeaderRequestID     = "X-Request-ID"
	HeaderCorrelationID = "X-Correlation-ID"
)

// maxIDLength bounds caller-supplied IDs before they reach logs and
// downstream headers.
const maxIDLength = 128

type idKey int

const (
	requestIDKey idKey = iota
	correlationIDKey
)

// idKind ties a header to the context slot and log attribute it fills.
type idKind struct {
	header string
	key    idKey
	enrich func(context.Context, string) context.Context
}

var (
	requestIDKind     = idKind{HeaderRequestID, requestIDKey, logging.WithRequestID}
	correlationIDKind = idKind{HeaderCorrelationID, correlationIDKey, logging.WithCorrelationID}
)

// RequestID accepts the caller's X-Request-ID or mints a UUID, echoes it on
// the response and stores it on the request context and logger.
func RequestID() gin.HandlerFunc {
	return requestIDKind.middleware()
}

// CorrelationID does for X-Correlation-ID what RequestID does for
// X-Request-ID. A minted correlation ID marks this request as the origin of
// the transaction.
func CorrelationID() gin.HandlerFunc {
	return correlationIDKind.middleware()
}

func (k idKind) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := sanitizeID(c.GetHeader(k.header))
		if id == "" {
			id = uuid.NewString()
		}

		// Rewritten so later readers of the header see the accepted value.
		c.Request.Header.Set(k.header, id)
		c.Header(k.header, id)

		ctx := context.WithValue(c.Request.Context(), k.key, id)
		c.Request = c.Request.WithContext(k.enrich(ctx, id))

		c.Next()
	}
}

// sanitizeID drops IDs that are too long or carry anything outside
// printable ASCII.
func sanitizeID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) > maxIDLength {
		return ""
	}

	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return ""
		}
	}

	return id
}

func idFrom(ctx context.Context, key idKey) string {
	if ctx == nil {
		return ""
	}

	id, _ := ctx.Value(key).(string)

	return id
}

// RequestIDFromContext returns the request ID stored by RequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	return idFrom(ctx, requestIDKey)
}

// CorrelationIDFromContext returns the correlation ID stored by CorrelationID, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	return idFrom(ctx, correlationIDKey)
}

// ContextWithRequestID stores id as the request ID for calls made outside
// an inbound request.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// ContextWithCorrelationID stores id as the correlation ID.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}
