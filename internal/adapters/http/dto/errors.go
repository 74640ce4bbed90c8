// Package dto holds the JSON shapes of the Synaptik API and the helpers that
// bind, validate and answer requests with them.
package dto

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/synaptik/internal/domain"
	"github.com/jsamuelsen/synaptik/internal/platform/logging"
)

// TraceIDKey is the gin context key holding the request's trace identifier.
const TraceIDKey = "trace_id"

// requestIDHeader is read when no trace ID was stored on the context.
const requestIDHeader = "X-Request-ID"

// ErrorResponse is the body of every non-2xx answer:
//
//	{"error":{"code":"NOT_FOUND","message":"...","details":{...}},"traceId":"..."}
type ErrorResponse struct {
	Error   ErrorDetail `json:"error"`
	TraceID string      `json:"traceId,omitempty"`
}

// ErrorDetail is the error part of the envelope. Details maps field names to
// messages for validation failures.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Error codes.
const (
	ErrorCodeNotFound     = "NOT_FOUND"
	ErrorCodeConflict     = "CONFLICT"
	ErrorCodeValidation   = "VALIDATION_ERROR"
	ErrorCodeBadRequest   = "BAD_REQUEST"
	ErrorCodeTooLarge     = "PAYLOAD_TOO_LARGE"
	ErrorCodeForbidden    = "FORBIDDEN"
	ErrorCodeUnauthorized = "UNAUTHORIZED"
	ErrorCodeUnavailable  = "SERVICE_UNAVAILABLE"
	ErrorCodeTimeout      = "TIMEOUT"
	ErrorCodeInternal     = "INTERNAL_ERROR"
)

var codeStatus = map[string]int{
	ErrorCodeNotFound:     http.StatusNotFound,
	ErrorCodeConflict:     http.StatusConflict,
	ErrorCodeValidation:   http.StatusBadRequest,
	ErrorCodeBadRequest:   http.StatusBadRequest,
	ErrorCodeTooLarge:     http.StatusRequestEntityTooLarge,
	ErrorCodeForbidden:    http.StatusForbidden,
	ErrorCodeUnauthorized: http.StatusUnauthorized,
	ErrorCodeUnavailable:  http.StatusServiceUnavailable,
	ErrorCodeTimeout:      http.StatusGatewayTimeout,
}

// NewErrorResponse builds an envelope without details.
func NewErrorResponse(code, message string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Code: code, Message: message}}
}

// NewErrorResponseWithDetails builds an envelope with per-field details.
func NewErrorResponseWithDetails(code, message string, details map[string]string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Code: code, Message: message, Details: details}}
}

// WithTraceID sets the trace ID and returns e.
func (e *ErrorResponse) WithTraceID(traceID string) *ErrorResponse {
	e.TraceID = traceID
	return e
}

// HTTPStatusFromCode returns the status answered with code. Unknown codes
// are 500.
func HTTPStatusFromCode(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}

	return http.StatusInternalServerError
}

// MapError converts a domain error into its status and envelope. Errors of
// no domain kind become a generic 500. Unavailable dependencies are named,
// but why they failed stays in the logs.
func MapError(err error) (int, *ErrorResponse) {
	var code, msg string

	switch {
	case err == nil:
		return http.StatusOK, nil
	case domain.IsNotFound(err):
		code, msg = ErrorCodeNotFound, err.Error()
	case domain.IsConflict(err):
		code, msg = ErrorCodeConflict, err.Error()
	case domain.IsValidation(err):
		code, msg = ErrorCodeValidation, err.Error()
	case domain.IsForbidden(err):
		code, msg = ErrorCodeForbidden, err.Error()
	case domain.IsUnavailable(err):
		code, msg = ErrorCodeUnavailable, "a dependency is temporarily unavailable"

		var ue *domain.UnavailableError
		if errors.As(err, &ue) && ue.Service != "" {
			msg = ue.Service + " is temporarily unavailable"
		}
	default:
		code, msg = ErrorCodeInternal, "an internal error occurred"
	}

	resp := NewErrorResponse(code, msg)

	var ve *domain.ValidationError
	if code == ErrorCodeValidation && errors.As(err, &ve) && ve.Field != "" {
		resp.Error.Details = map[string]string{ve.Field: ve.Message}
	}

	return HTTPStatusFromCode(code), resp
}

// GetTraceID returns the trace identifier for the request: the value stored
// under TraceIDKey, then the active span, then the X-Request-ID header.
func GetTraceID(c *gin.Context) string {
	if v, ok := c.Get(TraceIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}

		return ""
	}

	if c.Request == nil {
		return ""
	}

	if span := trace.SpanFromContext(c.Request.Context()); span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}

	return c.Request.Header.Get(requestIDHeader)
}

// HandleError writes the error envelope for err and aborts the handler chain.
// The text of internal errors is logged, never sent.
func HandleError(c *gin.Context, err error) {
	status, resp := MapError(err)
	if resp == nil {
		return
	}

	resp.WithTraceID(GetTraceID(c))

	if status == http.StatusInternalServerError {
		ctx := c.Request.Context()
		logging.FromContext(ctx).ErrorContext(ctx, "internal error",
			slog.Any("error", err),
			slog.String("trace_id", resp.TraceID),
		)
	}

	c.AbortWithStatusJSON(status, resp)
}

// BadRequest writes a 400 with the given code and message.
func BadRequest(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, NewErrorResponse(code, message).WithTraceID(GetTraceID(c)))
}

// HandleBindError answers a request whose body or query failed to bind or
// validate. Field-level failures are listed in details.
func HandleBindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		resp := NewErrorResponse(ErrorCodeTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, resp.WithTraceID(GetTraceID(c)))

		return
	}

	if IsValidationError(err) {
		resp := NewErrorResponseWithDetails(ErrorCodeValidation, "request validation failed", ValidationErrors(err))
		c.AbortWithStatusJSON(http.StatusBadRequest, resp.WithTraceID(GetTraceID(c)))

		return
	}

	BadRequest(c, ErrorCodeBadRequest, "malformed request")
}
