package acl

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/jsamuelsen/synaptik/internal/adapters/clients"
	"github.com/jsamuelsen/synaptik/internal/domain"
)

// Codes the API writes into the error envelope. Answers without one of them
// are classified by status.
const (
	codeNotFound     = "NOT_FOUND"
	codeConflict     = "CONFLICT"
	codeValidation   = "VALIDATION_ERROR"
	codeBadRequest   = "BAD_REQUEST"
	codeTooLarge     = "PAYLOAD_TOO_LARGE"
	codeForbidden    = "FORBIDDEN"
	codeUnauthorized = "UNAUTHORIZED"
	codeUnavailable  = "SERVICE_UNAVAILABLE"
	codeTimeout      = "TIMEOUT"
	codeInternal     = "INTERNAL_ERROR"
)

// call names the request being translated so errors can say what failed.
type call struct {
	service   string
	operation string
	entity    string
	id        string
}

// envelope is the API error body. The flat {"code","message"} form is
// accepted too, for proxies that rewrite errors.
type envelope struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *envelope) code() string {
	if e == nil {
		return ""
	}

	return cmp.Or(e.Error.Code, e.Code)
}

func (e *envelope) message() string {
	if e == nil {
		return ""
	}

	return cmp.Or(e.Error.Message, e.Message)
}

// readEnvelope returns nil for empty, non-JSON or code-less bodies.
func readEnvelope(r io.Reader) *envelope {
	if r == nil {
		return nil
	}

	raw, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil || len(raw) == 0 {
		return nil
	}

	var env envelope
	if sonic.Unmarshal(raw, &env) != nil || (env.code() == "" && env.message() == "") {
		return nil
	}

	return &env
}

// byCode builds the domain error for each envelope code.
var byCode = map[string]func(c call, msg string, env *envelope) error{
	codeNotFound: func(c call, _ string, _ *envelope) error {
		return domain.NewNotFoundError(c.entity, c.id)
	},
	codeConflict: func(c call, msg string, _ *envelope) error {
		return domain.NewConflictError(c.entity, msg)
	},
	codeValidation: invalid,
	codeBadRequest: invalid,
	codeTooLarge:   invalid,
	codeForbidden: func(c call, msg string, _ *envelope) error {
		return domain.NewForbiddenError(c.operation, msg)
	},
	codeUnauthorized: func(c call, _ string, _ *envelope) error {
		return domain.NewForbiddenError(c.operation, "authentication required")
	},
	codeUnavailable: unavailable,
	codeTimeout:     unavailable,
	codeInternal:    unavailable,
}

func unavailable(c call, msg string, _ *envelope) error {
	return domain.NewUnavailableError(c.service, msg)
}

// invalid keeps the first field detail when the API sent any.
func invalid(_ call, msg string, env *envelope) error {
	if env != nil {
		for field, m := range env.Error.Details {
			return domain.NewValidationError(field, m)
		}
	}

	return domain.NewValidationError("", msg)
}

// codeFor classifies a status that came without a known envelope code.
func codeFor(status int) string {
	switch {
	case status == http.StatusNotFound:
		return codeNotFound
	case status == http.StatusConflict, status == http.StatusPreconditionFailed:
		return codeConflict
	case status == http.StatusUnauthorized:
		return codeUnauthorized
	case status == http.StatusForbidden:
		return codeForbidden
	case status == http.StatusTooManyRequests, status >= http.StatusInternalServerError:
		return codeUnavailable
	default:
		return codeBadRequest
	}
}

// failure turns an unsuccessful exchange into a domain error: a transport
// error when err is set, otherwise the envelope code, falling back to the
// status. It returns nil for 2xx responses.
func failure(resp *http.Response, err error, c call) error {
	if err != nil {
		return transportFailure(err, c)
	}

	if resp == nil {
		return domain.NewUnavailableError(c.service, "no response received")
	}

	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	env := readEnvelope(resp.Body)

	code := env.code()
	if _, known := byCode[code]; !known {
		code = codeFor(resp.StatusCode)
	}

	msg := env.message()
	if msg == "" {
		msg = fmt.Sprintf("%s answered %d %s", c.operation, resp.StatusCode, strings.ToLower(http.StatusText(resp.StatusCode)))
	}

	return byCode[code](c, msg, env)
}

func transportFailure(err error, c call) error {
	var reason string

	switch {
	case errors.Is(err, clients.ErrCircuitOpen):
		reason = "circuit breaker open during " + c.operation
	case errors.Is(err, clients.ErrMaxRetriesExceeded):
		reason = "max retries exceeded during " + c.operation
	default:
		reason = fmt.Sprintf("%s failed: %v", c.operation, err)
	}

	return domain.NewUnavailableError(c.service, reason)
}
