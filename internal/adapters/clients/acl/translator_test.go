package acl

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/synaptik/internal/adapters/clients"
	"github.com/jsamuelsen/synaptik/internal/domain"
	"github.com/jsamuelsen/synaptik/internal/platform/config"
)

// testConfig disables retries so each test sees exactly one exchange.
func testConfig(baseURL string) *clients.Config {
	return &clients.Config{
		ServiceName: "synaptik",
		BaseURL:     baseURL,
		Timeout:     5 * time.Second,
		Retry: config.RetryConfig{
			MaxAttempts:     1,
			InitialInterval: 10 * time.Millisecond,
			MaxInterval:     100 * time.Millisecond,
			Multiplier:      2.0,
		},
		Circuit: config.CircuitBreakerConfig{
			MaxFailures:   5,
			Timeout:       time.Second,
			HalfOpenLimit: 2,
		},
	}
}

var getTask = call{service: "synaptik", operation: "get task", entity: "task", id: "t-1"}

func response(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestFailure_Status(t *testing.T) {
	tests := []struct {
		status int
		body   string
		is     func(error) bool
		msg    string
	}{
		{http.StatusNotFound, "", domain.IsNotFound, `task "t-1" not found`},
		{http.StatusConflict, `{"error":{"code":"CONFLICT","message":"version mismatch"}}`, domain.IsConflict, "version mismatch"},
		{http.StatusPreconditionFailed, "", domain.IsConflict, "get task answered 412 precondition failed"},
		{http.StatusBadRequest, "", domain.IsValidation, "get task answered 400 bad request"},
		{http.StatusUnprocessableEntity, "not json", domain.IsValidation, "422"},
		{http.StatusRequestEntityTooLarge, `{"error":{"code":"PAYLOAD_TOO_LARGE","message":"body over 1MiB"}}`, domain.IsValidation, "body over 1MiB"},
		{http.StatusForbidden, "", domain.IsForbidden, `operation "get task" forbidden`},
		{http.StatusUnauthorized, `{"message":"bad token"}`, domain.IsForbidden, "authentication required"},
		{http.StatusTooManyRequests, "", domain.IsUnavailable, "429 too many requests"},
		{http.StatusInternalServerError, "", domain.IsUnavailable, `service "synaptik" unavailable`},
		{http.StatusGatewayTimeout, `{"error":{"code":"TIMEOUT","message":"request timeout exceeded"}}`, domain.IsUnavailable, "request timeout exceeded"},
		{http.StatusBadGateway, "<html>bad gateway</html>", domain.IsUnavailable, "502"},
		{http.StatusTeapot, "", domain.IsValidation, "418"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := failure(response(tt.status, tt.body), nil, getTask)
			require.Error(t, err)
			assert.True(t, tt.is(err), "got %v", err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestFailure_NotFoundNamesTheTask(t *testing.T) {
	err := failure(response(http.StatusNotFound,
		`{"error":{"code":"NOT_FOUND","message":"task not found"},"traceId":"abc"}`), nil, getTask)

	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "task", nf.Entity)
	assert.Equal(t, "t-1", nf.ID)
}

func TestFailure_CodeWinsOverStatus(t *testing.T) {
	// A proxy answering 502 with the API's own envelope keeps the API meaning.
	err := failure(response(http.StatusBadGateway,
		`{"error":{"code":"FORBIDDEN","message":"force layout disabled"}}`), nil, getTask)
	assert.True(t, domain.IsForbidden(err))
	assert.Contains(t, err.Error(), "force layout disabled")

	// Flat envelopes from rewriting proxies count too.
	err = failure(response(http.StatusBadRequest, `{"code":"CONFLICT","message":"name taken"}`), nil, getTask)
	assert.True(t, domain.IsConflict(err))

	// Unknown codes fall back to the status but keep the message.
	err = failure(response(http.StatusServiceUnavailable,
		`{"error":{"code":"MAINTENANCE","message":"store down"}}`), nil, getTask)
	assert.True(t, domain.IsUnavailable(err))
	assert.Contains(t, err.Error(), "store down")
}

func TestFailure_ValidationDetails(t *testing.T) {
	err := failure(response(http.StatusBadRequest,
		`{"error":{"code":"VALIDATION_ERROR","message":"request validation failed","details":{"title":"is required"}}}`),
		nil, getTask)

	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "title", ve.Field)
	assert.Equal(t, "is required", ve.Message)
}

func TestFailure_Transport(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: retry in 1s", clients.ErrCircuitOpen), "circuit breaker open during get task"},
		{fmt.Errorf("%w after 3 attempts: EOF", clients.ErrMaxRetriesExceeded), "max retries exceeded during get task"},
		{errors.New("dial tcp: connection refused"), "get task failed: dial tcp: connection refused"},
	}

	for _, tt := range tests {
		err := failure(nil, tt.err, getTask)
		assert.True(t, domain.IsUnavailable(err))
		assert.Contains(t, err.Error(), tt.want)
	}
}

func TestFailure_SuccessAndMissingResponse(t *testing.T) {
	assert.NoError(t, failure(response(http.StatusOK, "{}"), nil, getTask))
	assert.NoError(t, failure(response(http.StatusNoContent, ""), nil, getTask))
	assert.True(t, domain.IsUnavailable(failure(nil, nil, getTask)))
}

func TestReadEnvelope(t *testing.T) {
	nested := readEnvelope(strings.NewReader(`{"error":{"code":"CONFLICT","message":"stale"}}`))
	require.NotNil(t, nested)
	assert.Equal(t, "CONFLICT", nested.code())
	assert.Equal(t, "stale", nested.message())

	flat := readEnvelope(strings.NewReader(`{"code":"NOT_FOUND","message":"gone"}`))
	require.NotNil(t, flat)
	assert.Equal(t, "NOT_FOUND", flat.code())

	for _, body := range []string{"not json", "", "{}", `{"traceId":"abc"}`} {
		assert.Nil(t, readEnvelope(strings.NewReader(body)), body)
	}

	assert.Nil(t, readEnvelope(nil))

	var none *envelope
	assert.Empty(t, none.code())
	assert.Empty(t, none.message())
}

func TestCodeFor(t *testing.T) {
	assert.Equal(t, codeNotFound, codeFor(http.StatusNotFound))
	assert.Equal(t, codeUnavailable, codeFor(http.StatusGatewayTimeout))
	assert.Equal(t, codeBadRequest, codeFor(http.StatusMethodNotAllowed))
}

func TestDecode(t *testing.T) {
	type payload struct {
		ID string `json:"id"`
	}

	got, err := decode[payload](io.NopCloser(strings.NewReader(`{"id":"t-1"}`)))
	require.NoError(t, err)
	assert.Equal(t, "t-1", got.ID)

	_, err = decode[payload](io.NopCloser(strings.NewReader(`{"id":`)))
	assert.ErrorContains(t, err, "decoding response")

	_, err = decode[payload](nil)
	assert.Error(t, err)
}

func TestTranslateAll(t *testing.T) {
	tasks, err := translateAll([]wireTask{
		{ID: "a", Status: "pending", Priority: "low"},
		{ID: "b", Status: "completed", Priority: "high"},
	}, translateTask)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, domain.StatusCompleted, tasks[1].Status)

	_, err = translateAll([]wireTask{{ID: "a", Status: "pending", Priority: "low"}, {ID: "b", Status: "later"}}, translateTask)
	assert.ErrorContains(t, err, "translating item 1")

	_, err = translateAll([]wireTask{{Status: "pending", Priority: "low"}}, translateTask)
	assert.True(t, domain.IsValidation(err), "tasks without an ID are rejected")

	empty, err := translateAll([]wireTask{}, translateTask)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTaskPath(t *testing.T) {
	assert.Equal(t, "/api/tasks/t-1", taskPath("t-1"))
	assert.Equal(t, "/api/tasks/a%2Fb/dependencies/c%20d", taskPath("a/b", "dependencies", "c d"))
}

func TestRemote(t *testing.T) {
	client, err := clients.New(testConfig("http://localhost"))
	require.NoError(t, err)

	r := remote{client: client, service: "synaptik"}
	assert.Same(t, client, r.Client())
	assert.Equal(t, getTask, r.call("get task", "task", "t-1"))
	assert.True(t, domain.IsValidation(required("", "id")))
	assert.NoError(t, required("x", "id"))
}
