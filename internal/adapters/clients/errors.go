// Package clients is the outbound HTTP layer used to reach a Synaptik API:
// retries with backoff, a circuit breaker, tracing and ID propagation.
package clients

import (
	"errors"
	"fmt"
	"net/http"
)

// Failures of the transport layer. The acl package turns them into
// domain.UnavailableError.
var (
	// ErrCircuitOpen means the breaker rejected the call without sending it.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrMaxRetriesExceeded wraps the last failure once every attempt was used.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// StatusError is a response status that was retried and never recovered.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server answered %d %s", e.Code, http.StatusText(e.Code))
}
