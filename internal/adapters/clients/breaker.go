package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jsamuelsen/synaptik/internal/platform/config"
)

// State is a circuit breaker state.
type State int

// Breaker states. Closed passes calls, Open rejects them until the cool-down
// ends, HalfOpen lets a few probes decide which way to go.
const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// CircuitBreaker counts consecutive failed calls to one downstream API.
// MaxFailures failures open it; after Timeout it half-opens and admits up to
// HalfOpenLimit concurrent probes. That many successes close it again and any
// failure reopens it.
type CircuitBreaker struct {
	cfg      config.CircuitBreakerConfig
	now      func() time.Time
	onChange func(from, to State)

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	probes    int
	openedAt  time.Time
}

// NewCircuitBreaker returns a closed breaker. onChange, if set, runs after
// every transition, outside the breaker's lock.
func NewCircuitBreaker(cfg config.CircuitBreakerConfig, onChange func(from, to State)) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg, now: time.Now, onChange: onChange}
}

// Allow reserves a call. It returns an error wrapping ErrCircuitOpen when
// the call must not be sent; otherwise the caller must report the outcome
// with Done.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()

	var (
		err  error
		from = b.state
	)

	switch b.state {
	case StateOpen:
		wait := b.cfg.Timeout - b.now().Sub(b.openedAt)
		if wait > 0 {
			err = fmt.Errorf("%w: retry in %s", ErrCircuitOpen, wait.Round(time.Millisecond))
			break
		}

		b.set(StateHalfOpen)
		b.probes = 1
	case StateHalfOpen:
		if b.probes >= max(b.cfg.HalfOpenLimit, 1) {
			err = fmt.Errorf("%w: probe in flight", ErrCircuitOpen)
			break
		}

		b.probes++
	}

	to := b.state
	b.mu.Unlock()

	b.notify(from, to)

	return err
}

// Done reports the outcome of a call admitted by Allow. A call cancelled by
// its caller is neither a success nor a failure.
func (b *CircuitBreaker) Done(o Outcome) {
	b.mu.Lock()

	from := b.state

	if b.state == StateHalfOpen && b.probes > 0 {
		b.probes--
	}

	switch o {
	case Succeeded:
		b.failures = 0

		if b.state == StateHalfOpen {
			b.successes++
			if b.successes >= max(b.cfg.HalfOpenLimit, 1) {
				b.set(StateClosed)
			}
		}
	case Failed:
		switch b.state {
		case StateClosed:
			b.failures++
			if b.failures >= max(b.cfg.MaxFailures, 1) {
				b.set(StateOpen)
			}
		case StateHalfOpen:
			b.set(StateOpen)
		}
	}

	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
}

// State returns the current state without changing it.
func (b *CircuitBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state
}

// set must be called with mu held.
func (b *CircuitBreaker) set(s State) {
	b.state = s
	b.failures = 0
	b.successes = 0

	if s == StateOpen {
		b.openedAt = b.now()
		b.probes = 0
	}
}

func (b *CircuitBreaker) notify(from, to State) {
	if from != to && b.onChange != nil {
		b.onChange(from, to)
	}
}

// Outcome classifies a finished call for the breaker.
type Outcome int

// Call outcomes.
const (
	Succeeded Outcome = iota
	Failed
	Abandoned
)

// outcomeOf treats transport failures and 5xx answers as failures. Client
// errors such as 404 or 409 are the API working as intended.
func outcomeOf(ctx context.Context, resp *http.Response, err error) Outcome {
	switch {
	case err != nil && (ctx.Err() != nil || errors.Is(err, context.Canceled)):
		return Abandoned
	case err != nil:
		return Failed
	case resp.StatusCode >= http.StatusInternalServerError:
		return Failed
	default:
		return Succeeded
	}
}
