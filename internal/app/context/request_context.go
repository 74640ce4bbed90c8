package context

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

type ctxKey struct{}

// RequestContext memoizes reads for the lifetime of one request and stages
// writes that must apply as a unit.
type RequestContext struct {
	values sync.Map
	flight singleflight.Group

	mu        sync.Mutex // guards actions and committed
	actions   []Action
	committed bool
}

// New returns an empty RequestContext.
func New() *RequestContext {
	return &RequestContext{}
}

// FromContext returns the RequestContext attached to ctx, or nil.
func FromContext(ctx context.Context) *RequestContext {
	if ctx == nil {
		return nil
	}

	rc, _ := ctx.Value(ctxKey{}).(*RequestContext)

	return rc
}

// WithContext attaches rc to ctx.
func WithContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, rc)
}

// Scoped returns ctx unchanged when it already carries a RequestContext and
// otherwise attaches a fresh one.
func Scoped(ctx context.Context) context.Context {
	if FromContext(ctx) != nil {
		return ctx
	}

	return WithContext(ctx, New())
}

// Memo returns the value cached under key on ctx's RequestContext, calling
// fetch the first time the key is asked for. Concurrent callers share one
// fetch; a failed fetch is not cached. Without a RequestContext fetch runs on
// every call.
func Memo[T any](ctx context.Context, key string, fetch func(context.Context) (T, error)) (T, error) {
	var zero T

	rc := FromContext(ctx)
	if rc == nil {
		return fetch(ctx)
	}

	v, ok := rc.values.Load(key)
	if !ok {
		var err error

		v, err, _ = rc.flight.Do(key, func() (any, error) {
			if cached, ok := rc.values.Load(key); ok {
				return cached, nil
			}

			fetched, err := fetch(ctx)
			if err != nil {
				return nil, err
			}

			rc.values.Store(key, fetched)

			return fetched, nil
		})
		if err != nil {
			return zero, err
		}
	}

	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("request cache: key %q holds %T, not %T", key, v, zero)
	}

	return typed, nil
}

// Forget drops the cached value for key so the next Memo call fetches again.
func (rc *RequestContext) Forget(key string) {
	rc.values.Delete(key)
}
