package app

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// all runs every step concurrently under one errgroup. The first failure
// cancels the context the others see and is the error returned.
func all(ctx context.Context, steps ...func(context.Context) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, step := range steps {
		g.Go(func() error { return step(ctx) })
	}

	return g.Wait()
}

// into adapts a result-returning call to a step that stores into dst.
func into[T any](dst *T, fn func(context.Context) (T, error)) func(context.Context) error {
	return func(ctx context.Context) error {
		v, err := fn(ctx)
		if err == nil {
			*dst = v
		}

		return err
	}
}

// Parallel2 computes two independent read models at once, as the dashboard
// overview does. On error both results are zero.
func Parallel2[A, B any](
	ctx context.Context,
	fa func(context.Context) (A, error),
	fb func(context.Context) (B, error),
) (A, B, error) {
	var (
		a A
		b B
	)

	if err := all(ctx, into(&a, fa), into(&b, fb)); err != nil {
		var (
			za A
			zb B
		)

		return za, zb, err
	}

	return a, b, nil
}

// Parallel3 is Parallel2 for three calls.
func Parallel3[A, B, C any](
	ctx context.Context,
	fa func(context.Context) (A, error),
	fb func(context.Context) (B, error),
	fc func(context.Context) (C, error),
) (A, B, C, error) {
	var (
		a A
		b B
		c C
	)

	if err := all(ctx, into(&a, fa), into(&b, fb), into(&c, fc)); err != nil {
		var (
			za A
			zb B
			zc C
		)

		return za, zb, zc, err
	}

	return a, b, c, nil
}

// ParallelMap calls fn for each item with at most limit calls in flight
// (limit <= 0 is unbounded) and keeps input order. The bulk update uses it
// to load every target task before validating any of them.
func ParallelMap[T, R any](ctx context.Context, limit int, items []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	out := make([]R, len(items))

	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, item := range items {
		g.Go(func() error {
			r, err := fn(ctx, item)
			out[i] = r

			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}
