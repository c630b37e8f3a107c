// Package parallel provides bounded fan-out over independent units of work.
//
// Units are identified by index; each unit writes only into its own
// pre-allocated output slot, so result ordering is index-determined and
// never depends on scheduling. Cancellation is observed between units:
// once the context is done, no further units start and the context error
// is returned.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Workers clamps a requested worker count to a usable value.
// Zero or negative requests fall back to GOMAXPROCS.
func Workers(requested int) int {
	if requested > 0 {
		return requested
	}
	return runtime.GOMAXPROCS(0)
}

// ForEach runs fn(i) for i in [0, n) on up to workers goroutines.
// The first non-nil error cancels the remaining units. If the parent
// context is cancelled, the context error is returned.
func ForEach(ctx context.Context, n, workers int, fn func(i int) error) error {
	if n <= 0 {
		return ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Workers(workers))

	for i := range n {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(i)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
