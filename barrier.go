package main

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Barrier fans one task out to a set of participants and waits for every one
// of them to finish, success or failure, before returning. Results come back
// in participant order regardless of completion order, so downstream indexing
// by seat position is stable. A participant failure never cancels siblings.
type Barrier struct {
	// global bounds total in-flight calls across all exchanges. Injected so
	// tests can run exchanges with independent ceilings. May be nil.
	global *semaphore.Weighted
	// limit bounds concurrency within one fan-out. Zero means one goroutine
	// per participant.
	limit int
}

// NewBarrier creates a barrier. global may be nil for an unlimited ceiling.
func NewBarrier(global *semaphore.Weighted, limit int) *Barrier {
	return &Barrier{global: global, limit: limit}
}

// SeatTask produces one participant's result. Implementations must report
// failure inside the ModelResult; returning is the only way a seat completes.
type SeatTask func(ctx context.Context, seat int, model string) *ModelResult

// FanOut dispatches task concurrently for every participant and blocks until
// all have finished. The barrier imposes no deadline of its own; each task
// carries a per-call timeout, so a hung participant degrades to an abstaining
// seat without blocking the stage.
func (b *Barrier) FanOut(ctx context.Context, participants []string, task SeatTask) []*ModelResult {
	results := make([]*ModelResult, len(participants))

	g := &errgroup.Group{}
	if b.limit > 0 {
		g.SetLimit(b.limit)
	}

	for i, model := range participants {
		i, model := i, model
		g.Go(func() error {
			if b.global != nil {
				if err := b.global.Acquire(ctx, 1); err != nil {
					results[i] = &ModelResult{
						Model: model,
						Err:   fmt.Sprintf("could not acquire call slot: %v", err),
					}
					return nil
				}
				defer b.global.Release(1)
			}

			results[i] = task(ctx, i, model)
			if results[i] == nil {
				results[i] = &ModelResult{Model: model, Err: "no result produced"}
			}
			return nil
		})
	}

	// Tasks never return errors; failures are values inside results.
	g.Wait()
	return results
}
