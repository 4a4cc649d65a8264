package browser

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// InitGate serialises session start-up across all workers. Only launch and
// warm-up run under the gate; page fetching does not.
type InitGate struct {
	sem *semaphore.Weighted
}

// NewInitGate creates a gate admitting one initialisation at a time
func NewInitGate() *InitGate {
	return &InitGate{sem: semaphore.NewWeighted(1)}
}

// Do runs fn while holding the gate
func (g *InitGate) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)
	return fn(ctx)
}
