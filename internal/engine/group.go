package engine

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// runGroup executes a composite node's children. Sequential stops at the
// first failing child; Parallel runs every child concurrently (still
// bounded by the runner's overall semaphore, acquired per leaf task),
// waits for all of them, and returns the first child error errgroup saw.
func (r *Runner) runGroup(ctx context.Context, g *Group) error {
	switch g.Kind {
	case Sequential:
		for _, child := range g.Children {
			if err := r.runNode(ctx, child); err != nil {
				return err
			}
		}
		return nil
	case Parallel:
		var eg errgroup.Group
		for _, child := range g.Children {
			child := child
			eg.Go(func() error {
				return r.runNode(ctx, child)
			})
		}
		return eg.Wait()
	default:
		return nil
	}
}
