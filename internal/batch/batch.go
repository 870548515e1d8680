package batch

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Task is one independent unit of work, typically an upstream fetch.
type Task[T any] func(ctx context.Context) (T, error)

// Result pairs a task's value with its error so one failure does not hide
// the rest of the batch.
type Result[T any] struct {
	Value T
	Err   error
}

type Options struct {
	Size  int
	Delay time.Duration
	// OnGroup is called before each group starts with its index and length.
	OnGroup func(group, size int)
}

// Run executes tasks in consecutive groups of opts.Size. Tasks inside a group
// run concurrently; the next group starts only after the whole group has
// finished and opts.Delay has elapsed. There is no delay after the last
// group. Results keep the input order.
//
// If ctx is cancelled between groups the remaining tasks are not started and
// their results carry ctx.Err().
func Run[T any](ctx context.Context, tasks []Task[T], opts Options) []Result[T] {
	size := opts.Size
	if size <= 0 {
		size = len(tasks)
	}
	results := make([]Result[T], len(tasks))

	group := 0
	for start := 0; start < len(tasks); start += size {
		end := min(start+size, len(tasks))

		if start > 0 && opts.Delay > 0 {
			select {
			case <-ctx.Done():
				fail(results[start:], ctx.Err())
				return results
			case <-time.After(opts.Delay):
			}
		}
		if err := ctx.Err(); err != nil {
			fail(results[start:], err)
			return results
		}

		if opts.OnGroup != nil {
			opts.OnGroup(group, end-start)
		}
		group++

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				v, err := tasks[i](ctx)
				results[i] = Result[T]{Value: v, Err: err}
				return nil
			})
		}
		_ = g.Wait()
	}
	return results
}

// Groups returns how many groups Run would use for n tasks.
func Groups(n, size int) int {
	if n == 0 {
		return 0
	}
	if size <= 0 {
		return 1
	}
	return (n + size - 1) / size
}

func fail[T any](rs []Result[T], err error) {
	for i := range rs {
		rs[i].Err = err
	}
}
