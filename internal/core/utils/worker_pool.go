package utils

import (
	"context"
	"sync"
)

type CompletedTask[In any, Out any] struct {
	Input  In
	Result Out
	Error  error
}

// RunInPool processes inputs with at most maxWorkers goroutines. The returned
// channel yields one CompletedTask per input and is closed once every worker
// has returned. Inputs not yet started when ctx is cancelled complete with
// ctx.Err().
func RunInPool[In any, Out any](ctx context.Context, worker func(context.Context, In) (Out, error), inputs []In, maxWorkers int) <-chan CompletedTask[In, Out] {
	queue := make(chan In, len(inputs))
	for _, in := range inputs {
		queue <- in
	}
	close(queue)

	completed := make(chan CompletedTask[In, Out], len(inputs))

	workers := max(min(len(inputs), maxWorkers), 1)

	go func() {
		wg := sync.WaitGroup{}
		wg.Add(workers)

		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()

				for next := range queue {
					if err := ctx.Err(); err != nil {
						completed <- CompletedTask[In, Out]{Input: next, Error: err}
						continue
					}

					res, err := worker(ctx, next)
					completed <- CompletedTask[In, Out]{Input: next, Result: res, Error: err}
				}
			}()
		}

		wg.Wait()

		close(completed)
	}()

	return completed
}
