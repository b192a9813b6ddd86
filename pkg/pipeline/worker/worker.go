// Package worker runs a processor over a list of items with bounded
// concurrency and writes each result into the slot of its input.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotStarted marks slots whose item was never handed to a worker.
var ErrNotStarted = errors.New("worker: item not started")

type Options struct {
	Workers int

	// RequestTimeout bounds each processor call. Set to <=0 to disable.
	RequestTimeout time.Duration
}

// Result holds the output for one input item.
type Result[In any, Out any] struct {
	Index  int
	Input  In
	Output Out
	Err    error
}

func (o Options) withDefaults(n int) Options {
	if o.Workers <= 0 {
		o.Workers = 10
	}
	if n > 0 && o.Workers > n {
		o.Workers = n
	}
	return o
}

// ProcessAll runs the processor over all input items.
func ProcessAll[In any, Out any](
	ctx context.Context,
	items []In,
	processor func(context.Context, In) (Out, error),
	opts Options,
) ([]Result[In, Out], error) {
	return ProcessAllWithCallback(ctx, items, processor, nil, opts)
}

// ProcessAllWithCallback runs the processor over all input items and invokes
// onResult as each item completes, in completion order, from a single goroutine.
//
// The returned slice always has len(items) entries and out[i] belongs to
// items[i]. If ctx is cancelled, unfinished slots carry ctx.Err(), finished
// slots are kept, and ctx.Err() is returned alongside the slice.
func ProcessAllWithCallback[In any, Out any](
	ctx context.Context,
	items []In,
	processor func(context.Context, In) (Out, error),
	onResult func(Result[In, Out]),
	opts Options,
) ([]Result[In, Out], error) {
	opts = opts.withDefaults(len(items))

	out := make([]Result[In, Out], len(items))
	for i, item := range items {
		out[i] = Result[In, Out]{Index: i, Input: item, Err: ErrNotStarted}
	}
	if len(items) == 0 {
		return out, ctx.Err()
	}

	jobs := make(chan int)
	done := make(chan Result[In, Out], opts.Workers)

	var wg sync.WaitGroup
	workerFn := func() {
		defer wg.Done()
		for idx := range jobs {
			done <- processOne(ctx, idx, items[idx], processor, opts)
		}
	}
	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go workerFn()
	}

	go func() {
		defer close(jobs)
		for i := range items {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(done)
	}()

	for res := range done {
		out[res.Index] = res
		if onResult != nil {
			onResult(res)
		}
	}

	if err := ctx.Err(); err != nil {
		for i := range out {
			if errors.Is(out[i].Err, ErrNotStarted) {
				out[i].Err = err
			}
		}
		return out, err
	}
	return out, nil
}

func processOne[In any, Out any](
	ctx context.Context,
	idx int,
	item In,
	processor func(context.Context, In) (Out, error),
	opts Options,
) Result[In, Out] {
	res := Result[In, Out]{Index: idx, Input: item}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if opts.RequestTimeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, opts.RequestTimeout)
	}
	res.Output, res.Err = processor(reqCtx, item)
	if cancel != nil {
		cancel()
	}
	return res
}
