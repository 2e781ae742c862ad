package runner

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Summary counts the outcomes of a pool run.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

// Options configures a pool run. OnFailure builds the failure record
// written to the log when an item errors or panics; when nil, failures
// are logged and skipped. OnProgress is called after every item, best
// effort: a panicking callback never takes down the run.
type Options[T any] struct {
	Workers    int
	Writer     *LogWriter
	OnFailure  func(item T, errMsg string) any
	OnProgress func(done, total int)
}

// Run processes items concurrently with at most opts.Workers in flight,
// writing the record each process call returns. A panic inside process is
// captured with its stack and treated as an item failure, not a run
// failure; only writer errors and context cancellation abort the run.
func Run[T any](ctx context.Context, items []T, process func(ctx context.Context, item T) (any, error), opts Options[T]) (Summary, error) {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	var done, failed atomic.Int64
	total := len(items)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, item := range items {
		item := item
		g.Go(func() error {
			record, err := runOne(ctx, item, process)
			if err != nil {
				failed.Add(1)
				zap.L().Warn("item failed", zap.Error(err))
				if opts.OnFailure != nil {
					record = opts.OnFailure(item, err.Error())
				} else {
					record = nil
				}
			}
			if record != nil && opts.Writer != nil {
				if werr := opts.Writer.Write(record); werr != nil {
					return werr
				}
			}
			n := int(done.Add(1))
			reportProgress(opts.OnProgress, n, total)
			return ctx.Err()
		})
	}

	err := g.Wait()
	s := Summary{Total: total, Failed: int(failed.Load())}
	s.Succeeded = int(done.Load()) - s.Failed
	return s, err
}

func runOne[T any](ctx context.Context, item T, process func(ctx context.Context, item T) (any, error)) (record any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return process(ctx, item)
}

func reportProgress(fn func(done, total int), done, total int) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			zap.L().Warn("progress callback panicked", zap.Any("panic", r))
		}
	}()
	fn(done, total)
}
