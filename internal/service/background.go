package service

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Background runs work the request path must not wait for. Tasks are detached
// from the caller's cancellation but keep its values (log fields, trace).
type Background struct {
	wg     sync.WaitGroup
	logger *slog.Logger
}

func NewBackground(logger *slog.Logger) *Background {
	if logger == nil {
		logger = slog.Default()
	}
	return &Background{logger: logger}
}

// FireAndForget starts task and returns immediately. The result is dropped;
// errors and panics are logged.
func (b *Background) FireAndForget(ctx context.Context, name string, task func(ctx context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		start := time.Now()
		err := b.run(ctx, task)
		if err != nil {
			b.logger.ErrorContext(ctx, "background task failed",
				"task", name,
				"error", err,
				"duration_ms", time.Since(start).Milliseconds())
			return
		}
		b.logger.DebugContext(ctx, "background task finished",
			"task", name,
			"duration_ms", time.Since(start).Milliseconds())
	}()
}

func (b *Background) run(ctx context.Context, task func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return task(ctx)
}

// Wait blocks until all started tasks finish or ctx is done.
func (b *Background) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
