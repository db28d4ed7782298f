// Package executor implements the Executor collaborator named in spec.md
// §6: a worker pool that runs CmdBuf command buffers, where enqueue_task
// commands may run in parallel unless an interleaved wait_on_cmd_indirect
// orders them. Out of scope per spec.md §1 ("the executor (thread/task pool)
// that runs command buffers") — implemented here just enough to drive and
// test internal/group, grounded on DangerosoDavo-ecs/worker_pool.go's
// channel-based pool and submit/join handle, with admission width gated by
// golang.org/x/sync/semaphore instead of a hand-rolled token channel.
package executor

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Handle is returned by Enqueue; Join blocks until the submitted CmdBuf has
// finished executing and returns its first error, if any.
type Handle struct {
	result chan error
}

// Join waits for the command buffer to finish and returns its outcome.
func (h *Handle) Join() error {
	return <-h.result
}

// Executor runs CmdBufs with bounded parallelism for enqueue_task commands.
type Executor struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// New returns an Executor that runs at most width EnqueueTask commands
// concurrently. width <= 0 defaults to runtime.GOMAXPROCS(0).
func New(width int) *Executor {
	if width <= 0 {
		width = runtime.GOMAXPROCS(0)
	}
	return &Executor{sem: semaphore.NewWeighted(int64(width))}
}

// Enqueue submits buf and returns a Handle whose Join blocks until the
// buffer completes.
func (e *Executor) Enqueue(ctx context.Context, buf *CmdBuf) *Handle {
	h := &Handle{result: make(chan error, 1)}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		h.result <- e.run(ctx, buf)
	}()
	return h
}

// EnqueueDetached submits buf without returning a handle, for fire-and-forget
// bootstrap jobs (spec.md §6).
func (e *Executor) EnqueueDetached(ctx context.Context, buf *CmdBuf) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		_ = e.run(ctx, buf)
	}()
}

// Wait blocks until every job submitted through this executor — enqueued or
// detached — has returned. Used by tests and by graceful shutdown.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// run executes one command buffer: commands are processed in list order,
// EnqueueTask spawns a goroutine and records its completion, and
// WaitOnCmdIndirect blocks on a previously recorded completion. Two
// EnqueueTask commands with no intervening wait between them run
// concurrently, bounded by e.sem.
func (e *Executor) run(ctx context.Context, buf *CmdBuf) (err error) {
	commands := buf.Commands()
	done := make([]chan struct{}, len(commands))
	errs := make([]error, len(commands))

	// A malformed command buffer (e.g. a bad wait_on_cmd_indirect delta) is a
	// scheduler bug, not a task-level failure; surface it as an error from
	// Join rather than crashing the goroutine driving this CmdBuf.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor: %v", r)
		}
	}()

	for i, cmd := range commands {
		switch cmd.Kind {
		case EnqueueTask:
			d := make(chan struct{})
			done[i] = d
			if err := e.sem.Acquire(ctx, 1); err != nil {
				errs[i] = err
				close(d)
				continue
			}
			e.wg.Add(1)
			go func(idx int, task func(context.Context)) {
				defer e.wg.Done()
				defer e.sem.Release(1)
				defer close(done[idx])
				defer func() {
					if r := recover(); r != nil {
						errs[idx] = fmt.Errorf("executor: task panic: %v", r)
					}
				}()
				if task != nil {
					task(ctx)
				}
			}(i, cmd.Task)
		case WaitOnCmdIndirect:
			target := i - cmd.Delta
			if cmd.Delta <= 0 || target < 0 || target >= i || done[target] == nil {
				panic(fmt.Sprintf("executor: wait_on_cmd_indirect delta %d out of range at index %d", cmd.Delta, i))
			}
			<-done[target]
		default:
			panic(fmt.Sprintf("executor: unknown command kind %d", cmd.Kind))
		}
	}

	for _, d := range done {
		if d != nil {
			<-d
		}
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
