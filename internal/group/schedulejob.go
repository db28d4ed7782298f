package group

import (
	"context"
	"fmt"
	"time"

	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-uuid"
	"golang.org/x/sync/errgroup"

	"github.com/oriumgames/systemgroup/internal/executor"
	"github.com/oriumgames/systemgroup/internal/fence"
)

// Schedule implements spec.md §4.5 "schedule": takes the graph mutex, reads
// g = next_generation, increments next_generation, and enqueues exactly one
// ScheduleJob on the executor parameterised by (group, g, waitOn, signal).
// The graph mutex is released before the job runs.
func (g *SystemGroup) Schedule(ctx context.Context, waitOn []*fence.Fence, signal *fence.Fence) error {
	g.mu.Lock()
	generation := g.nextGeneration
	g.nextGeneration++
	g.mu.Unlock()

	traceID, _ := uuid.GenerateUUID()
	job := &scheduleJob{
		group:      g,
		generation: generation,
		waitOn:     waitOn,
		signal:     signal,
		traceID:    traceID,
	}

	buf := executor.NewCmdBuf()
	buf.Push(executor.TaskCommand(job.run))
	g.executor.EnqueueDetached(ctx, buf)
	return nil
}

// scheduleJob is the one-shot job of spec.md §4.5 "ScheduleJob semantics".
// It is submitted to the executor as a single-command CmdBuf so its body
// runs on the executor's worker pool rather than the caller's goroutine.
type scheduleJob struct {
	group      *SystemGroup
	generation uint64
	waitOn     []*fence.Fence
	signal     *fence.Fence
	traceID    string
}

// run executes the job body (spec.md §4.5 steps 1-4).
func (j *scheduleJob) run(ctx context.Context) {
	log := j.group.opts.Logger.With("generation", j.generation, "trace_id", j.traceID)

	// Step 1: wait on each caller-supplied fence in parallel.
	if len(j.waitOn) > 0 {
		var eg errgroup.Group
		for _, f := range j.waitOn {
			f := f
			eg.Go(func() error {
				f.Wait()
				return nil
			})
		}
		_ = eg.Wait()
	}

	// Step 2: wait for strict generational ordering across concurrent
	// schedule calls.
	j.group.scheduleSem.Wait(j.generation)

	// Step 3: run the generation. Any error here is fatal per spec.md §7
	// ("fatal recompile failure, submission failure").
	if err := j.group.run(ctx, j.generation, log); err != nil {
		panic(fmt.Sprintf("group: generation %d failed: %v", j.generation, err))
	}

	// Step 4: free-before-signal. There is no job-local arena to free beyond
	// what run() already reclaimed via the single/multi-generation
	// allocators, but the signal must still be the last thing touched since
	// it may release the group's last reference.
	if j.signal != nil {
		j.signal.Signal()
	}
}

// run implements spec.md §4.5 "run(g)": recompile if dirty, acquire
// resources, submit the compiled command buffer, release resources, and
// advance the generation.
func (g *SystemGroup) run(ctx context.Context, generation uint64, log hclog.Logger) error {
	g.mu.Lock()
	if g.generation != generation {
		g.mu.Unlock()
		panic(fmt.Sprintf("group: run(%d) called out of order, generation is %d", generation, g.generation))
	}

	g.graph.recompile()
	if err := g.graph.acquireResources(); err != nil {
		g.mu.Unlock()
		return err
	}
	plan := g.graph.plan
	g.mu.Unlock()

	start := time.Now()
	handle := g.executor.Enqueue(ctx, plan.buildCmdBuf())
	err := handle.Join()

	g.mu.Lock()
	defer g.mu.Unlock()
	g.graph.releaseResources()
	if err != nil {
		return err
	}

	g.generation = generation + 1
	g.singleGen.ResetGeneration()
	g.multiGen.AdvanceGeneration(g.generation)
	g.scheduleSem.Signal(g.generation)

	if g.opts.Metrics != nil {
		labels := []metrics.Label{{Name: "group", Value: g.label}}
		g.opts.Metrics.IncrCounterWithLabels([]string{"systemgroup", "generation", "completed"}, 1, labels)
		g.opts.Metrics.MeasureSinceWithLabels([]string{"systemgroup", "generation", "duration"}, start, labels)
	}
	g.opts.Diagnostics.GenerationCompleted(g.generation)
	log.Debug("generation completed", "new_generation", g.generation)
	return nil
}
