package group

import (
	"context"

	"github.com/oriumgames/systemgroup/internal/executor"
	"github.com/oriumgames/systemgroup/internal/universe"
)

// planTask is one entry of the compiled command plan: a system to run and
// the indices (into the same order slice) of tasks it must wait on before
// its enqueue_task command runs.
type planTask struct {
	ctx    *SystemContext
	waitOn []int
}

// Plan is the compiled, generation-invariant command plan produced by
// Graph.recompile (spec.md §4.4.3). It is valid until the next graph
// mutation; SystemGroup.run rebuilds a fresh CmdBuf from it every
// generation since CmdBuf commands close over live *SystemContext values.
type Plan struct {
	tasks []planTask
}

// resourceTracker is the per-resource "referenced_by" bookkeeping of
// spec.md §4.4.3 step 7.
type resourceTracker struct {
	exclusive    bool
	referencedBy []int
}

// buildPlan performs the left-to-right synchronization-injection pass of
// spec.md §4.4.3 step 7 over order, an already topologically-sorted task
// list.
func buildPlan(order []*SystemContext, predecessorsOf map[universe.SystemID][]predecessor) *Plan {
	indexOf := make(map[*SystemContext]int, len(order))
	for i, ctx := range order {
		indexOf[ctx] = i
	}

	running := make(map[*SystemContext]int, len(order))
	resourceState := make(map[universe.ResourceID]*resourceTracker)

	tasks := make([]planTask, len(order))

	for i, ctx := range order {
		waitSet := make(map[int]struct{})

		for _, p := range predecessorsOf[ctx.descriptorID()] {
			if targetIdx, ok := running[p.target]; ok {
				waitSet[targetIdx] = struct{}{}
				delete(running, p.target)
			}
		}

		for _, r := range ctx.descriptor.ExclusiveResources {
			st, ok := resourceState[r]
			if !ok {
				st = &resourceTracker{}
				resourceState[r] = st
			}
			for _, priorIdx := range st.referencedBy {
				waitSet[priorIdx] = struct{}{}
			}
			st.exclusive = true
			st.referencedBy = []int{i}
		}

		for _, r := range ctx.descriptor.SharedResources {
			st, ok := resourceState[r]
			if !ok {
				st = &resourceTracker{}
				resourceState[r] = st
			}
			if st.exclusive {
				for _, priorIdx := range st.referencedBy {
					waitSet[priorIdx] = struct{}{}
				}
				st.referencedBy = nil
			}
			st.exclusive = false
			st.referencedBy = append(st.referencedBy, i)
		}

		waits := make([]int, 0, len(waitSet))
		for idx := range waitSet {
			waits = append(waits, idx)
		}
		tasks[i] = planTask{ctx: ctx, waitOn: waits}

		running[ctx] = i
	}

	return &Plan{tasks: tasks}
}

// buildCmdBuf translates the task-index wait dependencies recorded in p
// into the executor's command-index deltas, freshly, since each generation
// needs its own closures over live *SystemContext values (spec.md §6
// "Command buffer").
func (p *Plan) buildCmdBuf() *executor.CmdBuf {
	buf := executor.NewCmdBuf()
	cmdIndexOf := make([]int, len(p.tasks))

	for i, t := range p.tasks {
		for _, j := range t.waitOn {
			delta := buf.Len() - cmdIndexOf[j]
			buf.Push(executor.WaitCommand(delta))
		}
		cmdIndexOf[i] = buf.Len()
		ctx := t.ctx
		buf.Push(executor.TaskCommand(func(context.Context) {
			ctx.run()
		}))
	}

	return buf
}

// descriptorID is a small convenience accessor used when keying
// predecessorsOf, which is indexed by universe.SystemID rather than
// *SystemContext.
func (c *SystemContext) descriptorID() universe.SystemID {
	return c.descriptor.ID
}
