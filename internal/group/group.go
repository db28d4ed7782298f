package group

import (
	"fmt"
	"sync"

	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"

	"github.com/oriumgames/systemgroup/internal/allocator"
	"github.com/oriumgames/systemgroup/internal/apierr"
	"github.com/oriumgames/systemgroup/internal/executor"
	"github.com/oriumgames/systemgroup/internal/fence"
	"github.com/oriumgames/systemgroup/internal/universe"
	"github.com/oriumgames/systemgroup/internal/world"
)

// Diagnostics receives per-system and per-generation lifecycle events,
// adapted from oriumgames-bevi/diag.go's Diagnostics/NopDiagnostics/
// LogDiagnostics trio to a generation-scheduler's shape instead of a
// per-frame-stage one.
type Diagnostics interface {
	SystemStart(label string, generation uint64)
	SystemEnd(label string, generation uint64, err error)
	GenerationCompleted(generation uint64)
}

// NopDiagnostics discards every event.
type NopDiagnostics struct{}

func (NopDiagnostics) SystemStart(string, uint64)      {}
func (NopDiagnostics) SystemEnd(string, uint64, error) {}
func (NopDiagnostics) GenerationCompleted(uint64)      {}

// Options configures a SystemGroup's ambient stack. Zero value is valid:
// a null logger, no metrics, and NopDiagnostics.
type Options struct {
	Logger      hclog.Logger
	Metrics     *metrics.Metrics
	Diagnostics Diagnostics
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = hclog.NewNullLogger()
	}
	if o.Diagnostics == nil {
		o.Diagnostics = NopDiagnostics{}
	}
	return o
}

// SystemGroup is the outer object of spec.md §4.5: it owns the Graph, the
// generation counter, the schedule semaphore, and the arena allocators, and
// exposes AddSystems/RemoveSystem/Schedule.
type SystemGroup struct {
	label    string
	executor *executor.Executor
	world    *world.World
	universe *universe.Universe

	opts Options

	mu    sync.Mutex
	graph *Graph

	generation     uint64 // last completed
	nextGeneration uint64

	scheduleSem *fence.TimelineSemaphore

	singleGen *allocator.SingleGeneration
	multiGen  *allocator.MultiGeneration
}

// New constructs a SystemGroup over world w, resolving system/resource ids
// against universe u and running generations on executor ex (spec.md §4.5
// "init"). It increments w's group count.
func New(label string, ex *executor.Executor, w *world.World, u *universe.Universe, opts Options) *SystemGroup {
	opts = opts.withDefaults()
	g := &SystemGroup{
		label:       label,
		executor:    ex,
		world:       w,
		universe:    u,
		opts:        opts,
		scheduleSem: fence.NewTimelineSemaphore(),
		singleGen:   allocator.NewSingleGeneration(),
		multiGen:    allocator.NewMultiGeneration(),
	}
	g.graph = newGraph(g, u, w)
	w.IncGroupCount()
	opts.Logger.Debug("system group created", "label", label)
	return g
}

// Deinit tears the group down. Fatal (panics) if a generation is still in
// flight or the graph has any remaining systems (spec.md §4.5 "deinit").
func (g *SystemGroup) Deinit() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlightLocked() {
		panic("group: deinit called with an unfinished generation")
	}
	if len(g.graph.systems) != 0 {
		panic("group: deinit called with systems still present")
	}
	g.world.DecGroupCount()
	g.opts.Logger.Debug("system group destroyed", "label", g.label)
}

func (g *SystemGroup) inFlightLocked() bool {
	return g.scheduleSem.Counter() < g.nextGeneration
}

// Generation returns the last completed generation number.
func (g *SystemGroup) Generation() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.generation
}

// Label returns the group's label (spec.md §6 "SystemGroup::get_label").
func (g *SystemGroup) Label() string { return g.label }

// World returns the world this group schedules against (spec.md §6
// "SystemGroup::get_world").
func (g *SystemGroup) World() *world.World { return g.world }

// Pool returns the executor this group submits command buffers to (spec.md
// §6 "SystemGroup::get_pool").
func (g *SystemGroup) Pool() *executor.Executor { return g.executor }

// AddSystems implements spec.md §4.5 "addSystems": takes the graph mutex,
// read-locks the universe, preflights duplicate non-weak ids, then adds
// each; on the first failure it strong-removes every prior add in this call
// (fenced, blocking) before returning the error.
func (g *SystemGroup) AddSystems(ids []universe.SystemID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.universe.RLock()
	defer g.universe.RUnlock()

	for _, id := range ids {
		if existing, ok := g.graph.systems[id]; ok && !existing.member.weak {
			return apierr.Wrap(apierr.KindDuplicate, "system already strongly present", fmt.Errorf("system %d", id))
		}
	}

	added := make([]universe.SystemID, 0, len(ids))
	for _, id := range ids {
		if _, err := g.graph.addSystem(id, false); err != nil {
			for i := len(added) - 1; i >= 0; i-- {
				done := fence.New()
				_ = g.graph.removeSystem(added[i], done, false)
				done.Wait()
			}
			return apierr.Wrap(apierr.KindAddFailed, "add_systems failed", err)
		}
		added = append(added, id)
	}

	g.opts.Logger.Debug("systems added", "label", g.label, "count", len(ids))
	return nil
}

// RemoveSystem implements spec.md §4.5 "removeSystem": fatal if id is
// unknown or currently weak.
func (g *SystemGroup) RemoveSystem(id universe.SystemID, f *fence.Fence) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	ctx, ok := g.graph.systems[id]
	if !ok {
		panic(fmt.Sprintf("group: remove_system on unknown system %d", id))
	}
	if ctx.member.weak {
		panic(fmt.Sprintf("group: remove_system on weakly-present system %d", id))
	}

	return g.graph.removeSystem(id, f, true)
}
