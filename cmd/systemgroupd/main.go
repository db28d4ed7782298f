// Command systemgroupd is a minimal demonstration harness: it wires a
// World, a Universe, and an Executor together, registers a small system
// graph, and drives it through a few generations. It exists to exercise
// the public API end to end, not as a long-running service.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"

	systemgroup "github.com/oriumgames/systemgroup"
	"github.com/oriumgames/systemgroup/internal/world"
)

func main() {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "systemgroupd",
		Level: hclog.Info,
	})

	sink := metrics.NewInmemSink(0, 0)
	m, err := metrics.New(metrics.DefaultConfig("systemgroupd"), sink)
	if err != nil {
		logger.Error("failed to build metrics sink", "error", err)
		os.Exit(1)
	}

	if err := run(logger, m); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(logger hclog.Logger, m *metrics.Metrics) error {
	u := systemgroup.NewUniverse()
	w := systemgroup.NewWorld()
	ex := systemgroup.NewExecutor(0)

	const (
		resCounter   systemgroup.ResourceID = 1
		sysIncrement systemgroup.SystemID   = 1
		sysReport    systemgroup.SystemID   = 2
	)

	counter := new(int)
	if err := w.AddResource(world.ResourceID(resCounter), counter); err != nil {
		return fmt.Errorf("add resource: %w", err)
	}
	if _, err := u.RegisterResource(systemgroup.ResourceDescriptor{ID: resCounter, Label: "counter"}); err != nil {
		return fmt.Errorf("register resource: %w", err)
	}

	_, err := u.RegisterSystem(systemgroup.SystemDescriptor{
		ID:                 sysIncrement,
		Label:              "increment",
		ExclusiveResources: []systemgroup.ResourceID{resCounter},
		Run: func(value any, exclusive []any, shared []any, deferred func()) {
			p := exclusive[0].(*int)
			*p++
			deferred()
		},
	})
	if err != nil {
		return fmt.Errorf("register increment system: %w", err)
	}

	_, err = u.RegisterSystem(systemgroup.SystemDescriptor{
		ID:              sysReport,
		Label:           "report",
		SharedResources: []systemgroup.ResourceID{resCounter},
		After:           []systemgroup.Dependency{{Target: sysIncrement}},
		Run: func(value any, exclusive []any, shared []any, deferred func()) {
			p := shared[0].(*int)
			logger.Info("generation completed", "counter", *p)
			deferred()
		},
	})
	if err != nil {
		return fmt.Errorf("register report system: %w", err)
	}

	g, err := systemgroup.Create("demo", ex, w, u,
		systemgroup.WithLogger(logger),
		systemgroup.WithMetricsSink(m),
	)
	if err != nil {
		return fmt.Errorf("create group: %w", err)
	}

	if err := g.AddSystems([]systemgroup.SystemID{sysIncrement, sysReport}); err != nil {
		return fmt.Errorf("add systems: %w", err)
	}

	const generations = 5
	fences := make([]*systemgroup.Fence, generations)
	for i := range fences {
		fences[i] = systemgroup.NewFence()
		if err := g.Schedule(context.Background(), nil, fences[i]); err != nil {
			return fmt.Errorf("schedule generation %d: %w", i, err)
		}
	}
	fences[generations-1].Wait()

	logger.Info("demo complete", "final counter value", *counter, "generation", g.Generation())

	// RemoveSystem tears each system's context down; its fence signals once
	// the removal has been applied (immediately here, since no generation
	// is in flight). A group can only be destroyed once empty.
	removeDone := systemgroup.NewFence()
	if err := g.RemoveSystem(sysReport, removeDone); err != nil {
		return fmt.Errorf("remove report system: %w", err)
	}
	removeDone.Wait()

	removeDone = systemgroup.NewFence()
	if err := g.RemoveSystem(sysIncrement, removeDone); err != nil {
		return fmt.Errorf("remove increment system: %w", err)
	}
	removeDone.Wait()

	systemgroup.Destroy(g)
	return nil
}
