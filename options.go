package systemgroup

import (
	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"

	"github.com/oriumgames/systemgroup/internal/group"
)

// Diagnostics receives per-generation lifecycle events (spec.md §9 is
// silent on observability; adapted from oriumgames-bevi/diag.go's
// Diagnostics/NopDiagnostics trio to a generation-scheduler's shape).
type Diagnostics = group.Diagnostics

// NopDiagnostics discards every event; the default when none is supplied.
type NopDiagnostics = group.NopDiagnostics

// SystemGroupOptions configures a SystemGroup's ambient stack: logger,
// metrics sink, and diagnostics hook. Grounded on
// DangerosoDavo-ecs/world.go's WorldOption functional-option pattern.
type SystemGroupOptions struct {
	logger      hclog.Logger
	metrics     *metrics.Metrics
	diagnostics Diagnostics
}

// SystemGroupOption configures a SystemGroupOptions.
type SystemGroupOption func(*SystemGroupOptions)

// WithLogger sets the hclog.Logger used for structured logging. Defaults to
// hclog.NewNullLogger() when unset.
func WithLogger(l hclog.Logger) SystemGroupOption {
	return func(o *SystemGroupOptions) { o.logger = l }
}

// WithMetricsSink sets the go-metrics sink used for generation/recompile
// counters and timers. Defaults to nil, which disables metrics emission.
func WithMetricsSink(m *metrics.Metrics) SystemGroupOption {
	return func(o *SystemGroupOptions) { o.metrics = m }
}

// WithDiagnostics sets the per-generation diagnostics hook. Defaults to
// NopDiagnostics.
func WithDiagnostics(d Diagnostics) SystemGroupOption {
	return func(o *SystemGroupOptions) { o.diagnostics = d }
}

func buildOptions(opts []SystemGroupOption) group.Options {
	var o SystemGroupOptions
	for _, fn := range opts {
		fn(&o)
	}
	return group.Options{
		Logger:      o.logger,
		Metrics:     o.metrics,
		Diagnostics: o.diagnostics,
	}
}
