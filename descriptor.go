package systemgroup

import "github.com/oriumgames/systemgroup/internal/universe"

// ResourceID identifies a resource registered in a Universe (spec.md §3).
type ResourceID = universe.ResourceID

// SystemID identifies a system registered in a Universe (spec.md §3).
type SystemID = universe.SystemID

// ResourceDescriptor describes one world resource: id, size, alignment, and
// a reference count maintained by the universe (spec.md §3).
type ResourceDescriptor = universe.ResourceDescriptor

// Dependency is an ordering edge toward Target. IgnoreDeferred=false means
// "wait for target's deferred fence", not just its run() returning
// (spec.md §3).
type Dependency = universe.Dependency

// CreateFunc constructs a system's user value. ctxValue is the opaque
// *SystemContext handed back to the user unchanged.
type CreateFunc = universe.CreateFunc

// RunFunc executes one generation of a system. exclusive/shared are the
// resource pointers resolved for this run, in declaration order; deferred is
// the callback that signals the system's deferred fence. Every run must
// eventually invoke it, either before Run returns or later from a subjob;
// until it is invoked, dependents that do not ignore deferred do not start.
type RunFunc = universe.RunFunc

// DeinitFunc tears down a system's user value. Optional.
type DeinitFunc = universe.DeinitFunc

// SystemDescriptor describes one registered system: exclusive/shared
// resource lists, before/after dependencies, and the create/run/deinit
// callbacks (spec.md §3).
type SystemDescriptor = universe.SystemDescriptor

// Universe vends ResourceDescriptor and SystemDescriptor values by id
// (spec.md §6 "Universe"). Out of scope per spec.md §1; exposed here only
// so callers can register resources/systems before creating a SystemGroup.
type Universe = universe.Universe

// NewUniverse constructs an empty Universe.
func NewUniverse() *Universe {
	return universe.New()
}
