// Package universe implements the registry collaborator named in spec.md
// §6: it vends ResourceDescriptor and SystemDescriptor values by id, and
// exposes a shared RWMutex that SystemGroup.AddSystems takes for reading
// while it resolves ids against the registry. The registry itself is out of
// scope per spec.md §1 ("the universe registry that vends resource and
// system descriptors"); this package implements just enough of it to drive
// and test internal/group.
package universe

import (
	"fmt"
	"sync"

	"github.com/oriumgames/systemgroup/internal/apierr"
)

// ResourceID identifies a resource registered in a Universe.
type ResourceID uint64

// SystemID identifies a system registered in a Universe.
type SystemID uint64

// ResourceDescriptor describes one world resource (spec.md §3).
type ResourceDescriptor struct {
	ID        ResourceID
	Label     string
	Size      uintptr
	Alignment uintptr

	mu       sync.Mutex
	refCount int
}

// RefCount returns the descriptor's current reference count.
func (d *ResourceDescriptor) RefCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refCount
}

func (d *ResourceDescriptor) addRef() {
	d.mu.Lock()
	d.refCount++
	d.mu.Unlock()
}

func (d *ResourceDescriptor) release() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refCount--
	return d.refCount
}

// Dependency is an ordering edge toward Target. IgnoreDeferred=false means
// "wait for target's deferred fence", not just its run() returning
// (spec.md §3).
type Dependency struct {
	Target         SystemID
	IgnoreDeferred bool
}

// CreateFunc constructs a system's user value. ctxValue is opaque scheduler
// state handed back to the user unchanged (the SystemContext, as `any`, to
// avoid an import cycle between universe and group).
type CreateFunc func(ctxValue any) (any, error)

// RunFunc executes one generation of a system. exclusive/shared are the
// resource pointers resolved for this run, in declaration order; deferred
// signals the per-context deferred fence. Every run must eventually call it,
// either before Run returns or later from a subjob Run spawned: dependents
// that do not ignore deferred wait on it, and a system that no such
// dependent waits on blocks at the end of its own run until it is called.
type RunFunc func(value any, exclusive []any, shared []any, deferred func())

// DeinitFunc tears down a system's user value. Optional.
type DeinitFunc func(value any)

// SystemDescriptor describes one registered system (spec.md §3).
type SystemDescriptor struct {
	ID                 SystemID
	Label              string
	ExclusiveResources []ResourceID
	SharedResources    []ResourceID
	Before             []Dependency
	After              []Dependency

	Create CreateFunc
	Run    RunFunc
	Deinit DeinitFunc

	mu       sync.Mutex
	refCount int
}

// RefCount returns the descriptor's current external reference count.
func (d *SystemDescriptor) RefCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refCount
}

func (d *SystemDescriptor) addRef() {
	d.mu.Lock()
	d.refCount++
	d.mu.Unlock()
}

func (d *SystemDescriptor) release() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refCount--
	return d.refCount
}

// AddRef and Release expose the descriptor's reference counting to callers
// outside this package (internal/group holds one ref per SystemContext).
func (d *SystemDescriptor) AddRef() { d.addRef() }

// Release decrements the reference count and returns the value after
// decrement.
func (d *SystemDescriptor) Release() int { return d.release() }

// AddRef mirrors SystemDescriptor.AddRef for resources (world locks and
// contexts both hold references).
func (d *ResourceDescriptor) AddRef() { d.addRef() }

// Release mirrors SystemDescriptor.Release for resources.
func (d *ResourceDescriptor) Release() int { return d.release() }

// Universe is the registry of resource and system descriptors.
type Universe struct {
	rwlock sync.RWMutex // shared lock: SystemGroup.AddSystems read-locks this

	mu        sync.Mutex
	resources map[ResourceID]*ResourceDescriptor
	systems   map[SystemID]*SystemDescriptor
}

// New constructs an empty Universe.
func New() *Universe {
	return &Universe{
		resources: make(map[ResourceID]*ResourceDescriptor),
		systems:   make(map[SystemID]*SystemDescriptor),
	}
}

// RLock/RUnlock expose the shared registry lock SystemGroup.AddSystems takes
// for reading (spec.md §6).
func (u *Universe) RLock()   { u.rwlock.RLock() }
func (u *Universe) RUnlock() { u.rwlock.RUnlock() }

// RegisterResource adds a resource descriptor to the registry.
func (u *Universe) RegisterResource(desc ResourceDescriptor) (*ResourceDescriptor, error) {
	u.rwlock.Lock()
	defer u.rwlock.Unlock()
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.resources[desc.ID]; ok {
		return nil, apierr.Wrap(apierr.KindDuplicate, "resource already registered", fmt.Errorf("resource %d", desc.ID))
	}
	d := &ResourceDescriptor{ID: desc.ID, Label: desc.Label, Size: desc.Size, Alignment: desc.Alignment}
	u.resources[desc.ID] = d
	return d, nil
}

// UnregisterResource removes a resource descriptor. It is an InUse error to
// unregister a resource with a non-zero reference count.
func (u *Universe) UnregisterResource(id ResourceID) error {
	u.rwlock.Lock()
	defer u.rwlock.Unlock()
	u.mu.Lock()
	defer u.mu.Unlock()
	d, ok := u.resources[id]
	if !ok {
		return apierr.Wrap(apierr.KindNotFound, "unknown resource", fmt.Errorf("resource %d", id))
	}
	if d.RefCount() > 0 {
		return apierr.Wrap(apierr.KindInUse, "resource still referenced", fmt.Errorf("resource %d has %d references", id, d.RefCount()))
	}
	delete(u.resources, id)
	return nil
}

// RegisterSystem validates and adds a system descriptor to the registry.
func (u *Universe) RegisterSystem(desc SystemDescriptor) (*SystemDescriptor, error) {
	u.rwlock.Lock()
	defer u.rwlock.Unlock()
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, ok := u.systems[desc.ID]; ok {
		return nil, apierr.Wrap(apierr.KindDuplicate, "system already registered", fmt.Errorf("system %d", desc.ID))
	}
	if err := u.validateLocked(desc); err != nil {
		return nil, err
	}

	d := &SystemDescriptor{
		ID:                 desc.ID,
		Label:              desc.Label,
		ExclusiveResources: append([]ResourceID(nil), desc.ExclusiveResources...),
		SharedResources:    append([]ResourceID(nil), desc.SharedResources...),
		Before:             append([]Dependency(nil), desc.Before...),
		After:              append([]Dependency(nil), desc.After...),
		Create:             desc.Create,
		Run:                desc.Run,
		Deinit:             desc.Deinit,
	}
	u.systems[desc.ID] = d
	return d, nil
}

// UnregisterSystem removes a system descriptor. It is an InUse error to
// unregister a system with a non-zero reference count (a live SystemContext
// still holds one).
func (u *Universe) UnregisterSystem(id SystemID) error {
	u.rwlock.Lock()
	defer u.rwlock.Unlock()
	u.mu.Lock()
	defer u.mu.Unlock()
	d, ok := u.systems[id]
	if !ok {
		return apierr.Wrap(apierr.KindNotFound, "unknown system", fmt.Errorf("system %d", id))
	}
	if d.RefCount() > 0 {
		return apierr.Wrap(apierr.KindInUse, "system still referenced", fmt.Errorf("system %d has %d references", id, d.RefCount()))
	}
	delete(u.systems, id)
	return nil
}

// Resource looks up a resource descriptor by id.
func (u *Universe) Resource(id ResourceID) (*ResourceDescriptor, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	d, ok := u.resources[id]
	return d, ok
}

// System looks up a system descriptor by id.
func (u *Universe) System(id SystemID) (*SystemDescriptor, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	d, ok := u.systems[id]
	return d, ok
}

// validateLocked checks the Deadlock/Duplicate/NotFound conditions of
// spec.md §7 for a candidate system descriptor. Callers must hold u.mu.
func (u *Universe) validateLocked(desc SystemDescriptor) error {
	exclusive := make(map[ResourceID]struct{}, len(desc.ExclusiveResources))
	for _, r := range desc.ExclusiveResources {
		if _, ok := u.resources[r]; !ok {
			return apierr.Wrap(apierr.KindNotFound, "unknown exclusive resource", fmt.Errorf("resource %d", r))
		}
		if _, dup := exclusive[r]; dup {
			return apierr.Wrap(apierr.KindDeadlock, "resource repeated in exclusive list", fmt.Errorf("resource %d", r))
		}
		exclusive[r] = struct{}{}
	}

	shared := make(map[ResourceID]struct{}, len(desc.SharedResources))
	for _, r := range desc.SharedResources {
		if _, ok := u.resources[r]; !ok {
			return apierr.Wrap(apierr.KindNotFound, "unknown shared resource", fmt.Errorf("resource %d", r))
		}
		if _, dup := shared[r]; dup {
			return apierr.Wrap(apierr.KindDuplicate, "resource repeated in shared list", fmt.Errorf("resource %d", r))
		}
		if _, excl := exclusive[r]; excl {
			return apierr.Wrap(apierr.KindDeadlock, "resource in both exclusive and shared lists", fmt.Errorf("resource %d", r))
		}
		shared[r] = struct{}{}
	}

	before := make(map[SystemID]struct{}, len(desc.Before))
	for _, dep := range desc.Before {
		before[dep.Target] = struct{}{}
	}
	for _, dep := range desc.After {
		if _, ok := before[dep.Target]; ok {
			return apierr.Wrap(apierr.KindDeadlock, "system named in both before and after", fmt.Errorf("system %d", dep.Target))
		}
	}
	for _, dep := range desc.Before {
		if dep.Target == desc.ID {
			return apierr.Wrap(apierr.KindDeadlock, "system cannot depend on itself", fmt.Errorf("system %d", desc.ID))
		}
	}
	for _, dep := range desc.After {
		if dep.Target == desc.ID {
			return apierr.Wrap(apierr.KindDeadlock, "system cannot depend on itself", fmt.Errorf("system %d", desc.ID))
		}
	}
	return nil
}
