// Package world implements the World collaborator named in spec.md §6: a
// resource map with one reader-writer lock per resource. It is out of scope
// per spec.md §1 ("the world resource map (ownership, per-resource
// readers-writer lock)") — this package implements just enough of it,
// grounded on DangerosoDavo-ecs's resource_container.go and world.go (a
// sync.RWMutex-guarded map plus functional options), to drive and test
// internal/group's resource acquisition step.
package world

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/oriumgames/systemgroup/internal/apierr"
)

// ResourceID identifies a world resource. Kept as a distinct type from
// universe.ResourceID to keep this package free of a dependency on
// internal/universe; internal/group converts between the two at its
// boundary.
type ResourceID uint64

type slot struct {
	id    ResourceID
	mu    sync.RWMutex
	value any
}

type request struct {
	id       ResourceID
	wantExcl bool
	outIndex int
}

// World holds resource values behind per-resource locks.
type World struct {
	mu         sync.Mutex
	resources  map[ResourceID]*slot
	groupCount int32
}

// New constructs an empty World.
func New() *World {
	return &World{resources: make(map[ResourceID]*slot)}
}

// AddResource inserts a resource value under id. Not used by the scheduler
// proper (spec.md §6), provided for completeness and for test setup.
func (w *World) AddResource(id ResourceID, value any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.resources[id]; ok {
		return apierr.Wrap(apierr.KindDuplicate, "resource already present in world", fmt.Errorf("resource %d", id))
	}
	w.resources[id] = &slot{id: id, value: value}
	return nil
}

// RemoveResource deletes a resource from the world.
func (w *World) RemoveResource(id ResourceID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.resources[id]; !ok {
		return apierr.Wrap(apierr.KindNotFound, "unknown world resource", fmt.Errorf("resource %d", id))
	}
	delete(w.resources, id)
	return nil
}

// HasResource reports whether id is present in the world.
func (w *World) HasResource(id ResourceID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.resources[id]
	return ok
}

func (w *World) slotFor(id ResourceID) (*slot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.resources[id]
	if !ok {
		return nil, apierr.Wrap(apierr.KindNotFound, "unknown world resource", fmt.Errorf("resource %d", id))
	}
	return s, nil
}

// LockResources acquires locks for exclusive and shared in ascending
// resource-identity order (spec.md §5, §6) and writes resolved resource
// pointers into out: out[0:len(exclusive)] for the exclusive resources in
// request order, out[len(exclusive):] for the shared resources in request
// order. Acquisition is strictly sequential — parallelizing it would break
// the deadlock-freedom guarantee that depends on one global ascending order
// across concurrent groups sharing a world.
func (w *World) LockResources(exclusive, shared []ResourceID, out []any) error {
	if len(out) != len(exclusive)+len(shared) {
		panic("world: out slice length must equal len(exclusive)+len(shared)")
	}

	reqs := make([]request, 0, len(exclusive)+len(shared))
	for i, id := range exclusive {
		reqs = append(reqs, request{id: id, wantExcl: true, outIndex: i})
	}
	for j, id := range shared {
		reqs = append(reqs, request{id: id, wantExcl: false, outIndex: len(exclusive) + j})
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].id < reqs[j].id })

	locked := make([]request, 0, len(reqs))
	for _, r := range reqs {
		s, err := w.slotFor(r.id)
		if err != nil {
			w.unlockLocked(locked)
			return err
		}
		if r.wantExcl {
			s.mu.Lock()
		} else {
			s.mu.RLock()
		}
		locked = append(locked, r)
		out[r.outIndex] = s.value
	}
	return nil
}

func (w *World) unlockLocked(reqs []request) {
	for _, r := range reqs {
		s, err := w.slotFor(r.id)
		if err != nil {
			continue
		}
		if r.wantExcl {
			s.mu.Unlock()
		} else {
			s.mu.RUnlock()
		}
	}
}

// UnlockResourceExclusive releases an exclusive lock taken by LockResources.
func (w *World) UnlockResourceExclusive(id ResourceID) {
	s, err := w.slotFor(id)
	if err != nil {
		panic(fmt.Sprintf("world: unlock exclusive on unknown resource %d", id))
	}
	s.mu.Unlock()
}

// UnlockResourceShared releases a shared lock taken by LockResources.
func (w *World) UnlockResourceShared(id ResourceID) {
	s, err := w.slotFor(id)
	if err != nil {
		panic(fmt.Sprintf("world: unlock shared on unknown resource %d", id))
	}
	s.mu.RUnlock()
}

// IncGroupCount/DecGroupCount track how many SystemGroups are attached to
// this world (spec.md §4.5 "increments world's group count").
func (w *World) IncGroupCount() { atomic.AddInt32(&w.groupCount, 1) }
func (w *World) DecGroupCount() { atomic.AddInt32(&w.groupCount, -1) }
func (w *World) GroupCount() int32 { return atomic.LoadInt32(&w.groupCount) }
