// Package systemgroup implements the core of a multi-threaded
// system-scheduler runtime: a system group that maintains a mutable
// dependency graph of systems over shared world resources, compiles it into
// a topologically-ordered, synchronization-injected command stream,
// acquires resource locks in a deadlock-free order, and drives generations
// to completion while supporting deferred subjobs and live reconfiguration.
//
// The universe registry, the world resource map, and the executor worker
// pool are named collaborators consumed at the boundary, not implemented by
// this package beyond what is needed to drive and test it.
package systemgroup
