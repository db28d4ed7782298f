// Package systemgroup is the public, stable API surface of the scheduler
// core (spec.md §6 "Public API exposed by the core"). It wraps
// internal/group, internal/universe, internal/world and internal/executor
// behind the handful of operations those sections name.
package systemgroup

import "github.com/oriumgames/systemgroup/internal/apierr"

// Error is the configuration-error taxonomy of spec.md §7. Use errors.Is
// against the sentinel values below to classify a returned error.
type Error = apierr.Error

// Sentinel errors for errors.Is, mirroring spec.md §7's Kind enum.
var (
	ErrNotFound     = apierr.NotFound
	ErrDuplicate    = apierr.Duplicate
	ErrDeadlock     = apierr.Deadlock
	ErrInitFailed   = apierr.InitFailed
	ErrAddFailed    = apierr.AddFailed
	ErrRemoveFailed = apierr.RemoveFailed
	ErrInUse        = apierr.InUse
)
