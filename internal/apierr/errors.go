// Package apierr defines the configuration-error taxonomy of spec.md §7.
// These are the only errors the public API returns; every other failure
// mode named in §7 (double-remove, destroy-while-running, fatal recompile
// failure, submission failure) is a programmer error and panics instead,
// per the propagation policy in §7.
package apierr

import (
	"errors"
	"fmt"
)

// Kind classifies a configuration error so callers can branch with errors.Is.
type Kind int

const (
	// KindNotFound: unknown resource or system id.
	KindNotFound Kind = iota
	// KindDuplicate: strong-adding an already-strong system, or a repeated
	// resource id within one shared-resource list.
	KindDuplicate
	// KindDeadlock: a configuration that would deadlock (exclusive/shared
	// overlap, repeated exclusive resource, a system in both before and
	// after of the same system).
	KindDeadlock
	// KindInitFailed: user system_create returned failure.
	KindInitFailed
	// KindAddFailed: generic add-systems failure wrapper.
	KindAddFailed
	// KindRemoveFailed: generic remove-system failure wrapper.
	KindRemoveFailed
	// KindInUse: removing a world resource while contexts still reference it.
	KindInUse
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindDuplicate:
		return "duplicate"
	case KindDeadlock:
		return "deadlock"
	case KindInitFailed:
		return "init failed"
	case KindAddFailed:
		return "add failed"
	case KindRemoveFailed:
		return "remove failed"
	case KindInUse:
		return "in use"
	default:
		return "unknown"
	}
}

// Error is a configuration-error value carrying a Kind for errors.Is/As
// matching and a human-readable message.
type Error struct {
	Kind Kind
	Msg  string
	err  error // wrapped cause, optional
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.err }

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, apierr.NotFound) against the sentinel values below.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, err: cause}
}

// Sentinel values usable with errors.Is for a bare Kind check.
var (
	NotFound     = &Error{Kind: KindNotFound, Msg: "sentinel"}
	Duplicate    = &Error{Kind: KindDuplicate, Msg: "sentinel"}
	Deadlock     = &Error{Kind: KindDeadlock, Msg: "sentinel"}
	InitFailed   = &Error{Kind: KindInitFailed, Msg: "sentinel"}
	AddFailed    = &Error{Kind: KindAddFailed, Msg: "sentinel"}
	RemoveFailed = &Error{Kind: KindRemoveFailed, Msg: "sentinel"}
	InUse        = &Error{Kind: KindInUse, Msg: "sentinel"}
)
