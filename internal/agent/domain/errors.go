package domain

import "errors"

// Structural violations. They fail the offending call and leave the tree untouched.
var (
	ErrNilAgent        = errors.New("agent is nil")
	ErrInvalidName     = errors.New("invalid agent name")
	ErrDuplicateName   = errors.New("agent with this name already exists")
	ErrHasParent       = errors.New("agent is already attached")
	ErrCycle           = errors.New("agent cannot be inserted below itself")
	ErrNotAttached     = errors.New("agent is not attached to this tree")
	ErrNoParent        = errors.New("agent has no parent")
	ErrNotFound        = errors.New("agent not found")
	ErrInvalidPath     = errors.New("invalid agent path")
	ErrRefreshInFlight = errors.New("agent refresh in flight")
	ErrRootSet         = errors.New("tree already has a root")
	ErrAttached        = errors.New("agent table cannot change after attach")
)

// Value and configuration errors.
var (
	ErrUnknownLevel = errors.New("unknown level")
	ErrUnknownKind  = errors.New("unknown value type")
	ErrKindMismatch = errors.New("value type mismatch")
)

// ErrUnexpected marks a refresh that panicked instead of returning an error.
var ErrUnexpected = errors.New("unexpected refresh failure")
