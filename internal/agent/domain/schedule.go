package domain

import (
	"fmt"
	"time"
)

// Due scans the tree in pre-order, marks every agent due at now as
// refreshing and returns them. next is the earliest due time among the
// agents left waiting, zero when none is scheduled. Agents already in flight
// whose due time elapsed are pushed back by the policy grace.
func (t *Tree) Due(now time.Time, p Policy) (due []*Agent, next time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.root == nil {
		return nil, time.Time{}
	}

	t.root.walk(PreOrder, func(a *Agent) {
		if a.refresher == nil {
			return
		}
		tm := &a.timing
		p.Arm(tm, now)

		switch {
		case tm.Refreshing():
			p.Defer(tm, now)
		case p.IsDue(tm, now, false):
			p.Begin(tm, now)
			due = append(due, a)
			return
		}

		if !tm.OnDemand && !tm.NextDue.IsZero() && (next.IsZero() || tm.NextDue.Before(next)) {
			next = tm.NextDue
		}
	})
	return due, next
}

// Begin marks a as refreshing when a read demands it. It reports false when
// the agent is not due or a refresh is already in flight.
func (t *Tree) Begin(a *Agent, now time.Time, p Policy) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if a.owner() != t || a.refresher == nil {
		return false
	}
	if !p.IsDue(&a.timing, now, true) {
		return false
	}
	p.Begin(&a.timing, now)
	return true
}

// Complete records the outcome of a refresh started by Due or Begin, then
// propagates the new state. A failed refresh forces a critical state carrying
// the error text and arms the failure backoff.
func (t *Tree) Complete(a *Agent, v Value, err error, now time.Time, p Policy) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !a.timing.Refreshing() {
		t.logger.Warn("refresh completed for idle agent", "agent", a.path())
	}

	if err == nil && a.kind != KindNone && v.Kind() != a.kind {
		err = fmt.Errorf("%w: got %s, want %s", ErrKindMismatch, v.Kind(), a.kind)
	}

	if err != nil {
		a.forced = FailureState(err)
		p.Failed(&a.timing, now)
	} else {
		a.forced = nil
		a.value = v
		p.Succeeded(&a.timing, now)
	}

	// Detach and Release refuse agents in flight, so a is still in t.
	t.propagateLocked(a)
}

// Request makes a due at now. One-shot agents are re-armed.
func (t *Tree) Request(a *Agent, now time.Time, p Policy) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if a.owner() != t {
		return ErrNotAttached
	}
	p.Request(&a.timing, now)
	return nil
}

// InFlight counts agents with a refresh in flight.
func (t *Tree) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	if t.root != nil {
		t.root.walk(PreOrder, func(a *Agent) {
			if a.timing.Refreshing() {
				n++
			}
		})
	}
	return n
}
