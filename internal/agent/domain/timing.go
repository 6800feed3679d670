package domain

import "time"

const (
	DefaultFailureBackoff = 5 * time.Minute
	DefaultGrace          = 5 * time.Second
)

// Timing is the schedule bookkeeping of an agent. Zero times mean unset.
type Timing struct {
	Period         time.Duration
	OnDemand       bool
	FailureBackoff time.Duration
	StartupDelay   time.Duration

	LastSuccess      time.Time
	NextDue          time.Time
	RefreshStartedAt time.Time

	armed bool
	// requested records a Request made while a refresh was in flight.
	requested bool
}

func (t Timing) Refreshing() bool {
	return !t.RefreshStartedAt.IsZero()
}

// Policy decides when agents are due. FailureBackoff applies to agents that
// do not declare their own.
type Policy struct {
	Grace          time.Duration
	FailureBackoff time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Grace:          DefaultGrace,
		FailureBackoff: DefaultFailureBackoff,
	}
}

// IsDue reports whether t should be refreshed at now. demanded is true when
// an external reader asked for the value; only on-demand agents care.
func (p Policy) IsDue(t *Timing, now time.Time, demanded bool) bool {
	if t.Refreshing() {
		return false
	}
	if t.OnDemand {
		return demanded && (t.NextDue.IsZero() || !now.Before(t.NextDue))
	}
	return t.armed && !t.NextDue.IsZero() && !now.Before(t.NextDue)
}

// Arm schedules the first refresh after the startup delay. On-demand agents
// stay unscheduled until read.
func (p Policy) Arm(t *Timing, now time.Time) {
	if t.armed {
		return
	}
	t.armed = true
	if !t.OnDemand {
		t.NextDue = now.Add(t.StartupDelay)
	}
}

func (p Policy) Begin(t *Timing, now time.Time) {
	t.RefreshStartedAt = now
}

// Succeeded reschedules after a good refresh. A request that arrived while
// the refresh ran makes the agent due again at once, since the value may
// predate it.
func (p Policy) Succeeded(t *Timing, now time.Time) {
	t.RefreshStartedAt = time.Time{}
	t.LastSuccess = now
	switch {
	case t.requested:
		t.NextDue = now
	case t.Period > 0:
		t.NextDue = now.Add(t.Period)
	default:
		t.NextDue = time.Time{}
	}
	t.requested = false
}

// Failed arms the backoff. A pending request is dropped: the failure is its
// answer and the backoff still holds.
func (p Policy) Failed(t *Timing, now time.Time) {
	t.RefreshStartedAt = time.Time{}
	t.NextDue = now.Add(p.backoff(t))
	t.requested = false
}

// Defer pushes an elapsed due time of an in-flight agent by the grace period
// so a slow refresh is not rescanned on every tick.
func (p Policy) Defer(t *Timing, now time.Time) bool {
	if !t.Refreshing() || t.NextDue.IsZero() || now.Before(t.NextDue) {
		return false
	}
	grace := p.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}
	t.NextDue = now.Add(grace)
	return true
}

// Request makes t due at now, re-arming dormant one-shot agents. During a
// refresh the request is kept until the refresh completes.
func (p Policy) Request(t *Timing, now time.Time) {
	t.armed = true
	if t.Refreshing() {
		t.requested = true
		return
	}
	t.NextDue = now
}

func (p Policy) backoff(t *Timing) time.Duration {
	if t.FailureBackoff > 0 {
		return t.FailureBackoff
	}
	if p.FailureBackoff > 0 {
		return p.FailureBackoff
	}
	return DefaultFailureBackoff
}
