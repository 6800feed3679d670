package domain

// Transition describes an agent whose effective level changed.
type Transition struct {
	AgentID string
	Name    string
	Path    string
	From    *State
	To      *State
}

// Listener is notified synchronously, with the tree lock held, each time an
// agent changes level. Implementations must return quickly and must not call
// back into the tree.
type Listener interface {
	OnTransition(tr Transition)
}

type ListenerFunc func(tr Transition)

func (f ListenerFunc) OnTransition(tr Transition) { f(tr) }

// Recompute re-evaluates a and propagates a level change towards the root.
func (t *Tree) Recompute(a *Agent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if a.owner() != t {
		return ErrNotAttached
	}
	t.propagateLocked(a)
	return nil
}

// RecomputeAll seeds every agent bottom-up. Used once at start.
func (t *Tree) RecomputeAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.root != nil {
		t.root.walk(PostOrder, func(a *Agent) { t.recomputeLocked(a) })
	}
}

// propagateLocked walks from a towards the root and stops at the first agent
// whose level does not change.
func (t *Tree) propagateLocked(a *Agent) {
	for n := a; n != nil; n = n.parent {
		if !t.recomputeLocked(n) {
			return
		}
	}
}

// recomputeLocked reports whether the level of a changed.
func (t *Tree) recomputeLocked(a *Agent) bool {
	prev := a.state
	next := a.aggregate()

	if next.Level() == prev.Level() {
		// Same level: keep the newest summary, nothing to announce.
		a.state = next
		return false
	}

	prev.deactivate(a, t.logger)
	a.state = next
	next.activate(a, t.logger)

	t.notifyLocked(Transition{
		AgentID: a.id,
		Name:    a.name,
		Path:    a.path(),
		From:    prev,
		To:      next,
	})
	return true
}

func (t *Tree) notifyLocked(tr Transition) {
	for _, l := range t.listeners {
		t.deliver(l, tr)
	}
}

func (t *Tree) deliver(l Listener, tr Transition) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("transition listener panicked",
				"agent", tr.Path,
				"level", tr.To.Level(),
				"panic", r,
			)
		}
	}()
	l.OnTransition(tr)
}
