package domain

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAgent(t *testing.T, name string, opts ...Option) *Agent {
	t.Helper()
	a, err := NewAgent(name, opts...)
	require.NoError(t, err)
	return a
}

// recorder collects transitions delivered to a listener.
type recorder struct {
	mu          sync.Mutex
	transitions []Transition
}

func (r *recorder) OnTransition(tr Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, tr)
}

func (r *recorder) events() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Transition, len(r.transitions))
	copy(out, r.transitions)
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = nil
}

var nopRefresher = RefresherFunc(func(context.Context) (Value, error) {
	return Value{}, nil
})

// assertAggregated checks that every agent's level is the worst of its local
// state and its children.
func assertAggregated(t *testing.T, tree *Tree) {
	t.Helper()
	tree.ForEach(PostOrder, func(a *Agent) {
		want := a.localState().Level()
		for _, c := range a.children {
			want = MaxLevel(want, c.state.Level())
		}
		assert.Equal(t, want, a.state.Level(), "agent %s", a.path())
	})
}

var (
	stateReady    = NewState(LevelReady, "ok")
	stateWarning  = NewState(LevelWarning, "high")
	stateError    = NewState(LevelError, "broken")
	stateCritical = NewState(LevelCritical, "down")
)
