package domain

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"AgentTree/pkg/uuidutil"
)

// Refresher is the refresh body of an agent variant: re-read a counter,
// re-run a probe. It runs off the scheduler goroutine and may block.
type Refresher interface {
	Refresh(ctx context.Context) (Value, error)
}

// Starter is implemented by refreshers that open resources when the tree starts.
type Starter interface {
	Start(ctx context.Context) error
}

// Stopper is implemented by refreshers that hold resources until the tree stops.
type Stopper interface {
	Stop() error
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context) (Value, error)

func (f RefresherFunc) Refresh(ctx context.Context) (Value, error) {
	return f(ctx)
}

// Agent is a node of the monitoring tree. An agent owns its children; the
// parent pointer is a back reference used for propagation and is cleared on
// detach.
//
// Fields are guarded by the lock of the Tree the agent belongs to, or by the
// package lock for detached agents while Insert or Adopt runs. Getters do not
// lock: call them from ForEach visitors, listeners, or before the agent is
// attached.
type Agent struct {
	id      string
	name    string
	label   string
	summary string
	icon    string
	uri     string

	kind      Kind
	value     Value
	state     *State
	forced    *State
	table     Table
	timing    Timing
	refresher Refresher

	parent   *Agent
	children []*Agent
	tree     atomic.Pointer[Tree]
}

type Option func(*Agent)

func WithLabel(label string) Option     { return func(a *Agent) { a.label = label } }
func WithSummary(summary string) Option { return func(a *Agent) { a.summary = summary } }
func WithIcon(icon string) Option       { return func(a *Agent) { a.icon = icon } }
func WithURI(uri string) Option         { return func(a *Agent) { a.uri = uri } }

// WithKind fixes the value type and resets the value to its zero.
func WithKind(k Kind) Option {
	return func(a *Agent) {
		a.kind = k
		a.value = Zero(k)
	}
}

// WithValue sets the initial value and fixes the value type to its kind.
func WithValue(v Value) Option {
	return func(a *Agent) {
		a.kind = v.Kind()
		a.value = v
	}
}

func WithRefresher(r Refresher) Option {
	return func(a *Agent) { a.refresher = r }
}

// WithPeriod makes the agent refresh every d. Zero means one-shot.
func WithPeriod(d time.Duration) Option {
	return func(a *Agent) { a.timing.Period = d }
}

func WithOnDemand() Option {
	return func(a *Agent) { a.timing.OnDemand = true }
}

func WithFailureBackoff(d time.Duration) Option {
	return func(a *Agent) { a.timing.FailureBackoff = d }
}

func WithStartupDelay(d time.Duration) Option {
	return func(a *Agent) { a.timing.StartupDelay = d }
}

// WithRules appends rules to the state table in order.
func WithRules(rules ...Rule) Option {
	return func(a *Agent) {
		for _, r := range rules {
			a.table.Append(r)
		}
	}
}

func NewAgent(name string, opts ...Option) (*Agent, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	a := &Agent{
		id:    uuidutil.New(),
		name:  name,
		state: Undefined,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.Contains(name, "/") {
		return fmt.Errorf("%w: %q contains '/'", ErrInvalidName, name)
	}
	return nil
}

// AddRule appends a rule to the state table. Tables are built before the
// agent joins a tree.
func (a *Agent) AddRule(r Rule) error {
	if a.owner() != nil {
		return ErrAttached
	}
	a.table.Append(r)
	return nil
}

func (a *Agent) ID() string      { return a.id }
func (a *Agent) Name() string    { return a.name }
func (a *Agent) Label() string   { return a.label }
func (a *Agent) Summary() string { return a.summary }
func (a *Agent) Icon() string    { return a.icon }
func (a *Agent) URI() string     { return a.uri }
func (a *Agent) Kind() Kind      { return a.kind }
func (a *Agent) Value() Value    { return a.value }
func (a *Agent) State() *State   { return a.state }
func (a *Agent) Timing() Timing  { return a.timing }
func (a *Agent) Parent() *Agent  { return a.parent }

func (a *Agent) Refresher() Refresher { return a.refresher }

func (a *Agent) Children() []*Agent {
	out := make([]*Agent, len(a.children))
	copy(out, a.children)
	return out
}

// Path is the slash separated location below the root; the root is "/".
func (a *Agent) Path() string { return a.path() }

func (a *Agent) path() string {
	var segments []string
	for n := a; n.parent != nil; n = n.parent {
		segments = append(segments, n.name)
	}
	if len(segments) == 0 {
		return "/"
	}
	var b strings.Builder
	for i := len(segments) - 1; i >= 0; i-- {
		b.WriteByte('/')
		b.WriteString(segments[i])
	}
	return b.String()
}

func (a *Agent) child(name string) *Agent {
	for _, c := range a.children {
		if strings.EqualFold(c.name, name) {
			return c
		}
	}
	return nil
}

// localState is the state indicated by the agent's own value, or the forced
// state when one is set.
func (a *Agent) localState() *State {
	if a.forced != nil {
		return a.forced
	}
	return a.table.Compute(a.value)
}

// aggregate is the worst of the local state and the children. Ties keep the
// earliest candidate: local first, then children in order.
func (a *Agent) aggregate() *State {
	s := a.localState()
	for _, c := range a.children {
		if c.state.Level() > s.Level() {
			s = c.state
		}
	}
	return s
}

func (a *Agent) walk(order Order, fn func(*Agent)) {
	if order == PreOrder {
		fn(a)
	}
	for _, c := range a.children {
		c.walk(order, fn)
	}
	if order == PostOrder {
		fn(a)
	}
}

// owner is the tree a belongs to, nil when detached.
func (a *Agent) owner() *Tree {
	return a.tree.Load()
}

// setTree moves the subtree of a in or out of a tree. Callers hold detachedMu
// and the lock of the tree involved.
func (a *Agent) setTree(t *Tree) {
	a.walk(PreOrder, func(n *Agent) { n.tree.Store(t) })
}

func (a *Agent) refreshing() bool {
	busy := false
	a.walk(PreOrder, func(n *Agent) {
		if n.timing.Refreshing() {
			busy = true
		}
	})
	return busy
}
