package domain

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Order selects the traversal of ForEach.
type Order int

const (
	// PreOrder visits an agent before its children.
	PreOrder Order = iota
	// PostOrder visits children before their parent.
	PostOrder
)

// detachedMu guards agents that belong to no tree. Lock order: Tree.mu first.
var detachedMu sync.Mutex

// Tree holds a root agent and the single lock guarding every agent in it:
// children, timing, value and state. Traversals hold the lock for their whole
// duration, so a concurrent Insert or Detach waits for them to finish.
type Tree struct {
	mu        sync.Mutex
	root      *Agent
	listeners []Listener
	logger    *slog.Logger
}

func NewTree(logger *slog.Logger, listeners ...Listener) *Tree {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tree{
		listeners: listeners,
		logger:    logger,
	}
}

// Subscribe adds a transition listener.
func (t *Tree) Subscribe(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

func (t *Tree) Root() *Agent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.root
}

// Adopt makes root the root of the tree.
func (t *Tree) Adopt(root *Agent) error {
	if root == nil {
		return ErrNilAgent
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.root != nil {
		return ErrRootSet
	}

	detachedMu.Lock()
	defer detachedMu.Unlock()

	if root.parent != nil || root.owner() != nil {
		return ErrHasParent
	}

	t.root = root
	root.setTree(t)
	return nil
}

// Release removes the root and returns it as an independent subtree.
func (t *Tree) Release() (*Agent, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	root := t.root
	if root == nil {
		return nil, nil
	}
	if root.refreshing() {
		return nil, ErrRefreshInFlight
	}

	detachedMu.Lock()
	root.setTree(nil)
	detachedMu.Unlock()

	t.root = nil
	return root, nil
}

// Insert appends child to parent's children and sets the back reference. It
// does not recompute states; callers do that once the build is complete.
// Inserting into a running tree does not start the child's refreshers; use
// Controller.Insert for that.
func Insert(parent, child *Agent) error {
	if parent == nil || child == nil {
		return ErrNilAgent
	}

	for {
		t := parent.owner()
		if t != nil {
			t.mu.Lock()
		}
		detachedMu.Lock()

		// parent may have moved between the read and the locks.
		if parent.owner() == t {
			err := insertLocked(parent, child)
			detachedMu.Unlock()
			if t != nil {
				t.mu.Unlock()
			}
			return err
		}

		detachedMu.Unlock()
		if t != nil {
			t.mu.Unlock()
		}
	}
}

// insertLocked requires detachedMu and the lock of parent's tree, if any.
func insertLocked(parent, child *Agent) error {
	if child.parent != nil || child.owner() != nil {
		return fmt.Errorf("%w: %s", ErrHasParent, child.name)
	}
	for n := parent; n != nil; n = n.parent {
		if n == child {
			return ErrCycle
		}
	}
	if parent.child(child.name) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateName, child.name)
	}

	child.parent = parent
	parent.children = append(parent.children, child)
	if t := parent.owner(); t != nil {
		child.setTree(t)
	}
	return nil
}

// Detach removes a from its parent. The subtree keeps its states and can be
// adopted by another tree; the former ancestors are recomputed without it.
func (t *Tree) Detach(a *Agent) error {
	if a == nil {
		return ErrNilAgent
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if a.owner() != t {
		return ErrNotAttached
	}
	parent := a.parent
	if parent == nil {
		return ErrNoParent
	}
	if a.refreshing() {
		return fmt.Errorf("%w: %s", ErrRefreshInFlight, a.path())
	}

	for i, c := range parent.children {
		if c == a {
			parent.children = append(parent.children[:i:i], parent.children[i+1:]...)
			break
		}
	}
	detachedMu.Lock()
	a.parent = nil
	a.setTree(nil)
	detachedMu.Unlock()

	t.propagateLocked(parent)
	return nil
}

// Find resolves a slash separated path below the root, ignoring case. The
// empty path and "/" resolve to the root.
func (t *Tree) Find(path string) (*Agent, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.findLocked(path)
}

func (t *Tree) findLocked(path string) (*Agent, error) {
	if t.root == nil {
		return nil, ErrNotFound
	}

	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return t.root, nil
	}

	node := t.root
	for _, segment := range strings.Split(trimmed, "/") {
		if segment == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
		next := node.child(segment)
		if next == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		node = next
	}
	return node, nil
}

// ForEach visits every agent with the tree lock held. Visitors may read any
// field but must not insert, detach, or call back into the tree.
func (t *Tree) ForEach(order Order, visit func(*Agent)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.root != nil {
		t.root.walk(order, visit)
	}
}

// Snapshot is a consistent copy of an agent taken under the tree lock.
type Snapshot struct {
	ID          string
	Name        string
	Path        string
	Label       string
	Summary     string
	Value       Value
	State       *State
	LastSuccess time.Time
	NextDue     time.Time
	Refreshing  bool
	Children    int
}

func (s Snapshot) Level() Level {
	return s.State.Level()
}

func (t *Tree) Snapshot(a *Agent) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return snapshotLocked(a)
}

func snapshotLocked(a *Agent) Snapshot {
	return Snapshot{
		ID:          a.id,
		Name:        a.name,
		Path:        a.path(),
		Label:       a.label,
		Summary:     a.summary,
		Value:       a.value,
		State:       a.state,
		LastSuccess: a.timing.LastSuccess,
		NextDue:     a.timing.NextDue,
		Refreshing:  a.timing.Refreshing(),
		Children:    len(a.children),
	}
}

// Forward overrides the local state of a with s, as an externally computed
// state would. A nil s returns the agent to its state table.
func (t *Tree) Forward(a *Agent, s *State) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if a.owner() != t {
		return ErrNotAttached
	}
	a.forced = s
	t.propagateLocked(a)
	return nil
}
