package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"AgentTree/internal/agent/domain"
	"AgentTree/internal/agent/metrics"
)

const DefaultMaxIdle = time.Minute

// Submitter runs refresh closures off the scheduler goroutine.
type Submitter interface {
	Submit(job func())
	Wait()
}

type Options struct {
	Policy         domain.Policy
	MaxIdle        time.Duration
	RefreshTimeout time.Duration
	Clock          func() time.Time
	Metrics        *metrics.Metrics
}

// Controller owns a tree and keeps it fresh: it ticks, hands due agents to
// the pool and serves on-demand reads.
type Controller struct {
	tree    *domain.Tree
	policy  domain.Policy
	pool    Submitter
	refresh *RefreshHandler
	clock   func() time.Time
	maxIdle time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger

	wake chan struct{}

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	done       chan struct{}
	refreshCtx context.Context
}

func NewController(tree *domain.Tree, pool Submitter, logger *slog.Logger, opts Options) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.MaxIdle <= 0 {
		opts.MaxIdle = DefaultMaxIdle
	}
	if opts.Policy == (domain.Policy{}) {
		opts.Policy = domain.DefaultPolicy()
	}

	logger = logger.With("component", "controller")
	return &Controller{
		tree:       tree,
		policy:     opts.Policy,
		pool:       pool,
		refresh:    NewRefreshHandler(tree, opts.Policy, opts.RefreshTimeout, opts.Clock, opts.Metrics, logger),
		clock:      opts.Clock,
		maxIdle:    opts.MaxIdle,
		metrics:    opts.Metrics,
		logger:     logger,
		wake:       make(chan struct{}, 1),
		refreshCtx: context.Background(),
	}
}

func (c *Controller) Tree() *domain.Tree {
	return c.tree
}

func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// SetRoot installs root. A stopped controller replaces any previous root; a
// running one only accepts a root when it has none, and starts it at once.
func (c *Controller) SetRoot(ctx context.Context, root *domain.Agent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tree.Root() != nil {
		if c.running {
			return ErrRootActive
		}
		if _, err := c.tree.Release(); err != nil {
			return fmt.Errorf("failed to release previous root: %w", err)
		}
	}

	if err := c.tree.Adopt(root); err != nil {
		return err
	}

	if c.running {
		c.startRefreshers(ctx, c.refreshers())
		c.tree.RecomputeAll()
		c.signal()
	}
	return nil
}

// ClearRoot detaches the root from a stopped controller and returns it.
func (c *Controller) ClearRoot() (*domain.Agent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil, ErrRunning
	}
	return c.tree.Release()
}

// Insert attaches child below the agent at parentPath. On a running
// controller the refreshers of the new subtree are started before it joins
// the tree, and stopped again if the insert fails.
func (c *Controller) Insert(ctx context.Context, parentPath string, child *domain.Agent) error {
	if child == nil {
		return domain.ErrNilAgent
	}
	parent, err := c.tree.Find(parentPath)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var refs []refresherRef
	if c.running {
		refs = subtreeRefreshers(child)
		c.startRefreshers(ctx, refs)
	}

	if err := domain.Insert(parent, child); err != nil {
		if stopErr := c.stopRefreshers(refs); stopErr != nil {
			return errors.Join(err, stopErr)
		}
		return err
	}

	c.tree.RecomputeAll()
	c.signal()
	return nil
}

// Tick scans the tree once at now, submits every due agent and returns when
// the loop should wake next.
func (c *Controller) Tick(now time.Time) time.Time {
	due, next := c.tree.Due(now, c.policy)
	c.metrics.Tick()

	c.mu.Lock()
	ctx := c.refreshCtx
	c.mu.Unlock()

	for _, a := range due {
		c.pool.Submit(func() {
			c.refresh.Execute(ctx, a)
			// Completion moved NextDue; rescan before the current wake time.
			c.signal()
		})
	}

	if len(due) > 0 {
		c.logger.Debug("dispatched refreshes", "count", len(due))
	}

	wake := now.Add(c.maxIdle)
	if !next.IsZero() && next.Before(wake) {
		wake = next
	}
	return wake
}

// Run ticks until ctx is cancelled, sleeping until the wake time returned by
// each tick or an explicit refresh request.
func (c *Controller) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("stopping controller due to context cancellation")
			return
		case <-timer.C:
		case <-c.wake:
		}

		wake := c.Tick(c.clock())
		timer.Reset(wake.Sub(c.clock()))
	}
}

// Start opens the refreshers, seeds every state bottom-up and launches the
// tick loop. Refresh closures outlive ctx; Stop drains them.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrRunning
	}

	c.startRefreshers(ctx, c.refreshers())
	c.tree.RecomputeAll()

	runCtx, cancel := context.WithCancel(ctx)
	c.refreshCtx = context.WithoutCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true

	go func(done chan struct{}) {
		defer close(done)
		c.Run(runCtx)
	}(c.done)

	c.logger.Info("controller started")
	return nil
}

// Stop halts the loop, waits for in-flight refreshes and closes the
// refreshers.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	cancel, done := c.cancel, c.done
	c.running = false
	c.mu.Unlock()

	cancel()
	<-done
	c.pool.Wait()

	err := c.stopRefreshers(c.refreshers())
	c.logger.Info("controller stopped")
	return err
}

// Read returns a snapshot of the agent at path. A due on-demand agent is
// refreshed inline first, so the read sees the propagated result.
func (c *Controller) Read(ctx context.Context, path string) (domain.Snapshot, error) {
	a, err := c.tree.Find(path)
	if err != nil {
		return domain.Snapshot{}, err
	}

	if c.tree.Begin(a, c.clock(), c.policy) {
		c.refresh.Execute(ctx, a)
	}
	return c.tree.Snapshot(a), nil
}

// RequestRefresh makes the agent at path due now and wakes the loop.
func (c *Controller) RequestRefresh(path string) error {
	a, err := c.tree.Find(path)
	if err != nil {
		return err
	}
	if err := c.tree.Request(a, c.clock(), c.policy); err != nil {
		return err
	}
	c.signal()
	return nil
}

func (c *Controller) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// refreshers lists the refreshers in pre-order. Starter and Stopper calls
// may block, so they run after the tree lock is released.
func (c *Controller) refreshers() []refresherRef {
	var refs []refresherRef
	c.tree.ForEach(domain.PreOrder, func(a *domain.Agent) {
		if r := a.Refresher(); r != nil {
			refs = append(refs, refresherRef{name: a.Name(), refresher: r})
		}
	})
	return refs
}

// subtreeRefreshers lists the refreshers below a detached agent in pre-order.
func subtreeRefreshers(a *domain.Agent) []refresherRef {
	var refs []refresherRef
	if r := a.Refresher(); r != nil {
		refs = append(refs, refresherRef{name: a.Name(), refresher: r})
	}
	for _, child := range a.Children() {
		refs = append(refs, subtreeRefreshers(child)...)
	}
	return refs
}

type refresherRef struct {
	name      string
	refresher domain.Refresher
}

func (c *Controller) startRefreshers(ctx context.Context, refs []refresherRef) {
	for _, ref := range refs {
		s, ok := ref.refresher.(domain.Starter)
		if !ok {
			continue
		}
		// A refresher that cannot start yet fails its refreshes until it can.
		if err := s.Start(ctx); err != nil {
			c.logger.Error("failed to start refresher", "agent", ref.name, "error", err)
		}
	}
}

func (c *Controller) stopRefreshers(refs []refresherRef) error {
	var errs []error
	for _, ref := range refs {
		s, ok := ref.refresher.(domain.Stopper)
		if !ok {
			continue
		}
		if err := s.Stop(); err != nil {
			c.logger.Error("failed to stop refresher", "agent", ref.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", ref.name, err))
		}
	}
	return errors.Join(errs...)
}
