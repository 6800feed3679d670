package handler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"AgentTree/internal/agent/domain"
	"AgentTree/internal/agent/metrics"
)

const DefaultRefreshTimeout = 30 * time.Second

// RefreshHandler runs the refresher of one agent and reports the outcome to
// the tree. The agent must have been marked refreshing by Tree.Due or
// Tree.Begin.
type RefreshHandler struct {
	tree    *domain.Tree
	policy  domain.Policy
	timeout time.Duration
	clock   func() time.Time
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewRefreshHandler(tree *domain.Tree, policy domain.Policy, timeout time.Duration, clock func() time.Time, m *metrics.Metrics, logger *slog.Logger) *RefreshHandler {
	if timeout <= 0 {
		timeout = DefaultRefreshTimeout
	}
	if clock == nil {
		clock = time.Now
	}
	return &RefreshHandler{
		tree:    tree,
		policy:  policy,
		timeout: timeout,
		clock:   clock,
		metrics: m,
		logger:  logger,
	}
}

func (h *RefreshHandler) Execute(ctx context.Context, a *domain.Agent) {
	refresher := a.Refresher()

	h.logger.Debug("refreshing agent",
		"agent_id", a.ID(),
		"agent", a.Name(),
	)

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	h.metrics.RefreshStarted()
	start := time.Now()

	value, panicked, err := h.invoke(ctx, refresher)

	elapsed := time.Since(start)
	switch {
	case panicked:
		h.metrics.RefreshFinished(metrics.ResultPanic, elapsed)
	case err != nil:
		h.metrics.RefreshFinished(metrics.ResultFailure, elapsed)
	default:
		h.metrics.RefreshFinished(metrics.ResultSuccess, elapsed)
	}

	if err != nil {
		h.logger.Warn("refresh failed",
			"agent_id", a.ID(),
			"agent", a.Name(),
			"elapsed", elapsed,
			"error", err,
		)
	}

	h.tree.Complete(a, value, err, h.clock(), h.policy)
}

func (h *RefreshHandler) invoke(ctx context.Context, r domain.Refresher) (value domain.Value, panicked bool, err error) {
	if r == nil {
		return domain.Value{}, false, fmt.Errorf("%w: agent has no refresher", domain.ErrUnexpected)
	}

	defer func() {
		if rec := recover(); rec != nil {
			value = domain.Value{}
			err = fmt.Errorf("%w: %v", domain.ErrUnexpected, rec)
			panicked = true
		}
	}()

	value, err = r.Refresh(ctx)
	return value, false, err
}
