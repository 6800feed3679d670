package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"AgentTree/internal/agent/domain"
	"AgentTree/internal/agent/metrics"
	worker "AgentTree/internal/agent/workers"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func at(seconds int) time.Time {
	return epoch.Add(time.Duration(seconds) * time.Second)
}

var testPolicy = domain.Policy{Grace: 5 * time.Second, FailureBackoff: 300 * time.Second}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// inlineSubmitter runs jobs on the calling goroutine.
type inlineSubmitter struct{}

func (inlineSubmitter) Submit(job func()) { job() }
func (inlineSubmitter) Wait()             {}

// queueSubmitter holds jobs until runAll.
type queueSubmitter struct {
	mu   sync.Mutex
	jobs []func()
}

func (q *queueSubmitter) Submit(job func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
}

func (q *queueSubmitter) Wait() { q.runAll() }

func (q *queueSubmitter) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func (q *queueSubmitter) runAll() {
	q.mu.Lock()
	jobs := q.jobs
	q.jobs = nil
	q.mu.Unlock()
	for _, job := range jobs {
		job()
	}
}

// scripted returns the same value or error on every refresh and records
// lifecycle calls into a shared journal.
type scripted struct {
	name    string
	value   domain.Value
	err     error
	journal *journal

	mu    sync.Mutex
	calls int
}

func (s *scripted) Refresh(ctx context.Context) (domain.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.value, s.err
}

func (s *scripted) Start(context.Context) error {
	s.journal.add("start " + s.name)
	return nil
}

func (s *scripted) Stop() error {
	s.journal.add("stop " + s.name)
	return nil
}

func (s *scripted) set(v domain.Value, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value, s.err = v, err
}

func (s *scripted) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(entry string) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

var (
	stateReady    = domain.NewState(domain.LevelReady, "ok")
	stateWarning  = domain.NewState(domain.LevelWarning, "high")
	stateCritical = domain.NewState(domain.LevelCritical, "raised")
)

func newAgent(t *testing.T, name string, opts ...domain.Option) *domain.Agent {
	t.Helper()
	a, err := domain.NewAgent(name, opts...)
	require.NoError(t, err)
	return a
}

func newController(t *testing.T, root *domain.Agent, pool Submitter, clock *fakeClock) *Controller {
	t.Helper()
	c := NewController(domain.NewTree(quietLogger()), pool, quietLogger(), Options{
		Policy:  testPolicy,
		MaxIdle: time.Minute,
		Clock:   clock.Now,
	})
	require.NoError(t, c.SetRoot(context.Background(), root))
	c.Tree().RecomputeAll()
	return c
}

func TestTickDispatchesDueAgents(t *testing.T) {
	probe := &scripted{value: domain.Integer(3)}
	a := newAgent(t, "a",
		domain.WithRefresher(probe),
		domain.WithPeriod(5*time.Second),
		domain.WithKind(domain.KindInteger),
		domain.WithRules(domain.Range(0, 10, stateReady), domain.Range(11, 100, stateWarning)),
	)
	root := newAgent(t, "root")
	require.NoError(t, domain.Insert(root, a))

	clock := &fakeClock{now: at(0)}
	c := newController(t, root, inlineSubmitter{}, clock)

	wake := c.Tick(at(0))
	assert.Equal(t, 1, probe.count())
	assert.Equal(t, at(60), wake, "agents dispatched by this tick do not bound the wake time")
	assert.Same(t, stateReady, root.State())
	assert.Len(t, c.wake, 1, "completion wakes the loop")

	assert.Equal(t, at(5), c.Tick(at(1)))
	assert.Equal(t, 1, probe.count())

	probe.set(domain.Integer(50), nil)
	clock.Set(at(5))
	c.Tick(at(5))
	assert.Equal(t, 2, probe.count())
	assert.Same(t, stateWarning, root.State())
}

func TestTickNeverDispatchesTwice(t *testing.T) {
	probe := &scripted{value: domain.Integer(1)}
	root := newAgent(t, "root", domain.WithRefresher(probe), domain.WithPeriod(time.Second))

	clock := &fakeClock{now: at(0)}
	pool := &queueSubmitter{}
	c := newController(t, root, pool, clock)

	c.Tick(at(0))
	c.Tick(at(1))
	c.Tick(at(2))
	require.Equal(t, 1, pool.pending())

	clock.Set(at(3))
	pool.runAll()
	assert.Equal(t, 1, probe.count())

	snap := c.Tree().Snapshot(root)
	assert.False(t, snap.Refreshing)
	assert.Equal(t, at(4), snap.NextDue)
}

func TestRefreshFailures(t *testing.T) {
	tests := []struct {
		name      string
		refresher domain.Refresher
		wantErr   string
	}{
		{
			name:      "error",
			refresher: &scripted{err: errors.New("probe timeout")},
			wantErr:   "probe timeout",
		},
		{
			name: "panic",
			refresher: domain.RefresherFunc(func(context.Context) (domain.Value, error) {
				panic("nil map")
			}),
			wantErr: domain.ErrUnexpected.Error(),
		},
		{
			name: "timeout",
			refresher: domain.RefresherFunc(func(ctx context.Context) (domain.Value, error) {
				<-ctx.Done()
				return domain.Value{}, ctx.Err()
			}),
			wantErr: context.DeadlineExceeded.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newAgent(t, "root",
				domain.WithRefresher(tt.refresher),
				domain.WithPeriod(5*time.Second),
				domain.WithRules(domain.Default(stateReady)),
			)
			clock := &fakeClock{now: at(10)}
			m := metrics.New()
			c := NewController(domain.NewTree(quietLogger()), inlineSubmitter{}, quietLogger(), Options{
				Policy:         testPolicy,
				RefreshTimeout: 20 * time.Millisecond,
				Clock:          clock.Now,
				Metrics:        m,
			})
			require.NoError(t, c.SetRoot(context.Background(), root))

			c.Tick(at(10))

			snap := c.Tree().Snapshot(root)
			assert.Equal(t, domain.LevelCritical, snap.Level())
			assert.Contains(t, snap.State.Summary(), tt.wantErr)
			assert.Equal(t, at(310), snap.NextDue, "fixed backoff, not the period")
			assert.Equal(t, float64(0), testutil.ToFloat64(m.RefreshesInFlight))
		})
	}
}

func TestReadOnDemand(t *testing.T) {
	flag := &scripted{value: domain.Boolean(true)}
	b := newAgent(t, "b",
		domain.WithRefresher(flag),
		domain.WithOnDemand(),
		domain.WithPeriod(30*time.Second),
		domain.WithKind(domain.KindBoolean),
		domain.WithRules(domain.Bool(false, stateReady), domain.Bool(true, stateCritical)),
	)
	root := newAgent(t, "root")
	require.NoError(t, domain.Insert(root, b))

	clock := &fakeClock{now: at(0)}
	c := newController(t, root, inlineSubmitter{}, clock)

	c.Tick(at(0))
	assert.Equal(t, 0, flag.count(), "ticks never refresh on-demand agents")

	snap, err := c.Read(context.Background(), "/B")
	require.NoError(t, err)
	assert.Equal(t, 1, flag.count())
	assert.Same(t, stateCritical, snap.State)
	assert.Same(t, stateCritical, root.State(), "propagated before the read returns")

	_, err = c.Read(context.Background(), "/b")
	require.NoError(t, err)
	assert.Equal(t, 1, flag.count(), "fresh values are served as is")

	clock.Set(at(30))
	flag.set(domain.Boolean(false), nil)
	snap, err = c.Read(context.Background(), "/b")
	require.NoError(t, err)
	assert.Equal(t, 2, flag.count())
	assert.Same(t, stateReady, snap.State)

	_, err = c.Read(context.Background(), "/missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRequestRefresh(t *testing.T) {
	probe := &scripted{value: domain.Integer(1)}
	a := newAgent(t, "a", domain.WithRefresher(probe))
	root := newAgent(t, "root")
	require.NoError(t, domain.Insert(root, a))

	clock := &fakeClock{now: at(0)}
	c := newController(t, root, inlineSubmitter{}, clock)

	c.Tick(at(0))
	<-c.wake
	c.Tick(at(100))
	require.Equal(t, 1, probe.count(), "one-shot agents stay dormant")

	clock.Set(at(100))
	require.NoError(t, c.RequestRefresh("/a"))
	assert.Len(t, c.wake, 1)

	c.Tick(at(100))
	assert.Equal(t, 2, probe.count())

	assert.ErrorIs(t, c.RequestRefresh("/nope"), domain.ErrNotFound)
}

func TestSetRoot(t *testing.T) {
	clock := &fakeClock{now: at(0)}
	c := NewController(domain.NewTree(quietLogger()), inlineSubmitter{}, quietLogger(), Options{Clock: clock.Now})

	first := newAgent(t, "first")
	second := newAgent(t, "second")
	require.NoError(t, c.SetRoot(context.Background(), first))
	require.NoError(t, c.SetRoot(context.Background(), second), "stopped controllers replace the root")
	assert.Same(t, second, c.Tree().Root())

	require.NoError(t, c.Start(context.Background()))
	assert.ErrorIs(t, c.Start(context.Background()), ErrRunning)
	assert.ErrorIs(t, c.SetRoot(context.Background(), newAgent(t, "third")), ErrRootActive)
	_, err := c.ClearRoot()
	assert.ErrorIs(t, err, ErrRunning)

	require.NoError(t, c.Stop())
	root, err := c.ClearRoot()
	require.NoError(t, err)
	assert.Same(t, second, root)
}

func TestStartStopLifecycle(t *testing.T) {
	log := &journal{}
	rootProbe := &scripted{name: "root", value: domain.Integer(1), journal: log}
	childProbe := &scripted{name: "a", value: domain.Integer(1), journal: log}

	root := newAgent(t, "root", domain.WithRefresher(rootProbe), domain.WithRules(domain.Default(stateReady)))
	a := newAgent(t, "a", domain.WithRefresher(childProbe), domain.WithRules(domain.Default(stateReady)))
	require.NoError(t, domain.Insert(root, a))

	c := NewController(domain.NewTree(quietLogger()), worker.NewPool(2, quietLogger()), quietLogger(), Options{})
	require.NoError(t, c.SetRoot(context.Background(), root))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))
	assert.True(t, c.Running())

	require.Eventually(t, func() bool {
		return rootProbe.count() == 1 && childProbe.count() == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, c.Stop())
	assert.False(t, c.Running())
	assert.NoError(t, c.Stop(), "stopping twice is a no-op")

	assert.Equal(t, []string{"start root", "start a", "stop root", "stop a"}, log.list())
	assert.Same(t, stateReady, c.Tree().Snapshot(root).State)
}

func TestInsertStartsRefreshers(t *testing.T) {
	ctx := context.Background()
	log := &journal{}
	root := newAgent(t, "root")

	c := NewController(domain.NewTree(quietLogger()), worker.NewPool(2, quietLogger()), quietLogger(), Options{})
	require.NoError(t, c.SetRoot(ctx, root))

	early := &scripted{name: "early", value: domain.Integer(1), journal: log}
	require.NoError(t, c.Insert(ctx, "/", newAgent(t, "early", domain.WithRefresher(early))))
	assert.Empty(t, log.list(), "a stopped controller starts refreshers in Start")

	require.NoError(t, c.Start(ctx))

	late := &scripted{name: "late", value: domain.Integer(1), journal: log}
	lateAgent := newAgent(t, "late", domain.WithRefresher(late), domain.WithRules(domain.Default(stateWarning)))
	require.NoError(t, c.Insert(ctx, "/", lateAgent))
	require.Eventually(t, func() bool { return late.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	dup := &scripted{name: "dup", journal: log}
	err := c.Insert(ctx, "/", newAgent(t, "late", domain.WithRefresher(dup)))
	assert.ErrorIs(t, err, domain.ErrDuplicateName)
	assert.ErrorIs(t, c.Insert(ctx, "/nope", newAgent(t, "x")), domain.ErrNotFound)

	require.NoError(t, c.Stop())

	assert.Equal(t, []string{
		"start early",
		"start late",
		"start dup", "stop dup",
		"stop early", "stop late",
	}, log.list())
	assert.Equal(t, domain.LevelWarning, c.Tree().Snapshot(root).Level())
}

// cyclingRefresher walks its value through 0..3 and counts overlapping calls.
type cyclingRefresher struct {
	active   atomic.Int32
	overlaps atomic.Int32
	calls    atomic.Int32
}

func (r *cyclingRefresher) Refresh(context.Context) (domain.Value, error) {
	if r.active.Add(1) != 1 {
		r.overlaps.Add(1)
	}
	defer r.active.Add(-1)

	n := r.calls.Add(1)
	time.Sleep(time.Millisecond)
	return domain.Integer(int64(n % 4)), nil
}

// TestConcurrentSiblings runs many periodic siblings on a real pool. Run
// with -race.
func TestConcurrentSiblings(t *testing.T) {
	const (
		groups   = 4
		siblings = 8
	)

	levelOf := map[int64]domain.Level{
		0: domain.LevelReady,
		1: domain.LevelWarning,
		2: domain.LevelError,
		3: domain.LevelCritical,
	}
	rules := []domain.Rule{
		domain.Exact(domain.Integer(0), stateReady),
		domain.Exact(domain.Integer(1), stateWarning),
		domain.Exact(domain.Integer(2), domain.NewState(domain.LevelError, "failing")),
		domain.Default(stateCritical),
	}

	root := newAgent(t, "root")
	var refreshers []*cyclingRefresher
	for g := 0; g < groups; g++ {
		group := newAgent(t, fmt.Sprintf("group%d", g))
		require.NoError(t, domain.Insert(root, group))
		for i := 0; i < siblings; i++ {
			r := &cyclingRefresher{}
			refreshers = append(refreshers, r)
			leaf := newAgent(t, fmt.Sprintf("leaf%d", i),
				domain.WithKind(domain.KindInteger),
				domain.WithRefresher(r),
				domain.WithPeriod(5*time.Millisecond),
				domain.WithRules(rules...),
			)
			require.NoError(t, domain.Insert(group, leaf))
		}
	}

	c := NewController(domain.NewTree(quietLogger()), worker.NewPool(8, quietLogger()), quietLogger(), Options{
		Policy:  domain.Policy{Grace: 5 * time.Millisecond, FailureBackoff: 10 * time.Millisecond},
		MaxIdle: 10 * time.Millisecond,
	})
	require.NoError(t, c.SetRoot(context.Background(), root))
	require.NoError(t, c.Start(context.Background()))

	require.Eventually(t, func() bool {
		for _, r := range refreshers {
			if r.calls.Load() < 5 {
				return false
			}
		}
		return true
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, c.Stop())
	require.Zero(t, c.Tree().InFlight())

	for i, r := range refreshers {
		assert.Zero(t, r.overlaps.Load(), "refresher %d ran concurrently with itself", i)
	}

	c.Tree().ForEach(domain.PostOrder, func(a *domain.Agent) {
		if a.Refresher() != nil {
			n, _ := a.Value().Int()
			assert.Equal(t, levelOf[n], a.State().Level(), "leaf %s", a.Path())
			return
		}
		want := domain.LevelUndefined
		for _, child := range a.Children() {
			want = domain.MaxLevel(want, child.State().Level())
		}
		assert.Equal(t, want, a.State().Level(), "agent %s", a.Path())
	})
}
