package worker

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

const DefaultSize = 8

// Pool runs submitted jobs on at most size goroutines at once. Submit never
// blocks the caller; jobs beyond the limit wait for a free slot.
type Pool struct {
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	logger *slog.Logger
}

func NewPool(size int, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		sem:    semaphore.NewWeighted(int64(size)),
		logger: logger.With("component", "workers"),
	}
}

func (p *Pool) Submit(job func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		// Background context: pending jobs are drained, not cancelled.
		if err := p.sem.Acquire(context.Background(), 1); err != nil {
			p.logger.Error("failed to acquire worker slot", "error", err)
			return
		}
		defer p.sem.Release(1)

		p.run(job)
	}()
}

func (p *Pool) run(job func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job panicked", "panic", r)
		}
	}()
	job()
}

// Wait blocks until every submitted job has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}
