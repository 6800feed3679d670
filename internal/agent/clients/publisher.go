package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"AgentTree/internal/agent/domain"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const (
	DefaultChannel = "agenttree:transitions"
	DefaultBuffer  = 256
)

// TransitionEvent is the JSON message published for a level change.
type TransitionEvent struct {
	AgentID   string    `json:"agent_id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Summary   string    `json:"summary"`
	Body      string    `json:"body,omitempty"`
	Link      string    `json:"link,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransitionEvent(tr domain.Transition, now time.Time) TransitionEvent {
	return TransitionEvent{
		AgentID:   tr.AgentID,
		Name:      tr.Name,
		Path:      tr.Path,
		From:      tr.From.Level().String(),
		To:        tr.To.Level().String(),
		Summary:   tr.To.Summary(),
		Body:      tr.To.Body(),
		Link:      tr.To.Link(),
		Timestamp: now.UTC(),
	}
}

// publishClient is the part of *redis.Client the publisher uses.
type publishClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type PublisherConfig struct {
	Channel string
	Buffer  int
	// Rate caps published events per second; zero means unlimited.
	Rate  float64
	Burst int
}

// Publisher sends transitions to a redis channel. OnTransition only enqueues,
// since it runs under the tree lock; a background goroutine publishes.
type Publisher struct {
	client  publishClient
	channel string
	limiter *rate.Limiter
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan TransitionEvent

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPublisher(client publishClient, cfg PublisherConfig, logger *slog.Logger) *Publisher {
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultBuffer
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Publisher{
		client:  client,
		channel: cfg.Channel,
		limiter: limiter,
		logger:  logger.With("component", "publisher", "channel", cfg.Channel),
		queue:   make(chan TransitionEvent, cfg.Buffer),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Publisher) OnTransition(tr domain.Transition) {
	if !reportable(tr) {
		return
	}
	if err := p.Enqueue(NewTransitionEvent(tr, time.Now())); err != nil {
		p.logger.Warn("dropping transition event", "agent", tr.Path, "error", err)
	}
}

// Enqueue queues ev without blocking.
func (p *Publisher) Enqueue(ev TransitionEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.queue <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Publisher) run() {
	defer close(p.done)

	for ev := range p.queue {
		if err := p.limiter.Wait(p.ctx); err != nil {
			// Close gave up waiting; drain without publishing.
			continue
		}
		if err := p.publish(p.ctx, ev); err != nil {
			p.logger.Error("failed to publish transition", "agent", ev.Path, "error", err)
		}
	}
}

func (p *Publisher) publish(ctx context.Context, ev TransitionEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}
	return nil
}

// Close stops accepting events and publishes what is queued until ctx ends.
func (p *Publisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	select {
	case <-p.done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-p.done
		return ctx.Err()
	}
}
