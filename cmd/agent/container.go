package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	client "AgentTree/internal/agent/clients"
	"AgentTree/internal/agent/domain"
	handler "AgentTree/internal/agent/handlers"
	"AgentTree/internal/agent/loader"
	"AgentTree/internal/agent/metrics"
	runner "AgentTree/internal/agent/runners"
	worker "AgentTree/internal/agent/workers"
	"AgentTree/internal/config"
	"AgentTree/pkg/logger"

	"github.com/redis/go-redis/v9"
)

var errNoTree = errors.New("no agent tree configured: set agents, runtime.agents_file or --tree")

type Container struct {
	Config     *config.Config
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Redis      *redis.Client
	Publisher  *client.Publisher
	Tree       *domain.Tree
	Factory    *runner.Factory
	Pool       *worker.Pool
	Controller *handler.Controller

	metricsServer *http.Server
}

func NewContainer(configPath, treePath string) (*Container, error) {
	container := &Container{}

	if err := container.initConfig(configPath); err != nil {
		return nil, err
	}
	if err := container.initLogger(); err != nil {
		return nil, err
	}
	container.initMetrics()
	container.initPublisher()
	container.initTree()
	container.initRunners()
	container.initController()

	if err := container.initRoot(treePath); err != nil {
		return nil, err
	}

	return container, nil
}

func (c *Container) initConfig(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	c.Config = cfg
	return nil
}

func (c *Container) initLogger() error {
	log, err := logger.New(logger.Config{
		Level:  c.Config.Logging.Level,
		Format: c.Config.Logging.Format,
	})
	if err != nil {
		return err
	}
	c.Logger = log.With("app", c.Config.App.Name, "version", c.Config.App.Version)
	slog.SetDefault(c.Logger)
	return nil
}

func (c *Container) initMetrics() {
	c.Metrics = metrics.New()

	if !c.Config.Metrics.Enabled {
		return
	}
	mux := http.NewServeMux()
	mux.Handle(c.Config.Metrics.Path, c.Metrics.Handler())
	c.metricsServer = &http.Server{
		Addr:              c.Config.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (c *Container) initPublisher() {
	cfg := c.Config.Notify.Redis
	if !cfg.Enabled {
		return
	}

	c.Redis = redis.NewClient(cfg.GetRedisOptions())
	c.Publisher = client.NewPublisher(c.Redis, client.PublisherConfig{
		Channel: cfg.Channel,
		Buffer:  cfg.Buffer,
		Rate:    cfg.Rate,
		Burst:   cfg.Burst,
	}, c.Logger)
}

func (c *Container) initTree() {
	// Registered one by one so a panicking hook does not starve the others.
	listeners := []domain.Listener{client.NewLogListener(c.Logger), c.Metrics}
	if c.Publisher != nil {
		listeners = append(listeners, c.Publisher)
	}
	c.Tree = domain.NewTree(c.Logger.With("component", "tree"), listeners...)
}

func (c *Container) initRunners() {
	c.Factory = runner.NewFactory()
}

func (c *Container) initController() {
	rt := c.Config.Runtime
	c.Pool = worker.NewPool(rt.Workers, c.Logger)
	c.Controller = handler.NewController(c.Tree, c.Pool, c.Logger, handler.Options{
		Policy: domain.Policy{
			Grace:          rt.RefreshGrace,
			FailureBackoff: rt.FailureBackoff,
		},
		MaxIdle:        rt.TickMaxIdle,
		RefreshTimeout: rt.RefreshTimeout,
		Metrics:        c.Metrics,
	})
}

func (c *Container) initRoot(treePath string) error {
	if treePath == "" {
		treePath = c.Config.Runtime.AgentsFile
	}

	def := c.Config.Agents
	if treePath != "" {
		loaded, err := loader.LoadFile(treePath)
		if err != nil {
			return err
		}
		def = loaded
	}
	if def == nil {
		return errNoTree
	}

	root, err := loader.Build(def, c.Factory)
	if err != nil {
		return fmt.Errorf("failed to build agent tree: %w", err)
	}
	return c.Controller.SetRoot(context.Background(), root)
}

// Start launches the controller and, when enabled, the metrics endpoint.
func (c *Container) Start(ctx context.Context) error {
	if err := c.Controller.Start(ctx); err != nil {
		return err
	}

	if c.metricsServer != nil {
		go func() {
			c.Logger.Info("metrics server listening", "addr", c.metricsServer.Addr)
			if err := c.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				c.Logger.Error("metrics server failed", "error", err)
			}
		}()
	}
	return nil
}

// Shutdown stops the controller first so no transition is published after
// the publisher closes.
func (c *Container) Shutdown(ctx context.Context) error {
	var errs []error

	if err := c.Controller.Stop(); err != nil {
		errs = append(errs, err)
	}
	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server: %w", err))
		}
	}
	if c.Publisher != nil {
		if err := c.Publisher.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}

	return errors.Join(errs...)
}
