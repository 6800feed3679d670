package runner

import (
	"context"
	"fmt"
	"sync"

	"AgentTree/internal/agent/domain"
	"AgentTree/internal/shared/constants"

	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultPostgresQuery = "SELECT 1"

// PostgresRunner reports the first column of the first row of a query. Each
// probe gets its own runner holding one pool.
type PostgresRunner struct {
	mu   sync.Mutex
	pool *pgxpool.Pool
}

func NewPostgresRunner() *PostgresRunner {
	return &PostgresRunner{}
}

func (r *PostgresRunner) Open(ctx context.Context, target string, options map[string]interface{}) error {
	_, err := r.connect(ctx, target, options)
	return err
}

func (r *PostgresRunner) connect(ctx context.Context, target string, options map[string]interface{}) (*pgxpool.Pool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pool != nil {
		return r.pool, nil
	}

	cfg, err := pgxpool.ParseConfig(target)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres target: %w", err)
	}
	cfg.MaxConns = int32(getIntOption(options, "max_conns", 2))

	ctx, cancel := context.WithTimeout(ctx, getDurationOption(options, "timeout", constants.PostgresTimeout))
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	r.pool = pool
	return pool, nil
}

func (r *PostgresRunner) Execute(ctx context.Context, target string, options map[string]interface{}) (domain.Value, error) {
	pool, err := r.connect(ctx, target, options)
	if err != nil {
		return domain.Value{}, err
	}

	query := getStringOption(options, "query", defaultPostgresQuery)

	var result any
	if err := pool.QueryRow(ctx, query).Scan(&result); err != nil {
		return domain.Value{}, fmt.Errorf("query failed: %w", err)
	}

	return domain.ValueOf(result)
}

func (r *PostgresRunner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pool != nil {
		r.pool.Close()
		r.pool = nil
	}
	return nil
}
