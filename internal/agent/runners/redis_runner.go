package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"AgentTree/internal/agent/domain"
	"AgentTree/internal/shared/constants"

	"github.com/redis/go-redis/v9"
)

const defaultRedisCommand = "PING"

// RedisRunner runs one command, PING by default, and reports its reply.
// Each probe gets its own runner holding one client.
type RedisRunner struct {
	mu     sync.Mutex
	client *redis.Client
}

func NewRedisRunner() *RedisRunner {
	return &RedisRunner{}
}

func (r *RedisRunner) Open(ctx context.Context, target string, options map[string]interface{}) error {
	_, err := r.connect(target, options)
	return err
}

func (r *RedisRunner) connect(target string, options map[string]interface{}) (*redis.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client != nil {
		return r.client, nil
	}

	opts, err := redisOptions(target, options)
	if err != nil {
		return nil, err
	}
	r.client = redis.NewClient(opts)
	return r.client, nil
}

func redisOptions(target string, options map[string]interface{}) (*redis.Options, error) {
	var opts *redis.Options
	if strings.HasPrefix(target, "redis://") || strings.HasPrefix(target, "rediss://") {
		parsed, err := redis.ParseURL(target)
		if err != nil {
			return nil, fmt.Errorf("invalid redis target: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     target,
			Password: getStringOption(options, "password", ""),
			DB:       getIntOption(options, "db", 0),
		}
	}

	timeout := getDurationOption(options, "timeout", constants.RedisTimeout)
	opts.DialTimeout = timeout
	opts.ReadTimeout = timeout
	opts.WriteTimeout = timeout
	opts.DisableIdentity = true
	return opts, nil
}

func (r *RedisRunner) Execute(ctx context.Context, target string, options map[string]interface{}) (domain.Value, error) {
	client, err := r.connect(target, options)
	if err != nil {
		return domain.Value{}, err
	}

	args := commandArgs(getStringOption(options, "command", defaultRedisCommand))
	result, err := client.Do(ctx, args...).Result()
	if err != nil {
		return domain.Value{}, fmt.Errorf("redis %s failed: %w", args[0], err)
	}

	return domain.ValueOf(result)
}

func commandArgs(command string) []interface{} {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		fields = []string{defaultRedisCommand}
	}
	args := make([]interface{}, len(fields))
	for i, f := range fields {
		args[i] = f
	}
	return args
}

func (r *RedisRunner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return err
}
