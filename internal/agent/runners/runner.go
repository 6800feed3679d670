package runner

import (
	"context"

	"AgentTree/internal/agent/domain"
)

// Runner executes one probe against target and reduces the outcome to a
// single value.
type Runner interface {
	Execute(ctx context.Context, target string, options map[string]interface{}) (domain.Value, error)
}

// Opener is implemented by runners that hold a connection to their target
// between refreshes.
type Opener interface {
	Open(ctx context.Context, target string, options map[string]interface{}) error
	Close() error
}
