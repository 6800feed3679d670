package runner

import (
	"context"
	"net"
	"time"

	"AgentTree/internal/agent/domain"
	"AgentTree/internal/shared/constants"
)

// TCPRunner reports whether a TCP connection to target can be opened. A
// refused or timed out connection is a value, not a failure.
type TCPRunner struct {
	timeout time.Duration
}

func NewTCPRunner() *TCPRunner {
	return &TCPRunner{
		timeout: constants.TCPTimeout,
	}
}

func (r *TCPRunner) Execute(ctx context.Context, target string, options map[string]interface{}) (domain.Value, error) {
	timeout := getDurationOption(options, "timeout", r.timeout)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", target)
	if err != nil {
		return domain.Boolean(false), nil
	}
	conn.Close()

	return domain.Boolean(true), nil
}
