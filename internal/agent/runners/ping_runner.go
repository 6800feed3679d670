package runner

import (
	"context"
	"fmt"
	"math"
	"time"

	"AgentTree/internal/agent/domain"
	"AgentTree/internal/shared/constants"

	probing "github.com/prometheus-community/pro-bing"
)

// PingRunner sends ICMP echo requests and reports the average round trip in
// milliseconds, or the packet loss percentage with the option value: loss.
type PingRunner struct {
	timeout time.Duration
}

func NewPingRunner() *PingRunner {
	return &PingRunner{
		timeout: constants.PingTimeout,
	}
}

func (r *PingRunner) Execute(ctx context.Context, target string, options map[string]interface{}) (domain.Value, error) {
	pinger, err := probing.NewPinger(target)
	if err != nil {
		return domain.Value{}, fmt.Errorf("failed to create pinger: %w", err)
	}

	pinger.Count = getIntOption(options, "count", 3)
	pinger.Interval = getDurationOption(options, "interval", time.Second)
	pinger.Timeout = getDurationOption(options, "timeout", r.timeout)
	pinger.SetPrivileged(getBoolOption(options, "privileged", false))

	if err := pinger.RunWithContext(ctx); err != nil {
		return domain.Value{}, fmt.Errorf("ping failed: %w", err)
	}

	return pingValue(pinger.Statistics(), getStringOption(options, "value", "rtt"))
}

func pingValue(stats *probing.Statistics, mode string) (domain.Value, error) {
	if mode == "loss" {
		return domain.Integer(int64(math.Round(stats.PacketLoss))), nil
	}
	if stats.PacketsRecv == 0 {
		return domain.Value{}, fmt.Errorf("%w: %d packets lost", ErrNoReply, stats.PacketsSent)
	}
	return domain.Integer(stats.AvgRtt.Milliseconds()), nil
}
