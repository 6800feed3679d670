package runner

import (
	"fmt"
	"strings"
)

// Factory hands out runners by probe type. Stateless runners are shared;
// runners holding a connection are created per call.
type Factory struct {
	httpRunner   *HTTPRunner
	httpsRunner  *HTTPRunner
	tcpRunner    *TCPRunner
	dnsRunner    *DNSRunner
	pingRunner   *PingRunner
	staticRunner *StaticRunner
}

func NewFactory() *Factory {
	return &Factory{
		httpRunner:   NewHTTPRunner("http"),
		httpsRunner:  NewHTTPRunner("https"),
		tcpRunner:    NewTCPRunner(),
		dnsRunner:    NewDNSRunner(),
		pingRunner:   NewPingRunner(),
		staticRunner: NewStaticRunner(),
	}
}

func (f *Factory) GetRunner(probeType string) (Runner, error) {
	switch strings.ToLower(probeType) {
	case "http":
		return f.httpRunner, nil
	case "https":
		return f.httpsRunner, nil
	case "tcp":
		return f.tcpRunner, nil
	case "dns":
		return f.dnsRunner, nil
	case "ping":
		return f.pingRunner, nil
	case "static":
		return f.staticRunner, nil
	case "postgres":
		return NewPostgresRunner(), nil
	case "redis":
		return NewRedisRunner(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProbeType, probeType)
	}
}
