package constants

import "time"

// Probe defaults, used when a probe sets no timeout of its own.
const (
	HTTPTimeout     = 30 * time.Second
	PingTimeout     = 30 * time.Second
	DNSTimeout      = 5 * time.Second
	TCPTimeout      = 15 * time.Second
	PostgresTimeout = 10 * time.Second
	RedisTimeout    = 5 * time.Second
)
