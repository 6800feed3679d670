package validator

import (
	"net"
	"net/url"
	"strings"
)

// ValidateTarget checks that target is usable by the given probe type.
func ValidateTarget(probeType, target string) bool {
	switch strings.ToLower(probeType) {
	case "static":
		return true
	case "http", "https":
		return validHTTPTarget(target)
	case "tcp":
		return validHostPort(target)
	case "dns", "ping":
		return validHost(target)
	case "postgres":
		return validPostgresTarget(target)
	case "redis":
		return validRedisTarget(target)
	}
	return false
}

func validHTTPTarget(target string) bool {
	if target == "" {
		return false
	}

	// http://api.com
	if u, err := url.Parse(target); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return u.Host != ""
	}

	// api.com, api.com:8080
	return !strings.Contains(target, "://") && validHost(strings.SplitN(target, "/", 2)[0])
}

func validHostPort(target string) bool {
	host, port, err := net.SplitHostPort(target)
	if err != nil {
		return false
	}
	return host != "" && port != ""
}

func validHost(target string) bool {
	if target == "" || strings.ContainsAny(target, " /") {
		return false
	}
	if host, _, err := net.SplitHostPort(target); err == nil {
		return host != ""
	}
	return true
}

func validPostgresTarget(target string) bool {
	if strings.HasPrefix(target, "postgres://") || strings.HasPrefix(target, "postgresql://") {
		_, err := url.Parse(target)
		return err == nil
	}
	// host=localhost port=5432 ...
	return strings.Contains(target, "=")
}

func validRedisTarget(target string) bool {
	if strings.HasPrefix(target, "redis://") || strings.HasPrefix(target, "rediss://") {
		_, err := url.Parse(target)
		return err == nil
	}
	return validHostPort(target)
}
