package validator

import "strings"

var probeTypes = map[string]bool{
	"http":     true,
	"https":    true,
	"tcp":      true,
	"dns":      true,
	"ping":     true,
	"postgres": true,
	"redis":    true,
	"static":   true,
}

func ValidateProbeType(probeType string) bool {
	return probeTypes[strings.ToLower(probeType)]
}
