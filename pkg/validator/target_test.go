package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateProbeType(t *testing.T) {
	assert.True(t, ValidateProbeType("HTTP"))
	assert.True(t, ValidateProbeType("postgres"))
	assert.False(t, ValidateProbeType("smtp"))
}

func TestValidateTarget(t *testing.T) {
	tests := []struct {
		probe  string
		target string
		want   bool
	}{
		{"http", "https://example.com/health", true},
		{"http", "example.com:8080/health", true},
		{"http", "ftp://example.com", false},
		{"tcp", "db.internal:5432", true},
		{"tcp", "db.internal", false},
		{"dns", "example.com", true},
		{"ping", "bad host", false},
		{"postgres", "postgres://user@db/app", true},
		{"postgres", "host=db port=5432", true},
		{"redis", "redis://cache:6379/0", true},
		{"redis", "cache:6379", true},
		{"static", "", true},
		{"smtp", "mail:25", false},
	}

	for _, tt := range tests {
		t.Run(tt.probe+" "+tt.target, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateTarget(tt.probe, tt.target))
		})
	}
}
