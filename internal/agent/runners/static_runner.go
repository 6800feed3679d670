package runner

import (
	"context"

	"AgentTree/internal/agent/domain"
)

// StaticRunner reports the option value as is. It suits grouping agents and
// values pushed in by configuration.
type StaticRunner struct{}

func NewStaticRunner() *StaticRunner {
	return &StaticRunner{}
}

func (r *StaticRunner) Execute(_ context.Context, _ string, options map[string]interface{}) (domain.Value, error) {
	return domain.ValueOf(options["value"])
}
