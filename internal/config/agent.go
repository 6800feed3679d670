package config

import "time"

// AgentConfig declares one agent and its subtree. The same shape is read
// from the main config file and from standalone tree files.
type AgentConfig struct {
	Name    string `mapstructure:"name" yaml:"name" validate:"required,excludesall=/"`
	Label   string `mapstructure:"label" yaml:"label"`
	Summary string `mapstructure:"summary" yaml:"summary"`
	Icon    string `mapstructure:"icon" yaml:"icon"`
	URI     string `mapstructure:"uri" yaml:"uri"`

	// Type is the value kind: integer, boolean, string or none.
	Type  string       `mapstructure:"type" yaml:"type" validate:"omitempty,oneof=none integer int boolean bool string"`
	Probe *ProbeConfig `mapstructure:"probe" yaml:"probe"`

	Period         time.Duration `mapstructure:"period" yaml:"period" validate:"gte=0"`
	OnDemand       bool          `mapstructure:"on_demand" yaml:"on_demand"`
	StartupDelay   time.Duration `mapstructure:"startup_delay" yaml:"startup_delay" validate:"gte=0"`
	FailureBackoff time.Duration `mapstructure:"failure_backoff" yaml:"failure_backoff" validate:"gte=0"`

	States   []StateConfig `mapstructure:"states" yaml:"states" validate:"dive"`
	Children []AgentConfig `mapstructure:"children" yaml:"children" validate:"dive"`
}

type ProbeConfig struct {
	Type    string                 `mapstructure:"type" yaml:"type" validate:"required"`
	Target  string                 `mapstructure:"target" yaml:"target"`
	Options map[string]interface{} `mapstructure:"options" yaml:"options"`
}

// StateConfig is one row of a state table. A row with from or to matches an
// inclusive integer range, a row with value matches that value, and a row
// with neither matches anything.
type StateConfig struct {
	Value   interface{} `mapstructure:"value" yaml:"value"`
	From    *int64      `mapstructure:"from" yaml:"from"`
	To      *int64      `mapstructure:"to" yaml:"to"`
	Level   string      `mapstructure:"level" yaml:"level" validate:"required"`
	Summary string      `mapstructure:"summary" yaml:"summary"`
	Body    string      `mapstructure:"body" yaml:"body"`
	URI     string      `mapstructure:"uri" yaml:"uri"`
	Notify  *bool       `mapstructure:"notify" yaml:"notify"`
}
