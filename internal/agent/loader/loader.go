package loader

import (
	"errors"
	"fmt"
	"math"
	"os"

	"AgentTree/internal/agent/domain"
	runner "AgentTree/internal/agent/runners"
	"AgentTree/internal/config"
	"AgentTree/pkg/validator"

	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidTarget = errors.New("invalid probe target")
	ErrInvalidRule   = errors.New("invalid state rule")
)

// LoadFile reads a standalone tree file.
func LoadFile(path string) (*config.AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tree file: %w", err)
	}

	var def config.AgentConfig
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse tree file %s: %w", path, err)
	}
	if err := config.ValidateAgent(&def); err != nil {
		return nil, fmt.Errorf("invalid tree file %s: %w", path, err)
	}
	return &def, nil
}

// Build turns a tree definition into a detached agent subtree. Children are
// inserted in document order, which is also their tie-break order.
func Build(def *config.AgentConfig, factory *runner.Factory) (*domain.Agent, error) {
	if def == nil {
		return nil, domain.ErrNilAgent
	}
	return build(def, factory, "")
}

func build(def *config.AgentConfig, factory *runner.Factory, parentPath string) (*domain.Agent, error) {
	path := parentPath + "/" + def.Name

	a, err := newAgent(def, factory)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", path, err)
	}

	for i := range def.Children {
		child, err := build(&def.Children[i], factory, path)
		if err != nil {
			return nil, err
		}
		if err := domain.Insert(a, child); err != nil {
			return nil, fmt.Errorf("agent %s: %w", path, err)
		}
	}
	return a, nil
}

func newAgent(def *config.AgentConfig, factory *runner.Factory) (*domain.Agent, error) {
	kind, err := domain.ParseKind(def.Type)
	if err != nil {
		return nil, err
	}

	rules, err := buildRules(def.States, kind)
	if err != nil {
		return nil, err
	}

	opts := []domain.Option{
		domain.WithLabel(def.Label),
		domain.WithSummary(def.Summary),
		domain.WithIcon(def.Icon),
		domain.WithURI(def.URI),
		domain.WithKind(kind),
		domain.WithRules(rules...),
		domain.WithPeriod(def.Period),
		domain.WithStartupDelay(def.StartupDelay),
		domain.WithFailureBackoff(def.FailureBackoff),
	}
	if def.OnDemand {
		opts = append(opts, domain.WithOnDemand())
	}

	if def.Probe != nil {
		probe, err := newProbe(def.Probe, kind, factory)
		if err != nil {
			return nil, err
		}
		opts = append(opts, domain.WithRefresher(probe))
	}

	return domain.NewAgent(def.Name, opts...)
}

func newProbe(def *config.ProbeConfig, kind domain.Kind, factory *runner.Factory) (*runner.Probe, error) {
	if !validator.ValidateProbeType(def.Type) {
		return nil, fmt.Errorf("%w: %s", runner.ErrUnknownProbeType, def.Type)
	}
	if !validator.ValidateTarget(def.Type, def.Target) {
		return nil, fmt.Errorf("%w for %s probe: %q", ErrInvalidTarget, def.Type, def.Target)
	}
	return factory.NewProbe(def.Type, def.Target, def.Options, kind)
}

func buildRules(states []config.StateConfig, kind domain.Kind) ([]domain.Rule, error) {
	rules := make([]domain.Rule, 0, len(states))
	for i := range states {
		r, err := buildRule(&states[i], kind)
		if err != nil {
			return nil, fmt.Errorf("states[%d]: %w", i, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func buildRule(def *config.StateConfig, kind domain.Kind) (domain.Rule, error) {
	level, err := domain.ParseLevel(def.Level)
	if err != nil {
		return nil, err
	}

	var stateOpts []domain.StateOption
	if def.Body != "" {
		stateOpts = append(stateOpts, domain.WithBody(def.Body))
	}
	if def.URI != "" {
		stateOpts = append(stateOpts, domain.WithLink(def.URI))
	}
	if def.Notify != nil {
		stateOpts = append(stateOpts, domain.WithNotify(*def.Notify))
	}
	state := domain.NewState(level, def.Summary, stateOpts...)

	hasRange := def.From != nil || def.To != nil
	switch {
	case hasRange && def.Value != nil:
		return nil, fmt.Errorf("%w: value and from/to are exclusive", ErrInvalidRule)
	case hasRange:
		if kind != domain.KindInteger && kind != domain.KindNone {
			return nil, fmt.Errorf("%w: range on %s agent", ErrInvalidRule, kind)
		}
		from, to := int64(math.MinInt64), int64(math.MaxInt64)
		if def.From != nil {
			from = *def.From
		}
		if def.To != nil {
			to = *def.To
		}
		return domain.Range(from, to, state), nil
	case def.Value != nil:
		if b, ok := def.Value.(bool); ok && (kind == domain.KindBoolean || kind == domain.KindNone) {
			return domain.Bool(b, state), nil
		}
		v, err := domain.ValueOf(def.Value)
		if err != nil {
			return nil, err
		}
		if v, err = domain.Coerce(v, kind); err != nil {
			return nil, err
		}
		return domain.Exact(v, state), nil
	default:
		return domain.Default(state), nil
	}
}
