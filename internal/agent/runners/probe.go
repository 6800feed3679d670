package runner

import (
	"context"
	"fmt"

	"AgentTree/internal/agent/domain"
)

// Probe binds a runner to a target and is the refresher of one agent. The
// runner's value is coerced to the agent's kind, so a driver returning "12"
// still feeds an integer table.
type Probe struct {
	probeType string
	target    string
	options   map[string]interface{}
	kind      domain.Kind
	runner    Runner
}

func (f *Factory) NewProbe(probeType, target string, options map[string]interface{}, kind domain.Kind) (*Probe, error) {
	r, err := f.GetRunner(probeType)
	if err != nil {
		return nil, err
	}
	if options == nil {
		options = map[string]interface{}{}
	}
	return &Probe{
		probeType: probeType,
		target:    target,
		options:   options,
		kind:      kind,
		runner:    r,
	}, nil
}

func (p *Probe) Type() string   { return p.probeType }
func (p *Probe) Target() string { return p.target }

func (p *Probe) Refresh(ctx context.Context) (domain.Value, error) {
	v, err := p.runner.Execute(ctx, p.target, p.options)
	if err != nil {
		return domain.Value{}, fmt.Errorf("%s %s: %w", p.probeType, p.target, err)
	}
	return domain.Coerce(v, p.kind)
}

func (p *Probe) Start(ctx context.Context) error {
	if o, ok := p.runner.(Opener); ok {
		return o.Open(ctx, p.target, p.options)
	}
	return nil
}

func (p *Probe) Stop() error {
	if o, ok := p.runner.(Opener); ok {
		return o.Close()
	}
	return nil
}
