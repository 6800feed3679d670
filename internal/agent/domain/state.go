package domain

import "log/slog"

// State is an immutable health state. Many agents may point at the same State.
type State struct {
	level   Level
	summary string
	body    string
	uri     string
	notify  bool
}

type StateOption func(*State)

func WithBody(body string) StateOption {
	return func(s *State) { s.body = body }
}

func WithLink(uri string) StateOption {
	return func(s *State) { s.uri = uri }
}

// WithNotify controls whether activating the state is reported at info level.
func WithNotify(notify bool) StateOption {
	return func(s *State) { s.notify = notify }
}

func NewState(level Level, summary string, opts ...StateOption) *State {
	s := &State{
		level:   level,
		summary: summary,
		notify:  true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Undefined is the state every agent holds before its first computation.
var Undefined = NewState(LevelUndefined, "undefined", WithNotify(false))

// FailureState builds the critical state reported by an agent whose refresh failed.
func FailureState(err error) *State {
	summary := "refresh failed"
	if err != nil {
		summary = err.Error()
	}
	return NewState(LevelCritical, summary)
}

func (s *State) Level() Level    { return s.level }
func (s *State) Summary() string { return s.summary }
func (s *State) Body() string    { return s.body }
func (s *State) Link() string    { return s.uri }
func (s *State) Notify() bool    { return s.notify }

func (s *State) String() string {
	return s.level.String() + ": " + s.summary
}

func (s *State) activate(a *Agent, logger *slog.Logger) {
	if !s.notify {
		logger.Debug("state activated", "agent", a.path(), "level", s.level, "summary", s.summary)
		return
	}
	logger.Info("state activated", "agent", a.path(), "level", s.level, "summary", s.summary)
}

func (s *State) deactivate(a *Agent, logger *slog.Logger) {
	logger.Debug("state deactivated", "agent", a.path(), "level", s.level, "summary", s.summary)
}
