package client

import (
	"log/slog"

	"AgentTree/internal/agent/domain"
)

// reportable drops quiet states below warning.
func reportable(tr domain.Transition) bool {
	return tr.To.Notify() || tr.To.Level() >= domain.LevelWarning
}

// LogListener writes one log line per reportable transition.
type LogListener struct {
	logger *slog.Logger
}

func NewLogListener(logger *slog.Logger) *LogListener {
	return &LogListener{logger: logger.With("component", "transitions")}
}

func (l *LogListener) OnTransition(tr domain.Transition) {
	if !reportable(tr) {
		return
	}

	attrs := []any{
		"agent", tr.Path,
		"from", tr.From.Level(),
		"to", tr.To.Level(),
		"summary", tr.To.Summary(),
	}
	if tr.To.Level() >= domain.LevelError {
		l.logger.Warn("agent level changed", attrs...)
		return
	}
	l.logger.Info("agent level changed", attrs...)
}
