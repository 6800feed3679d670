package domain

import (
	"fmt"
	"log/slog"
	"strings"
)

// Level is the ordered health severity of an agent. Higher is worse.
type Level uint8

const (
	LevelUndefined Level = iota
	LevelUnimportant
	LevelReady
	LevelWarning
	LevelError
	LevelCritical
)

var levelNames = [...]string{
	LevelUndefined:   "undefined",
	LevelUnimportant: "unimportant",
	LevelReady:       "ready",
	LevelWarning:     "warning",
	LevelError:       "error",
	LevelCritical:    "critical",
}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("level(%d)", l)
}

func (l Level) LogValue() slog.Value {
	return slog.StringValue(l.String())
}

// ParseLevel resolves a level name, ignoring case.
func ParseLevel(name string) (Level, error) {
	for i, n := range levelNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return Level(i), nil
		}
	}
	return LevelUndefined, fmt.Errorf("%w: %q", ErrUnknownLevel, name)
}

// MaxLevel returns the worse of two levels.
func MaxLevel(a, b Level) Level {
	if a > b {
		return a
	}
	return b
}
