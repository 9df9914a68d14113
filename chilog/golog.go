package chilog

import (
	"os"

	"github.com/kataras/golog"
)

// Logger implements chi.Logger on top of kataras/golog, matching the shape
// Context expects: Debugf/Infof/Warnf/Errorf.
type Logger struct {
	logger *golog.Logger
	level  Level
}

// New creates a Logger writing to stderr through a fresh golog.Logger at the
// given level, with chi's "[chi] " prefix.
func New(level Level) *Logger {
	g := golog.New()
	g.SetOutput(os.Stderr)
	g.SetPrefix("[chi] ")
	l := &Logger{logger: g}
	l.SetLevel(level)
	return l
}

// NewWithGolog wraps an already-configured golog.Logger, so an embedding
// application's existing golog setup (prefix, output, hooks) carries
// through to chi's diagnostics unchanged.
func NewWithGolog(g *golog.Logger) *Logger {
	l := &Logger{logger: g}
	l.SetLevel(LevelInfo)
	return l
}

func (l *Logger) Debugf(format string, args ...any) {
	if l.level <= LevelDebug {
		l.logger.Debugf(format, args...)
	}
}

func (l *Logger) Infof(format string, args ...any) {
	if l.level <= LevelInfo {
		l.logger.Infof(format, args...)
	}
}

func (l *Logger) Warnf(format string, args ...any) {
	if l.level <= LevelWarn {
		l.logger.Warnf(format, args...)
	}
}

func (l *Logger) Errorf(format string, args ...any) {
	if l.level <= LevelError {
		l.logger.Errorf(format, args...)
	}
}

// SetLevel adjusts the minimum level this Logger emits at, translating to
// the underlying golog.Logger's own level so golog's own filtering and
// chilog's agree.
func (l *Logger) SetLevel(level Level) {
	l.level = level
	switch level {
	case LevelDebug:
		l.logger.SetLevel("debug")
	case LevelInfo:
		l.logger.SetLevel("info")
	case LevelWarn:
		l.logger.SetLevel("warn")
	case LevelError:
		l.logger.SetLevel("error")
	case LevelNone:
		l.logger.SetLevel("disable")
	}
}

// GetLevel returns the current log level.
func (l *Logger) GetLevel() Level { return l.level }
