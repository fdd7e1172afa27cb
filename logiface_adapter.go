// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import "github.com/joeycumines/logiface"

// WithLogifaceLogger adapts a logiface logger, of any concrete event type,
// into the Logger interface the reactor uses internally. It converts l to
// its type-erased form via Logger.Logger, so callers may use whichever
// logiface backend they've already wired up (slog, zerolog, stumpy, etc.)
// without the reactor package needing to depend on any of them directly.
func WithLogifaceLogger[E logiface.Event](l *logiface.Logger[E]) Option {
	return optionFunc(func(opts *reactorOptions) error {
		if l == nil {
			return nil
		}
		erased := l.Logger()
		if erased == nil {
			return nil
		}
		opts.logger = &logifaceAdapter{l: erased}
		return nil
	})
}

// logifaceAdapter implements Logger on top of a type-erased logiface.Logger,
// translating LogEntry values into the builder-chain calls logiface expects.
type logifaceAdapter struct {
	l *logiface.Logger[logiface.Event]
}

func (a *logifaceAdapter) IsEnabled(level LogLevel) bool {
	return logifaceLevel(level) <= a.l.Level()
}

func (a *logifaceAdapter) Log(entry LogEntry) {
	b := a.l.Build(logifaceLevel(entry.Level))
	if b == nil {
		return
	}
	if entry.Category != "" {
		b = b.Str("category", entry.Category)
	}
	if entry.EventFD != 0 {
		b = b.Int("fd", entry.EventFD)
	}
	if entry.Priority != 0 {
		b = b.Int("priority", entry.Priority)
	}
	if entry.Err != nil {
		b = b.Err(entry.Err)
	}
	b.Log(entry.Message)
}

// logifaceLevel maps the reactor's coarse LogLevel onto logiface's
// syslog-derived scale. Debug/Info/Warn/Error are the only levels the
// reactor itself ever emits.
func logifaceLevel(level LogLevel) logiface.Level {
	switch level {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}
