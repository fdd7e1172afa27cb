// logging.go - structured logging interface for the reactor package.
//
// Mirrors the teacher's "bring your own logger" convention: a narrow
// Logger interface plus a minimal stderr implementation, so callers can
// wire in zerolog, logrus, or github.com/joeycumines/logiface without
// the reactor depending on any of them directly at the type level.

package reactor

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// LogLevel is the severity of a LogEntry.
type LogLevel int32

const (
	// LevelDebug is used for per-tick scheduling detail.
	LevelDebug LogLevel = iota
	// LevelInfo is used for lifecycle events (dispatch start/stop, reinit).
	LevelInfo
	// LevelWarn is used for recoverable anomalies (clock skew correction).
	LevelWarn
	// LevelError is used for callback panics and backend failures.
	LevelError
)

// String returns the level's name.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", l)
	}
}

// LogEntry is a single structured log record emitted by a Reactor.
type LogEntry struct {
	Level     LogLevel
	Category  string // "timer", "backend", "dispatch", "reinit"
	Message   string
	Err       error
	EventFD   int
	Priority  int
	Timestamp time.Time
}

// Logger receives structured log entries from a Reactor. Implementations
// must be safe to call from the Dispatch goroutine; the reactor never
// calls a Logger from any other goroutine.
type Logger interface {
	Log(entry LogEntry)
	IsEnabled(level LogLevel) bool
}

// noOpLogger discards everything; used when WithLogger is not supplied.
type noOpLogger struct{}

// NewNoOpLogger returns a Logger that discards all entries.
func NewNoOpLogger() Logger { return noOpLogger{} }

func (noOpLogger) Log(LogEntry) {}

func (noOpLogger) IsEnabled(LogLevel) bool { return false }

// DefaultLogger is a minimal text Logger writing to an *os.File.
type DefaultLogger struct {
	level atomic.Int32
	mu    sync.Mutex
	Out   *os.File
}

// NewDefaultLogger creates a logger at the given minimum level, writing
// to os.Stderr.
func NewDefaultLogger(level LogLevel) *DefaultLogger {
	l := &DefaultLogger{Out: os.Stderr}
	l.level.Store(int32(level))
	return l
}

// SetLevel changes the minimum level dynamically.
func (l *DefaultLogger) SetLevel(level LogLevel) {
	l.level.Store(int32(level))
}

// IsEnabled reports whether level would be logged.
func (l *DefaultLogger) IsEnabled(level LogLevel) bool {
	return int32(level) >= l.level.Load()
}

// Log writes entry as a single line if its level is enabled.
func (l *DefaultLogger) Log(entry LogEntry) {
	if !l.IsEnabled(entry.Level) {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if entry.Err != nil {
		fmt.Fprintf(l.Out, "%s [%s] %s fd=%d priority=%d: %s: %v\n",
			entry.Timestamp.Format(time.RFC3339Nano), entry.Level, entry.Category,
			entry.EventFD, entry.Priority, entry.Message, entry.Err)
		return
	}
	fmt.Fprintf(l.Out, "%s [%s] %s fd=%d priority=%d: %s\n",
		entry.Timestamp.Format(time.RFC3339Nano), entry.Level, entry.Category,
		entry.EventFD, entry.Priority, entry.Message)
}

// logDebug/logInfo/logWarn/logError are thin helpers used throughout the
// package so call sites read like the level they log at.

func (r *Reactor) logDebug(category, message string, ev *Event, err error) {
	r.log(LevelDebug, category, message, ev, err)
}

func (r *Reactor) logInfo(category, message string, ev *Event, err error) {
	r.log(LevelInfo, category, message, ev, err)
}

func (r *Reactor) logWarn(category, message string, ev *Event, err error) {
	r.log(LevelWarn, category, message, ev, err)
}

func (r *Reactor) logError(category, message string, ev *Event, err error) {
	r.log(LevelError, category, message, ev, err)
}

func (r *Reactor) log(level LogLevel, category, message string, ev *Event, err error) {
	if r.opts.logger == nil || !r.opts.logger.IsEnabled(level) {
		return
	}
	entry := LogEntry{
		Level:    level,
		Category: category,
		Message:  message,
		Err:      err,
	}
	if ev != nil {
		entry.EventFD = ev.fd
		entry.Priority = ev.priority
	}
	r.opts.logger.Log(entry)
}
