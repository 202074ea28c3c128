// Package logx provides the structured run logger used across the
// simulator: every line is tagged with a run ID and level, and debug output
// is gated by an environment variable so a production run stays quiet.
package logx

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	debugMutex  sync.RWMutex
	debugActive = strings.EqualFold(os.Getenv("AGENTSIM_DEBUG"), "1") || strings.EqualFold(os.Getenv("AGENTSIM_DEBUG"), "true")
)

// SetDebug toggles debug-level output for every Logger, overriding whatever
// AGENTSIM_DEBUG was set to at process start.
func SetDebug(enabled bool) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugActive = enabled
}

func debugEnabled() bool {
	debugMutex.RLock()
	defer debugMutex.RUnlock()
	return debugActive
}

// Logger is a structured logger scoped to one simulation run.
type Logger struct {
	runID string
	out   *log.Logger
}

// NewLogger creates a Logger tagging every line with runID.
func NewLogger(runID string) *Logger {
	return &Logger{runID: runID, out: log.New(os.Stderr, "", 0)}
}

// WithRunID returns a copy of the logger scoped to a different run ID,
// sharing the same output destination.
func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{runID: runID, out: l.out}
}

func (l *Logger) log(level Level, format string, args ...any) {
	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	line := fmt.Sprintf("[%s] [%s] %s: %s", timestamp, l.runID, level, fmt.Sprintf(format, args...))
	l.out.Println(line)
}

// Debug logs at debug level, a no-op unless AGENTSIM_DEBUG (or SetDebug) has
// enabled it.
func (l *Logger) Debug(format string, args ...any) {
	if !debugEnabled() {
		return
	}
	l.log(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *Logger) Error(format string, args ...any) { l.log(LevelError, format, args...) }

var defaultLogger = NewLogger("system")

// Debugf, Infof, Warnf log through a process-wide default logger, for call
// sites that don't carry their own run-scoped Logger.
func Debugf(format string, args ...any) { defaultLogger.Debug(format, args...) }
func Infof(format string, args ...any)  { defaultLogger.Info(format, args...) }
func Warnf(format string, args ...any)  { defaultLogger.Warn(format, args...) }

// Errorf formats, logs, and returns an error in one call.
func Errorf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	defaultLogger.Error("%s", err.Error())
	return err
}

// Wrap logs msg + ": " + err.Error() and returns fmt.Errorf("%s: %w", msg, err).
// A nil err passes through unchanged and unlogged.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("%s: %w", msg, err)
	defaultLogger.Error("%s", wrapped.Error())
	return wrapped
}
