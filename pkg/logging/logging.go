// Package logging provides structured logging for VEM on top of
// charmbracelet/log.
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// Level represents a log level.
type Level = log.Level

const (
	LevelDebug = log.DebugLevel
	LevelInfo  = log.InfoLevel
	LevelWarn  = log.WarnLevel
	LevelError = log.ErrorLevel
)

// Logger is the structured logger used across VEM.
type Logger = log.Logger

// Options configures a Logger.
type Options struct {
	Level  string    // debug, info, warn, error
	Format string    // text, json, logfmt
	Output io.Writer // defaults to os.Stderr
	Prefix string
}

// ParseLevel converts a level name to a Level. The empty string is info.
func ParseLevel(s string) (Level, error) {
	if s == "" {
		return LevelInfo, nil
	}
	lvl, err := log.ParseLevel(strings.ToLower(s))
	if err != nil {
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return lvl, nil
}

// ParseFormat converts a format name to a formatter. The empty string is text.
func ParseFormat(s string) (log.Formatter, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return log.TextFormatter, nil
	case "json":
		return log.JSONFormatter, nil
	case "logfmt":
		return log.LogfmtFormatter, nil
	default:
		return log.TextFormatter, fmt.Errorf("unknown log format %q", s)
	}
}

// New creates a logger from opts.
func New(opts Options) (*Logger, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	formatter, err := ParseFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	return log.NewWithOptions(out, log.Options{
		Level:           lvl,
		Formatter:       formatter,
		Prefix:          opts.Prefix,
		ReportTimestamp: formatter != log.TextFormatter,
	}), nil
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: LevelError})
}

var (
	globalMu sync.RWMutex
	global   = log.NewWithOptions(os.Stderr, log.Options{Level: LevelWarn, Prefix: "vem"})
)

// SetGlobal sets the global logger.
func SetGlobal(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = l
}

// Global returns the global logger.
func Global() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// Debug logs to the global logger.
func Debug(msg string, keyvals ...any) {
	Global().Debug(msg, keyvals...)
}

// Info logs to the global logger.
func Info(msg string, keyvals ...any) {
	Global().Info(msg, keyvals...)
}

// Warn logs to the global logger.
func Warn(msg string, keyvals ...any) {
	Global().Warn(msg, keyvals...)
}

// Error logs to the global logger.
func Error(msg string, keyvals ...any) {
	Global().Error(msg, keyvals...)
}

// WithFields returns a child of l carrying fields, in key order.
func WithFields(l *Logger, fields map[string]any) *Logger {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	keyvals := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		keyvals = append(keyvals, k, fields[k])
	}
	return l.With(keyvals...)
}
